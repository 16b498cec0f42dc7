package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryInvalidate retries fn with exponential backoff up to maxRetries
// attempts (spec §4.4.5: invalidation retries on transient store failure
// before setting the coherence-degraded flag). Returns the last error if
// every attempt fails.
func RetryInvalidate(ctx context.Context, maxRetries int, initial, max time.Duration, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.MaxElapsedTime = 0 // bounded by retry count, not elapsed time

	bounded := backoff.WithMaxRetries(b, uint64(maxRetries))
	withCtx := backoff.WithContext(bounded, ctx)

	return backoff.Retry(fn, withCtx)
}
