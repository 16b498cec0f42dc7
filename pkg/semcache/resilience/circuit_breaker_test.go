package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCircuitBreaker_ReturnsSameInstanceForSameName(t *testing.T) {
	name := t.Name()
	cb1 := GetCircuitBreaker(name, CircuitBreakerConfig{}, nil)
	cb2 := GetCircuitBreaker(name, CircuitBreakerConfig{}, nil)
	assert.Same(t, cb1, cb2)
}

func TestExecute_PassesThroughResultOnSuccess(t *testing.T) {
	name := t.Name()
	res, err := Execute(context.Background(), name, CircuitBreakerConfig{}, nil, func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
}

func TestExecute_TripsAfterRepeatedFailures(t *testing.T) {
	name := t.Name()
	cfg := CircuitBreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureRatio: 0.5}
	boom := errors.New("boom")

	// ReadyToTrip requires Requests >= 5, so drive 5 failures through the
	// same breaker before expecting it to open.
	for i := 0; i < 5; i++ {
		_, _ = Execute(context.Background(), name, cfg, nil, func() (interface{}, error) {
			return nil, boom
		})
	}

	assert.Equal(t, gobreaker.StateOpen, State(name))

	_, err := Execute(context.Background(), name, cfg, nil, func() (interface{}, error) {
		return "should not run", nil
	})
	assert.Error(t, err)
}

func TestExecute_RespectsContextCancellation(t *testing.T) {
	name := t.Name()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := make(chan struct{})
	defer close(block)

	_, err := Execute(ctx, name, CircuitBreakerConfig{}, nil, func() (interface{}, error) {
		<-block
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestState_UnknownBreakerReportsClosed(t *testing.T) {
	assert.Equal(t, gobreaker.StateClosed, State("never-created-"+t.Name()))
}
