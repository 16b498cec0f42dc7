// Package resilience guards the optional Redis fast path and the invalidate
// retry loop. The circuit breaker registry is grounded on the teacher's
// internal/resilience/circuit_breaker.go (package-level registry keyed by
// name, gobreaker.Settings with a request-ratio ReadyToTrip, context-aware
// Execute wrapper).
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/quietloop/semcache/pkg/observability"
)

// CircuitBreakerConfig configures one named breaker.
type CircuitBreakerConfig struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
}

var (
	breakers     = make(map[string]*gobreaker.CircuitBreaker)
	breakersLock sync.RWMutex
)

// RedisFastPathBreaker names the breaker guarding Redis fast-path lookups.
const RedisFastPathBreaker = "semcache.redis_fast_path"

// GetCircuitBreaker returns the named breaker, creating it on first use.
func GetCircuitBreaker(name string, cfg CircuitBreakerConfig, logger observability.Logger) *gobreaker.CircuitBreaker {
	breakersLock.RLock()
	cb, ok := breakers[name]
	breakersLock.RUnlock()
	if ok {
		return cb
	}

	breakersLock.Lock()
	defer breakersLock.Unlock()
	if cb, ok := breakers[name]; ok {
		return cb
	}

	if cfg.Name == "" {
		cfg.Name = name
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 5
	}
	if cfg.Interval == 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.FailureRatio == 0 {
		cfg.FailureRatio = 0.5
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", map[string]interface{}{
				"breaker": name, "from": from.String(), "to": to.String(),
			})
		},
	}

	cb = gobreaker.NewCircuitBreaker(settings)
	breakers[name] = cb
	return cb
}

// Execute runs fn through the named breaker, cancellable via ctx. Used to
// wrap the Redis fast-path lookup: when the breaker is open, fn is never
// called and the orchestrator falls back to Postgres directly (spec §2.2
// "Fast path cache... degraded-mode fallback to Postgres-only operation").
func Execute(ctx context.Context, name string, cfg CircuitBreakerConfig, logger observability.Logger, fn func() (interface{}, error)) (interface{}, error) {
	cb := GetCircuitBreaker(name, cfg, logger)

	resultCh := make(chan struct {
		result interface{}
		err    error
	}, 1)

	go func() {
		result, err := cb.Execute(fn)
		resultCh <- struct {
			result interface{}
			err    error
		}{result, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		return res.result, res.err
	}
}

// State reports the current state of a named breaker for health reporting;
// unknown names report gobreaker.StateClosed since no failures have been
// observed against them yet.
func State(name string) gobreaker.State {
	breakersLock.RLock()
	defer breakersLock.RUnlock()
	if cb, ok := breakers[name]; ok {
		return cb.State()
	}
	return gobreaker.StateClosed
}
