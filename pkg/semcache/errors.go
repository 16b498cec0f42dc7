package semcache

import "errors"

// Error kinds surfaced by the orchestrator (spec §7). The cache never lets
// these escape to the caller as failures — lookup degrades to a Miss and
// store/invalidate failures are logged, not returned up the pipeline. They
// exist so the orchestrator's internal logic, the stats snapshot, and the
// health report can reason about what went wrong.
var (
	// ErrEmbedUnavailable means the embedding gateway failed transiently.
	ErrEmbedUnavailable = errors.New("semcache: embedding gateway unavailable")
	// ErrEmbedInputRejected means the gateway rejected the input (e.g. oversize).
	ErrEmbedInputRejected = errors.New("semcache: embedding input rejected")
	// ErrIndexInconsistent means the ANN index and the store diverged.
	ErrIndexInconsistent = errors.New("semcache: index inconsistent with store")
	// ErrStoreUnavailable means the persistent store could not be reached.
	ErrStoreUnavailable = errors.New("semcache: persistent store unavailable")
	// ErrCoherenceDegraded is not failure per se: it flags that invalidation
	// retries were exhausted and the orchestrator now requires an explicit
	// source_version match at the store layer on every lookup.
	ErrCoherenceDegraded = errors.New("semcache: coherence degraded, invalidation retries exhausted")

	// ErrInvalidTTL is returned by store calls for a negative TTL (spec §8
	// boundary behavior: "negative TTL is rejected at store time").
	ErrInvalidTTL = errors.New("semcache: ttl_seconds must be >= 0")
	// ErrDimensionMismatch is returned when a gateway's output dimension
	// does not match the dimension fixed at cache creation.
	ErrDimensionMismatch = errors.New("semcache: embedding dimension mismatch")
)
