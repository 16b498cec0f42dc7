package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/quietloop/semcache/pkg/observability"
	"github.com/quietloop/semcache/pkg/semcache"
	"github.com/quietloop/semcache/pkg/semcache/resilience"
)

// RedisFastPath wraps a Store with an optional Redis-backed L1 read-through
// cache in front of Postgres, grounded on the shape of the teacher's
// redis_client.go (wrap-client-with-circuit-breaker-and-logging), adapted
// to the real sony/gobreaker dependency instead of the teacher's hand-rolled
// breaker. Only FindLiveAnswer is fronted: that is the hot path a
// request-serving pipeline calls on every turn, whereas compressed/chunk
// lookups and all writes go straight to Postgres. On breaker-open or any
// Redis error, RedisFastPath transparently falls back to the wrapped
// store — Redis absence must never surface as a cache failure (spec §2.2).
type RedisFastPath struct {
	Store
	rdb     *redis.Client
	ttl     time.Duration
	logger  observability.Logger
	metrics observability.MetricsClient
}

// NewRedisFastPath wraps base with a Redis read-through cache. rdb may be
// nil, in which case RedisFastPath behaves exactly like base.
func NewRedisFastPath(base Store, rdb *redis.Client, ttl time.Duration, logger observability.Logger, metrics observability.MetricsClient) *RedisFastPath {
	if logger == nil {
		logger = observability.NewLogger("semcache.store.fastpath")
	}
	if metrics == nil {
		metrics = observability.NewMetricsClient()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisFastPath{Store: base, rdb: rdb, ttl: ttl, logger: logger, metrics: metrics}
}

type cachedAnswer struct {
	ID             uuid.UUID `json:"id"`
	QueryText      string    `json:"query_text"`
	ScopeTag       string    `json:"scope_tag"`
	Embedding      []float32 `json:"embedding"`
	AnswerText     string    `json:"answer_text"`
	ProducingAgent string    `json:"producing_agent"`
	TokenCount     int64     `json:"token_count"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AccessCount    int64     `json:"access_count"`
	TTLSeconds     int64     `json:"ttl_seconds"`
	SourceVersion  string    `json:"source_version"`
}

func redisKey(queryText, scopeTag string) string {
	return fmt.Sprintf("semcache:l1:%s:%s", scopeTag, queryText)
}

func (r *RedisFastPath) FindLiveAnswer(ctx context.Context, queryText, scopeTag string, now time.Time) (*semcache.AnswerRecord, error) {
	if r.rdb == nil {
		return r.Store.FindLiveAnswer(ctx, queryText, scopeTag, now)
	}

	result, err := resilience.Execute(ctx, resilience.RedisFastPathBreaker, resilience.CircuitBreakerConfig{}, r.logger, func() (interface{}, error) {
		raw, err := r.rdb.Get(ctx, redisKey(queryText, scopeTag)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		var cached cachedAnswer
		if err := json.Unmarshal(raw, &cached); err != nil {
			return nil, err
		}
		return &cached, nil
	})

	if err != nil {
		r.metrics.IncrementCounterWithLabels("semcache.fastpath_errors", 1, map[string]string{"op": "get"})
		r.logger.Warn("redis fast path unavailable, falling back to store", map[string]interface{}{"error": err.Error()})
		return r.Store.FindLiveAnswer(ctx, queryText, scopeTag, now)
	}
	if result == nil {
		return r.Store.FindLiveAnswer(ctx, queryText, scopeTag, now)
	}

	cached := result.(*cachedAnswer)
	r.metrics.IncrementCounterWithLabels("semcache.fastpath_hits", 1, nil)
	return &semcache.AnswerRecord{
		Header: semcache.Header{
			ID: cached.ID, QueryText: cached.QueryText, ScopeTag: cached.ScopeTag,
			Embedding: semcache.Embedding(cached.Embedding), CreatedAt: cached.CreatedAt,
			LastAccessedAt: cached.LastAccessedAt, AccessCount: cached.AccessCount,
			TTLSeconds: cached.TTLSeconds, SourceVersion: cached.SourceVersion,
		},
		AnswerText: cached.AnswerText, ProducingAgent: cached.ProducingAgent, TokenCount: cached.TokenCount,
	}, nil
}

func (r *RedisFastPath) InsertOrReplaceAnswer(ctx context.Context, rec semcache.AnswerRecord) error {
	if err := r.Store.InsertOrReplaceAnswer(ctx, rec); err != nil {
		return err
	}
	if r.rdb == nil {
		return nil
	}
	cached := cachedAnswer{
		ID: rec.ID, QueryText: rec.QueryText, ScopeTag: rec.ScopeTag, Embedding: []float32(rec.Embedding),
		AnswerText: rec.AnswerText, ProducingAgent: rec.ProducingAgent, TokenCount: rec.TokenCount,
		CreatedAt: rec.CreatedAt, LastAccessedAt: rec.LastAccessedAt, AccessCount: rec.AccessCount,
		TTLSeconds: rec.TTLSeconds, SourceVersion: rec.SourceVersion,
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		return nil
	}
	if _, err := resilience.Execute(ctx, resilience.RedisFastPathBreaker, resilience.CircuitBreakerConfig{}, r.logger, func() (interface{}, error) {
		return nil, r.rdb.Set(ctx, redisKey(rec.QueryText, rec.ScopeTag), raw, r.ttl).Err()
	}); err != nil {
		r.metrics.IncrementCounterWithLabels("semcache.fastpath_errors", 1, map[string]string{"op": "set"})
		r.logger.Warn("redis fast path write failed, Postgres write already committed", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

// DeleteByIDs, DeleteWhere, and every other Store method not overridden
// above pass straight through to the embedded Store. Redis keys are
// addressed by (query_text, scope_tag), not id, so eviction cannot target
// individual ids; staleness there is bounded by the TTL set at write time
// instead.
