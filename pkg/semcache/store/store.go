// Package store implements the Persistent Store (C3): a durable, crash-safe
// tabular store with one table per layer plus a stats table, backed by
// Postgres/pgvector via sqlx (grounded on the teacher's
// pkg/repository/vector and pkg/embedding/cache/vector_store.go).
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quietloop/semcache/pkg/semcache"
)

// PredicateKind selects one of the delete_where predicates named in spec §4.3.
type PredicateKind int

const (
	PredicateTTLExpired PredicateKind = iota
	PredicateSourceVersionEquals
	PredicateScopeTag
	PredicateQuerySubstring
)

// Predicate parameterizes DeleteWhere. Exactly the fields relevant to Kind
// are read.
type Predicate struct {
	Kind          PredicateKind
	SourceVersion string // for PredicateSourceVersionEquals: deletes rows whose source_version == this
	ScopeTag      string // for PredicateScopeTag
	Substring     string // for PredicateQuerySubstring: literal substring match, no regex
}

// Store is the C3 contract: one implementation serves all three layers,
// parameterized by semcache.Layer, since the three row shapes share a
// Header and differ only in their layer-specific payload fields.
type Store interface {
	InsertOrReplaceAnswer(ctx context.Context, rec semcache.AnswerRecord) error
	InsertOrReplaceCompressed(ctx context.Context, rec semcache.CompressedRecord) error
	InsertOrReplaceChunks(ctx context.Context, rec semcache.ChunkRecord) error

	FetchAnswersByIDs(ctx context.Context, ids []uuid.UUID) ([]semcache.AnswerRecord, error)
	FetchCompressedByIDs(ctx context.Context, ids []uuid.UUID) ([]semcache.CompressedRecord, error)
	FetchChunksByIDs(ctx context.Context, ids []uuid.UUID) ([]semcache.ChunkRecord, error)

	// FindLiveAnswer/Compressed/Chunks look up a live row by (query_text,
	// scope_tag) to support the "first answer wins per source_version"
	// store protocol (spec §4.4.2).
	FindLiveAnswer(ctx context.Context, queryText, scopeTag string, now time.Time) (*semcache.AnswerRecord, error)
	FindLiveCompressed(ctx context.Context, queryText, scopeTag string, now time.Time) (*semcache.CompressedRecord, error)
	FindLiveChunks(ctx context.Context, queryText, scopeTag string, now time.Time) (*semcache.ChunkRecord, error)

	UpdateAccess(ctx context.Context, layer semcache.Layer, id uuid.UUID, now time.Time) error
	DeleteByIDs(ctx context.Context, layer semcache.Layer, ids []uuid.UUID) (int64, error)
	DeleteWhere(ctx context.Context, layer semcache.Layer, pred Predicate) ([]uuid.UUID, error)

	Count(ctx context.Context, layer semcache.Layer) (int64, error)
	IterIDsByLastAccessed(ctx context.Context, layer semcache.Layer, ascending bool, limit int) ([]uuid.UUID, error)

	// SnapshotEmbeddings returns every live (id, embedding) pair of a layer;
	// used to rebuild the in-memory LinearIndex on startup and after an
	// index/store divergence (spec §4.2).
	SnapshotEmbeddings(ctx context.Context, layer semcache.Layer, now time.Time) (map[uuid.UUID]semcache.Embedding, error)

	// RecordQuery increments today's total_queries / misses / hit counters.
	RecordQuery(ctx context.Context, date string, hit semcache.ResultKind, tokensSaved int64, costSaved float64) error
	StatsForDate(ctx context.Context, date string) (semcache.StatsSnapshot, error)

	// Dimension reads (or, on first run, writes) the fixed dimension D
	// stored in cache_meta; a mismatch aborts initialization (spec §6.3).
	EnsureDimension(ctx context.Context, d int) error

	HealthCheck(ctx context.Context) error
	Close() error
}
