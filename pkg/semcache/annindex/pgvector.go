package annindex

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/quietloop/semcache/pkg/observability"
	"github.com/quietloop/semcache/pkg/semcache"
)

// PGVectorIndex delegates search to Postgres/pgvector's `<=>` cosine-distance
// operator once the live set exceeds brute_force_cutoff (spec §4.2). Add and
// Remove are no-ops: pgvector's index lives on the same table the store
// writes to, so the table row is the index entry — mutation is mediated
// entirely by the store layer (spec §9: "never expose either side
// independently"). Grounded on the teacher's vector_store.go
// FindSimilarQueries query shape.
type PGVectorIndex struct {
	db        *sqlx.DB
	table     string
	logger    observability.Logger
	liveCount int // maintained by the orchestrator via SetLiveCount
}

// NewPGVectorIndex builds an index backed by the given table (one of
// answer_records, compressed_records, chunk_records).
func NewPGVectorIndex(db *sqlx.DB, table string, logger observability.Logger) *PGVectorIndex {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &PGVectorIndex{db: db, table: table, logger: logger}
}

func (p *PGVectorIndex) Add(uuid.UUID, semcache.Embedding) error { return nil }
func (p *PGVectorIndex) Remove(uuid.UUID) error                  { return nil }

func (p *PGVectorIndex) Search(ctx context.Context, e semcache.Embedding, k int) ([]Candidate, error) {
	query := fmt.Sprintf(`
		SELECT id, 1 - (embedding <=> $1) AS similarity
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, p.table)

	rows, err := p.db.QueryContext(ctx, query, pq.Array(e), k)
	if err != nil {
		return nil, fmt.Errorf("%w: pgvector search on %s: %v", semcache.ErrIndexInconsistent, p.table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Candidate
	for rows.Next() {
		var id uuid.UUID
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("%w: scanning pgvector row: %v", semcache.ErrIndexInconsistent, err)
		}
		out = append(out, Candidate{ID: id, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating pgvector rows: %v", semcache.ErrIndexInconsistent, err)
	}
	return out, nil
}

func (p *PGVectorIndex) Len() int { return p.liveCount }

// SetLiveCount lets the orchestrator report the current live row count,
// used only to decide (in the capacity manager) whether this index or the
// LinearIndex should be consulted at all.
func (p *PGVectorIndex) SetLiveCount(n int) { p.liveCount = n }

// Rebuild is a no-op: there is nothing to reload, the table itself is the
// index's backing store.
func (p *PGVectorIndex) Rebuild(map[uuid.UUID]semcache.Embedding) {}
