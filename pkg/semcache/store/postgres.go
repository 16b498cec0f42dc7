package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/quietloop/semcache/pkg/observability"
	"github.com/quietloop/semcache/pkg/semcache"
)

// stringsReplacer escapes LIKE metacharacters in user-supplied substrings so
// PredicateQuerySubstring performs a literal match, not a pattern match.
var stringsReplacer = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// floatArray adapts an embedding column to pq's generic array scan/value
// protocol; lib/pq ships Int64Array/StringArray/Float64Array but no
// Float32Array, and a plain []float32 struct field can't be scanned by
// sqlx's column-by-tag reflection without implementing sql.Scanner itself.
type floatArray []float32

func (a *floatArray) Scan(src interface{}) error { return pq.Array((*[]float32)(a)).Scan(src) }
func (a floatArray) Value() (driver.Value, error) { return pq.Array([]float32(a)).Value() }

// PostgresStore is the pgvector-backed Store implementation. Query shapes
// are grounded on pkg/repository/vector/repository.go (sqlx CRUD, `db:`
// struct tags, ON CONFLICT upserts) and
// pkg/embedding/cache/vector_store.go (cleanup-by-age, stats aggregation).
type PostgresStore struct {
	db      *sqlx.DB
	logger  observability.Logger
	metrics observability.MetricsClient
}

// NewPostgresStore wraps an already-open *sqlx.DB (connect via
// sqlx.Connect("postgres", dsn) at the call site so this package stays
// driver-agnostic of connection lifecycle).
func NewPostgresStore(db *sqlx.DB, logger observability.Logger, metrics observability.MetricsClient) *PostgresStore {
	if logger == nil {
		logger = observability.NewLogger("semcache.store")
	}
	if metrics == nil {
		metrics = observability.NewMetricsClient()
	}
	return &PostgresStore{db: db, logger: logger, metrics: metrics}
}

func tableFor(layer semcache.Layer) string {
	switch layer {
	case semcache.LayerL1:
		return "answer_records"
	case semcache.LayerL2:
		return "compressed_records"
	default:
		return "chunk_records"
	}
}

type answerRow struct {
	ID             uuid.UUID  `db:"id"`
	QueryText      string     `db:"query_text"`
	ScopeTag       string     `db:"scope_tag"`
	Embedding      floatArray `db:"embedding"`
	AnswerText     string     `db:"answer_text"`
	ProducingAgent string    `db:"producing_agent"`
	TokenCount     int64     `db:"token_count"`
	CreatedAt      time.Time `db:"created_at"`
	LastAccessedAt time.Time `db:"last_accessed_at"`
	AccessCount    int64     `db:"access_count"`
	TTLSeconds     int64     `db:"ttl_seconds"`
	SourceVersion  string    `db:"source_version"`
}

func (r answerRow) toRecord() semcache.AnswerRecord {
	return semcache.AnswerRecord{
		Header: semcache.Header{
			ID: r.ID, QueryText: r.QueryText, ScopeTag: r.ScopeTag,
			Embedding: semcache.Embedding(r.Embedding), CreatedAt: r.CreatedAt,
			LastAccessedAt: r.LastAccessedAt, AccessCount: r.AccessCount,
			TTLSeconds: r.TTLSeconds, SourceVersion: r.SourceVersion,
		},
		AnswerText:     r.AnswerText,
		ProducingAgent: r.ProducingAgent,
		TokenCount:     r.TokenCount,
	}
}

func (p *PostgresStore) InsertOrReplaceAnswer(ctx context.Context, rec semcache.AnswerRecord) error {
	const q = `
		INSERT INTO answer_records
			(id, query_text, scope_tag, embedding, answer_text, producing_agent,
			 token_count, created_at, last_accessed_at, access_count, ttl_seconds, source_version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			query_text = EXCLUDED.query_text,
			scope_tag = EXCLUDED.scope_tag,
			embedding = EXCLUDED.embedding,
			answer_text = EXCLUDED.answer_text,
			producing_agent = EXCLUDED.producing_agent,
			token_count = EXCLUDED.token_count,
			last_accessed_at = EXCLUDED.last_accessed_at,
			access_count = EXCLUDED.access_count,
			ttl_seconds = EXCLUDED.ttl_seconds,
			source_version = EXCLUDED.source_version
	`
	_, err := p.db.ExecContext(ctx, q, rec.ID, rec.QueryText, rec.ScopeTag, pq.Array([]float32(rec.Embedding)),
		rec.AnswerText, rec.ProducingAgent, rec.TokenCount, rec.CreatedAt, rec.LastAccessedAt,
		rec.AccessCount, rec.TTLSeconds, rec.SourceVersion)
	if err != nil {
		return fmt.Errorf("%w: insert_or_replace answer_records: %v", semcache.ErrStoreUnavailable, err)
	}
	return nil
}

func (p *PostgresStore) FetchAnswersByIDs(ctx context.Context, ids []uuid.UUID) ([]semcache.AnswerRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const q = `SELECT id, query_text, scope_tag, embedding, answer_text, producing_agent,
		token_count, created_at, last_accessed_at, access_count, ttl_seconds, source_version
		FROM answer_records WHERE id = ANY($1)`
	var rows []answerRow
	if err := p.db.SelectContext(ctx, &rows, q, pq.Array(uuidStrings(ids))); err != nil {
		return nil, fmt.Errorf("%w: fetch_by_ids answer_records: %v", semcache.ErrStoreUnavailable, err)
	}
	out := make([]semcache.AnswerRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRecord())
	}
	return out, nil
}

func (p *PostgresStore) FindLiveAnswer(ctx context.Context, queryText, scopeTag string, now time.Time) (*semcache.AnswerRecord, error) {
	const q = `SELECT id, query_text, scope_tag, embedding, answer_text, producing_agent,
		token_count, created_at, last_accessed_at, access_count, ttl_seconds, source_version
		FROM answer_records
		WHERE query_text = $1 AND scope_tag = $2
		  AND (ttl_seconds = 0 OR created_at + make_interval(secs => ttl_seconds) > $3)
		ORDER BY created_at DESC
		LIMIT 1`
	var r answerRow
	err := p.db.GetContext(ctx, &r, q, queryText, scopeTag, now)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find_live answer_records: %v", semcache.ErrStoreUnavailable, err)
	}
	rec := r.toRecord()
	return &rec, nil
}

type compressedRow struct {
	answerRowHeader
	CompressedContext  []byte         `db:"compressed_context"`
	ReferencedChunkIDs pq.StringArray `db:"referenced_chunk_ids"`
}

// answerRowHeader factors the shared header columns used by the L2/L3 row
// structs (L1 keeps its own answerRow above since it also carries
// answer_text/producing_agent/token_count inline).
type answerRowHeader struct {
	ID             uuid.UUID  `db:"id"`
	QueryText      string     `db:"query_text"`
	ScopeTag       string     `db:"scope_tag"`
	Embedding      floatArray `db:"embedding"`
	CreatedAt      time.Time  `db:"created_at"`
	LastAccessedAt time.Time `db:"last_accessed_at"`
	AccessCount    int64     `db:"access_count"`
	TTLSeconds     int64     `db:"ttl_seconds"`
	SourceVersion  string    `db:"source_version"`
}

func (h answerRowHeader) toHeader() semcache.Header {
	return semcache.Header{
		ID: h.ID, QueryText: h.QueryText, ScopeTag: h.ScopeTag,
		Embedding: semcache.Embedding(h.Embedding), CreatedAt: h.CreatedAt,
		LastAccessedAt: h.LastAccessedAt, AccessCount: h.AccessCount,
		TTLSeconds: h.TTLSeconds, SourceVersion: h.SourceVersion,
	}
}

func (r compressedRow) toRecord() semcache.CompressedRecord {
	return semcache.CompressedRecord{
		Header:             r.toHeader(),
		CompressedContext:  r.CompressedContext,
		ReferencedChunkIDs: []string(r.ReferencedChunkIDs),
	}
}

func (p *PostgresStore) InsertOrReplaceCompressed(ctx context.Context, rec semcache.CompressedRecord) error {
	const q = `
		INSERT INTO compressed_records
			(id, query_text, scope_tag, embedding, compressed_context, referenced_chunk_ids,
			 created_at, last_accessed_at, access_count, ttl_seconds, source_version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			query_text = EXCLUDED.query_text,
			scope_tag = EXCLUDED.scope_tag,
			embedding = EXCLUDED.embedding,
			compressed_context = EXCLUDED.compressed_context,
			referenced_chunk_ids = EXCLUDED.referenced_chunk_ids,
			last_accessed_at = EXCLUDED.last_accessed_at,
			access_count = EXCLUDED.access_count,
			ttl_seconds = EXCLUDED.ttl_seconds,
			source_version = EXCLUDED.source_version
	`
	_, err := p.db.ExecContext(ctx, q, rec.ID, rec.QueryText, rec.ScopeTag, pq.Array([]float32(rec.Embedding)),
		rec.CompressedContext, pq.Array(rec.ReferencedChunkIDs), rec.CreatedAt, rec.LastAccessedAt,
		rec.AccessCount, rec.TTLSeconds, rec.SourceVersion)
	if err != nil {
		return fmt.Errorf("%w: insert_or_replace compressed_records: %v", semcache.ErrStoreUnavailable, err)
	}
	return nil
}

func (p *PostgresStore) FetchCompressedByIDs(ctx context.Context, ids []uuid.UUID) ([]semcache.CompressedRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const q = `SELECT id, query_text, scope_tag, embedding, compressed_context, referenced_chunk_ids,
		created_at, last_accessed_at, access_count, ttl_seconds, source_version
		FROM compressed_records WHERE id = ANY($1)`
	var rows []compressedRow
	if err := p.db.SelectContext(ctx, &rows, q, pq.Array(uuidStrings(ids))); err != nil {
		return nil, fmt.Errorf("%w: fetch_by_ids compressed_records: %v", semcache.ErrStoreUnavailable, err)
	}
	out := make([]semcache.CompressedRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRecord())
	}
	return out, nil
}

func (p *PostgresStore) FindLiveCompressed(ctx context.Context, queryText, scopeTag string, now time.Time) (*semcache.CompressedRecord, error) {
	const q = `SELECT id, query_text, scope_tag, embedding, compressed_context, referenced_chunk_ids,
		created_at, last_accessed_at, access_count, ttl_seconds, source_version
		FROM compressed_records
		WHERE query_text = $1 AND scope_tag = $2
		  AND (ttl_seconds = 0 OR created_at + make_interval(secs => ttl_seconds) > $3)
		ORDER BY created_at DESC
		LIMIT 1`
	var r compressedRow
	err := p.db.GetContext(ctx, &r, q, queryText, scopeTag, now)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find_live compressed_records: %v", semcache.ErrStoreUnavailable, err)
	}
	rec := r.toRecord()
	return &rec, nil
}

type chunkRow struct {
	answerRowHeader
	ChunkIDs    pq.StringArray  `db:"chunk_ids"`
	ChunkScores pq.Float64Array `db:"chunk_scores"`
}

func (r chunkRow) toRecord() semcache.ChunkRecord {
	return semcache.ChunkRecord{
		Header:      r.toHeader(),
		ChunkIDs:    []string(r.ChunkIDs),
		ChunkScores: []float64(r.ChunkScores),
	}
}

func (p *PostgresStore) InsertOrReplaceChunks(ctx context.Context, rec semcache.ChunkRecord) error {
	const q = `
		INSERT INTO chunk_records
			(id, query_text, scope_tag, embedding, chunk_ids, chunk_scores,
			 created_at, last_accessed_at, access_count, ttl_seconds, source_version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			query_text = EXCLUDED.query_text,
			scope_tag = EXCLUDED.scope_tag,
			embedding = EXCLUDED.embedding,
			chunk_ids = EXCLUDED.chunk_ids,
			chunk_scores = EXCLUDED.chunk_scores,
			last_accessed_at = EXCLUDED.last_accessed_at,
			access_count = EXCLUDED.access_count,
			ttl_seconds = EXCLUDED.ttl_seconds,
			source_version = EXCLUDED.source_version
	`
	_, err := p.db.ExecContext(ctx, q, rec.ID, rec.QueryText, rec.ScopeTag, pq.Array([]float32(rec.Embedding)),
		pq.Array(rec.ChunkIDs), pq.Array(rec.ChunkScores), rec.CreatedAt, rec.LastAccessedAt,
		rec.AccessCount, rec.TTLSeconds, rec.SourceVersion)
	if err != nil {
		return fmt.Errorf("%w: insert_or_replace chunk_records: %v", semcache.ErrStoreUnavailable, err)
	}
	return nil
}

func (p *PostgresStore) FetchChunksByIDs(ctx context.Context, ids []uuid.UUID) ([]semcache.ChunkRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const q = `SELECT id, query_text, scope_tag, embedding, chunk_ids, chunk_scores,
		created_at, last_accessed_at, access_count, ttl_seconds, source_version
		FROM chunk_records WHERE id = ANY($1)`
	var rows []chunkRow
	if err := p.db.SelectContext(ctx, &rows, q, pq.Array(uuidStrings(ids))); err != nil {
		return nil, fmt.Errorf("%w: fetch_by_ids chunk_records: %v", semcache.ErrStoreUnavailable, err)
	}
	out := make([]semcache.ChunkRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRecord())
	}
	return out, nil
}

func (p *PostgresStore) FindLiveChunks(ctx context.Context, queryText, scopeTag string, now time.Time) (*semcache.ChunkRecord, error) {
	const q = `SELECT id, query_text, scope_tag, embedding, chunk_ids, chunk_scores,
		created_at, last_accessed_at, access_count, ttl_seconds, source_version
		FROM chunk_records
		WHERE query_text = $1 AND scope_tag = $2
		  AND (ttl_seconds = 0 OR created_at + make_interval(secs => ttl_seconds) > $3)
		ORDER BY created_at DESC
		LIMIT 1`
	var r chunkRow
	err := p.db.GetContext(ctx, &r, q, queryText, scopeTag, now)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find_live chunk_records: %v", semcache.ErrStoreUnavailable, err)
	}
	rec := r.toRecord()
	return &rec, nil
}

func (p *PostgresStore) UpdateAccess(ctx context.Context, layer semcache.Layer, id uuid.UUID, now time.Time) error {
	table := tableFor(layer)
	q := fmt.Sprintf(`UPDATE %s SET last_accessed_at = $1, access_count = access_count + 1 WHERE id = $2`, table)
	_, err := p.db.ExecContext(ctx, q, now, id)
	if err != nil {
		return fmt.Errorf("%w: update_access %s: %v", semcache.ErrStoreUnavailable, table, err)
	}
	return nil
}

func (p *PostgresStore) DeleteByIDs(ctx context.Context, layer semcache.Layer, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	table := tableFor(layer)
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, table)
	res, err := p.db.ExecContext(ctx, q, pq.Array(uuidStrings(ids)))
	if err != nil {
		return 0, fmt.Errorf("%w: delete_by_ids %s: %v", semcache.ErrStoreUnavailable, table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (p *PostgresStore) DeleteWhere(ctx context.Context, layer semcache.Layer, pred Predicate) ([]uuid.UUID, error) {
	table := tableFor(layer)
	var where string
	var args []interface{}
	switch pred.Kind {
	case PredicateTTLExpired:
		where = `ttl_seconds > 0 AND created_at + make_interval(secs => ttl_seconds) <= now()`
	case PredicateSourceVersionEquals:
		where = `source_version = $1`
		args = append(args, pred.SourceVersion)
	case PredicateScopeTag:
		where = `scope_tag = $1`
		args = append(args, pred.ScopeTag)
	case PredicateQuerySubstring:
		where = `query_text LIKE $1 ESCAPE '\'`
		args = append(args, "%"+escapeLike(pred.Substring)+"%")
	}

	selectQ := fmt.Sprintf(`SELECT id FROM %s WHERE %s`, table, where)
	var ids []uuid.UUID
	if err := p.db.SelectContext(ctx, &ids, selectQ, args...); err != nil {
		return nil, fmt.Errorf("%w: delete_where select %s: %v", semcache.ErrStoreUnavailable, table, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	deleteQ := fmt.Sprintf(`DELETE FROM %s WHERE %s`, table, where)
	if _, err := p.db.ExecContext(ctx, deleteQ, args...); err != nil {
		return nil, fmt.Errorf("%w: delete_where delete %s: %v", semcache.ErrStoreUnavailable, table, err)
	}
	return ids, nil
}

func (p *PostgresStore) Count(ctx context.Context, layer semcache.Layer) (int64, error) {
	table := tableFor(layer)
	var n int64
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)
	if err := p.db.GetContext(ctx, &n, q); err != nil {
		return 0, fmt.Errorf("%w: count %s: %v", semcache.ErrStoreUnavailable, table, err)
	}
	return n, nil
}

func (p *PostgresStore) IterIDsByLastAccessed(ctx context.Context, layer semcache.Layer, ascending bool, limit int) ([]uuid.UUID, error) {
	table := tableFor(layer)
	order := "DESC"
	if ascending {
		order = "ASC"
	}
	q := fmt.Sprintf(`SELECT id FROM %s ORDER BY last_accessed_at %s LIMIT $1`, table, order)
	var ids []uuid.UUID
	if err := p.db.SelectContext(ctx, &ids, q, limit); err != nil {
		return nil, fmt.Errorf("%w: iter_ids_by_last_accessed %s: %v", semcache.ErrStoreUnavailable, table, err)
	}
	return ids, nil
}

func (p *PostgresStore) SnapshotEmbeddings(ctx context.Context, layer semcache.Layer, now time.Time) (map[uuid.UUID]semcache.Embedding, error) {
	table := tableFor(layer)
	q := fmt.Sprintf(`SELECT id, embedding FROM %s
		WHERE ttl_seconds = 0 OR created_at + make_interval(secs => ttl_seconds) > $1`, table)
	rows, err := p.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot_embeddings %s: %v", semcache.ErrStoreUnavailable, table, err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[uuid.UUID]semcache.Embedding)
	for rows.Next() {
		var id uuid.UUID
		var e []float32
		if err := rows.Scan(&id, pq.Array(&e)); err != nil {
			return nil, fmt.Errorf("%w: scanning snapshot row %s: %v", semcache.ErrStoreUnavailable, table, err)
		}
		out[id] = semcache.Embedding(e)
	}
	return out, rows.Err()
}

func (p *PostgresStore) RecordQuery(ctx context.Context, date string, hit semcache.ResultKind, tokensSaved int64, costSaved float64) error {
	var l1, l2, l3, miss int64
	switch hit {
	case semcache.ResultAnswerHit:
		l1 = 1
	case semcache.ResultCompressedHit:
		l2 = 1
	case semcache.ResultChunksHit:
		l3 = 1
	default:
		miss = 1
	}
	const q = `
		INSERT INTO daily_stats (date, total_queries, l1_hits, l2_hits, l3_hits, misses, tokens_saved, estimated_cost_saved)
		VALUES ($1, 1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (date) DO UPDATE SET
			total_queries = daily_stats.total_queries + 1,
			l1_hits = daily_stats.l1_hits + EXCLUDED.l1_hits,
			l2_hits = daily_stats.l2_hits + EXCLUDED.l2_hits,
			l3_hits = daily_stats.l3_hits + EXCLUDED.l3_hits,
			misses = daily_stats.misses + EXCLUDED.misses,
			tokens_saved = daily_stats.tokens_saved + EXCLUDED.tokens_saved,
			estimated_cost_saved = daily_stats.estimated_cost_saved + EXCLUDED.estimated_cost_saved
	`
	_, err := p.db.ExecContext(ctx, q, date, l1, l2, l3, miss, tokensSaved, costSaved)
	if err != nil {
		return fmt.Errorf("%w: record_query: %v", semcache.ErrStoreUnavailable, err)
	}
	return nil
}

func (p *PostgresStore) StatsForDate(ctx context.Context, date string) (semcache.StatsSnapshot, error) {
	const q = `SELECT date, total_queries, l1_hits, l2_hits, l3_hits, misses, tokens_saved, estimated_cost_saved
		FROM daily_stats WHERE date = $1`
	var row struct {
		Date               time.Time `db:"date"`
		TotalQueries       int64     `db:"total_queries"`
		L1Hits             int64     `db:"l1_hits"`
		L2Hits             int64     `db:"l2_hits"`
		L3Hits             int64     `db:"l3_hits"`
		Misses             int64     `db:"misses"`
		TokensSaved        int64     `db:"tokens_saved"`
		EstimatedCostSaved float64   `db:"estimated_cost_saved"`
	}
	err := p.db.GetContext(ctx, &row, q, date)
	if err == sql.ErrNoRows {
		return semcache.StatsSnapshot{Date: date}, nil
	}
	if err != nil {
		return semcache.StatsSnapshot{}, fmt.Errorf("%w: stats_for_date: %v", semcache.ErrStoreUnavailable, err)
	}
	return semcache.StatsSnapshot{
		Date: date, TotalQueries: row.TotalQueries, L1Hits: row.L1Hits, L2Hits: row.L2Hits,
		L3Hits: row.L3Hits, Misses: row.Misses, TokensSaved: row.TokensSaved,
		EstimatedCostSaved: row.EstimatedCostSaved,
	}, nil
}

func (p *PostgresStore) EnsureDimension(ctx context.Context, d int) error {
	const selectQ = `SELECT dimension FROM cache_meta WHERE id = 1`
	var existing int
	err := p.db.GetContext(ctx, &existing, selectQ)
	if err == sql.ErrNoRows {
		_, err := p.db.ExecContext(ctx, `INSERT INTO cache_meta (id, dimension) VALUES (1, $1)`, d)
		if err != nil {
			return fmt.Errorf("%w: writing cache_meta dimension: %v", semcache.ErrStoreUnavailable, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading cache_meta dimension: %v", semcache.ErrStoreUnavailable, err)
	}
	if existing != d {
		return fmt.Errorf("%w: cache_meta has dimension %d, gateway wants %d", semcache.ErrDimensionMismatch, existing, d)
	}
	return nil
}

func (p *PostgresStore) HealthCheck(ctx context.Context) error {
	var ok int
	if err := p.db.GetContext(ctx, &ok, "SELECT 1"); err != nil {
		return fmt.Errorf("%w: health check: %v", semcache.ErrStoreUnavailable, err)
	}
	var hasExtension bool
	err := p.db.GetContext(ctx, &hasExtension, "SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')")
	if err != nil {
		return fmt.Errorf("%w: checking pgvector extension: %v", semcache.ErrStoreUnavailable, err)
	}
	if !hasExtension {
		return fmt.Errorf("%w: pgvector extension not installed", semcache.ErrStoreUnavailable)
	}
	return nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func escapeLike(s string) string {
	r := stringsReplacer
	return r.Replace(s)
}
