package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietloop/semcache/pkg/semcache"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewPostgresStore(sqlxDB, nil, nil), mock
}

func TestPostgresStore_InsertOrReplaceAnswer_ExecutesUpsert(t *testing.T) {
	store, mock := newMockStore(t)
	rec := semcache.AnswerRecord{
		Header: semcache.Header{
			ID: uuid.New(), QueryText: "q", ScopeTag: "global",
			Embedding: semcache.Embedding{1, 0}, CreatedAt: time.Now(), LastAccessedAt: time.Now(),
			TTLSeconds: 3600, SourceVersion: "v1",
		},
		AnswerText: "a",
	}

	mock.ExpectExec(`INSERT INTO answer_records`).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.InsertOrReplaceAnswer(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FetchAnswersByIDs_ReturnsEmptyWithoutQueryWhenNoIDs(t *testing.T) {
	store, mock := newMockStore(t)
	rows, err := store.FetchAnswersByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FetchAnswersByIDs_ScansRows(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now()

	cols := []string{"id", "query_text", "scope_tag", "embedding", "answer_text", "producing_agent",
		"token_count", "created_at", "last_accessed_at", "access_count", "ttl_seconds", "source_version"}
	mock.ExpectQuery(`SELECT .* FROM answer_records WHERE id = ANY`).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(id, "q", "global", `{1,0}`, "answer", "agent", 10, now, now, 1, 3600, "v1"))

	recs, err := store.FetchAnswersByIDs(context.Background(), []uuid.UUID{id})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "answer", recs[0].AnswerText)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM answer_records`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	n, err := store.Count(context.Background(), semcache.LayerL1)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteWhere_SourceVersionEquals(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT id FROM answer_records WHERE source_version = \$1`).
		WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
	mock.ExpectExec(`DELETE FROM answer_records WHERE source_version = \$1`).
		WithArgs("v1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ids, err := store.DeleteWhere(context.Background(), semcache.LayerL1, Predicate{Kind: PredicateSourceVersionEquals, SourceVersion: "v1"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteWhere_NoMatchesSkipsDelete(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT id FROM answer_records WHERE scope_tag = \$1`).
		WithArgs("user:alice").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	ids, err := store.DeleteWhere(context.Background(), semcache.LayerL1, Predicate{Kind: PredicateScopeTag, ScopeTag: "user:alice"})
	require.NoError(t, err)
	assert.Empty(t, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnsureDimension_WritesOnFirstRun(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT dimension FROM cache_meta`).WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO cache_meta`).WithArgs(1536).WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.EnsureDimension(context.Background(), 1536))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnsureDimension_MismatchErrors(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT dimension FROM cache_meta`).
		WillReturnRows(sqlmock.NewRows([]string{"dimension"}).AddRow(768))

	err := store.EnsureDimension(context.Background(), 1536)
	require.Error(t, err)
	assert.ErrorIs(t, err, semcache.ErrDimensionMismatch)
}

func TestPostgresStore_HealthCheck_FailsWhenExtensionMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT 1`).WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`pg_extension`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := store.HealthCheck(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, semcache.ErrStoreUnavailable)
}
