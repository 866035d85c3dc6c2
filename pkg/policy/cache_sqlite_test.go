package policy

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedSQLiteCache(t *testing.T) (*SQLiteCache, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &SQLiteCache{db: db}, mock
}

func TestSQLiteCache_Get_Hit(t *testing.T) {
	c, mock := newMockedSQLiteCache(t)

	rows := sqlmock.NewRows([]string{"document"}).AddRow([]byte(`{"version":1}`))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT document FROM policy_cache WHERE path = ? AND content_hash = ?`)).
		WithArgs("policies/default.json", "abc123").
		WillReturnRows(rows)

	raw, found, err := c.Get(context.Background(), CacheKey{Path: "policies/default.json", ContentHash: "abc123"})
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"version":1}`, string(raw))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteCache_Get_Miss(t *testing.T) {
	c, mock := newMockedSQLiteCache(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT document FROM policy_cache WHERE path = ? AND content_hash = ?`)).
		WithArgs("policies/default.json", "missing").
		WillReturnError(sql.ErrNoRows)

	raw, found, err := c.Get(context.Background(), CacheKey{Path: "policies/default.json", ContentHash: "missing"})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, raw)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteCache_Put(t *testing.T) {
	c, mock := newMockedSQLiteCache(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT OR IGNORE INTO policy_cache (path, content_hash, document) VALUES (?, ?, ?)`)).
		WithArgs("policies/default.json", "abc123", []byte(`{"version":1}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := c.Put(context.Background(), CacheKey{Path: "policies/default.json", ContentHash: "abc123"}, []byte(`{"version":1}`))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteCache_Get_QueryError(t *testing.T) {
	c, mock := newMockedSQLiteCache(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT document FROM policy_cache WHERE path = ? AND content_hash = ?`)).
		WithArgs("policies/default.json", "abc123").
		WillReturnError(sql.ErrConnDone)

	_, _, err := c.Get(context.Background(), CacheKey{Path: "policies/default.json", ContentHash: "abc123"})
	assert.Error(t, err)
}
