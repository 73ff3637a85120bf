package metadata

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE metadata (key TEXT PRIMARY KEY, value BLOB);`)
	require.NoError(t, err)
	return db
}

func TestSetGetOverwrite(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "crypto.active_version", []byte("1")))
	require.NoError(t, r.Set(ctx, "crypto.active_version", []byte("2")))

	v, err := r.Get(ctx, "crypto.active_version")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)
}

func TestGetMissingReturnsNil(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	v, err := r.Get(context.Background(), "session.nobody")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDeleteIsIdempotent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "session.alice", []byte("tok")))
	require.NoError(t, r.Delete(ctx, "session.alice"))
	require.NoError(t, r.Delete(ctx, "session.alice"))

	v, err := r.Get(ctx, "session.alice")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestListPrefix(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "session.alice", []byte("a")))
	require.NoError(t, r.Set(ctx, "session.bob", []byte("b")))
	require.NoError(t, r.Set(ctx, "sessionXcarol", []byte("c")))
	require.NoError(t, r.Set(ctx, "crypto.active_version", []byte("1")))

	m, err := r.ListPrefix(ctx, "session.")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"session.alice": []byte("a"), "session.bob": []byte("b")}, m)

	m, err = r.ListPrefix(ctx, "session_")
	require.NoError(t, err)
	assert.Empty(t, m, "underscore must not act as a wildcard")
}

func TestErrorsAreWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, err := r.Get(ctx, "k")
	assert.ErrorContains(t, err, "failed to get metadata[k]")
	assert.ErrorContains(t, r.Set(ctx, "k", nil), "failed to set metadata[k]")
	assert.ErrorContains(t, r.Delete(ctx, "k"), "failed to delete metadata[k]")
	_, err = r.ListPrefix(ctx, "session.")
	assert.ErrorContains(t, err, "failed to list metadata[session.*]")
}
