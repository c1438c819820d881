package repo

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/polymath/internal/db"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.ApplyMigrations(ctx, conn))
	return conn
}

func TestEmbeddingCacheRepoRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := NewEmbeddingCacheRepo(openTestDB(t))

	_, ok, err := r.Get(ctx, "m", "q", "h1")
	require.NoError(t, err)
	require.False(t, ok)

	item := &CachedEmbedding{ModelName: "m", TaskType: "q", ContentHash: "h1", Embedding: []float32{0.5, -1, 3.25}, Ctime: 100}
	require.NoError(t, r.Save(ctx, item))
	values, ok, err := r.Get(ctx, "m", "q", "h1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float32{0.5, -1, 3.25}, values)

	item.Embedding = []float32{1}
	item.Ctime = 200
	require.NoError(t, r.Save(ctx, item))
	values, _, err = r.Get(ctx, "m", "q", "h1")
	require.NoError(t, err)
	require.Equal(t, []float32{1}, values)

	n, err := r.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestEmbeddingCacheRepoDeleteBefore(t *testing.T) {
	ctx := context.Background()
	r := NewEmbeddingCacheRepo(openTestDB(t))
	require.NoError(t, r.Save(ctx, &CachedEmbedding{ModelName: "m", ContentHash: "old", Embedding: []float32{1}, Ctime: 10}))
	require.NoError(t, r.Save(ctx, &CachedEmbedding{ModelName: "m", ContentHash: "new", Embedding: []float32{1}, Ctime: 50}))

	deleted, err := r.DeleteBefore(ctx, 20)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	_, ok, err := r.Get(ctx, "m", "", "old")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = r.Get(ctx, "m", "", "new")
	require.NoError(t, err)
	require.True(t, ok)
}
