package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingCleaner struct {
	cutoff int64
	err    error
}

func (r *recordingCleaner) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	r.cutoff = cutoff
	return 3, r.err
}

func TestEmbeddingCacheCleanupCutoff(t *testing.T) {
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	cleaner := &recordingCleaner{}
	j := NewEmbeddingCacheCleanupJob(cleaner, 2)
	j.now = func() time.Time { return now }
	require.Equal(t, "embedding_cache_cleanup", j.Name())
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.Add(-48*time.Hour).Unix(), cleaner.cutoff)

	j = NewEmbeddingCacheCleanupJob(cleaner, 0)
	j.now = func() time.Time { return now }
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.Add(-30*24*time.Hour).Unix(), cleaner.cutoff)

	cleaner.err = errors.New("locked")
	require.Error(t, j.Run(context.Background()))
}

type countingReloader struct {
	calls int
}

func (c *countingReloader) Reload(ctx context.Context) error {
	c.calls++
	return nil
}

func TestReloadJobs(t *testing.T) {
	r := &countingReloader{}
	lib := NewLibraryReloadJob(r)
	acc := NewAccessReloadJob(r)
	require.Equal(t, "library_reload", lib.Name())
	require.Equal(t, "access_reload", acc.Name())
	require.NoError(t, lib.Run(context.Background()))
	require.NoError(t, acc.Run(context.Background()))
	require.Equal(t, 2, r.calls)
}
