package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndListRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRun(ctx, "run-1", "/tmp/run1", "amp.cir"))
	require.NoError(t, store.CreateRun(ctx, "run-2", "/tmp/run2", "filter.cir"))

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Nil(t, r.CompletedAt)
		assert.Nil(t, r.BestScore)
	}
}

func TestCompleteRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRun(ctx, "run-1", "/tmp/run1", "amp.cir"))
	require.NoError(t, store.CompleteRun(ctx, "run-1", 42.5))

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.NotNil(t, runs[0].CompletedAt)
	require.NotNil(t, runs[0].BestScore)
	assert.Equal(t, 42.5, *runs[0].BestScore)
}

func TestRecordIterations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRun(ctx, "run-1", "/tmp/run1", "amp.cir"))

	best := 0
	require.NoError(t, store.RecordIteration(ctx, "run-1", 1, "", 12.5, &best))
	require.NoError(t, store.RecordIteration(ctx, "run-1", 2, "timeout", 0, nil))

	iters, err := store.GetIterations(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, iters, 2)

	assert.Equal(t, 1, iters[0].Iteration)
	assert.Equal(t, 12.5, iters[0].Score)
	require.NotNil(t, iters[0].BestIndex)
	assert.Equal(t, 0, *iters[0].BestIndex)
	assert.Empty(t, iters[0].Error)

	assert.Equal(t, 2, iters[1].Iteration)
	assert.Equal(t, "timeout", iters[1].Error)
	assert.Nil(t, iters[1].BestIndex)
}

func TestNewCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "history.db")
	store, err := New(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestGetIterationsEmpty(t *testing.T) {
	store := newTestStore(t)

	iters, err := store.GetIterations(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, iters)
}
