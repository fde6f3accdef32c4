package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func drainEventually(t *testing.T, tr *Tracker, want int) []string {
	t.Helper()
	var got []string
	require.Eventually(t, func() bool {
		dirty, _ := tr.Drain()
		got = append(got, dirty...)
		return len(got) >= want
	}, 2*time.Second, 10*time.Millisecond)
	return got
}

func TestTrackerSeesWrites(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr, err := NewTracker(ctx, dir, zap.NewNop())
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0o644))

	dirty := drainEventually(t, tr, 1)
	assert.Contains(t, dirty, "a.go")
}

func TestTrackerSeesRemovals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.go")
	require.NoError(t, os.WriteFile(path, []byte("package gone"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr, err := NewTracker(ctx, dir, zap.NewNop())
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, os.Remove(path))

	var removed []string
	require.Eventually(t, func() bool {
		_, r := tr.Drain()
		removed = append(removed, r...)
		return len(removed) > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, removed, "gone.go")
}

func TestDrainClears(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr, err := NewTracker(ctx, dir, zap.NewNop())
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package b"), 0o644))
	drainEventually(t, tr, 1)

	dirty, removed := tr.Drain()
	assert.Empty(t, dirty)
	assert.Empty(t, removed)
}
