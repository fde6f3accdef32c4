package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/sprintd/internal/recovery"
)

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := newSprintState(3)
	s.Phase = PhaseCoding
	s.CurrentTask = "wire the parser"
	s.GoalsRemaining = []string{"wire the parser", "add tests"}
	s.Metrics["test_pass_rate"] = 0.75
	s.Errors = append(s.Errors, ErrorRecord{
		Class:    recovery.ClassBuild,
		Strategy: recovery.StrategyRetry,
		Message:  "exit status 1",
		Retries:  2,
		Time:     time.Now().UTC(),
	})

	require.NoError(t, saveSnapshot(dir, s))

	got, err := LoadSnapshot(dir, 3)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, PhaseCoding, got.Phase)
	assert.Equal(t, s.GoalsRemaining, got.GoalsRemaining)
	assert.Equal(t, 0.75, got.Metrics["test_pass_rate"])
	require.Len(t, got.Errors, 1)
	assert.Equal(t, recovery.ClassBuild, got.Errors[0].Class)

	latest, err := LoadLatestSnapshot(dir)
	require.NoError(t, err)
	assert.Equal(t, s.ID, latest.ID)
}

func TestSnapshotOverwritesLatest(t *testing.T) {
	dir := t.TempDir()

	first := newSprintState(1)
	require.NoError(t, saveSnapshot(dir, first))
	second := newSprintState(2)
	require.NoError(t, saveSnapshot(dir, second))

	latest, err := LoadLatestSnapshot(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.SprintNumber)

	// The per-sprint file for the first sprint is still readable.
	got, err := LoadSnapshot(dir, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestLoadSnapshotMissing(t *testing.T) {
	_, err := LoadSnapshot(t.TempDir(), 9)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadSnapshotCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sprint_1_state.json"), []byte("{nope"), 0o644))
	_, err := LoadSnapshot(dir, 1)
	assert.Error(t, err)
}

func TestAchieveCurrent(t *testing.T) {
	s := newSprintState(1)
	s.GoalsRemaining = []string{"a", "b", "c"}
	s.CurrentTask = "b"

	s.achieveCurrent()

	assert.Equal(t, []string{"a", "c"}, s.GoalsRemaining)
	assert.Equal(t, []string{"b"}, s.GoalsAchieved)
	assert.Empty(t, s.CurrentTask)
	assert.InDelta(t, 1.0/3.0, s.Progress, 1e-9)
}

func TestAchieveCurrentNoTask(t *testing.T) {
	s := newSprintState(1)
	s.GoalsRemaining = []string{"a"}
	s.achieveCurrent()
	assert.Empty(t, s.GoalsAchieved)
	assert.Equal(t, []string{"a"}, s.GoalsRemaining)
}

func TestCloneIsolation(t *testing.T) {
	s := newSprintState(1)
	s.GoalsRemaining = []string{"a"}
	s.Metrics["x"] = 1

	c := s.clone()
	c.GoalsRemaining[0] = "changed"
	c.Metrics["x"] = 2

	assert.Equal(t, "a", s.GoalsRemaining[0])
	assert.Equal(t, 1.0, s.Metrics["x"])
}
