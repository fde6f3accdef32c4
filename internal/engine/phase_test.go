package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseTransitions(t *testing.T) {
	tests := []struct {
		from, to Phase
		ok       bool
	}{
		{PhasePlanning, PhaseCoding, true},
		{PhasePlanning, PhaseTesting, false},
		{PhasePlanning, PhaseReviewing, false},
		{PhaseCoding, PhaseTesting, true},
		{PhaseCoding, PhaseReviewing, true},
		{PhaseCoding, PhaseCompleted, false},
		{PhaseTesting, PhaseReviewing, true},
		{PhaseTesting, PhaseCoding, false},
		{PhaseReviewing, PhaseCoding, true},
		{PhaseReviewing, PhaseCompleted, true},
		{PhaseReviewing, PhaseFailed, true},
		{PhaseCompleted, PhaseCoding, false},
		{PhaseFailed, PhaseCoding, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestPhaseTerminal(t *testing.T) {
	assert.True(t, PhaseCompleted.Terminal())
	assert.True(t, PhaseFailed.Terminal())
	assert.False(t, PhasePlanning.Terminal())
	assert.False(t, PhaseCoding.Terminal())
	assert.False(t, PhaseTesting.Terminal())
	assert.False(t, PhaseReviewing.Terminal())
}

func TestRoleForPhase(t *testing.T) {
	assert.Equal(t, "planner", roleFor[PhasePlanning])
	assert.Equal(t, "coder", roleFor[PhaseCoding])
	assert.Equal(t, "tester", roleFor[PhaseTesting])
	assert.Equal(t, "reviewer", roleFor[PhaseReviewing])
}
