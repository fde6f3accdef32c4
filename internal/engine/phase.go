// Package engine drives the sprint: a phase state machine over planning,
// coding, testing and reviewing turns, grounded by retrieval, steered by
// the learning policy, with every external effect issued through the error
// recovery manager.
package engine

// Phase is a state in the sprint state machine.
type Phase string

const (
	PhasePlanning  Phase = "planning"
	PhaseCoding    Phase = "coding"
	PhaseTesting   Phase = "testing"
	PhaseReviewing Phase = "reviewing"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// transitions is the closed transition table. Reviewing → Coding is the
// only backward edge; Completed and Failed are terminal.
var transitions = map[Phase][]Phase{
	PhasePlanning:  {PhaseCoding},
	PhaseCoding:    {PhaseTesting, PhaseReviewing},
	PhaseTesting:   {PhaseReviewing},
	PhaseReviewing: {PhaseCoding, PhaseCompleted, PhaseFailed},
}

// CanTransition reports whether next is a legal successor of p.
func (p Phase) CanTransition(next Phase) bool {
	for _, t := range transitions[p] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the sprint is over.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// roleFor maps each phase to the collaborator that acts in it. The sprint
// is a strict round sequence: one role, one effect per turn.
var roleFor = map[Phase]string{
	PhasePlanning:  "planner",
	PhaseCoding:    "coder",
	PhaseTesting:   "tester",
	PhaseReviewing: "reviewer",
}
