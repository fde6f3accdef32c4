package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/sprintd/internal/recovery"
)

// ErrorRecord is one recovery outcome visible on the sprint.
type ErrorRecord struct {
	Class    string            `json:"class"`
	Strategy recovery.Strategy `json:"strategy"`
	Message  string            `json:"message"`
	Retries  int               `json:"retries"`
	Time     time.Time         `json:"time"`
}

// SprintState is the engine's single mutable record of one sprint. It is
// owned by the orchestration loop, mutated only at phase boundaries and
// after turns, and persisted as a snapshot after every phase transition.
type SprintState struct {
	ID             string             `json:"id"`
	SprintNumber   int                `json:"sprint_number"`
	Phase          Phase              `json:"phase"`
	Progress       float64            `json:"progress"`
	CurrentRole    string             `json:"current_role"`
	CurrentTask    string             `json:"current_task"`
	GoalsAchieved  []string           `json:"goals_achieved"`
	GoalsRemaining []string           `json:"goals_remaining"`
	Errors         []ErrorRecord      `json:"errors"`
	Metrics        map[string]float64 `json:"metrics"`
	StartedAt      time.Time          `json:"started_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func newSprintState(number int) *SprintState {
	now := time.Now().UTC()
	return &SprintState{
		ID:             uuid.NewString(),
		SprintNumber:   number,
		Phase:          PhasePlanning,
		CurrentRole:    roleFor[PhasePlanning],
		GoalsAchieved:  []string{},
		GoalsRemaining: []string{},
		Errors:         []ErrorRecord{},
		Metrics:        map[string]float64{},
		StartedAt:      now,
		UpdatedAt:      now,
	}
}

// updateProgress recomputes the achieved-goal fraction.
func (s *SprintState) updateProgress() {
	total := len(s.GoalsAchieved) + len(s.GoalsRemaining)
	if total == 0 {
		s.Progress = 0
		return
	}
	s.Progress = float64(len(s.GoalsAchieved)) / float64(total)
}

// achieveCurrent moves the current task to the achieved list.
func (s *SprintState) achieveCurrent() {
	if s.CurrentTask == "" {
		return
	}
	for i, g := range s.GoalsRemaining {
		if g == s.CurrentTask {
			s.GoalsRemaining = append(s.GoalsRemaining[:i], s.GoalsRemaining[i+1:]...)
			break
		}
	}
	s.GoalsAchieved = append(s.GoalsAchieved, s.CurrentTask)
	s.CurrentTask = ""
	s.updateProgress()
}

// clone returns a deep copy safe to hand to observers.
func (s *SprintState) clone() *SprintState {
	out := *s
	out.GoalsAchieved = append([]string(nil), s.GoalsAchieved...)
	out.GoalsRemaining = append([]string(nil), s.GoalsRemaining...)
	out.Errors = append([]ErrorRecord(nil), s.Errors...)
	out.Metrics = make(map[string]float64, len(s.Metrics))
	for k, v := range s.Metrics {
		out.Metrics[k] = v
	}
	return &out
}

// snapshotPath is where a sprint's snapshot lives under the scrum dir.
func snapshotPath(scrumDir string, sprint int) string {
	return filepath.Join(scrumDir, fmt.Sprintf("sprint_%d_state.json", sprint))
}

// saveSnapshot persists the state atomically, plus a latest.json pointer
// for external observers.
func saveSnapshot(scrumDir string, s *SprintState) error {
	if err := os.MkdirAll(scrumDir, 0o755); err != nil {
		return fmt.Errorf("create scrum dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	for _, path := range []string{snapshotPath(scrumDir, s.SprintNumber), filepath.Join(scrumDir, "latest.json")} {
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return fmt.Errorf("replace snapshot: %w", err)
		}
	}
	return nil
}

// LoadSnapshot reads a persisted sprint snapshot; used by resume and by
// the search/status commands.
func LoadSnapshot(scrumDir string, sprint int) (*SprintState, error) {
	data, err := os.ReadFile(snapshotPath(scrumDir, sprint))
	if err != nil {
		return nil, err
	}
	var s SprintState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &s, nil
}

// LoadLatestSnapshot reads the most recent snapshot, if any.
func LoadLatestSnapshot(scrumDir string) (*SprintState, error) {
	data, err := os.ReadFile(filepath.Join(scrumDir, "latest.json"))
	if err != nil {
		return nil, err
	}
	var s SprintState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &s, nil
}
