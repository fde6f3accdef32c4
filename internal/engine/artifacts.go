package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fyrsmithlabs/sprintd/internal/recovery"
)

// writeSprintReport renders the sprint's scrum report as markdown under the
// scrum directory, alongside the state snapshots.
func writeSprintReport(scrumDir string, state *SprintState, breakers []recovery.Snapshot, transcript []turnOutput) error {
	if err := os.MkdirAll(scrumDir, 0o755); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Sprint %d Report\n\n", state.SprintNumber)
	fmt.Fprintf(&b, "- Outcome: %s\n", state.Phase)
	fmt.Fprintf(&b, "- Progress: %.0f%%\n", state.Progress*100)
	fmt.Fprintf(&b, "- Started: %s\n", state.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Finished: %s\n\n", state.UpdatedAt.Format(time.RFC3339))

	b.WriteString("## Goals\n\n")
	for _, g := range state.GoalsAchieved {
		fmt.Fprintf(&b, "- [x] %s\n", g)
	}
	for _, g := range state.GoalsRemaining {
		fmt.Fprintf(&b, "- [ ] %s\n", g)
	}

	if len(state.Metrics) > 0 {
		b.WriteString("\n## Metrics\n\n")
		names := make([]string, 0, len(state.Metrics))
		for name := range state.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "- %s: %.4g\n", name, state.Metrics[name])
		}
	}

	writeErrorSection(&b, state.Errors)
	writeBreakerSection(&b, breakers)
	writeTranscriptSection(&b, transcript)

	path := filepath.Join(scrumDir, fmt.Sprintf("sprint_%d_report.md", state.SprintNumber))
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func writeErrorSection(b *strings.Builder, errs []ErrorRecord) {
	if len(errs) == 0 {
		return
	}
	b.WriteString("\n## Errors\n\n")

	// Aggregate by class so the table stays readable even after a noisy
	// sprint.
	byClass := map[string]int{}
	for _, e := range errs {
		byClass[e.Class]++
	}
	classes := make([]string, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	for _, c := range classes {
		fmt.Fprintf(b, "- %s: %d\n", c, byClass[c])
	}

	b.WriteString("\n| Time | Class | Strategy | Retries | Message |\n")
	b.WriteString("|------|-------|----------|---------|----------|\n")
	for _, e := range errs {
		msg := strings.ReplaceAll(e.Message, "|", "\\|")
		if len(msg) > 120 {
			msg = msg[:117] + "..."
		}
		fmt.Fprintf(b, "| %s | %s | %s | %d | %s |\n",
			e.Time.Format("15:04:05"), e.Class, e.Strategy, e.Retries, msg)
	}
}

func writeBreakerSection(b *strings.Builder, breakers []recovery.Snapshot) {
	open := make([]recovery.Snapshot, 0, len(breakers))
	for _, s := range breakers {
		if s.State != recovery.StateClosed || s.Failures > 0 {
			open = append(open, s)
		}
	}
	if len(open) == 0 {
		return
	}
	b.WriteString("\n## Circuit Breakers\n\n")
	for _, s := range open {
		fmt.Fprintf(b, "- %s: %s (%d/%d failures)\n", s.Name, s.State, s.Failures, s.FailureThreshold)
	}
}

// writeTranscriptSection records what each role produced, turn by turn.
func writeTranscriptSection(b *strings.Builder, transcript []turnOutput) {
	if len(transcript) == 0 {
		return
	}
	b.WriteString("\n## Transcript\n")
	for _, t := range transcript {
		fmt.Fprintf(b, "\n### %s %s (%s)\n\n", t.Time.Format("15:04:05"), t.Role, t.Phase)
		b.WriteString(strings.TrimSpace(t.Text))
		b.WriteString("\n")
	}
}

// WriteRunReport summarizes a whole run across its sprints. It is written
// once, after the last sprint.
func WriteRunReport(scrumDir, project string, numSprints int) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: Run Summary\n\n", project)
	fmt.Fprintf(&b, "Generated %s.\n\n", time.Now().UTC().Format(time.RFC3339))

	completed, failed := 0, 0
	b.WriteString("| Sprint | Outcome | Progress | Errors |\n")
	b.WriteString("|--------|---------|----------|--------|\n")
	for n := 1; n <= numSprints; n++ {
		state, err := LoadSnapshot(scrumDir, n)
		if err != nil {
			continue
		}
		switch state.Phase {
		case PhaseCompleted:
			completed++
		case PhaseFailed:
			failed++
		}
		fmt.Fprintf(&b, "| %d | %s | %.0f%% | %d |\n",
			n, state.Phase, state.Progress*100, len(state.Errors))
	}
	fmt.Fprintf(&b, "\nCompleted: %d, failed: %d.\n", completed, failed)

	path := filepath.Join(scrumDir, "run_report.md")
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func sprintPRBody(state *SprintState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Automated sprint %d.\n\n", state.SprintNumber)
	b.WriteString("Goals achieved:\n")
	for _, g := range state.GoalsAchieved {
		fmt.Fprintf(&b, "- %s\n", g)
	}
	if len(state.GoalsRemaining) > 0 {
		b.WriteString("\nCarried over:\n")
		for _, g := range state.GoalsRemaining {
			fmt.Fprintf(&b, "- %s\n", g)
		}
	}
	return b.String()
}
