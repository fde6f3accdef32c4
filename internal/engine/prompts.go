package engine

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/sprintd/internal/contextstore"
	"github.com/fyrsmithlabs/sprintd/internal/policy"
)

// maxGroundingChars bounds how much retrieved context goes into a prompt.
const maxGroundingChars = 8000

func planPrompt(goal string, sprint int, ground []contextstore.Hit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project goal: %s\n\n", goal)
	fmt.Fprintf(&b, "Plan sprint %d. List the concrete goals for this sprint, one per line, each starting with \"- \".\n", sprint)
	writeGrounding(&b, ground)
	return b.String()
}

func codePrompt(task string, action policy.Action, ground []contextstore.Hit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current task: %s\n", task)
	fmt.Fprintf(&b, "Focus for this turn: %s\n", actionHint(action))
	writeGrounding(&b, ground)
	return b.String()
}

func reviewPrompt(state *SprintState, testsPassed bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review sprint %d.\n", state.SprintNumber)
	fmt.Fprintf(&b, "Goals achieved: %d, remaining: %d.\n", len(state.GoalsAchieved), len(state.GoalsRemaining))
	fmt.Fprintf(&b, "Last test run passed: %t.\n", testsPassed)
	b.WriteString("Reply APPROVE to accept the sprint, or REVISE with what needs another coding pass.\n")
	return b.String()
}

func actionHint(a policy.Action) string {
	switch a {
	case policy.ActionRefactor:
		return "refactor the code you touch for clarity before extending it"
	case policy.ActionAddTests:
		return "add or strengthen tests around the current task"
	case policy.ActionImproveDocs:
		return "improve documentation and comments where they are missing"
	case policy.ActionSplitModule:
		return "split oversized files or packages into smaller units"
	case policy.ActionOptimize:
		return "optimize hot paths you encounter, measuring before and after"
	case policy.ActionReduceDeps:
		return "remove or replace unnecessary dependencies"
	default:
		return "make steady progress on the task"
	}
}

func writeGrounding(b *strings.Builder, hits []contextstore.Hit) {
	if len(hits) == 0 {
		return
	}
	b.WriteString("\nRelevant code from the repository:\n")
	total := 0
	for _, h := range hits {
		if total+len(h.Text) > maxGroundingChars {
			break
		}
		fmt.Fprintf(b, "\n--- %s ---\n%s\n", h.ChunkID, h.Text)
		total += len(h.Text)
	}
}

// parseGoals extracts the planner's goal list: lines starting with "- ",
// "* " or "N. " become goals, anything else is ignored.
func parseGoals(out string) []string {
	var goals []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "- "):
			line = line[2:]
		case strings.HasPrefix(line, "* "):
			line = line[2:]
		default:
			if i := strings.Index(line, ". "); i > 0 && i <= 3 && isDigits(line[:i]) {
				line = line[i+2:]
			} else {
				continue
			}
		}
		line = strings.TrimSpace(line)
		if line != "" {
			goals = append(goals, line)
		}
	}
	return goals
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
