package llm

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a deterministic Completer for tests and offline runs. Responses
// are served per role in order; an exhausted script repeats its last entry.
// Failures can be injected per call index.
type Mock struct {
	mu        sync.Mutex
	responses map[Role][]string
	calls     map[Role]int
	failures  map[int]error
	total     int

	// Prompts records every prompt received, for assertions.
	Prompts []string
}

// NewMock creates a mock with canned per-role responses.
func NewMock(responses map[Role][]string) *Mock {
	if responses == nil {
		responses = map[Role][]string{}
	}
	return &Mock{
		responses: responses,
		calls:     make(map[Role]int),
		failures:  make(map[int]error),
	}
}

// FailOn makes the nth call overall (zero-based) return err.
func (m *Mock) FailOn(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[n] = err
}

// Complete serves the next scripted response for role.
func (m *Mock) Complete(ctx context.Context, prompt string, role Role) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)
	n := m.total
	m.total++

	if err, ok := m.failures[n]; ok {
		return "", err
	}

	i := m.calls[role]
	m.calls[role]++

	script := m.responses[role]
	if len(script) == 0 {
		return fmt.Sprintf("[%s] ok", role), nil
	}
	if i >= len(script) {
		i = len(script) - 1
	}
	return script[i], nil
}

// Calls reports how many completions role has served.
func (m *Mock) Calls(role Role) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[role]
}
