package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/sprintd/internal/config"
	"github.com/fyrsmithlabs/sprintd/internal/recovery"
)

func TestNewRejectsMockMode(t *testing.T) {
	_, err := New(config.LLMConfig{Mock: true}, nil)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want recovery.Classification
	}{
		{"deadline", context.DeadlineExceeded, recovery.Transient},
		{"rate limit text", errors.New("provider said: rate limit exceeded"), recovery.Transient},
		{"429 status", errors.New("unexpected status 429"), recovery.Transient},
		{"bad api key", errors.New("invalid api key"), recovery.Logic},
		{"401 status", errors.New("status 401 from endpoint"), recovery.Logic},
		{"anything else", errors.New("connection reset by peer"), recovery.Transient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.Equal(t, tt.want, recovery.Classify(got))
		})
	}
}

func TestClassifySentinels(t *testing.T) {
	assert.ErrorIs(t, classify(context.DeadlineExceeded), ErrTimeout)
	assert.ErrorIs(t, classify(errors.New("rate limit")), ErrRateLimited)
	assert.ErrorIs(t, classify(errors.New("socket closed")), ErrUnavailable)
}

func TestMockScriptedResponses(t *testing.T) {
	m := NewMock(map[Role][]string{
		RolePlanner: {"- first", "- second"},
	})

	out, err := m.Complete(context.Background(), "plan it", RolePlanner)
	require.NoError(t, err)
	assert.Equal(t, "- first", out)

	out, err = m.Complete(context.Background(), "plan again", RolePlanner)
	require.NoError(t, err)
	assert.Equal(t, "- second", out)

	// An exhausted script repeats its last entry.
	out, err = m.Complete(context.Background(), "plan once more", RolePlanner)
	require.NoError(t, err)
	assert.Equal(t, "- second", out)

	assert.Equal(t, 3, m.Calls(RolePlanner))
	assert.Len(t, m.Prompts, 3)
}

func TestMockDefaultResponse(t *testing.T) {
	m := NewMock(nil)
	out, err := m.Complete(context.Background(), "anything", RoleCoder)
	require.NoError(t, err)
	assert.Equal(t, "[coder] ok", out)
}

func TestMockCountsUnscriptedCalls(t *testing.T) {
	m := NewMock(nil)
	for i := 0; i < 3; i++ {
		_, err := m.Complete(context.Background(), "anything", RoleCoder)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, m.Calls(RoleCoder))
	assert.Equal(t, 0, m.Calls(RoleTester))
}

func TestMockInjectedFailure(t *testing.T) {
	m := NewMock(nil)
	boom := errors.New("boom")
	m.FailOn(1, boom)

	_, err := m.Complete(context.Background(), "a", RoleCoder)
	require.NoError(t, err)
	_, err = m.Complete(context.Background(), "b", RoleCoder)
	assert.ErrorIs(t, err, boom)
}

func TestMockHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMock(nil)
	_, err := m.Complete(ctx, "a", RoleCoder)
	assert.ErrorIs(t, err, context.Canceled)
}
