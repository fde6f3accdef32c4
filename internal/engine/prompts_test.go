package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/sprintd/internal/contextstore"
)

func TestParseGoals(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "dashed list",
			in:   "Here is the plan:\n- parse the config\n- wire the server\n",
			want: []string{"parse the config", "wire the server"},
		},
		{
			name: "starred list",
			in:   "* one\n* two",
			want: []string{"one", "two"},
		},
		{
			name: "numbered list",
			in:   "1. first\n2. second\n10. tenth",
			want: []string{"first", "second", "tenth"},
		},
		{
			name: "prose only",
			in:   "I would start by reading the code.",
			want: nil,
		},
		{
			name: "blank items dropped",
			in:   "- \n- real goal",
			want: []string{"real goal"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseGoals(tt.in))
		})
	}
}

func TestWriteGroundingBudget(t *testing.T) {
	big := strings.Repeat("x", maxGroundingChars)
	hits := []contextstore.Hit{
		{ChunkID: "a.go:1-2", Text: "small"},
		{ChunkID: "b.go:1-900", Text: big},
	}

	var b strings.Builder
	writeGrounding(&b, hits)

	out := b.String()
	assert.Contains(t, out, "a.go:1-2")
	assert.NotContains(t, out, "b.go:1-900")
}

func TestCodePromptNamesAction(t *testing.T) {
	out := codePrompt("fix the bug", "add_tests", nil)
	assert.Contains(t, out, "fix the bug")
	assert.Contains(t, out, "tests")
}
