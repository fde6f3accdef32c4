package contextstore

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerSplitsOnBudget(t *testing.T) {
	// 10-token budget = 40 chars; each line below is 10 chars incl newline.
	c := NewChunker(10, 0)
	text := strings.TrimSuffix(strings.Repeat("aaaaaaaaa\n", 10), "\n")

	chunks := c.Split("main.go", text, KindCode, time.Now())
	require.Len(t, chunks, 3)

	assert.Equal(t, "main.go:1-4", chunks[0].ID)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 4, chunks[0].EndLine)
	assert.Equal(t, 5, chunks[1].StartLine)
	assert.Equal(t, 9, chunks[2].StartLine)
	assert.Equal(t, 10, chunks[2].EndLine)
}

func TestChunkerOverlap(t *testing.T) {
	c := NewChunker(10, 1)
	text := strings.TrimSuffix(strings.Repeat("aaaaaaaaa\n", 8), "\n")

	chunks := c.Split("a.txt", text, KindText, time.Now())
	require.GreaterOrEqual(t, len(chunks), 2)

	// Adjacent chunks share one line.
	assert.Equal(t, chunks[0].EndLine, chunks[1].StartLine)
}

func TestChunkerProseCutsAtParagraph(t *testing.T) {
	// The budget falls mid-paragraph; the cut backs up to the blank line.
	c := NewChunker(10, 0)
	text := "para one line a\npara one line b\n\npara two line a\npara two line b"

	chunks := c.Split("notes.md", text, KindDoc, time.Now())
	require.GreaterOrEqual(t, len(chunks), 2)

	assert.Equal(t, 2, chunks[0].EndLine)
	assert.NotContains(t, chunks[0].Text, "para two")
	assert.Contains(t, chunks[len(chunks)-1].Text, "para two line b")
}

func TestChunkerCodeIgnoresParagraphs(t *testing.T) {
	// Code keeps the plain budget cut even across blank lines.
	c := NewChunker(10, 0)
	text := "func a() {}\nfunc b() {}\n\nfunc c() {}\nfunc d() {}"

	chunks := c.Split("x.go", text, KindCode, time.Now())
	require.NotEmpty(t, chunks)
	assert.Greater(t, chunks[0].EndLine, 2)
}

func TestChunkerDeterministicIDs(t *testing.T) {
	c := NewChunker(10, 0)
	text := "line one\nline two\nline three"

	first := c.Split("doc.md", text, KindDoc, time.Unix(100, 0))
	second := c.Split("doc.md", text, KindDoc, time.Unix(100, 0))

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Hash, second[i].Hash)
	}
}

func TestChunkerEdgeCases(t *testing.T) {
	c := NewChunker(10, 0)

	t.Run("empty text yields nothing", func(t *testing.T) {
		assert.Nil(t, c.Split("x.go", "", KindCode, time.Now()))
		assert.Nil(t, c.Split("x.go", "  \n\t\n", KindCode, time.Now()))
	})

	t.Run("oversized single line is its own chunk", func(t *testing.T) {
		chunks := c.Split("x.go", strings.Repeat("x", 500), KindCode, time.Now())
		require.Len(t, chunks, 1)
		assert.Len(t, chunks[0].Text, 500)
	})

	t.Run("blank-only spans are dropped", func(t *testing.T) {
		chunks := c.Split("x.go", "real content\n\n\n\n\n\n\n\n\n\n\n\n", KindCode, time.Now())
		require.Len(t, chunks, 1)
		assert.Contains(t, chunks[0].Text, "real content")
	})
}

func TestKindForPath(t *testing.T) {
	assert.Equal(t, KindCode, KindForPath("internal/engine/engine.go"))
	assert.Equal(t, KindCode, KindForPath("scripts/build.sh"))
	assert.Equal(t, KindDoc, KindForPath("README.md"))
	assert.Equal(t, KindText, KindForPath("config.yaml"))
}
