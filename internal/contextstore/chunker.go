package contextstore

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// charsPerToken is the rough byte budget per token used to convert the
// configured token bound into a text length bound.
const charsPerToken = 4

// Chunker splits source text into overlapping, line-aligned chunks bounded
// by a token budget.
type Chunker struct {
	maxChars int
	overlap  int
}

// NewChunker creates a chunker bounded by maxDocTokens per chunk with
// overlap lines shared between adjacent chunks.
func NewChunker(maxDocTokens, overlap int) *Chunker {
	if maxDocTokens <= 0 {
		maxDocTokens = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Chunker{maxChars: maxDocTokens * charsPerToken, overlap: overlap}
}

// paragraphLookback bounds how far a prose cut may back up to find a
// blank line.
const paragraphLookback = 10

// Split chunks text from path. Chunks are cut at line boundaries so code
// stays readable in retrieval output; a single line longer than the budget
// becomes its own chunk rather than being dropped. Prose kinds additionally
// prefer to cut at the nearest paragraph break before the budget boundary.
func (c *Chunker) Split(path, text string, kind Kind, modifiedAt time.Time) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	var chunks []Chunk

	start := 0
	for start < len(lines) {
		size := 0
		end := start
		for end < len(lines) {
			lineLen := len(lines[end]) + 1
			if size > 0 && size+lineLen > c.maxChars {
				break
			}
			size += lineLen
			end++
		}

		if kind != KindCode && end < len(lines) {
			end = paragraphCut(lines, start, end)
		}

		body := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(body) != "" {
			chunks = append(chunks, Chunk{
				ID:         ChunkID(path, start+1, end),
				Path:       path,
				StartLine:  start + 1,
				EndLine:    end,
				Text:       body,
				Kind:       kind,
				ModifiedAt: modifiedAt,
				Hash:       hashText(body),
			})
		}

		if end >= len(lines) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// paragraphCut moves a prose cut point back to the closest blank line, if
// one sits within the lookback window. The chunk then ends on a paragraph
// boundary instead of mid-sentence.
func paragraphCut(lines []string, start, end int) int {
	low := end - paragraphLookback
	if low <= start {
		low = start + 1
	}
	for i := end - 1; i >= low; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			return i
		}
	}
	return end
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
