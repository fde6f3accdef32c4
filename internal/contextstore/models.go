// Package contextstore indexes sprint artifacts into a vector store and
// serves nearest-neighbor retrieval for grounding prompts. Chunks are keyed
// by source path and line range, so re-indexing unchanged content converges
// to the same records instead of accumulating duplicates.
package contextstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Kind tags what a chunk's source is, which steers the chunking strategy
// and lets retrieval filter by artifact type.
type Kind string

const (
	KindCode Kind = "code"
	KindDoc  Kind = "doc"
	KindText Kind = "text"
)

// KindForPath classifies a source path by extension.
func KindForPath(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go", ".py", ".ts", ".js", ".rs", ".java", ".c", ".h", ".cpp", ".sh":
		return KindCode
	case ".md", ".rst", ".adoc":
		return KindDoc
	default:
		return KindText
	}
}

// Chunk is one bounded span of an indexed source file.
type Chunk struct {
	// ID is derived from the source path and line range, not from content,
	// so edits that shift offsets converge after a full re-index.
	ID string

	Path       string
	StartLine  int
	EndLine    int
	Text       string
	Kind       Kind
	ModifiedAt time.Time

	// Hash fingerprints Text for the idempotent-indexing check.
	Hash string
}

// ChunkID builds the canonical identifier for a (path, line range) span.
func ChunkID(path string, start, end int) string {
	return fmt.Sprintf("%s:%d-%d", path, start, end)
}

// Hit is one retrieval result.
type Hit struct {
	ChunkID    string    `json:"chunk_id"`
	Text       string    `json:"text"`
	Score      float64   `json:"score"`
	Source     string    `json:"source"`
	Kind       Kind      `json:"kind"`
	ModifiedAt time.Time `json:"modified_at"`
}

var (
	// ErrBackendUnavailable wraps vector-store transport failures.
	ErrBackendUnavailable = errors.New("context store backend unavailable")

	// ErrUnknownBackend is returned by the factory for an unrecognized
	// backend name.
	ErrUnknownBackend = errors.New("unknown context store backend")
)
