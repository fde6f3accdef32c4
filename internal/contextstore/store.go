package contextstore

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/sprintd/internal/config"
)

// Embedder produces fixed-length vectors. Implementations wrap the
// embedding collaborator in error recovery before reaching this package.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the vector-store contract the indexer and the engine use.
type Store interface {
	// Upsert inserts or replaces chunks by ID.
	Upsert(ctx context.Context, chunks []Chunk) error

	// Query returns up to topK hits ordered by descending score; equal
	// scores order by most recent modification first. An empty index
	// yields an empty slice, not an error.
	Query(ctx context.Context, text string, topK int) ([]Hit, error)

	// DeleteByPath removes every chunk keyed to path.
	DeleteByPath(ctx context.Context, path string) error

	// DeleteIDs removes specific chunks.
	DeleteIDs(ctx context.Context, ids []string) error

	// Count reports the number of indexed chunks.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// New builds the configured backend.
func New(cfg config.ContextConfig, embedder Embedder, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "chromem", "":
		return NewChromem(cfg, embedder, logger)
	case "qdrant":
		return NewQdrant(cfg, embedder, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// sortHits orders hits by descending score, breaking ties by most recent
// modification time.
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ModifiedAt.After(hits[j].ModifiedAt)
	})
}
