package contextstore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SkipFunc reports whether a path must not be indexed (build output,
// dependency caches). It runs before chunking and embedding so excluded
// content never costs an embedding call.
type SkipFunc func(path string) bool

// chunkFingerprint is what the indexer remembers per chunk ID to decide
// whether a re-index can skip the embedding call.
type chunkFingerprint struct {
	hash       string
	modifiedAt time.Time
}

// Indexer drives incremental indexing: it chunks sources, skips spans whose
// content and timestamp are unchanged, upserts the rest, and purges chunks
// whose source ranges or files disappeared.
type Indexer struct {
	store   Store
	chunker *Chunker
	skip    SkipFunc
	logger  *zap.Logger

	// seen maps chunk ID to its last indexed fingerprint; byPath maps a
	// source path to its live chunk IDs. Both are owned by the single
	// indexing goroutine.
	seen   map[string]chunkFingerprint
	byPath map[string]map[string]struct{}
}

// NewIndexer creates an indexer over store. A nil skip indexes everything.
func NewIndexer(store Store, chunker *Chunker, skip SkipFunc, logger *zap.Logger) *Indexer {
	if skip == nil {
		skip = func(string) bool { return false }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		store:   store,
		chunker: chunker,
		skip:    skip,
		logger:  logger,
		seen:    make(map[string]chunkFingerprint),
		byPath:  make(map[string]map[string]struct{}),
	}
}

// Index chunks text from path and upserts what changed. Chunks whose
// content hash and modification time match the previous pass are skipped
// without re-embedding; chunk IDs that existed for this path but no longer
// do (the file shrank) are deleted.
func (ix *Indexer) Index(ctx context.Context, path, text string, modifiedAt time.Time) error {
	ctx, span := tracer.Start(ctx, "Indexer.Index")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	if ix.skip(path) {
		span.SetAttributes(attribute.Bool("skipped", true))
		return nil
	}

	chunks := ix.chunker.Split(path, text, KindForPath(path), modifiedAt)

	live := make(map[string]struct{}, len(chunks))
	var dirty []Chunk
	for _, c := range chunks {
		live[c.ID] = struct{}{}
		prev, ok := ix.seen[c.ID]
		if ok && prev.hash == c.Hash && prev.modifiedAt.Equal(c.ModifiedAt) {
			continue
		}
		dirty = append(dirty, c)
	}

	if len(dirty) > 0 {
		if err := ix.store.Upsert(ctx, dirty); err != nil {
			return err
		}
		for _, c := range dirty {
			ix.seen[c.ID] = chunkFingerprint{hash: c.Hash, modifiedAt: c.ModifiedAt}
		}
	}

	// Drop spans that no longer exist at this path.
	var stale []string
	for id := range ix.byPath[path] {
		if _, ok := live[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := ix.store.DeleteIDs(ctx, stale); err != nil {
			return err
		}
		for _, id := range stale {
			delete(ix.seen, id)
		}
	}
	ix.byPath[path] = live

	ix.logger.Debug("indexed path",
		zap.String("path", path),
		zap.Int("chunks", len(chunks)),
		zap.Int("upserted", len(dirty)),
		zap.Int("purged", len(stale)))
	return nil
}

// Remove purges every chunk for one source path that disappeared.
func (ix *Indexer) Remove(ctx context.Context, path string) error {
	if err := ix.store.DeleteByPath(ctx, path); err != nil {
		return err
	}
	for id := range ix.byPath[path] {
		delete(ix.seen, id)
	}
	delete(ix.byPath, path)
	ix.logger.Info("purged chunks for removed path", zap.String("path", path))
	return nil
}

// Purge removes all chunks for source paths that are no longer present.
// existing is the set of paths seen by the current indexing pass.
func (ix *Indexer) Purge(ctx context.Context, existing map[string]struct{}) error {
	ctx, span := tracer.Start(ctx, "Indexer.Purge")
	defer span.End()

	for path, ids := range ix.byPath {
		if _, ok := existing[path]; ok {
			continue
		}
		if err := ix.store.DeleteByPath(ctx, path); err != nil {
			return err
		}
		for id := range ids {
			delete(ix.seen, id)
		}
		delete(ix.byPath, path)
		ix.logger.Info("purged chunks for removed path", zap.String("path", path))
	}
	return nil
}
