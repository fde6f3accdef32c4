package contextstore

import (
	"context"
	"fmt"
	"os"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/sprintd/internal/config"
)

var tracer = otel.Tracer("sprintd/contextstore")

// ChromemStore is the embedded vector store backend. It persists to a local
// directory and needs no external service, which is the default for a
// single-machine sprint run.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   Embedder
	logger     *zap.Logger
}

// NewChromem opens (or creates) the persistent database at cfg.Path and the
// configured collection.
func NewChromem(cfg config.ContextConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vector store dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(cfg.Path, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return newChromemWithDB(db, cfg.Collection, embedder, logger)
}

// newChromemWithDB wires an existing database; tests pass an in-memory one.
func newChromemWithDB(db *chromem.DB, collection string, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ChromemStore{db: db, embedder: embedder, logger: logger}

	col, err := db.GetOrCreateCollection(collection, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", collection, err)
	}
	s.collection = col
	return s, nil
}

func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// Upsert embeds and stores chunks. chromem replaces documents that share an
// ID, so writing the same (path, line range) twice stays a single record.
func (s *ChromemStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("embed chunks: %w", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Metadata:  chunkMetadata(c),
			Embedding: embeddings[i],
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert chunks: %w", err)
	}

	chunksUpserted.Add(float64(len(chunks)))
	s.logger.Debug("upserted chunks", zap.Int("count", len(chunks)))
	return nil
}

// Query retrieves up to topK hits. chromem rejects a result count above the
// collection size, so k is clamped first; an empty collection short-circuits
// to an empty result.
func (s *ChromemStore) Query(ctx context.Context, text string, topK int) ([]Hit, error) {
	ctx, span := tracer.Start(ctx, "ChromemStore.Query")
	defer span.End()

	count := s.collection.Count()
	if count == 0 || topK <= 0 {
		return []Hit{}, nil
	}
	if topK > count {
		topK = count
	}

	results, err := s.collection.Query(ctx, text, topK, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query collection: %w", err)
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = hitFromMetadata(r.ID, r.Content, float64(r.Similarity), r.Metadata)
	}
	sortHits(hits)

	queriesTotal.Inc()
	span.SetAttributes(attribute.Int("result_count", len(hits)))
	return hits, nil
}

// DeleteByPath purges every chunk stored for path.
func (s *ChromemStore) DeleteByPath(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "ChromemStore.DeleteByPath")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	if err := s.collection.Delete(ctx, map[string]string{"path": path}, nil); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete chunks for %s: %w", path, err)
	}
	return nil
}

// DeleteIDs removes specific chunks, collecting per-ID failures.
func (s *ChromemStore) DeleteIDs(ctx context.Context, ids []string) error {
	var failed []string
	for _, id := range ids {
		if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
			s.logger.Warn("failed to delete chunk", zap.String("id", id), zap.Error(err))
			failed = append(failed, id)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("delete chunks: %d of %d failed", len(failed), len(ids))
	}
	return nil
}

// Count reports the collection size.
func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

// Close is a no-op; chromem persists on write.
func (s *ChromemStore) Close() error { return nil }

func chunkMetadata(c Chunk) map[string]string {
	return map[string]string{
		"path":        c.Path,
		"kind":        string(c.Kind),
		"hash":        c.Hash,
		"modified_at": c.ModifiedAt.UTC().Format(time.RFC3339Nano),
	}
}

func hitFromMetadata(id, content string, score float64, meta map[string]string) Hit {
	h := Hit{
		ChunkID: id,
		Text:    content,
		Score:   score,
		Source:  meta["path"],
		Kind:    Kind(meta["kind"]),
	}
	if ts, err := time.Parse(time.RFC3339Nano, meta["modified_at"]); err == nil {
		h.ModifiedAt = ts
	}
	return h
}
