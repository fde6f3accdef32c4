package contextstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/sprintd/internal/config"
	"github.com/fyrsmithlabs/sprintd/internal/recovery"
)

// QdrantStore is the remote vector store backend, for runs that share an
// index across machines or outgrow the embedded store.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	vectorSize int
	embedder   Embedder
	logger     *zap.Logger
}

// NewQdrant connects to the configured Qdrant instance and ensures the
// collection exists with the embedder's vector size.
func NewQdrant(cfg config.ContextConfig, embedder Embedder, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.QdrantHost,
		Port: cfg.QdrantPort,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	s := &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		vectorSize: cfg.VectorSize,
		embedder:   embedder,
		logger:     logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return classifyQdrantErr(fmt.Errorf("check collection: %w", err))
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return classifyQdrantErr(fmt.Errorf("create collection: %w", err))
	}
	return nil
}

// Upsert embeds and writes chunks as points. The point UUID is derived from
// the chunk ID, so re-indexing the same (path, line range) overwrites in
// place.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("embed chunks: %w", err)
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(c.ID)).String()),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: map[string]*qdrant.Value{
				"chunk_id":    qdrant.NewValueString(c.ID),
				"content":     qdrant.NewValueString(c.Text),
				"path":        qdrant.NewValueString(c.Path),
				"kind":        qdrant.NewValueString(string(c.Kind)),
				"hash":        qdrant.NewValueString(c.Hash),
				"modified_at": qdrant.NewValueString(c.ModifiedAt.UTC().Format(time.RFC3339Nano)),
			},
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return classifyQdrantErr(fmt.Errorf("upsert points: %w", err))
	}

	chunksUpserted.Add(float64(len(chunks)))
	return nil
}

// Query embeds the query text and runs a nearest-neighbor search.
func (s *QdrantStore) Query(ctx context.Context, text string, topK int) ([]Hit, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Query")
	defer span.End()

	if topK <= 0 {
		return []Hit{}, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, classifyQdrantErr(fmt.Errorf("query points: %w", err))
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		meta := map[string]string{
			"path":        r.Payload["path"].GetStringValue(),
			"kind":        r.Payload["kind"].GetStringValue(),
			"modified_at": r.Payload["modified_at"].GetStringValue(),
		}
		hits = append(hits, hitFromMetadata(
			r.Payload["chunk_id"].GetStringValue(),
			r.Payload["content"].GetStringValue(),
			float64(r.Score),
			meta,
		))
	}
	sortHits(hits)

	queriesTotal.Inc()
	span.SetAttributes(attribute.Int("result_count", len(hits)))
	return hits, nil
}

// DeleteByPath purges every point whose payload path matches.
func (s *QdrantStore) DeleteByPath(ctx context.Context, path string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("path", path),
			},
		}),
	})
	if err != nil {
		return classifyQdrantErr(fmt.Errorf("delete chunks for %s: %w", path, err))
	}
	return nil
}

// DeleteIDs removes points by their chunk IDs.
func (s *QdrantStore) DeleteIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(ids))
	for _, id := range ids {
		conditions = append(conditions, qdrant.NewMatch("chunk_id", id))
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Should: conditions,
		}),
	})
	if err != nil {
		return classifyQdrantErr(fmt.Errorf("delete chunks: %w", err))
	}
	return nil
}

// Count reports the number of indexed points.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
	})
	if err != nil {
		return 0, classifyQdrantErr(fmt.Errorf("count points: %w", err))
	}
	return int(n), nil
}

// Close shuts down the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// classifyQdrantErr maps gRPC status codes onto recovery classifications:
// availability problems get the retry budget, argument and permission
// problems abort.
func classifyQdrantErr(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return recovery.MarkTransient(err)
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return recovery.MarkTransient(err)
	case grpccodes.InvalidArgument, grpccodes.NotFound, grpccodes.PermissionDenied, grpccodes.Unauthenticated:
		return recovery.MarkLogic(err)
	default:
		return recovery.MarkTransient(err)
	}
}
