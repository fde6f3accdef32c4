// Package embeddings generates vectors through an OpenAI-compatible API
// (OpenAI itself or a local TEI server). Every call is routed through the
// error recovery manager under the embed operation class.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/sprintd/internal/config"
	"github.com/fyrsmithlabs/sprintd/internal/recovery"
)

// ErrEmptyInput indicates empty or nil input texts.
var ErrEmptyInput = errors.New("empty or nil input texts")

// Service generates embeddings and satisfies contextstore.Embedder.
type Service struct {
	embedder *lcembeddings.EmbedderImpl
	rec      *recovery.Manager
}

// NewService builds the langchaingo embedder against the configured
// endpoint. The openai client shape works for both OpenAI and local
// OpenAI-compatible servers; those need no real token.
func NewService(cfg config.EmbeddingsConfig, rec *recovery.Manager) (*Service, error) {
	apiKey := cfg.APIKey.Value()
	if apiKey == "" {
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating embedding client: %w", err)
	}
	embedder, err := lcembeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &Service{embedder: embedder, rec: rec}, nil
}

// EmbedDocuments returns one vector per input text.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	var vectors [][]float32
	err := s.rec.Execute(ctx, recovery.ClassEmbed, func(ctx context.Context) error {
		var embErr error
		vectors, embErr = s.embedder.EmbedDocuments(ctx, texts)
		if embErr != nil {
			return recovery.MarkTransient(embErr)
		}
		return nil
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	return vectors, nil
}

// EmbedQuery returns the vector for a single query string.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := s.rec.Execute(ctx, recovery.ClassEmbed, func(ctx context.Context) error {
		var embErr error
		vector, embErr = s.embedder.EmbedQuery(ctx, text)
		if embErr != nil {
			return recovery.MarkTransient(embErr)
		}
		return nil
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return vector, nil
}
