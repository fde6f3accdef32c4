package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/sprintd/internal/config"
)

func TestNewServiceWithoutKey(t *testing.T) {
	// Local OpenAI-compatible servers need no real token.
	svc, err := NewService(config.EmbeddingsConfig{
		BaseURL: "http://localhost:8080/v1",
		Model:   "nomic-embed-text",
	}, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestEmbedDocumentsRejectsEmptyInput(t *testing.T) {
	svc, err := NewService(config.EmbeddingsConfig{
		BaseURL: "http://localhost:8080/v1",
		Model:   "nomic-embed-text",
	}, nil)
	require.NoError(t, err)

	_, err = svc.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = svc.EmbedDocuments(context.Background(), []string{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}
