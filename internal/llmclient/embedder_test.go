package llmclient

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reagentworks/reagent/internal/config"
)

// -- Test Cases: Backend Selection (NewEmbedder) --

func TestNewEmbedder_HashProvider(t *testing.T) {
	embedder, err := NewEmbedder(context.Background(), config.EmbeddingConfig{
		Provider:   "hash",
		Dimensions: 64,
	}, "")

	require.NoError(t, err)
	require.NotNil(t, embedder)
	assert.IsType(t, &HashEmbedder{}, embedder)
	assert.Equal(t, 64, embedder.Dimensions())
}

func TestNewEmbedder_GeminiRequiresAPIKey(t *testing.T) {
	embedder, err := NewEmbedder(context.Background(), config.EmbeddingConfig{
		Provider: "gemini",
	}, "")

	assert.Error(t, err)
	assert.Nil(t, embedder)
	assert.Contains(t, err.Error(), "Gemini API Key is required")
}

func TestNewEmbedder_UnsupportedProvider(t *testing.T) {
	embedder, err := NewEmbedder(context.Background(), config.EmbeddingConfig{
		Provider: "word2vec",
	}, "key")

	assert.Error(t, err)
	assert.Nil(t, embedder)
	assert.Contains(t, err.Error(), "unknown or unsupported embedding provider configured: 'word2vec'")
}

// -- Test Cases: Task Type Mapping --

func TestEmbeddingTaskType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "RETRIEVAL_QUERY"},
		{"RETRIEVAL_QUERY", "RETRIEVAL_QUERY"},
		{"RETRIEVAL_DOCUMENT", "RETRIEVAL_DOCUMENT"},
		{"SEMANTIC_SIMILARITY", "SEMANTIC_SIMILARITY"},
		{"QUESTION_ANSWERING", "QUESTION_ANSWERING"},
		{"SOMETHING_ELSE", "RETRIEVAL_QUERY"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, embeddingTaskType(tt.in), "task type %q", tt.in)
	}
}

// -- Test Cases: Hash Embedder --

func TestHashEmbedder_Deterministic(t *testing.T) {
	embedder := NewHashEmbedder(128)

	a, err := embedder.Embed(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	b, err := embedder.Embed(context.Background(), "What is the capital of France?")
	require.NoError(t, err)

	assert.Equal(t, a, b, "Identical texts must produce identical vectors")
	assert.Len(t, a, 128)
}

func TestHashEmbedder_CaseInsensitive(t *testing.T) {
	embedder := NewHashEmbedder(128)

	a, err := embedder.Embed(context.Background(), "Capital of France")
	require.NoError(t, err)
	b, err := embedder.Embed(context.Background(), "CAPITAL OF FRANCE")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestHashEmbedder_Normalized(t *testing.T) {
	embedder := NewHashEmbedder(256)

	vec, err := embedder.Embed(context.Background(), "one two three four five")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5, "Non-empty vectors should be unit length")
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	embedder := NewHashEmbedder(32)

	vec, err := embedder.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Len(t, vec, 32)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestHashEmbedder_DefaultDimensions(t *testing.T) {
	embedder := NewHashEmbedder(0)
	assert.Equal(t, 768, embedder.Dimensions())
}
