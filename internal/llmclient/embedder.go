package llmclient

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"google.golang.org/genai"

	"github.com/reagentworks/reagent/api/schemas"
	"github.com/reagentworks/reagent/internal/config"
)

// NewEmbedder selects the embedding backend from configuration.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig, apiKey string) (schemas.Embedder, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiEmbedder(ctx, cfg, apiKey)
	case "hash":
		return NewHashEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown or unsupported embedding provider configured: '%s'. Supported: [gemini, hash]", cfg.Provider)
	}
}

// -- Gemini Embedder --

// GeminiEmbedder implements schemas.Embedder on top of the Google GenAI SDK.
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	taskType   string
	dimensions int
}

var _ schemas.Embedder = (*GeminiEmbedder)(nil)

// NewGeminiEmbedder creates an embedder for the configured model.
func NewGeminiEmbedder(ctx context.Context, cfg config.EmbeddingConfig, apiKey string) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API Key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-004"
	}
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = 768
	}

	return &GeminiEmbedder{
		client:     client,
		model:      model,
		taskType:   embeddingTaskType(cfg.TaskType),
		dimensions: dimensions,
	}, nil
}

// embeddingTaskType maps the configured string onto the SDK constant. The
// default is retrieval queries since the engine embeds questions, not
// documents.
func embeddingTaskType(taskType string) string {
	switch taskType {
	case "RETRIEVAL_QUERY", "":
		return "RETRIEVAL_QUERY"
	case "RETRIEVAL_DOCUMENT":
		return "RETRIEVAL_DOCUMENT"
	case "SEMANTIC_SIMILARITY":
		return "SEMANTIC_SIMILARITY"
	case "QUESTION_ANSWERING":
		return "QUESTION_ANSWERING"
	default:
		return "RETRIEVAL_QUERY"
	}
}

// Embed returns the vector for a single text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{
			TaskType: e.taskType,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini embed failed: %w", err)
	}

	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("gemini API returned no embeddings")
	}

	return result.Embeddings[0].Values, nil
}

// Dimensions returns the configured output dimensionality.
func (e *GeminiEmbedder) Dimensions() int {
	return e.dimensions
}

// Close shuts down the underlying SDK client. The GenAI client holds no
// resources that require explicit release.
func (e *GeminiEmbedder) Close() error {
	return nil
}

// -- Hash Embedder --

// HashEmbedder produces deterministic vectors by hashing tokens into a fixed
// number of buckets. It exists so the engine can run end to end without a
// network dependency; scores are only meaningful relative to each other.
type HashEmbedder struct {
	dimensions int
}

var _ schemas.Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder creates a local, offline embedder.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed maps each lowercased token to a bucket and L2-normalizes the counts.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[h.Sum32()%uint32(e.dimensions)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// Dimensions returns the bucket count.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}
