package schemas

import (
	"context"
	"time"
)

// -- LLM Client Schemas & Interface --

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Prefers a faster, potentially less capable model.
	TierPowerful ModelTier = "powerful" // Prefers a more capable, potentially slower model.
)

// GenerationOptions provides detailed parameters to control the text generation
// process of the LLM, such as creativity (temperature) and stop sequences.
type GenerationOptions struct {
	Temperature     float64  `json:"temperature"`       // Controls randomness. Lower is more deterministic.
	MaxTokens       int      `json:"max_tokens"`        // Upper bound on generated tokens. Zero means provider default.
	StopSequences   []string `json:"stop_sequences"`    // Generation halts when any of these strings is produced.
	ForceJSONFormat bool     `json:"force_json_format"` // If true, asks the model to output valid JSON.
}

// GenerationRequest encapsulates a complete request to the LLM, including the
// prompt, the desired model tier, and generation options.
type GenerationRequest struct {
	Prompt  string            `json:"prompt"`  // The full prompt text, including any transcript.
	Tier    ModelTier         `json:"tier"`    // The desired model tier (fast or powerful).
	Options GenerationOptions `json:"options"` // Advanced generation parameters.
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider (e.g., Gemini).
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Summarize condenses text to roughly maxLength words.
	Summarize(ctx context.Context, text string, maxLength int) (string, error)
	// Close cleans up any resources held by the client (e.g., network connections, SDK resources).
	Close() error
}

// -- Embedding & Vector Search Interfaces --

// Embedder converts text into a dense vector representation. Implementations
// wrap an embedding model; the dimensionality is fixed per implementation.
type Embedder interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns the length of vectors produced by Embed.
	Dimensions() int
}

// SearchResult is a single ranked hit from a vector similarity search.
type SearchResult struct {
	Text     string         `json:"text"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DocumentIndex abstracts vector similarity search over named collections.
// The index internals (storage, ANN structure) are outside this module; the
// engine only issues searches against it.
type DocumentIndex interface {
	// Search returns up to topK results above threshold, best first.
	Search(ctx context.Context, collection string, vector []float32, topK int, threshold float32) ([]SearchResult, error)
}

// -- Conversation Memory --

// Message is one entry in a conversation log.
type Message struct {
	Role      string         `json:"role"` // "user" or "assistant"
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ConversationStore is an append-only message log keyed by conversation id.
// The engine writes to it after a run completes; failures must not interrupt
// answer delivery. Implementations serialize appends (single-writer
// discipline) so interleaved runs cannot corrupt a conversation.
type ConversationStore interface {
	// Append adds a message to the end of a conversation.
	Append(ctx context.Context, conversationID string, msg Message) error
	// History returns the most recent messages of a conversation, oldest first.
	History(ctx context.Context, conversationID string, limit int) ([]Message, error)
	// Clear removes all messages of a conversation.
	Clear(ctx context.Context, conversationID string) error
}
