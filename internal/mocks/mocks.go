// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/reagentworks/reagent/api/schemas"
)

// Compile-time interface compliance checks.
var (
	_ schemas.LLMClient         = (*MockLLMClient)(nil)
	_ schemas.Embedder          = (*MockEmbedder)(nil)
	_ schemas.DocumentIndex     = (*MockIndex)(nil)
	_ schemas.ConversationStore = (*MockStore)(nil)
)

// -- LLM Client Mock --

// MockLLMClient mocks schemas.LLMClient.
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Summarize(ctx context.Context, text string, maxLength int) (string, error) {
	args := m.Called(ctx, text, maxLength)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// -- Embedder Mock --

// MockEmbedder mocks schemas.Embedder.
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if vec := args.Get(0); vec != nil {
		return vec.([]float32), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmbedder) Dimensions() int {
	args := m.Called()
	return args.Int(0)
}

// -- Document Index Mock --

// MockIndex mocks schemas.DocumentIndex.
type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) Search(ctx context.Context, collection string, vector []float32, topK int, threshold float32) ([]schemas.SearchResult, error) {
	args := m.Called(ctx, collection, vector, topK, threshold)
	if res := args.Get(0); res != nil {
		return res.([]schemas.SearchResult), args.Error(1)
	}
	return nil, args.Error(1)
}

// -- Conversation Store Mock --

// MockStore mocks schemas.ConversationStore.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Append(ctx context.Context, conversationID string, msg schemas.Message) error {
	args := m.Called(ctx, conversationID, msg)
	return args.Error(0)
}

func (m *MockStore) History(ctx context.Context, conversationID string, limit int) ([]schemas.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	if msgs := args.Get(0); msgs != nil {
		return msgs.([]schemas.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) Clear(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}
