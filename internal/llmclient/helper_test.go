package llmclient

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/reagentworks/reagent/internal/config"
)

// setupTestLogger is a helper to create a zap logger for testing with an observer.
func setupTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	core, _ := observer.New(zap.DebugLevel)
	return zap.New(core)
}

// getValidLLMConfig returns a valid LLMConfig for testing purposes.
func getValidLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		Provider:      config.ProviderGemini,
		APIKey:        "test-api-key",
		FastModel:     "gemini-flash",
		PowerfulModel: "gemini-pro",
		APITimeout:    5 * time.Second,
		MaxRetries:    4,
	}
}
