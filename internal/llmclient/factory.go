// -- internal/llmclient/factory.go --
package llmclient

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/reagentworks/reagent/api/schemas"
	"github.com/reagentworks/reagent/internal/config"
)

// ErrUnknownProvider is returned when the configured LLM provider has no
// client implementation.
var ErrUnknownProvider = errors.New("unknown or unsupported LLM provider")

// NewClient is a factory function that creates a tier-routing LLMClient based
// on the configuration.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	provider := cfg.Provider

	// Using constants defined in config package to avoid magic strings.
	switch provider {
	case config.ProviderGemini:
		fastClient, err := NewGeminiClient(cfg, cfg.FastModel, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize fast tier LLM client (model: %s): %w", cfg.FastModel, err)
		}
		powerfulClient, err := NewGeminiClient(cfg, cfg.PowerfulModel, logger)
		if err != nil {
			fastClient.Close()
			return nil, fmt.Errorf("failed to initialize powerful tier LLM client (model: %s): %w", cfg.PowerfulModel, err)
		}
		router, err := NewLLMRouter(logger, fastClient, powerfulClient)
		if err != nil {
			fastClient.Close()
			powerfulClient.Close()
			return nil, err
		}
		return router, nil
	// case config.ProviderOpenAI:
	// 	return NewOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: '%s'. Supported: [%s]", ErrUnknownProvider, provider, config.ProviderGemini)
	}
}
