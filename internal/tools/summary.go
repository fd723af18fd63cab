// internal/tools/summary.go
package tools

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/reagentworks/reagent/api/schemas"
)

const defaultSummaryLength = 200

// SummaryTool condenses text with the reasoning model.
type SummaryTool struct {
	llm    schemas.LLMClient
	logger *zap.Logger
}

// NewSummaryTool creates the summarizer.
func NewSummaryTool(llm schemas.LLMClient, logger *zap.Logger) *SummaryTool {
	return &SummaryTool{llm: llm, logger: logger.Named("tools.summary")}
}

func (t *SummaryTool) Name() string { return "summarize" }

func (t *SummaryTool) Description() string {
	return "Summarize a piece of text. Extracts key points and creates a concise summary."
}

func (t *SummaryTool) Category() Category { return CategoryGeneration }

func (t *SummaryTool) Params() map[string]Param {
	return map[string]Param{
		"text": {
			Type:        "string",
			Description: "Text to summarize",
			Required:    true,
		},
		"max_length": {
			Type:        "integer",
			Description: "Maximum length of summary in words (default: 200)",
			Default:     defaultSummaryLength,
		},
	}
}

// Execute asks the model for a summary.
func (t *SummaryTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	text := argString(args, "text", "")
	maxLength := argInt(args, "max_length", defaultSummaryLength)

	t.logger.Info("Executing summary tool",
		zap.Int("text_length", len(text)),
		zap.Int("max_length", maxLength),
	)

	summary, err := t.llm.Summarize(ctx, text, maxLength)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize: %w", err)
	}

	return map[string]any{
		"summary":         summary,
		"original_length": len(text),
		"summary_length":  len(summary),
	}, nil
}
