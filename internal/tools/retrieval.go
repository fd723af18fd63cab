// internal/tools/retrieval.go
package tools

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/reagentworks/reagent/api/schemas"
	"github.com/reagentworks/reagent/internal/config"
)

// RetrievalTool performs semantic search over the document index: embed the
// query, search the named collection, and return the ranked hits.
type RetrievalTool struct {
	embedder schemas.Embedder
	index    schemas.DocumentIndex
	defaults config.ToolsConfig
	logger   *zap.Logger
}

// NewRetrievalTool creates the retrieval tool.
func NewRetrievalTool(embedder schemas.Embedder, index schemas.DocumentIndex, defaults config.ToolsConfig, logger *zap.Logger) *RetrievalTool {
	return &RetrievalTool{
		embedder: embedder,
		index:    index,
		defaults: defaults,
		logger:   logger.Named("tools.retrieval"),
	}
}

func (t *RetrievalTool) Name() string { return "retrieve_documents" }

func (t *RetrievalTool) Description() string {
	return "Retrieve relevant documents from the knowledge base using semantic search. Use this when you need information from uploaded documents."
}

func (t *RetrievalTool) Category() Category { return CategoryRetrieval }

func (t *RetrievalTool) Params() map[string]Param {
	return map[string]Param{
		"query": {
			Type:        "string",
			Description: "Search query text",
			Required:    true,
		},
		"collection": {
			Type:        "string",
			Description: "Collection name to search",
			Required:    true,
		},
		"top_k": {
			Type:        "integer",
			Description: "Number of documents to retrieve (default: 5)",
			Default:     t.defaults.TopK,
		},
		"score_threshold": {
			Type:        "float",
			Description: "Minimum similarity score (default: 0.0)",
			Default:     t.defaults.ScoreThreshold,
		},
	}
}

// Execute embeds the query and searches the collection.
func (t *RetrievalTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	query := argString(args, "query", "")
	collection := argString(args, "collection", "")
	topK := argInt(args, "top_k", t.defaults.TopK)
	threshold := argFloat(args, "score_threshold", t.defaults.ScoreThreshold)

	t.logger.Info("Executing retrieval tool",
		zap.String("query", truncate(query, 100)),
		zap.String("collection", collection),
		zap.Int("top_k", topK),
	)

	vector, err := t.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := t.index.Search(ctx, collection, vector, topK, float32(threshold))
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %q: %w", collection, err)
	}

	documents := make([]map[string]any, 0, len(results))
	for _, res := range results {
		documents = append(documents, map[string]any{
			"text":     res.Text,
			"score":    res.Score,
			"metadata": res.Metadata,
		})
	}

	t.logger.Info("Retrieval tool executed successfully", zap.Int("results_count", len(documents)))
	return map[string]any{
		"documents": documents,
		"count":     len(documents),
	}, nil
}

// truncate shortens s for log fields.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
