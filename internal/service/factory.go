// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/reagentworks/reagent/api/schemas"
	"github.com/reagentworks/reagent/internal/agent"
	"github.com/reagentworks/reagent/internal/config"
	"github.com/reagentworks/reagent/internal/llmclient"
	"github.com/reagentworks/reagent/internal/memory"
	"github.com/reagentworks/reagent/internal/planner"
	"github.com/reagentworks/reagent/internal/reflection"
	"github.com/reagentworks/reagent/internal/tools"
	"github.com/reagentworks/reagent/internal/vector"
)

// NewComponents performs the full dependency injection for one service
// instance: model clients, embedder, vector index, memory backend, tool
// registry, reflector, engine, and planner.
func NewComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	components := &Components{}

	// Clean up whatever was created if a later step fails.
	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.",
				zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. LLM router (fast + powerful clients behind one interface).
	llm, err := llmclient.NewClient(cfg.LLM, logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to create LLM client: %w", err)
		return nil, initializationErr
	}
	components.LLM = llm
	logger.Debug("LLM client initialized.")

	// 2. Embedder.
	embedder, err := llmclient.NewEmbedder(ctx, cfg.Embedding, cfg.LLM.APIKey)
	if err != nil {
		initializationErr = fmt.Errorf("failed to create embedder: %w", err)
		return nil, initializationErr
	}
	components.Embedder = embedder
	logger.Debug("Embedder initialized.")

	// 3. Vector index.
	components.Index = vector.NewIndex(logger)
	logger.Debug("Vector index initialized.")

	// 4. Conversation memory.
	store, pool, err := newMemoryBackend(ctx, cfg.Memory, logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.Memory = store
	components.DBPool = pool
	logger.Debug("Conversation memory initialized.",
		zap.String("backend", cfg.Memory.Backend))

	// 5. Tool registry with the built-in tool set.
	components.Registry = newBuiltinRegistry(components, cfg.Tools, logger)
	logger.Debug("Tool registry initialized.",
		zap.Strings("tools", components.Registry.Names()))

	// 6. Reflector.
	components.Reflector = newReflector(llm, cfg.Reflection, logger)
	logger.Debug("Reflector initialized.",
		zap.String("evaluator", cfg.Reflection.Evaluator))

	// 7. Reasoning engine.
	eng, err := agent.NewEngine(cfg.Agent, cfg.Reflection, llm,
		components.Registry, components.Reflector, components.Memory, logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to create reasoning engine: %w", err)
		return nil, initializationErr
	}
	components.Engine = eng

	// 8. Query planner.
	components.Planner = planner.NewQueryPlanner(llm, components.Registry, cfg.Planner, logger)

	logger.Info("All components initialized successfully.")
	return components, nil
}

// newMemoryBackend selects the conversation store. The pool is returned
// separately so the caller owns its lifecycle.
func newMemoryBackend(ctx context.Context, cfg config.MemoryConfig, logger *zap.Logger) (schemas.ConversationStore, *pgxpool.Pool, error) {
	switch cfg.Backend {
	case "postgres":
		if cfg.DSN == "" {
			return nil, nil, fmt.Errorf("memory backend is postgres but no DSN is configured (hint: set REAGENT_MEMORY_DSN)")
		}
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create database connection pool: %w", err)
		}
		store, err := memory.NewPostgresStore(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to initialize postgres memory: %w", err)
		}
		return store, pool, nil
	case "", "memory":
		return memory.NewInMemoryStore(cfg.MaxMessages, logger), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown memory backend %q", cfg.Backend)
	}
}

// newBuiltinRegistry registers the standard tool set: document retrieval,
// calculator, summarization, web search, and page reading.
func newBuiltinRegistry(c *Components, cfg config.ToolsConfig, logger *zap.Logger) *tools.Registry {
	registry := tools.NewRegistry(logger)
	fetchClient := tools.NewFetchClient(cfg.HTTPTimeout)

	registry.Add(tools.NewRetrievalTool(c.Embedder, c.Index, cfg, logger))
	registry.Add(tools.NewCalculatorTool(logger))
	registry.Add(tools.NewSummaryTool(c.LLM, logger))
	registry.Add(tools.NewWebSearchTool(fetchClient, cfg.WebSearchEndpoint, logger))
	registry.Add(tools.NewReadPageTool(fetchClient, cfg.UserAgent, cfg.MaxFetchBytes, logger))

	return registry
}

// newReflector selects the scoring backend. Unknown evaluators fall back to
// the LLM judge rather than failing startup.
func newReflector(llm schemas.LLMClient, cfg config.ReflectionConfig, logger *zap.Logger) reflection.Reflector {
	switch cfg.Evaluator {
	case "heuristic":
		return reflection.NewHeuristicReflector(llm, cfg, logger)
	default:
		return reflection.NewLLMReflector(llm, cfg, logger)
	}
}
