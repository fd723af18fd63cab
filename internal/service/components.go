// File: internal/service/components.go
package service

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/reagentworks/reagent/api/schemas"
	"github.com/reagentworks/reagent/internal/agent"
	"github.com/reagentworks/reagent/internal/observability"
	"github.com/reagentworks/reagent/internal/planner"
	"github.com/reagentworks/reagent/internal/reflection"
	"github.com/reagentworks/reagent/internal/tools"
	"github.com/reagentworks/reagent/internal/vector"
)

// Components holds the initialized collaborators of one service instance and
// centralizes their lifecycle.
type Components struct {
	LLM       schemas.LLMClient
	Embedder  schemas.Embedder
	Index     *vector.Index
	Memory    schemas.ConversationStore
	Registry  *tools.Registry
	Reflector reflection.Reflector
	Engine    *agent.Engine
	Planner   *planner.QueryPlanner

	// DBPool is set only when the Postgres memory backend is configured.
	DBPool *pgxpool.Pool
}

// Shutdown releases resources in reverse dependency order. It is safe to
// call on a partially initialized struct; nil fields are skipped.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()
	logger.Debug("Beginning components shutdown sequence.")

	if c.LLM != nil {
		if err := c.LLM.Close(); err != nil {
			logger.Warn("Error closing LLM client.", zap.Error(err))
		} else {
			logger.Debug("LLM client closed.")
		}
	}

	if c.DBPool != nil {
		c.DBPool.Close()
		logger.Debug("Database connection pool closed.")
	}

	logger.Info("All components shut down.")
}
