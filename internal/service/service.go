// File: internal/service/service.go

// Package service exposes the reasoning engine as a facade with stable
// result envelopes, plus the component factory that wires it together.
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reagentworks/reagent/internal/agent"
	"github.com/reagentworks/reagent/internal/config"
	"github.com/reagentworks/reagent/internal/planner"
)

// AgentService is the high-level facade over the engine and planner. All
// methods return self-describing envelopes; failures never surface as bare
// errors past this boundary.
type AgentService struct {
	cfg        *config.Config
	components *Components
	logger     *zap.Logger
}

// NewAgentService wraps initialized components.
func NewAgentService(cfg *config.Config, components *Components, logger *zap.Logger) *AgentService {
	return &AgentService{
		cfg:        cfg,
		components: components,
		logger:     logger.Named("service"),
	}
}

// QueryOptions carries per-query settings through the facade.
type QueryOptions struct {
	// Collection is the document collection searched by retrieval calls.
	Collection string
	// ConversationID keys the conversation log. Empty generates a fresh id.
	ConversationID string
}

// QueryResult is the envelope for one agent run.
type QueryResult struct {
	Success        bool            `json:"success"`
	Query          string          `json:"query"`
	Response       *agent.Response `json:"response,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// PlanResult is the envelope for a plan-without-execute request.
type PlanResult struct {
	Success bool          `json:"success"`
	Query   string        `json:"query"`
	Plan    *planner.Plan `json:"plan,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// SubQueryResult records the outcome of one sub-query during plan execution.
type SubQueryResult struct {
	ID         int     `json:"id"`
	Query      string  `json:"query"`
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

// ExecuteResult is the envelope for a full plan execution. Answer is the
// answer of the final sub-query in execution order; Results lists every
// sub-query outcome in that order.
type ExecuteResult struct {
	Success bool             `json:"success"`
	Query   string           `json:"query"`
	Plan    *planner.Plan    `json:"plan,omitempty"`
	Results []SubQueryResult `json:"results,omitempty"`
	Answer  string           `json:"answer,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Query runs one query through the reasoning engine and wraps the outcome.
func (s *AgentService) Query(ctx context.Context, query string, opts QueryOptions) *QueryResult {
	conversationID := opts.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	s.logger.Info("Executing agentic query",
		zap.String("query", truncate(query, 100)),
		zap.String("collection", opts.Collection),
		zap.String("conversation_id", conversationID),
	)

	resp, err := s.components.Engine.Run(ctx, query, agent.RunOptions{
		Collection:     opts.Collection,
		ConversationID: conversationID,
	})
	if err != nil {
		s.logger.Error("Agentic query failed",
			zap.String("query", truncate(query, 100)),
			zap.Error(err),
		)
		return &QueryResult{Success: false, Query: query, Error: err.Error()}
	}

	s.logger.Info("Agentic query completed successfully",
		zap.Int("answer_length", len(resp.Answer)),
		zap.Int("actions_count", len(resp.Actions)),
		zap.Float64("execution_time", resp.ExecutionTime),
	)
	return &QueryResult{
		Success:        true,
		Query:          query,
		Response:       resp,
		ConversationID: conversationID,
	}
}

// Plan builds an execution plan without running it. The planner itself never
// fails, so this envelope is always successful.
func (s *AgentService) Plan(ctx context.Context, query string) *PlanResult {
	plan := s.components.Planner.Plan(ctx, query)
	return &PlanResult{Success: true, Query: query, Plan: plan}
}

// ExecutePlan runs every sub-query of a plan as an independent agent run.
// Sub-queries are grouped into dependency levels; runs within one level
// proceed concurrently under the configured limit, and each sub-query's
// prompt carries the answers of its dependencies.
func (s *AgentService) ExecutePlan(ctx context.Context, plan *planner.Plan, opts QueryOptions) *ExecuteResult {
	if plan == nil || len(plan.SubQueries) == 0 {
		return &ExecuteResult{Success: false, Error: "plan has no sub-queries"}
	}

	byID := make(map[int]planner.SubQuery, len(plan.SubQueries))
	for _, sq := range plan.SubQueries {
		byID[sq.ID] = sq
	}

	levels := dependencyLevels(plan)
	s.logger.Info("Executing plan",
		zap.String("query", truncate(plan.OriginalQuery, 100)),
		zap.Int("sub_queries", len(plan.SubQueries)),
		zap.Int("levels", len(levels)),
	)

	var mu sync.Mutex
	answers := make(map[int]SubQueryResult, len(plan.SubQueries))

	limit := s.cfg.Planner.Concurrency
	if limit <= 0 {
		limit = 1
	}

	for _, level := range levels {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)

		for _, id := range level {
			sq, ok := byID[id]
			if !ok {
				continue
			}
			g.Go(func() error {
				mu.Lock()
				prompt := subQueryPrompt(sq, answers)
				mu.Unlock()

				resp, err := s.components.Engine.Run(gctx, prompt, agent.RunOptions{
					Collection: opts.Collection,
				})
				if err != nil {
					return fmt.Errorf("sub-query %d failed: %w", sq.ID, err)
				}

				mu.Lock()
				answers[sq.ID] = SubQueryResult{
					ID:         sq.ID,
					Query:      sq.Text,
					Answer:     resp.Answer,
					Confidence: resp.Confidence,
				}
				mu.Unlock()
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			s.logger.Error("Plan execution failed", zap.Error(err))
			return &ExecuteResult{
				Success: false,
				Query:   plan.OriginalQuery,
				Plan:    plan,
				Results: orderedResults(plan, answers),
				Error:   err.Error(),
			}
		}
	}

	results := orderedResults(plan, answers)
	finalAnswer := ""
	if len(results) > 0 {
		finalAnswer = results[len(results)-1].Answer
	}

	s.logger.Info("Plan executed",
		zap.Int("results", len(results)),
		zap.Int("answer_length", len(finalAnswer)),
	)
	return &ExecuteResult{
		Success: true,
		Query:   plan.OriginalQuery,
		Plan:    plan,
		Results: results,
		Answer:  finalAnswer,
	}
}

// dependencyLevels splits the execution order into waves: a sub-query lands
// one level below the deepest of its dependencies. Dependencies outside the
// plan (possible after a cycle fallback) are ignored for level placement.
func dependencyLevels(plan *planner.Plan) [][]int {
	byID := make(map[int]planner.SubQuery, len(plan.SubQueries))
	for _, sq := range plan.SubQueries {
		byID[sq.ID] = sq
	}

	levelOf := make(map[int]int, len(plan.SubQueries))
	for _, id := range plan.ExecutionOrder {
		sq, ok := byID[id]
		if !ok {
			continue
		}
		level := 0
		for _, dep := range sq.Dependencies {
			if depLevel, ok := levelOf[dep]; ok && depLevel+1 > level {
				level = depLevel + 1
			}
		}
		levelOf[id] = level
	}

	maxLevel := 0
	for _, l := range levelOf {
		if l > maxLevel {
			maxLevel = l
		}
	}

	levels := make([][]int, maxLevel+1)
	for _, id := range plan.ExecutionOrder {
		l, ok := levelOf[id]
		if !ok {
			continue
		}
		levels[l] = append(levels[l], id)
	}
	for _, level := range levels {
		sort.Ints(level)
	}
	return levels
}

// subQueryPrompt renders one sub-query with the answers it depends on.
func subQueryPrompt(sq planner.SubQuery, answers map[int]SubQueryResult) string {
	if len(sq.Dependencies) == 0 {
		return sq.Text
	}

	var b strings.Builder
	b.WriteString("Context from earlier steps:\n")
	for _, dep := range sq.Dependencies {
		prior, ok := answers[dep]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", prior.Query, prior.Answer)
	}
	b.WriteString("Question: ")
	b.WriteString(sq.Text)
	return b.String()
}

// orderedResults lists sub-query outcomes following the plan's execution
// order, skipping any that never ran.
func orderedResults(plan *planner.Plan, answers map[int]SubQueryResult) []SubQueryResult {
	results := make([]SubQueryResult, 0, len(answers))
	for _, id := range plan.ExecutionOrder {
		if r, ok := answers[id]; ok {
			results = append(results, r)
		}
	}
	return results
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
