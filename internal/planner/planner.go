// File: internal/planner/planner.go
package planner

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reagentworks/reagent/api/schemas"
	"github.com/reagentworks/reagent/internal/config"
	"github.com/reagentworks/reagent/internal/llmutil"
	"github.com/reagentworks/reagent/internal/tools"
)

// QueryType classifies a user query for planning purposes.
type QueryType string

const (
	TypeSimple      QueryType = "simple"      // Direct question, no planning.
	TypeRecursive   QueryType = "recursive"   // Requires multiple sequential steps.
	TypeMultiPart   QueryType = "multi_part"  // Several independent sub-questions.
	TypeComparison  QueryType = "comparison"  // Compares multiple things.
	TypeAggregation QueryType = "aggregation" // Combines information from several sources.
	TypeReasoning   QueryType = "reasoning"   // Requires logical reasoning.
	TypeCalculation QueryType = "calculation" // Requires arithmetic.
	TypeUnknown     QueryType = "unknown"
)

// classRule pairs a query type with its indicator keywords. Order is the
// match priority: the first rule with any keyword present wins.
type classRule struct {
	qtype    QueryType
	keywords []string
}

var classRules = []classRule{
	{TypeCalculation, []string{
		"calculate", "sum", "add", "multiply", "divide", "subtract",
		"total", "average", "count", "how many", "how much",
	}},
	{TypeComparison, []string{
		"compare", "difference", "better", "worse", "vs", "versus",
		"between", "among", "contrast",
	}},
	{TypeMultiPart, []string{
		"and also", "also", "additionally", "besides", "furthermore",
		"what about", "how about",
	}},
	{TypeRecursive, []string{
		"find all", "list all", "every", "each", "then", "after that",
		"next", "subsequently",
	}},
	{TypeReasoning, []string{
		"why", "explain", "reason", "because", "cause", "effect",
		"relationship", "how does", "how do",
	}},
}

// SubQuery is one unit of a decomposed query. Dependencies reference other
// sub-query ids that must be answered first.
type SubQuery struct {
	ID           int    `json:"id"`
	Text         string `json:"text"`
	Dependencies []int  `json:"dependencies"`
	ToolHint     string `json:"tool_hint,omitempty"`
	Priority     int    `json:"priority"`
}

// Plan is an execution strategy for a complex query. ExecutionOrder lists
// sub-query ids in a dependency-respecting order.
type Plan struct {
	OriginalQuery  string     `json:"original_query"`
	QueryType      QueryType  `json:"query_type"`
	SubQueries     []SubQuery `json:"sub_queries"`
	ExecutionOrder []int      `json:"execution_order"`
	Description    string     `json:"description"`
	EstimatedSteps int        `json:"estimated_steps"`
}

// planPayload is the JSON shape the decomposition model is asked to emit.
type planPayload struct {
	Description string `json:"description"`
	SubQueries  []struct {
		ID           int    `json:"id"`
		Text         string `json:"text"`
		Dependencies []int  `json:"dependencies"`
		ToolHint     string `json:"tool_hint"`
		Priority     int    `json:"priority"`
	} `json:"sub_queries"`
}

// QueryPlanner classifies queries by keyword and decomposes complex ones
// with the fast model.
type QueryPlanner struct {
	llm      schemas.LLMClient
	registry *tools.Registry
	cfg      config.PlannerConfig
	logger   *zap.Logger
}

// NewQueryPlanner wires the planner. registry may be nil; tool hints are then
// produced without tool context.
func NewQueryPlanner(llm schemas.LLMClient, registry *tools.Registry, cfg config.PlannerConfig, logger *zap.Logger) *QueryPlanner {
	p := &QueryPlanner{
		llm:      llm,
		registry: registry,
		cfg:      cfg,
		logger:   logger.Named("planner"),
	}
	toolCount := 0
	if registry != nil {
		toolCount = len(registry.Names())
	}
	p.logger.Info("Query planner initialized", zap.Int("tools_count", toolCount))
	return p
}

// Classify buckets a query by indicator keywords, first match wins. Queries
// matching no rule are simple.
func (p *QueryPlanner) Classify(query string) QueryType {
	lower := strings.ToLower(query)
	for _, rule := range classRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.qtype
			}
		}
	}
	return TypeSimple
}

// Plan builds an execution plan for a query. Simple queries short-circuit to
// a single-step plan with no model call. Decomposition failures of any kind
// degrade to a single-step plan; Plan never fails.
func (p *QueryPlanner) Plan(ctx context.Context, query string) *Plan {
	start := time.Now()
	qtype := p.Classify(query)

	p.logger.Info("Planning query",
		zap.String("query", truncate(query, 100)),
		zap.String("query_type", string(qtype)),
	)

	if qtype == TypeSimple {
		p.logger.Info("Simple query - single step plan")
		return singleStepPlan(query, qtype, "Direct query - no planning needed")
	}

	plan := p.decompose(ctx, query, qtype)

	p.logger.Info("Query plan created",
		zap.String("query_type", string(qtype)),
		zap.Int("sub_queries", len(plan.SubQueries)),
		zap.Int("estimated_steps", plan.EstimatedSteps),
		zap.Duration("planning_time", time.Since(start)),
	)
	return plan
}

// decompose asks the fast model to break the query into 2-5 sub-queries and
// orders them topologically. Model errors, unparsable output, and empty
// decompositions all fall back to the single-step plan.
func (p *QueryPlanner) decompose(ctx context.Context, query string, qtype QueryType) *Plan {
	response, err := p.llm.Generate(ctx, schemas.GenerationRequest{
		Prompt: p.buildDecompositionPrompt(query, qtype),
		Tier:   schemas.TierFast,
		Options: schemas.GenerationOptions{
			Temperature:     p.cfg.Temperature,
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		p.logger.Error("Failed to decompose query", zap.Error(err))
		return fallbackPlan(query, qtype)
	}

	payload, err := llmutil.ParseJSONResponse[planPayload](response)
	if err != nil {
		p.logger.Error("Failed to parse decomposition", zap.Error(err))
		return fallbackPlan(query, qtype)
	}
	if len(payload.SubQueries) == 0 {
		p.logger.Error("Decomposition produced no sub-queries")
		return fallbackPlan(query, qtype)
	}

	subs := make([]SubQuery, 0, len(payload.SubQueries))
	for _, sq := range payload.SubQueries {
		if p.cfg.MaxSubQueries > 0 && len(subs) >= p.cfg.MaxSubQueries {
			p.logger.Warn("Decomposition truncated",
				zap.Int("max_sub_queries", p.cfg.MaxSubQueries),
				zap.Int("produced", len(payload.SubQueries)),
			)
			break
		}
		deps := sq.Dependencies
		if deps == nil {
			deps = []int{}
		}
		subs = append(subs, SubQuery{
			ID:           sq.ID,
			Text:         sq.Text,
			Dependencies: deps,
			ToolHint:     sq.ToolHint,
			Priority:     sq.Priority,
		})
	}

	return &Plan{
		OriginalQuery:  query,
		QueryType:      qtype,
		SubQueries:     subs,
		ExecutionOrder: executionOrder(subs),
		Description:    payload.Description,
		EstimatedSteps: len(subs),
	}
}

// executionOrder topologically sorts sub-queries with Kahn's algorithm. A
// node's in-degree counts all its declared dependencies, including dangling
// ones, so unresolvable graphs surface as incomplete orders. Cycles and
// dangling dependencies fall back to declaration order.
func executionOrder(subs []SubQuery) []int {
	inDegree := make(map[int]int, len(subs))
	for _, sq := range subs {
		inDegree[sq.ID] = len(sq.Dependencies)
	}

	var queue []int
	for _, sq := range subs {
		if inDegree[sq.ID] == 0 {
			queue = append(queue, sq.ID)
		}
	}

	order := make([]int, 0, len(subs))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, sq := range subs {
			for _, dep := range sq.Dependencies {
				if dep != current {
					continue
				}
				inDegree[sq.ID]--
				if inDegree[sq.ID] == 0 {
					queue = append(queue, sq.ID)
				}
			}
		}
	}

	if len(order) != len(subs) {
		order = order[:0]
		for _, sq := range subs {
			order = append(order, sq.ID)
		}
	}
	return order
}

func singleStepPlan(query string, qtype QueryType, description string) *Plan {
	return &Plan{
		OriginalQuery: query,
		QueryType:     qtype,
		SubQueries: []SubQuery{
			{ID: 0, Text: query, Dependencies: []int{}},
		},
		ExecutionOrder: []int{0},
		Description:    description,
		EstimatedSteps: 1,
	}
}

func fallbackPlan(query string, qtype QueryType) *Plan {
	return singleStepPlan(query, qtype, "Planning failed, treating as simple query")
}

func (p *QueryPlanner) buildDecompositionPrompt(query string, qtype QueryType) string {
	var toolsDesc strings.Builder
	if p.registry != nil {
		for _, tool := range p.registry.List() {
			toolsDesc.WriteString("- " + tool.Name() + ": " + tool.Description() + "\n")
		}
	}

	var b strings.Builder
	b.WriteString("You are a query planner. Your job is to break down complex queries into simpler sub-queries.\n\n")
	b.WriteString("Original Query: " + query + "\n\n")
	b.WriteString("Query Type: " + string(qtype) + "\n\n")
	b.WriteString("Available Tools:\n" + toolsDesc.String() + "\n")
	b.WriteString(`Instructions:
1. Identify what information is needed to answer the query
2. Break the query into 2-5 sub-queries
3. Each sub-query should be answerable in one step
4. Indicate dependencies (e.g., sub-query 2 might depend on results from sub-query 1)
5. Suggest which tool would be best for each sub-query

Output format (JSON):
{
    "description": "Brief description of the approach",
    "sub_queries": [
        {
            "id": 1,
            "text": "Sub-query text",
            "dependencies": [],
            "tool_hint": "tool_name",
            "priority": 1
        }
    ]
}

Respond with only the JSON, no other text.`)
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
