// File: internal/reflection/reflector.go
package reflection

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/reagentworks/reagent/api/schemas"
	"github.com/reagentworks/reagent/internal/config"
	"github.com/reagentworks/reagent/internal/llmutil"
)

// Criterion names one quality dimension an answer is judged on.
type Criterion string

const (
	CriterionRelevance    Criterion = "relevance"
	CriterionAccuracy     Criterion = "accuracy"
	CriterionCompleteness Criterion = "completeness"
	CriterionClarity      Criterion = "clarity"
	CriterionEvidence     Criterion = "evidence"
	CriterionLogic        Criterion = "logic"
)

// DefaultCriteria returns the full evaluation set in its canonical order.
func DefaultCriteria() []Criterion {
	return []Criterion{
		CriterionRelevance,
		CriterionAccuracy,
		CriterionCompleteness,
		CriterionClarity,
		CriterionEvidence,
		CriterionLogic,
	}
}

// Description returns the prompt text explaining a criterion to the judge.
func (c Criterion) Description() string {
	switch c {
	case CriterionRelevance:
		return "How well the answer addresses the original query"
	case CriterionAccuracy:
		return "Factual correctness based on retrieved information"
	case CriterionCompleteness:
		return "How comprehensive the answer is"
	case CriterionClarity:
		return "How clear and understandable the answer is"
	case CriterionEvidence:
		return "Whether the answer is properly supported by evidence"
	case CriterionLogic:
		return "Logical consistency of the reasoning"
	default:
		return string(c)
	}
}

// Result is one evaluation of a candidate answer. ShouldRefine is derived
// from OverallScore and the acceptance threshold, never taken from the model.
type Result struct {
	OverallScore float64            `json:"overall_score"`
	Criteria     map[string]float64 `json:"criterion_scores"`
	Feedback     string             `json:"feedback"`
	Issues       []string           `json:"issues"`
	Suggestions  []string           `json:"suggestions"`
	ShouldRefine bool               `json:"should_refine"`
}

// Reflector scores candidate answers and, when they fall short, rewrites
// them. Implementations are fail-open: a judge that cannot produce a verdict
// returns a neutral Result rather than an error, because reflection must
// never block answer delivery. Selection is by capability: the LLM-backed
// and heuristic implementations are interchangeable.
type Reflector interface {
	// Reflect evaluates answer against criteria (nil means the default six).
	// docs are supporting texts gathered from earlier tool calls.
	Reflect(ctx context.Context, query, answer string, docs []string, criteria []Criterion) Result
	// ReflectAndRefine repeatedly evaluates and rewrites the answer until it
	// is acceptable or maxRefinements rewrites have been spent. The returned
	// Result is always freshly computed on the returned answer.
	ReflectAndRefine(ctx context.Context, query, answer string, docs []string, maxRefinements int) (string, Result)
}

// evalPayload is the JSON shape the judge is asked to emit.
type evalPayload struct {
	OverallScore    float64            `json:"overall_score"`
	CriterionScores map[string]float64 `json:"criterion_scores"`
	Feedback        string             `json:"feedback"`
	Issues          []string           `json:"issues"`
	Suggestions     []string           `json:"suggestions"`
}

// LLMReflector judges answers with the reasoning model at a low temperature.
type LLMReflector struct {
	llm    schemas.LLMClient
	cfg    config.ReflectionConfig
	logger *zap.Logger
}

var _ Reflector = (*LLMReflector)(nil)

// NewLLMReflector creates the model-backed reflector.
func NewLLMReflector(llm schemas.LLMClient, cfg config.ReflectionConfig, logger *zap.Logger) *LLMReflector {
	return &LLMReflector{
		llm:    llm,
		cfg:    cfg,
		logger: logger.Named("reflector"),
	}
}

// neutralResult is the fail-open verdict used whenever the judge cannot be
// reached or its output cannot be parsed.
func neutralResult() Result {
	return Result{
		OverallScore: 0.5,
		Criteria:     map[string]float64{},
		Feedback:     "Could not evaluate answer automatically",
		Issues:       []string{},
		Suggestions:  []string{},
		ShouldRefine: false,
	}
}

// Reflect builds the evaluation prompt, asks the model, and tolerantly
// extracts the first JSON object from the reply. Any failure along the way
// yields the neutral default.
func (r *LLMReflector) Reflect(ctx context.Context, query, answer string, docs []string, criteria []Criterion) Result {
	if len(criteria) == 0 {
		criteria = DefaultCriteria()
	}

	r.logger.Info("Starting reflection",
		zap.String("query", truncate(query, 100)),
		zap.Int("answer_length", len(answer)),
		zap.Bool("has_retrieved_docs", len(docs) > 0),
	)

	prompt := buildReflectionPrompt(query, answer, docs, criteria)

	raw, err := r.llm.Generate(ctx, schemas.GenerationRequest{
		Prompt: prompt,
		Tier:   schemas.TierFast,
		Options: schemas.GenerationOptions{
			Temperature:     r.cfg.Temperature,
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		r.logger.Error("Failed to get evaluation from LLM", zap.Error(err))
		return neutralResult()
	}

	payload, err := llmutil.ParseJSONResponse[evalPayload](raw)
	if err != nil {
		r.logger.Error("Failed to parse evaluation", zap.Error(err))
		return neutralResult()
	}

	result := Result{
		OverallScore: payload.OverallScore,
		Criteria:     payload.CriterionScores,
		Feedback:     payload.Feedback,
		Issues:       payload.Issues,
		Suggestions:  payload.Suggestions,
	}
	if result.Criteria == nil {
		result.Criteria = map[string]float64{}
	}
	if result.Issues == nil {
		result.Issues = []string{}
	}
	if result.Suggestions == nil {
		result.Suggestions = []string{}
	}

	// A judge that omits the overall score still gives per-criterion scores.
	if result.OverallScore == 0 && len(result.Criteria) > 0 {
		var sum float64
		for _, s := range result.Criteria {
			sum += s
		}
		result.OverallScore = sum / float64(len(result.Criteria))
	}
	result.OverallScore = clamp01(result.OverallScore)
	result.ShouldRefine = result.OverallScore < r.cfg.Threshold

	r.logger.Info("Reflection completed",
		zap.Float64("overall_score", result.OverallScore),
		zap.Bool("should_refine", result.ShouldRefine),
	)
	return result
}

// ReflectAndRefine loops reflect-then-rewrite. An acceptable answer returns
// immediately with its reflection; after the rewrite cap a final fresh
// reflection is reported honestly, acceptable or not.
func (r *LLMReflector) ReflectAndRefine(ctx context.Context, query, answer string, docs []string, maxRefinements int) (string, Result) {
	return reflectAndRefine(ctx, r, r.rewrite, query, answer, docs, maxRefinements, r.logger)
}

// rewrite asks the model for an improved answer. On error the current answer
// is kept; the surrounding loop will re-evaluate it.
func (r *LLMReflector) rewrite(ctx context.Context, query, original, current string, reflection Result) string {
	prompt := fmt.Sprintf(`Original Query:
%s

Original Answer:
%s

Current Answer:
%s

Evaluation:
Overall Score: %.2f
Issues: %s
Suggestions: %s

Please improve the current answer based on the evaluation. Address the issues and incorporate the suggestions.
Provide the refined answer directly, without explanation.`,
		query, original, current,
		reflection.OverallScore,
		strings.Join(reflection.Issues, ", "),
		strings.Join(reflection.Suggestions, ", "),
	)

	refined, err := r.llm.Generate(ctx, schemas.GenerationRequest{
		Prompt:  prompt,
		Tier:    schemas.TierPowerful,
		Options: schemas.GenerationOptions{Temperature: 0.7},
	})
	if err != nil {
		r.logger.Error("Failed to refine answer", zap.Error(err))
		return current
	}
	return strings.TrimSpace(refined)
}

// rewriteFunc produces the next candidate answer from reflection feedback.
type rewriteFunc func(ctx context.Context, query, original, current string, reflection Result) string

// reflectAndRefine is the shared refinement loop. The rewrite function may be
// nil for reflectors with no rewriting capability; such reflectors report the
// first verdict as final.
func reflectAndRefine(ctx context.Context, r Reflector, rewrite rewriteFunc, query, answer string, docs []string, maxRefinements int, logger *zap.Logger) (string, Result) {
	original := answer
	current := answer

	for count := 0; count < maxRefinements; count++ {
		reflection := r.Reflect(ctx, query, current, docs, nil)
		if !reflection.ShouldRefine {
			logger.Info("Answer accepted",
				zap.Int("refinement_count", count),
				zap.Float64("score", reflection.OverallScore),
			)
			return current, reflection
		}

		if rewrite == nil {
			return current, reflection
		}

		logger.Info("Refining answer",
			zap.Int("iteration", count+1),
			zap.Strings("issues", reflection.Issues),
		)
		current = rewrite(ctx, query, original, current, reflection)
	}

	// Out of rewrite budget. Score the last candidate honestly.
	final := r.Reflect(ctx, query, current, docs, nil)
	logger.Warn("Max refinements reached",
		zap.Float64("final_score", final.OverallScore),
		zap.Int("refinements", maxRefinements),
	)
	return current, final
}

// buildReflectionPrompt renders the judge prompt: query, answer, up to three
// supporting documents truncated to 300 chars, and the criteria list.
func buildReflectionPrompt(query, answer string, docs []string, criteria []Criterion) string {
	var criteriaLines []string
	for _, c := range criteria {
		criteriaLines = append(criteriaLines, fmt.Sprintf("- %s: %s", c, c.Description()))
	}

	docsSection := "No documents retrieved."
	if len(docs) > 0 {
		shown := docs
		if len(shown) > 3 {
			shown = shown[:3]
		}
		var blocks []string
		for i, d := range shown {
			blocks = append(blocks, fmt.Sprintf("Document %d: %s", i+1, truncate(d, 300)))
		}
		docsSection = "Retrieved Documents:\n" + strings.Join(blocks, "\n\n")
	}

	return fmt.Sprintf(`You are an answer quality evaluator. Evaluate the following answer based on the given criteria.

Original Query:
%s

Agent Answer:
%s

%s

Evaluation Criteria:
%s

Provide your evaluation in the following JSON format:
{
    "overall_score": <float between 0.0 and 1.0>,
    "criterion_scores": {
        "relevance": <float 0.0-1.0>,
        "accuracy": <float 0.0-1.0>,
        "completeness": <float 0.0-1.0>,
        "clarity": <float 0.0-1.0>,
        "evidence": <float 0.0-1.0>,
        "logic": <float 0.0-1.0>
    },
    "feedback": "<overall qualitative feedback>",
    "issues": ["<issue 1>", "<issue 2>", ...],
    "suggestions": ["<suggestion 1>", "<suggestion 2>", ...]
}

Be objective and specific in your evaluation. Respond with only the JSON, no additional text.`,
		query, answer, docsSection, strings.Join(criteriaLines, "\n"))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
