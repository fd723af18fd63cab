// File: internal/reflection/heuristic.go
package reflection

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/reagentworks/reagent/api/schemas"
	"github.com/reagentworks/reagent/internal/config"
)

// HeuristicReflector scores answers with cheap lexical heuristics instead of
// a judge model: token overlap for relevance, length ratio for completeness,
// document presence for evidence, sentence count for clarity. It produces
// the same Result shape as the LLM reflector so the two are interchangeable.
//
// The optional llm client is used only for rewrites during refinement; with
// a nil client ReflectAndRefine reports the first verdict as final.
type HeuristicReflector struct {
	llm    schemas.LLMClient
	cfg    config.ReflectionConfig
	logger *zap.Logger
}

var _ Reflector = (*HeuristicReflector)(nil)

// NewHeuristicReflector creates the rule-based reflector. llm may be nil.
func NewHeuristicReflector(llm schemas.LLMClient, cfg config.ReflectionConfig, logger *zap.Logger) *HeuristicReflector {
	return &HeuristicReflector{
		llm:    llm,
		cfg:    cfg,
		logger: logger.Named("reflector.heuristic"),
	}
}

// Reflect scores the answer without any model call. The criteria argument is
// accepted for interface compatibility; the heuristics always fill the full
// six-criterion map.
func (r *HeuristicReflector) Reflect(_ context.Context, query, answer string, docs []string, _ []Criterion) Result {
	r.logger.Debug("Using heuristic reflector")

	scores := map[string]float64{
		string(CriterionRelevance):    0,
		string(CriterionAccuracy):     0,
		string(CriterionCompleteness): 0,
		string(CriterionClarity):      0,
		string(CriterionEvidence):     0,
		string(CriterionLogic):        0,
	}
	issues := []string{}
	suggestions := []string{}

	// Relevance: fraction of query tokens echoed in the answer, with a base
	// bonus so short factual answers are not punished outright.
	overlap := tokenOverlap(query, answer)
	scores[string(CriterionRelevance)] = min(overlap+0.3, 1.0)
	if overlap < 0.3 {
		issues = append(issues, "Answer doesn't directly address the query")
		suggestions = append(suggestions, "Ensure answer directly responds to the question")
	}

	// Completeness: answers much shorter than the query are suspect.
	if len(answer) < len(query)*2 {
		issues = append(issues, "Answer seems too short")
		suggestions = append(suggestions, "Provide more detailed explanation")
		scores[string(CriterionCompleteness)] = 0.4
	} else {
		scores[string(CriterionCompleteness)] = min(float64(len(answer))/(float64(len(query))*10), 1.0)
	}

	// Evidence: did any retrieval happen at all.
	if len(docs) > 0 {
		scores[string(CriterionEvidence)] = 0.8
	} else {
		scores[string(CriterionEvidence)] = 0.5
		issues = append(issues, "No documents were retrieved to support answer")
	}

	// Clarity: single-sentence answers read as unstructured.
	if len(strings.Split(answer, ".")) < 2 {
		issues = append(issues, "Answer is not well-structured")
		scores[string(CriterionClarity)] = 0.5
	} else {
		scores[string(CriterionClarity)] = 0.8
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	overall := sum / float64(len(scores))

	var feedback string
	switch {
	case overall >= 0.8:
		feedback = "Good quality answer"
	case overall >= 0.6:
		feedback = "Acceptable answer with minor issues"
	default:
		feedback = "Answer needs significant improvement"
	}

	return Result{
		OverallScore: overall,
		Criteria:     scores,
		Feedback:     feedback,
		Issues:       issues,
		Suggestions:  suggestions,
		ShouldRefine: overall < r.cfg.Threshold,
	}
}

// ReflectAndRefine shares the standard loop; without an llm client it cannot
// rewrite and returns the current answer with its first verdict.
func (r *HeuristicReflector) ReflectAndRefine(ctx context.Context, query, answer string, docs []string, maxRefinements int) (string, Result) {
	var rewrite rewriteFunc
	if r.llm != nil {
		rewrite = r.rewrite
	}
	return reflectAndRefine(ctx, r, rewrite, query, answer, docs, maxRefinements, r.logger)
}

func (r *HeuristicReflector) rewrite(ctx context.Context, query, original, current string, reflection Result) string {
	delegate := &LLMReflector{llm: r.llm, cfg: r.cfg, logger: r.logger}
	return delegate.rewrite(ctx, query, original, current, reflection)
}

// tokenOverlap returns |query tokens ∩ answer tokens| / |query tokens|.
func tokenOverlap(query, answer string) float64 {
	queryWords := fieldsSet(strings.ToLower(query))
	answerWords := fieldsSet(strings.ToLower(answer))

	if len(queryWords) == 0 {
		return 0
	}
	var shared int
	for w := range queryWords {
		if _, ok := answerWords[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(queryWords))
}

func fieldsSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range strings.Fields(s) {
		set[f] = struct{}{}
	}
	return set
}
