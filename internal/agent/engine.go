// File: internal/agent/engine.go
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/reagentworks/reagent/api/schemas"
	"github.com/reagentworks/reagent/internal/config"
	"github.com/reagentworks/reagent/internal/reflection"
	"github.com/reagentworks/reagent/internal/tools"
)

// defaultConfidence is reported when reflection is disabled.
const defaultConfidence = 0.8

// forcedConfidence is the conservative score used when a run is terminated
// by the iteration budget or by context cancellation instead of by the model
// delivering an answer.
const forcedConfidence = 0.5

// Engine drives the ReAct loop: one suspending model call, a tolerant parse,
// then either termination or one suspending tool dispatch, repeated up to the
// iteration budget. A single Engine is safe for concurrent runs: all per-run
// state (transcript, response, step counter) is local to Run, and the shared
// registry and memory store synchronize internally.
type Engine struct {
	cfg       config.AgentConfig
	llm       schemas.LLMClient
	registry  *tools.Registry
	reflector reflection.Reflector
	memory    schemas.ConversationStore
	cfgReflct config.ReflectionConfig
	logger    *zap.Logger
}

// NewEngine wires the reasoning loop. reflector and memory may be nil;
// reflection is then skipped (fixed default confidence) and no conversation
// log is written.
func NewEngine(
	cfg config.AgentConfig,
	reflectCfg config.ReflectionConfig,
	llm schemas.LLMClient,
	registry *tools.Registry,
	reflector reflection.Reflector,
	memory schemas.ConversationStore,
	logger *zap.Logger,
) (*Engine, error) {
	if llm == nil {
		return nil, fmt.Errorf("agent engine requires an LLM client")
	}
	if registry == nil {
		return nil, fmt.Errorf("agent engine requires a tool registry")
	}

	e := &Engine{
		cfg:       cfg,
		cfgReflct: reflectCfg,
		llm:       llm,
		registry:  registry,
		reflector: reflector,
		memory:    memory,
		logger:    logger.Named("agent"),
	}

	e.logger.Info("ReAct engine initialized",
		zap.Int("tools_count", e.registry.Count()),
		zap.Int("max_iterations", cfg.MaxIterations),
		zap.Float64("temperature", cfg.Temperature),
		zap.Bool("enable_reflection", cfg.EnableReflection && reflector != nil),
	)
	return e, nil
}

// RunOptions carries per-run settings.
type RunOptions struct {
	// Collection is injected into retrieve_documents calls that omit it.
	Collection string
	// ConversationID keys the post-run memory append. Empty skips memory.
	ConversationID string
}

// Run executes the full Thought/Action/Observation loop for one query and
// returns a complete Response. Model, tool, and parse failures never surface
// as errors: they degrade inside the loop per the fail-open policy. The
// returned error is reserved for a model call failing outright before any
// answer exists.
func (e *Engine) Run(ctx context.Context, query string, opts RunOptions) (*Response, error) {
	start := time.Now()

	e.logger.Info("ReAct agent started",
		zap.String("query", truncate(query, 100)),
		zap.String("collection", opts.Collection),
	)

	resp := &Response{
		Actions:           []Action{},
		IntermediateSteps: []string{},
		Metadata:          map[string]any{},
	}
	transcript := NewTranscript(e.buildPrompt(query))

	state := StateThinking
	iteration := 0
	lastRaw := ""
	answered := false

	for iteration < e.cfg.MaxIterations {
		// Cancellation is treated like budget exhaustion at the step
		// boundary: terminate with what we have, do not error out.
		if ctx.Err() != nil {
			e.logger.Warn("Run cancelled at step boundary", zap.Int("iteration", iteration))
			break
		}

		iteration++
		e.logger.Info("ReAct iteration",
			zap.Int("iteration", iteration),
			zap.Int("max_iterations", e.cfg.MaxIterations),
		)

		// -- THINK --
		e.transition(&state, StateThinking)
		raw, err := e.llm.Generate(ctx, schemas.GenerationRequest{
			Prompt: transcript.String(),
			Tier:   schemas.TierPowerful,
			Options: schemas.GenerationOptions{
				Temperature:   e.cfg.Temperature,
				StopSequences: e.cfg.StopSequences,
			},
		})
		if err != nil {
			if ctx.Err() != nil {
				// The generate call died with the context; same forced
				// termination as above.
				e.logger.Warn("Run cancelled during generation", zap.Int("iteration", iteration))
				break
			}
			e.finishForced(resp, lastRaw, iteration, opts, query, start)
			return resp, fmt.Errorf("reasoning model call failed at iteration %d: %w", iteration, err)
		}
		lastRaw = raw

		parsed := ParseResponse(raw)
		e.logger.Info("ReAct step",
			zap.Int("iteration", iteration),
			zap.String("thought", truncate(parsed.Thought, 100)),
		)
		resp.IntermediateSteps = append(resp.IntermediateSteps,
			fmt.Sprintf("Thought %d: %s", iteration, parsed.Thought))

		// -- TERMINATE TEST --
		if parsed.Action == nil || parsed.Action.Tool == AnswerTool {
			e.transition(&state, StateDone)
			// The raw-text fallback deliberately includes any leaked
			// Thought:/Action: scaffolding; callers depend on it.
			answer := raw
			if parsed.Action != nil {
				if a, ok := parsed.Action.Args["answer"].(string); ok {
					answer = a
				}
			}
			e.settleAnswer(ctx, resp, query, answer)
			answered = true
			break
		}

		// -- ACT --
		e.transition(&state, StateActing)
		toolName := parsed.Action.Tool
		toolArgs := parsed.Action.Args
		if opts.Collection != "" && toolName == "retrieve_documents" {
			if _, present := toolArgs["collection"]; !present {
				toolArgs["collection"] = opts.Collection
			}
		}

		result := e.registry.Execute(ctx, toolName, toolArgs)
		resp.Actions = append(resp.Actions, Action{
			ToolName:  toolName,
			ToolInput: toolArgs,
			Result:    &result,
			Thought:   parsed.Thought,
			Step:      iteration,
		})

		// -- OBSERVE --
		e.transition(&state, StateObserving)
		observation := result.String()
		e.logger.Info("ReAct observation",
			zap.Int("iteration", iteration),
			zap.String("tool", toolName),
			zap.Bool("success", result.Success),
		)
		if !result.Success {
			e.logger.Warn("Tool execution failed",
				zap.String("tool", toolName),
				zap.String("error", result.Error),
			)
		}

		transcript.AppendStep(parsed.Thought, echoAction(parsed.Action), observation)
		resp.IntermediateSteps = append(resp.IntermediateSteps,
			fmt.Sprintf("Observation %d: %s", iteration, truncate(observation, 200)))
	}

	if !answered {
		// Budget exhausted (or cancelled) without reaching DONE.
		resp.Answer = lastRaw
		resp.Confidence = forcedConfidence
	}

	e.finalize(resp, iteration, opts, query, start)

	e.logger.Info("ReAct agent completed",
		zap.Int("iterations", iteration),
		zap.Int("actions_count", len(resp.Actions)),
		zap.Float64("execution_time", resp.ExecutionTime),
		zap.Int("answer_length", len(resp.Answer)),
	)
	return resp, nil
}

// settleAnswer applies the reflection/refinement policy to a freshly parsed
// answer and sets the final answer and confidence on the response.
func (e *Engine) settleAnswer(ctx context.Context, resp *Response, query, answer string) {
	if !e.cfg.EnableReflection || e.reflector == nil {
		resp.Answer = answer
		resp.Confidence = defaultConfidence
		return
	}

	e.logger.Info("Applying reflection to final answer")
	docs := collectDocuments(resp.Actions)

	reflected := e.reflector.Reflect(ctx, query, answer, docs, nil)
	resp.Metadata["reflection"] = reflected

	if !reflected.ShouldRefine {
		resp.Answer = answer
		resp.Confidence = reflected.OverallScore
		return
	}

	e.logger.Info("Answer needs refinement based on reflection")
	refined, final := e.reflector.ReflectAndRefine(ctx, query, answer, docs, e.cfgReflct.MaxRefinements)
	resp.Answer = refined
	resp.Confidence = final.OverallScore
	resp.Metadata["refinement"] = map[string]any{
		"original_answer":  answer,
		"refined_answer":   refined,
		"final_reflection": final,
	}
}

// finishForced fills the response for the model-error path before Run
// returns the error alongside it.
func (e *Engine) finishForced(resp *Response, lastRaw string, iteration int, opts RunOptions, query string, start time.Time) {
	resp.Answer = lastRaw
	resp.Confidence = forcedConfidence
	e.finalize(resp, iteration, opts, query, start)
}

// finalize stamps metadata and timing and appends the run to memory. Memory
// failures are logged, never propagated: the answer is already decided.
func (e *Engine) finalize(resp *Response, iterations int, opts RunOptions, query string, start time.Time) {
	toolsUsed := make([]string, 0, len(resp.Actions))
	for _, a := range resp.Actions {
		toolsUsed = append(toolsUsed, a.ToolName)
	}
	resp.Metadata["iterations"] = iterations
	resp.Metadata["tools_used"] = toolsUsed
	resp.Metadata["collection"] = opts.Collection
	resp.Metadata["query_length"] = len(query)
	resp.ExecutionTime = time.Since(start).Seconds()

	if e.memory == nil || opts.ConversationID == "" {
		return
	}

	// The run is over; use a fresh context so a cancelled run still gets
	// its conversation log written.
	memCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	if err := e.memory.Append(memCtx, opts.ConversationID, schemas.Message{
		Role:      "user",
		Content:   query,
		Timestamp: now,
	}); err != nil {
		e.logger.Warn("Failed to append user message to memory", zap.Error(err))
		return
	}
	if err := e.memory.Append(memCtx, opts.ConversationID, schemas.Message{
		Role:    "assistant",
		Content: resp.Answer,
		Metadata: map[string]any{
			"actions_count":  len(resp.Actions),
			"execution_time": resp.ExecutionTime,
		},
		Timestamp: now,
	}); err != nil {
		e.logger.Warn("Failed to append assistant message to memory", zap.Error(err))
	}
}

// transition moves the per-run state machine, logging the edge.
func (e *Engine) transition(state *State, next State) {
	if *state == next {
		return
	}
	e.logger.Debug("State transition",
		zap.String("from", string(*state)),
		zap.String("to", string(next)),
	)
	*state = next
}

// buildPrompt renders the initial ReAct instructions with the current tool
// descriptions and the query.
func (e *Engine) buildPrompt(query string) string {
	return fmt.Sprintf(`You are an intelligent assistant that can use tools to answer questions. Follow this pattern:

Thought: [Reason about what to do]
Action: [tool_name](parameters)
Observation: [Result of the tool]

Available tools:
%s

Instructions:
1. Think step by step about what information you need
2. Choose the most appropriate tool for each step
3. Use tools with correct parameters
4. If you have enough information to answer, use: Action: Answer(answer="your answer")
5. Be concise and specific in your reasoning
6. If a tool fails, try a different approach

Question: %s

Let's think step by step.

Thought:`, e.registry.Describe(), query)
}

// collectDocuments pulls the text of every document produced by successful
// prior tool calls, as supporting evidence for reflection.
func collectDocuments(actions []Action) []string {
	var docs []string
	for _, action := range actions {
		if action.Result == nil || !action.Result.Success {
			continue
		}
		data, ok := action.Result.Data.(map[string]any)
		if !ok {
			continue
		}
		switch list := data["documents"].(type) {
		case []map[string]any:
			for _, doc := range list {
				if text, ok := doc["text"].(string); ok {
					docs = append(docs, text)
				}
			}
		case []any:
			for _, item := range list {
				if doc, ok := item.(map[string]any); ok {
					if text, ok := doc["text"].(string); ok {
						docs = append(docs, text)
					}
				}
			}
		}
	}
	return docs
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
