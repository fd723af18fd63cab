// internal/tools/tool.go
package tools

import (
	"context"
	"fmt"
	"time"

	json "github.com/json-iterator/go"
)

// Category groups tools by what they are for. The reasoning prompt surfaces
// categories so the model can pick an appropriate capability.
type Category string

const (
	CategoryRetrieval   Category = "retrieval"   // Document retrieval and search
	CategorySearch      Category = "search"      // External web search
	CategoryCalculation Category = "calculation" // Mathematical operations
	CategoryAnalysis    Category = "analysis"    // Data analysis and processing
	CategoryGeneration  Category = "generation"  // Content generation
	CategoryKnowledge   Category = "knowledge"   // Knowledge base queries
	CategoryUtility     Category = "utility"     // Helper functions
)

// Param describes a single tool parameter for validation and for the prompt.
// Type uses the loose names the model sees ("string", "integer", "float").
type Param struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
}

// Tool is a capability the reasoning loop can invoke. Implementations must be
// stateless or internally safe for concurrent reentrant use: one registry is
// shared by every run.
//
// Execute receives the raw argument map parsed from the model's action and
// returns the payload to surface as an observation. Errors and panics are
// converted into failed Results at the dispatch boundary, never propagated.
type Tool interface {
	Name() string
	Description() string
	Category() Category
	Params() map[string]Param
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Result is the outcome of one tool dispatch.
type Result struct {
	Success       bool           `json:"success"`
	Data          any            `json:"data"`
	Error         string         `json:"error,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	ExecutionTime time.Duration  `json:"execution_time"`
}

// String renders the result as the observation text fed back to the model:
// a small status envelope rather than the raw payload, so failures read
// uniformly.
func (r Result) String() string {
	var payload any
	if r.Success {
		payload = struct {
			Status string `json:"status"`
			Result any    `json:"result"`
		}{Status: "success", Result: r.Data}
	} else {
		payload = struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		}{Status: "error", Error: r.Error}
	}

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		// Unserializable payloads still need to produce an observation.
		return fmt.Sprintf(`{"status": "error", "error": "unserializable tool result: %v"}`, err)
	}
	return string(out)
}

// -- Argument Coercion Helpers --
//
// Action arguments arrive either JSON-decoded (numbers are float64) or as
// strings from the key="value" fallback scan. Tools use these helpers so both
// shapes behave the same.

func argString(args map[string]any, key, fallback string) string {
	v, ok := args[key]
	if !ok {
		return fallback
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func argInt(args map[string]any, key string, fallback int) int {
	v, ok := args[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		var parsed int
		if _, err := fmt.Sscanf(n, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}

func argFloat(args map[string]any, key string, fallback float64) float64 {
	v, ok := args[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		var parsed float64
		if _, err := fmt.Sscanf(n, "%g", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}
