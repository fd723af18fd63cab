// internal/tools/registry.go
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry indexes tools by name and by category and owns the dispatch
// boundary: lookup failures, missing parameters, panics, and errors from a
// tool's own logic all come back as failed Results, never as raised errors.
// Reads vastly outnumber writes, so an RWMutex guards the indexes.
type Registry struct {
	mu         sync.RWMutex
	byName     map[string]Tool
	byCategory map[Category][]Tool
	// order preserves registration order so prompt text is deterministic.
	order  []string
	logger *zap.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		byName:     make(map[string]Tool),
		byCategory: make(map[Category][]Tool),
		logger:     logger.Named("tools.registry"),
	}
}

// Add registers a tool under its name and category. Re-adding a name
// replaces the previous tool in place.
func (r *Registry) Add(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if old, exists := r.byName[name]; exists {
		r.detachLocked(old)
	} else {
		r.order = append(r.order, name)
	}
	r.byName[name] = tool
	r.byCategory[tool.Category()] = append(r.byCategory[tool.Category()], tool)

	r.logger.Info("Tool added to registry",
		zap.String("tool", name),
		zap.String("category", string(tool.Category())),
	)
}

// Remove detaches a tool from both indexes. Returns false if the name
// was not registered.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	tool, exists := r.byName[name]
	if !exists {
		return false
	}
	delete(r.byName, name)
	r.detachLocked(tool)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.logger.Info("Tool removed from registry", zap.String("tool", name))
	return true
}

// detachLocked drops a tool from its category slice. Caller holds the lock.
func (r *Registry) detachLocked(tool Tool) {
	cat := tool.Category()
	list := r.byCategory[cat]
	for i, t := range list {
		if t.Name() == tool.Name() {
			r.byCategory[cat] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.byName[name]
	return tool, ok
}

// Has reports whether a tool is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// List returns all tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// ByCategory returns the tools registered under a category.
func (r *Registry) ByCategory(cat Category) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, len(r.byCategory[cat]))
	copy(out, r.byCategory[cat])
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Describe renders the tool list for LLM prompts: one block per tool with
// its description and a parameter summary.
func (r *Registry) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	blocks := make([]string, 0, len(r.order))
	for _, name := range r.order {
		tool := r.byName[name]
		var b strings.Builder
		fmt.Fprintf(&b, "- %s: %s", tool.Name(), tool.Description())

		params := tool.Params()
		if len(params) > 0 {
			paramNames := make([]string, 0, len(params))
			for n := range params {
				paramNames = append(paramNames, n)
			}
			sort.Strings(paramNames)
			parts := make([]string, 0, len(paramNames))
			for _, n := range paramNames {
				parts = append(parts, fmt.Sprintf("%s (%s)", n, params[n].Type))
			}
			b.WriteString("\n  Parameters: " + strings.Join(parts, ", "))
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// Execute dispatches a tool by name. This is the single conversion point
// between the tool contract and the reasoning loop: whatever goes wrong, the
// caller gets a failed Result with the elapsed time measured up to the
// failure point.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) Result {
	tool, ok := r.Get(name)
	if !ok {
		r.logger.Error("Tool not found",
			zap.String("tool", name),
			zap.Strings("available", r.Names()),
		)
		return Result{Success: false, Error: fmt.Sprintf("Tool '%s' not found", name)}
	}

	if missing := missingParams(tool, args); len(missing) > 0 {
		r.logger.Warn("Tool call missing required parameter",
			zap.String("tool", name),
			zap.String("param", missing[0]),
		)
		return Result{Success: false, Error: fmt.Sprintf("Missing required parameter: %s", missing[0])}
	}

	argNames := make([]string, 0, len(args))
	for k := range args {
		argNames = append(argNames, k)
	}
	sort.Strings(argNames)
	r.logger.Info("Using tool", zap.String("tool", name), zap.Strings("parameters", argNames))

	start := time.Now()
	data, err := safeExecute(ctx, tool, args)
	elapsed := time.Since(start)

	if err != nil {
		r.logger.Error("Tool execution failed",
			zap.String("tool", name),
			zap.Error(err),
			zap.Duration("execution_time", elapsed),
		)
		return Result{Success: false, Error: err.Error(), ExecutionTime: elapsed}
	}

	r.logger.Debug("Tool executed",
		zap.String("tool", name),
		zap.Duration("execution_time", elapsed),
	)
	return Result{
		Success:       true,
		Data:          data,
		Metadata:      map[string]any{"execution_time": elapsed.Seconds()},
		ExecutionTime: elapsed,
	}
}

// missingParams returns required parameter names absent from args.
func missingParams(tool Tool, args map[string]any) []string {
	var missing []string
	params := tool.Params()
	names := make([]string, 0, len(params))
	for n := range params {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if params[n].Required {
			if _, present := args[n]; !present {
				missing = append(missing, n)
			}
		}
	}
	return missing
}

// safeExecute runs the tool and converts panics into errors so one
// misbehaving tool cannot take down the loop.
func safeExecute(ctx context.Context, tool Tool, args map[string]any) (data any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool '%s' panicked: %v", tool.Name(), rec)
		}
	}()
	return tool.Execute(ctx, args)
}
