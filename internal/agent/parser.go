// File: internal/agent/parser.go
package agent

import (
	"regexp"
	"strings"

	json "github.com/json-iterator/go"
)

// AnswerTool is the reserved action name the model uses to deliver its final
// answer instead of invoking a real tool.
const AnswerTool = "Answer"

var (
	// thoughtRegex captures the text between the Thought and Action markers.
	thoughtRegex = regexp.MustCompile(`(?is)Thought:?(.*?)Action:?`)
	// actionRegex captures the tool name and the raw parenthesized argument
	// text. The argument capture is lazy, stopping at the first closing paren.
	actionRegex = regexp.MustCompile(`(?is)Action:\s*(\w+)(?:\((.*?)\))?`)
	// kvPairRegex is the fallback argument grammar: bare key="value" pairs.
	kvPairRegex = regexp.MustCompile(`(\w+)\s*=\s*["']([^"']+)["']`)
)

// ParsedAction is the tool invocation extracted from model output.
type ParsedAction struct {
	Tool string
	Args map[string]any
}

// Parsed is the tolerant decomposition of one raw model reply. Action is nil
// when no action marker was found; Thought is never empty for non-empty
// input (it degrades to the whole trimmed text).
type Parsed struct {
	Thought string
	Action  *ParsedAction
}

// ParseResponse splits a raw model reply into a thought and an optional
// action. It is a pure function and never fails: anything that does not match
// the Thought/Action grammar comes back as a bare thought, and unparsable
// argument text degrades to an empty argument map.
func ParseResponse(raw string) Parsed {
	var p Parsed

	if m := thoughtRegex.FindStringSubmatch(raw); m != nil {
		p.Thought = strings.TrimSpace(m[1])
	} else {
		p.Thought = strings.TrimSpace(raw)
	}

	m := actionRegex.FindStringSubmatch(raw)
	if m == nil {
		return p
	}

	p.Action = &ParsedAction{
		Tool: m[1],
		Args: parseArgs(m[2]),
	}
	return p
}

// parseArgs decodes the parenthesized argument text. Structured JSON wins;
// otherwise a key="value" scan; otherwise an empty map. Never fails.
func parseArgs(argText string) map[string]any {
	args := make(map[string]any)
	argText = strings.TrimSpace(argText)
	if argText == "" {
		return args
	}

	if err := json.Unmarshal([]byte(argText), &args); err == nil {
		return args
	}
	// json.Unmarshal can leave partial state behind on failure.
	args = make(map[string]any)

	for _, m := range kvPairRegex.FindAllStringSubmatch(argText, -1) {
		args[m[1]] = m[2]
	}
	return args
}
