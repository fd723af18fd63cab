// File: internal/agent/models.go
package agent

import (
	"fmt"
	"sort"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/reagentworks/reagent/internal/tools"
)

// State labels where a run currently is in its Think/Act/Observe cycle.
type State string

const (
	StateThinking  State = "THINKING"  // Waiting on the reasoning model.
	StateActing    State = "ACTING"    // Dispatching a tool.
	StateObserving State = "OBSERVING" // Folding a tool result back into the transcript.
	StateDone      State = "DONE"      // Terminal; the run produced an answer.
)

// Action records one tool dispatch inside a run. Step is 1-based and
// contiguous within a single run.
type Action struct {
	ToolName  string         `json:"tool"`
	ToolInput map[string]any `json:"input"`
	Result    *tools.Result  `json:"output,omitempty"`
	Thought   string         `json:"thought,omitempty"`
	Step      int            `json:"step"`
}

// Response is the finished result of one run. It is created fresh per
// invocation, mutated only by the owning engine while the run is live, and
// must be treated as immutable once Run returns.
type Response struct {
	Answer            string         `json:"answer"`
	Actions           []Action       `json:"actions"`
	IntermediateSteps []string       `json:"intermediate_steps"`
	Confidence        float64        `json:"confidence"`
	Metadata          map[string]any `json:"metadata"`
	ExecutionTime     float64        `json:"execution_time"`
}

// Transcript is the full prompt state of one run. It only ever grows: every
// iteration resends the whole thing to the model. Truncation or summarization
// would be layered here without touching the engine's state machine.
type Transcript struct {
	b strings.Builder
}

// NewTranscript seeds a transcript with the initial prompt.
func NewTranscript(initial string) *Transcript {
	t := &Transcript{}
	t.b.WriteString(initial)
	return t
}

// AppendStep folds one completed Think/Act/Observe cycle into the transcript
// and re-opens the next "Thought:" for the model to continue.
func (t *Transcript) AppendStep(thought, actionEcho, observation string) {
	fmt.Fprintf(&t.b, " %s\n\n", thought)
	if actionEcho != "" {
		fmt.Fprintf(&t.b, "Action: %s\n\n", actionEcho)
	}
	fmt.Fprintf(&t.b, "Observation: %s\n\nThought:", observation)
}

// String returns the current prompt text.
func (t *Transcript) String() string {
	return t.b.String()
}

// Len reports the transcript size in bytes, mostly for logging.
func (t *Transcript) Len() int {
	return t.b.Len()
}

// echoAction renders a parsed action back into the transcript the way the
// model wrote it, with arguments in deterministic order.
func echoAction(a *ParsedAction) string {
	keys := make([]string, 0, len(a.Args))
	for k := range a.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := json.Marshal(a.Args[k])
		if err != nil {
			v = []byte(fmt.Sprintf("%q", fmt.Sprintf("%v", a.Args[k])))
		}
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return fmt.Sprintf("%s(%s)", a.Tool, strings.Join(parts, ", "))
}
