// internal/agent/parser_test.go
package agent

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponseWellFormed(t *testing.T) {
	raw := "Thought: I need the current population of France.\nAction: retrieve_documents(query=\"France population\")"
	p := ParseResponse(raw)

	assert.Equal(t, "I need the current population of France.", p.Thought)
	require.NotNil(t, p.Action)
	assert.Equal(t, "retrieve_documents", p.Action.Tool)
	assert.Equal(t, map[string]any{"query": "France population"}, p.Action.Args)
}

func TestParseResponseAnswer(t *testing.T) {
	raw := "Thought: I have everything I need.\nAction: Answer(answer=\"Paris\")"
	p := ParseResponse(raw)

	require.NotNil(t, p.Action)
	assert.Equal(t, AnswerTool, p.Action.Tool)
	assert.Equal(t, "Paris", p.Action.Args["answer"])
}

func TestParseResponseJSONArgs(t *testing.T) {
	raw := `Thought: compute it.
Action: calculator({"expression": "2 + 2", "precision": 3})`
	p := ParseResponse(raw)

	require.NotNil(t, p.Action)
	assert.Equal(t, "calculator", p.Action.Tool)
	assert.Equal(t, "2 + 2", p.Action.Args["expression"])
	// JSON numbers decode as float64 through the any map.
	assert.Equal(t, 3.0, p.Action.Args["precision"])
}

func TestParseResponseNoAction(t *testing.T) {
	raw := "The capital of France is Paris."
	p := ParseResponse(raw)

	assert.Nil(t, p.Action)
	assert.Equal(t, raw, p.Thought)
}

func TestParseResponseThoughtOnly(t *testing.T) {
	// A Thought marker with no Action leaves the whole text as the thought.
	raw := "Thought: still working it out, no tool needed yet"
	p := ParseResponse(raw)

	assert.Nil(t, p.Action)
	assert.Equal(t, raw, p.Thought)
}

func TestParseResponseActionWithoutParens(t *testing.T) {
	raw := "Thought: just finish.\nAction: Answer"
	p := ParseResponse(raw)

	require.NotNil(t, p.Action)
	assert.Equal(t, AnswerTool, p.Action.Tool)
	assert.Empty(t, p.Action.Args)
}

func TestParseResponseSingleQuotedArgs(t *testing.T) {
	raw := "Thought: search.\nAction: web_search(query='golang generics')"
	p := ParseResponse(raw)

	require.NotNil(t, p.Action)
	assert.Equal(t, "golang generics", p.Action.Args["query"])
}

func TestParseResponseGarbageArgs(t *testing.T) {
	// Argument text matching neither grammar degrades to an empty map, not
	// a failure.
	raw := "Thought: hm.\nAction: calculator(;;; not args at all ;;;)"
	p := ParseResponse(raw)

	require.NotNil(t, p.Action)
	assert.Equal(t, "calculator", p.Action.Tool)
	assert.Empty(t, p.Action.Args)
}

func TestParseResponseCaseInsensitiveMarkers(t *testing.T) {
	raw := "thought: lowercase markers happen.\naction: calculator(expression=\"1+1\")"
	p := ParseResponse(raw)

	assert.Equal(t, "lowercase markers happen.", p.Thought)
	require.NotNil(t, p.Action)
	assert.Equal(t, "calculator", p.Action.Tool)
}

func TestParseResponseMultipleActionsTakesFirst(t *testing.T) {
	raw := "Thought: one at a time.\nAction: calculator(expression=\"1+1\")\nAction: web_search(query=\"two\")"
	p := ParseResponse(raw)

	require.NotNil(t, p.Action)
	assert.Equal(t, "calculator", p.Action.Tool)
}

func TestParseResponseEmpty(t *testing.T) {
	p := ParseResponse("")
	assert.Empty(t, p.Thought)
	assert.Nil(t, p.Action)
}

// FuzzParseResponse checks the never-fails contract: arbitrary input must
// parse without panicking, and whenever an action comes back it carries a
// non-empty tool name and a non-nil argument map.
func FuzzParseResponse(f *testing.F) {
	f.Add([]byte("Thought: x\nAction: tool(a=\"b\")"))
	f.Add([]byte("Action: Answer(answer=\"42\")"))
	f.Add([]byte("no markers here"))
	f.Add([]byte(""))

	f.Fuzz(func(t *testing.T, data []byte) {
		fz := fuzz.NewConsumer(data)
		raw, err := fz.GetString()
		if err != nil {
			return
		}
		p := ParseResponse(raw)
		if p.Action != nil {
			if p.Action.Tool == "" {
				t.Fatalf("action with empty tool name from %q", raw)
			}
			if p.Action.Args == nil {
				t.Fatalf("action with nil args from %q", raw)
			}
		}
	})
}

func TestEchoActionDeterministic(t *testing.T) {
	a := &ParsedAction{
		Tool: "retrieve_documents",
		Args: map[string]any{"query": "x", "collection": "docs", "top_k": 5.0},
	}
	want := `retrieve_documents(collection="docs", query="x", top_k=5)`
	for i := 0; i < 10; i++ {
		assert.Equal(t, want, echoAction(a))
	}
}

func TestTranscriptAppendStep(t *testing.T) {
	tr := NewTranscript("PROMPT\n\nThought:")
	tr.AppendStep("find it", `web_search(query="x")`, `{"status":"success","result":"ok"}`)

	want := "PROMPT\n\nThought: find it\n\nAction: web_search(query=\"x\")\n\nObservation: {\"status\":\"success\",\"result\":\"ok\"}\n\nThought:"
	assert.Equal(t, want, tr.String())
	assert.Equal(t, len(want), tr.Len())
}
