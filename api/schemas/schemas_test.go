package schemas

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The wire names of these structs are consumed by external callers; keep them
// stable.
func TestGenerationRequestJSONTags(t *testing.T) {
	req := GenerationRequest{
		Prompt: "hello",
		Tier:   TierFast,
		Options: GenerationOptions{
			Temperature:   0.3,
			StopSequences: []string{"\nObservation:"},
		},
	}

	raw, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "hello", decoded["prompt"])
	assert.Equal(t, "fast", decoded["tier"])

	opts, ok := decoded["options"].(map[string]any)
	require.True(t, ok, "options must serialize as an object")
	assert.InDelta(t, 0.3, opts["temperature"], 1e-9)
	assert.Contains(t, opts, "stop_sequences")
}

func TestSearchResultOmitsEmptyMetadata(t *testing.T) {
	raw, err := json.Marshal(SearchResult{Text: "doc", Score: 0.9})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "metadata")
}

func TestMessageRoundTrip(t *testing.T) {
	msg := Message{
		Role:      "user",
		Content:   "what is the capital of France?",
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var back Message
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, msg, back)
}
