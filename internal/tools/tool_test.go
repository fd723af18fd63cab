// internal/tools/tool_test.go
package tools

import (
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultString(t *testing.T) {
	t.Run("success renders status and result", func(t *testing.T) {
		r := Result{Success: true, Data: map[string]any{"result": 4.0}}
		s := r.String()

		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(s), &decoded))
		assert.Equal(t, "success", decoded["status"])
		assert.NotContains(t, decoded, "error")

		inner, ok := decoded["result"].(map[string]any)
		require.True(t, ok)
		assert.InDelta(t, 4.0, inner["result"], 1e-9)
	})

	t.Run("failure renders status and error", func(t *testing.T) {
		r := Result{Success: false, Error: "Tool 'nope' not found"}
		s := r.String()

		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(s), &decoded))
		assert.Equal(t, "error", decoded["status"])
		assert.Equal(t, "Tool 'nope' not found", decoded["error"])
		assert.NotContains(t, decoded, "result")
	})

	t.Run("success with nil data keeps the result key", func(t *testing.T) {
		r := Result{Success: true}
		assert.Contains(t, r.String(), `"result": null`)
	})

	t.Run("unserializable data still yields an observation", func(t *testing.T) {
		r := Result{Success: true, Data: map[string]any{"ch": make(chan int)}}
		s := r.String()
		assert.Contains(t, s, `"status": "error"`)
		assert.Contains(t, s, "unserializable")
	})
}

func TestArgCoercion(t *testing.T) {
	args := map[string]any{
		"s":       "hello",
		"f":       3.5,
		"i":       float64(7), // JSON numbers decode as float64
		"numStr":  "42",
		"fltStr":  "0.25",
		"badNum":  "not-a-number",
		"boolish": true,
	}

	assert.Equal(t, "hello", argString(args, "s", "zz"))
	assert.Equal(t, "true", argString(args, "boolish", "zz"))
	assert.Equal(t, "zz", argString(args, "absent", "zz"))

	assert.Equal(t, 7, argInt(args, "i", 0))
	assert.Equal(t, 42, argInt(args, "numStr", 0))
	assert.Equal(t, 9, argInt(args, "badNum", 9))
	assert.Equal(t, 9, argInt(args, "absent", 9))

	assert.InDelta(t, 3.5, argFloat(args, "f", 0), 1e-9)
	assert.InDelta(t, 0.25, argFloat(args, "fltStr", 0), 1e-9)
	assert.InDelta(t, 1.5, argFloat(args, "absent", 1.5), 1e-9)
}
