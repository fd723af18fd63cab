package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/reagentworks/reagent/api/schemas"
)

// -- Test Setup Helpers --

// setupGeminiClient rigs up a GeminiClient pointed at a mock HTTP server.
// It returns the client, the mock server, and a log observer.
func setupGeminiClient(t *testing.T, handler http.HandlerFunc) (*GeminiClient, *httptest.Server, *observer.ObservedLogs) {
	t.Helper()
	if handler == nil {
		// Default handler for tests that don't require HTTP interactions
		handler = func(w http.ResponseWriter, r *http.Request) {
			t.Log("Warning: Unexpected HTTP request in test.")
			w.WriteHeader(http.StatusNotFound)
		}
	}
	server := httptest.NewServer(handler)

	loggerCore, observedLogs := observer.New(zap.InfoLevel)
	logger := zap.New(loggerCore)

	cfg := getValidLLMConfig()
	cfg.Endpoint = server.URL

	client, err := NewGeminiClient(cfg, "test-model", logger)
	require.NoError(t, err, "NewGeminiClient initialization failed")

	// Ensure tests fail fast on unexpected hangs
	client.httpClient.Timeout = 5 * time.Second

	t.Cleanup(server.Close)
	return client, server, observedLogs
}

// createTestRequest provides a standard generation request structure.
func createTestRequest() schemas.GenerationRequest {
	return schemas.GenerationRequest{
		Prompt: "User query.",
		Options: schemas.GenerationOptions{
			Temperature: 0.7,
		},
	}
}

// successResponse builds a well-formed API reply with the given text.
func successResponse(text string, promptTokens, completionTokens int) GeminiResponsePayload {
	return GeminiResponsePayload{
		Candidates: []struct {
			Content      GeminiContent `json:"content"`
			FinishReason string        `json:"finishReason"`
		}{
			{
				Content:      GeminiContent{Parts: []GeminiPart{{Text: text}}},
				FinishReason: "STOP",
			},
		},
		UsageMetadata: struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
			TotalTokenCount      int `json:"totalTokenCount"`
		}{
			PromptTokenCount:     promptTokens,
			CandidatesTokenCount: completionTokens,
			TotalTokenCount:      promptTokens + completionTokens,
		},
	}
}

// fastBackoff replaces the production backoff policy so retry tests finish quickly.
func fastBackoff() backoff.BackOff {
	return backoff.NewConstantBackOff(10 * time.Millisecond)
}

// -- Test Cases: Initialization (NewGeminiClient) --

func TestNewGeminiClient_Success(t *testing.T) {
	logger := setupTestLogger(t)
	cfg := getValidLLMConfig()
	// Ensure endpoint is empty to test the default assignment logic
	cfg.Endpoint = ""

	client, err := NewGeminiClient(cfg, "gemini-flash", logger)

	require.NoError(t, err)
	require.NotNil(t, client)

	// White box verification of internal state
	assert.Equal(t, cfg.APIKey, client.apiKey)
	assert.Equal(t, cfg.APITimeout, client.httpClient.Timeout)
	expectedEndpoint := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", "gemini-flash")
	assert.Equal(t, expectedEndpoint, client.endpoint)
	assert.NotNil(t, client.backoffFactory, "Backoff factory should be initialized")
	assert.Nil(t, client.limiter, "No limiter expected when requests_per_minute is zero")
}

func TestNewGeminiClient_Failure_MissingAPIKey(t *testing.T) {
	logger := setupTestLogger(t)
	cfg := getValidLLMConfig()
	cfg.APIKey = ""

	client, err := NewGeminiClient(cfg, "gemini-flash", logger)

	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "Gemini API Key is required")
}

func TestNewGeminiClient_Failure_MissingModel(t *testing.T) {
	logger := setupTestLogger(t)
	cfg := getValidLLMConfig()

	client, err := NewGeminiClient(cfg, "", logger)

	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "model name is required")
}

func TestNewGeminiClient_RateLimiterFromConfig(t *testing.T) {
	logger := setupTestLogger(t)
	cfg := getValidLLMConfig()
	cfg.RequestsPerMinute = 120

	client, err := NewGeminiClient(cfg, "gemini-flash", logger)

	require.NoError(t, err)
	require.NotNil(t, client.limiter)
	assert.Equal(t, rate.Limit(2.0), client.limiter.Limit(), "120 rpm should map to 2 requests per second")
}

// -- Test Cases: Request Payload Generation (buildRequestPayload) --

func TestBuildRequestPayload_Standard(t *testing.T) {
	client, _, _ := setupGeminiClient(t, nil)

	req := createTestRequest()
	req.Options.Temperature = 0.5
	req.Options.MaxTokens = 2048
	req.Options.StopSequences = []string{"\nObservation:", "\n\nObservation:"}

	payload := client.buildRequestPayload(req)

	// Verification: Content
	require.Len(t, payload.Contents, 1)
	assert.Equal(t, "user", payload.Contents[0].Role)
	assert.Equal(t, req.Prompt, payload.Contents[0].Parts[0].Text)

	// Verification: Generation Config Mapping
	assert.Equal(t, 0.5, payload.GenerationConfig.Temperature)
	assert.Equal(t, 2048, payload.GenerationConfig.MaxOutputTokens)
	assert.Equal(t, req.Options.StopSequences, payload.GenerationConfig.StopSequences)
	assert.Empty(t, payload.GenerationConfig.ResponseMimeType)
}

func TestBuildRequestPayload_MaxTokensFallback(t *testing.T) {
	client, _, _ := setupGeminiClient(t, nil)
	client.cfg.MaxTokens = 4096

	req := createTestRequest()
	// No per-request override
	req.Options.MaxTokens = 0

	payload := client.buildRequestPayload(req)

	assert.Equal(t, 4096, payload.GenerationConfig.MaxOutputTokens)
}

func TestBuildRequestPayload_ForceJSON(t *testing.T) {
	client, _, _ := setupGeminiClient(t, nil)

	req := createTestRequest()
	req.Options.ForceJSONFormat = true

	payload := client.buildRequestPayload(req)

	assert.Equal(t, "application/json", payload.GenerationConfig.ResponseMimeType)
}

// -- Test Cases: Response Generation (Generate) - Success Scenarios --

func TestGenerate_Success(t *testing.T) {
	expectedResponseText := "This is the generated content."
	expectedPromptTokens := 100
	expectedCompletionTokens := 50

	handler := func(w http.ResponseWriter, r *http.Request) {
		// 1. Verify Request Integrity
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "test-api-key", r.Header.Get("x-goog-api-key"))

		// 2. Verify Request Body Structure
		body, _ := io.ReadAll(r.Body)
		var payload GeminiRequestPayload
		err := json.Unmarshal(body, &payload)
		require.NoError(t, err, "Server received invalid JSON payload")
		assert.Equal(t, createTestRequest().Prompt, payload.Contents[0].Parts[0].Text)

		// 3. Send Mock Success Response
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(successResponse(expectedResponseText, expectedPromptTokens, expectedCompletionTokens))
	}

	client, _, observedLogs := setupGeminiClient(t, handler)

	response, err := client.Generate(context.Background(), createTestRequest())

	assert.NoError(t, err)
	assert.Equal(t, expectedResponseText, response)

	// Verify Logging Details (Token usage and duration)
	require.Equal(t, 1, observedLogs.Len(), "Expected one log entry for successful generation")
	logEntry := observedLogs.All()[0]
	assert.Equal(t, "LLM generation complete (Gemini)", logEntry.Message)
	// Zap logs integers as int64 in the context map.
	assert.Equal(t, int64(expectedPromptTokens), logEntry.ContextMap()["prompt_tokens"])
	assert.Equal(t, int64(expectedCompletionTokens), logEntry.ContextMap()["completion_tokens"])
	assert.NotNil(t, logEntry.ContextMap()["duration"])
}

// -- Test Cases: Response Generation (Generate) - Error Handling & Retries --

func TestGenerate_RetryOnTransientErrors(t *testing.T) {
	var attemptCounter int32
	expectedAttempts := 3

	handler := func(w http.ResponseWriter, r *http.Request) {
		attempt := atomic.AddInt32(&attemptCounter, 1)

		if int(attempt) < expectedAttempts {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Service temporarily unavailable."))
		} else {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(successResponse("Success after retry", 0, 0))
		}
	}

	client, _, observedLogs := setupGeminiClient(t, handler)
	client.backoffFactory = fastBackoff

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	response, err := client.Generate(ctx, createTestRequest())

	assert.NoError(t, err)
	assert.Equal(t, "Success after retry", response)
	assert.Equal(t, int32(expectedAttempts), atomic.LoadInt32(&attemptCounter), "The request should have been retried the expected number of times")

	errorLogs := observedLogs.FilterLevelExact(zap.ErrorLevel)
	assert.Equal(t, expectedAttempts-1, errorLogs.Len(), "Expected ERROR logs for the failed attempts")
}

func TestGenerate_RetryExhaustion(t *testing.T) {
	var attemptCounter int32

	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attemptCounter, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	client, _, _ := setupGeminiClient(t, handler)
	client.backoffFactory = fastBackoff
	client.cfg.MaxRetries = 2

	_, err := client.Generate(context.Background(), createTestRequest())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	// Initial attempt plus two retries.
	assert.Equal(t, int32(3), atomic.LoadInt32(&attemptCounter))
}

func TestGenerate_RetryOnNetworkError(t *testing.T) {
	client, server, observedLogs := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler reached despite server being closed.")
	})
	client.backoffFactory = fastBackoff

	// Simulate a network error (connection refused).
	server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := client.Generate(ctx, createTestRequest())

	assert.Error(t, err)

	// Network errors must be recognized as transient (not PermanentError).
	var permanentErr *backoff.PermanentError
	assert.False(t, errors.As(err, &permanentErr), "Network errors should be treated as transient and retried")

	warnLogs := observedLogs.FilterLevelExact(zap.WarnLevel)
	assert.Greater(t, warnLogs.Len(), 1, "Expected multiple WARN logs for network errors indicating retries")
	assert.Contains(t, warnLogs.All()[0].Message, "Network error during LLM request, retrying...")
}

func TestGenerate_NoRetryOnPermanentErrors(t *testing.T) {
	var attemptCounter int32
	errorBody := "API Key Invalid"

	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attemptCounter, 1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(errorBody))
	}

	client, _, observedLogs := setupGeminiClient(t, handler)

	response, err := client.Generate(context.Background(), createTestRequest())

	assert.Error(t, err)
	assert.Empty(t, response)
	assert.Contains(t, err.Error(), "gemini API error: status 403")

	// Crucially, verify only one attempt was made (backoff.Permanent was used internally)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attemptCounter), "Permanent errors must not trigger retries")

	errorLogs := observedLogs.FilterLevelExact(zap.ErrorLevel)
	require.Equal(t, 1, errorLogs.Len())
	logEntry := errorLogs.All()[0]
	assert.Equal(t, "Gemini API returned error status", logEntry.Message)
	assert.Equal(t, int64(403), logEntry.ContextMap()["status"])
	assert.Contains(t, logEntry.ContextMap()["response"], errorBody)
}

func TestGenerate_Failure_SafetyBlock(t *testing.T) {
	var attemptCounter int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attemptCounter, 1)
		// HTTP 200 but generation stopped by the safety filter.
		payload := GeminiResponsePayload{
			Candidates: []struct {
				Content      GeminiContent `json:"content"`
				FinishReason string        `json:"finishReason"`
			}{
				{Content: GeminiContent{Parts: []GeminiPart{}}, FinishReason: "SAFETY"},
			},
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(payload)
	}

	client, _, _ := setupGeminiClient(t, handler)

	response, err := client.Generate(context.Background(), createTestRequest())

	assert.Error(t, err)
	assert.Empty(t, response)
	assert.Contains(t, err.Error(), "gemini API blocked the request (Reason: SAFETY)")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attemptCounter), "Safety blocks must not trigger retries")
}

func TestGenerate_Failure_EmptyContent_NonBlockReason(t *testing.T) {
	var attemptCounter int32
	payload := GeminiResponsePayload{
		Candidates: []struct {
			Content      GeminiContent `json:"content"`
			FinishReason string        `json:"finishReason"`
		}{{Content: GeminiContent{Parts: []GeminiPart{}}, FinishReason: "OTHER"}},
	}

	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attemptCounter, 1)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(payload)
	}

	client, _, _ := setupGeminiClient(t, handler)
	client.backoffFactory = fastBackoff

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := client.Generate(ctx, createTestRequest())

	assert.Error(t, err)

	// This specific scenario is treated as transient (retryable).
	var permanentErr *backoff.PermanentError
	assert.False(t, errors.As(err, &permanentErr), "Empty content with non-blocking reason should be transient")
	assert.Greater(t, atomic.LoadInt32(&attemptCounter), int32(1))
}

func TestGenerate_Failure_NoCandidates(t *testing.T) {
	var attemptCounter int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attemptCounter, 1)
		payload := GeminiResponsePayload{
			Candidates: []struct {
				Content      GeminiContent `json:"content"`
				FinishReason string        `json:"finishReason"`
			}{},
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(payload)
	}

	client, _, _ := setupGeminiClient(t, handler)

	response, err := client.Generate(context.Background(), createTestRequest())

	assert.Error(t, err)
	assert.Empty(t, response)
	assert.Contains(t, err.Error(), "gemini API returned no candidates")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attemptCounter), "No candidates response must not trigger retries")
}

func TestGenerate_Failure_InvalidJSONResponse(t *testing.T) {
	var attemptCounter int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attemptCounter, 1)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{invalid json:"))
	}

	client, _, _ := setupGeminiClient(t, handler)

	response, err := client.Generate(context.Background(), createTestRequest())

	assert.Error(t, err)
	assert.Empty(t, response)
	assert.Contains(t, err.Error(), "failed to decode response payload")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attemptCounter))
}

func TestGenerate_ContextCancellation(t *testing.T) {
	// Handler that always returns a transient error, forcing continuous retries.
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}

	client, _, _ := setupGeminiClient(t, handler)

	// Long backoff so cancellation lands during the wait.
	client.backoffFactory = func() backoff.BackOff {
		return backoff.NewConstantBackOff(10 * time.Second)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	startTime := time.Now()
	response, err := client.Generate(ctx, createTestRequest())
	duration := time.Since(startTime)

	assert.Error(t, err)
	assert.Empty(t, response)
	assert.True(t, errors.Is(err, context.Canceled), "Error should be context.Canceled, but got: %v", err)
	assert.Less(t, duration, 1*time.Second, "Operation should abort quickly upon cancellation")
}

// -- Test Cases: Summarize --

func TestSummarize(t *testing.T) {
	sourceText := "The quick brown fox jumps over the lazy dog. Repeatedly."

	handler := func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload GeminiRequestPayload
		require.NoError(t, json.Unmarshal(body, &payload))

		prompt := payload.Contents[0].Parts[0].Text
		assert.Contains(t, prompt, "at most 25 words")
		assert.Contains(t, prompt, sourceText)
		assert.Equal(t, summaryTemperature, payload.GenerationConfig.Temperature)

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(successResponse("  A fox jumps over a dog. \n", 10, 5))
	}

	client, _, _ := setupGeminiClient(t, handler)

	summary, err := client.Summarize(context.Background(), sourceText, 25)

	require.NoError(t, err)
	assert.Equal(t, "A fox jumps over a dog.", summary, "Summary should be whitespace-trimmed")
}

func TestSummarize_DefaultLength(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload GeminiRequestPayload
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Contains(t, payload.Contents[0].Parts[0].Text, "at most 200 words")

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(successResponse("short", 1, 1))
	}

	client, _, _ := setupGeminiClient(t, handler)

	_, err := client.Summarize(context.Background(), "text", 0)
	require.NoError(t, err)
}

func TestSummarize_PropagatesGenerationFailure(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}

	client, _, _ := setupGeminiClient(t, handler)

	_, err := client.Summarize(context.Background(), "text", 50)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "summary generation failed")
}
