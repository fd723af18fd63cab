// internal/tools/readpage_test.go
package tools

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>Reference Page</title>
  <style>body { color: red }</style>
  <script>console.log("noise")</script>
</head>
<body>
  <h1>Heading</h1>
  <p>First paragraph with   extra   spaces.</p>
  <noscript>Enable JS</noscript>
</body>
</html>`

func newReadPageTool(t *testing.T, client *http.Client) *ReadPageTool {
	t.Helper()
	return NewReadPageTool(client, "reagent-test/1.0", 1<<20, zaptest.NewLogger(t))
}

func TestReadPageExtractsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "reagent-test/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	tool := newReadPageTool(t, srv.Client())
	data, err := tool.Execute(context.Background(), map[string]any{"url": srv.URL})
	require.NoError(t, err)

	payload := data.(map[string]any)
	assert.Equal(t, "Reference Page", payload["title"])

	text := payload["text"].(string)
	assert.Contains(t, text, "Heading")
	assert.Contains(t, text, "First paragraph with extra spaces.")
	assert.NotContains(t, text, "console.log", "script content must be stripped")
	assert.NotContains(t, text, "color: red", "style content must be stripped")
	assert.NotContains(t, text, "Enable JS", "noscript content must be stripped")
	assert.Equal(t, false, payload["truncated"])
}

func TestReadPageRejectsBadURLs(t *testing.T) {
	tool := newReadPageTool(t, NewFetchClient(time.Second))

	for _, bad := range []string{"", "not a url", "ftp://example.com/file", "relative/path"} {
		_, err := tool.Execute(context.Background(), map[string]any{"url": bad})
		assert.Error(t, err, "url %q should be rejected", bad)
	}
}

func TestReadPageNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	tool := newReadPageTool(t, srv.Client())
	_, err := tool.Execute(context.Background(), map[string]any{"url": srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestReadPageTruncatesLongPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>" + strings.Repeat("word ", maxExtractedChars) + "</body></html>"))
	}))
	defer srv.Close()

	tool := newReadPageTool(t, srv.Client())
	data, err := tool.Execute(context.Background(), map[string]any{"url": srv.URL})
	require.NoError(t, err)

	payload := data.(map[string]any)
	assert.Equal(t, true, payload["truncated"])
	assert.LessOrEqual(t, len(payload["text"].(string)), maxExtractedChars)
}

// -- Decompression Transport --

func TestFetchClientDecodesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "br")
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte(samplePage))
		gz.Close()
	}))
	defer srv.Close()

	client := &http.Client{Transport: newDecompressTransport(srv.Client().Transport)}
	tool := newReadPageTool(t, client)

	data, err := tool.Execute(context.Background(), map[string]any{"url": srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "Reference Page", data.(map[string]any)["title"])
}

func TestFetchClientDecodesBrotli(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		bw.Write([]byte(samplePage))
		bw.Close()
	}))
	defer srv.Close()

	client := &http.Client{Transport: newDecompressTransport(srv.Client().Transport)}
	tool := newReadPageTool(t, client)

	data, err := tool.Execute(context.Background(), map[string]any{"url": srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "Reference Page", data.(map[string]any)["title"])
}
