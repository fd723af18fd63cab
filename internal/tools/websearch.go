// internal/tools/websearch.go
package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

const defaultSearchResults = 5

// WebSearchTool queries a search API when an endpoint is configured. Without
// one it stays in placeholder mode and returns canned results, so the loop
// and prompts can be exercised before a search backend is wired up.
type WebSearchTool struct {
	client   *http.Client
	endpoint string
	logger   *zap.Logger
}

// NewWebSearchTool creates the web search tool. An empty endpoint selects
// placeholder mode.
func NewWebSearchTool(client *http.Client, endpoint string, logger *zap.Logger) *WebSearchTool {
	return &WebSearchTool{
		client:   client,
		endpoint: endpoint,
		logger:   logger.Named("tools.websearch"),
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web for information. Returns search results with titles, snippets, and URLs."
}

func (t *WebSearchTool) Category() Category { return CategorySearch }

func (t *WebSearchTool) Params() map[string]Param {
	return map[string]Param{
		"query": {
			Type:        "string",
			Description: "Search query text",
			Required:    true,
		},
		"num_results": {
			Type:        "integer",
			Description: "Number of results to return (default: 5)",
			Default:     defaultSearchResults,
		},
	}
}

// Execute runs the search.
func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	query := argString(args, "query", "")
	numResults := argInt(args, "num_results", defaultSearchResults)
	if numResults <= 0 {
		numResults = defaultSearchResults
	}

	t.logger.Info("Executing web search tool", zap.String("query", query))

	var results []map[string]any
	var err error
	if t.endpoint == "" {
		results = placeholderResults(query, numResults)
	} else {
		results, err = t.searchEndpoint(ctx, query, numResults)
		if err != nil {
			return nil, err
		}
	}

	return map[string]any{
		"query":   query,
		"results": results,
		"count":   len(results),
	}, nil
}

// placeholderResults fabricates entries that make the missing integration
// obvious to whoever reads the transcript.
func placeholderResults(query string, n int) []map[string]any {
	results := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		results = append(results, map[string]any{
			"title":   "Search result for: " + query,
			"snippet": "This is a placeholder result. To enable real web search, integrate with a search API.",
			"url":     "https://example.com/search?q=" + query,
		})
	}
	return results
}

type searchHit struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// searchEndpoint queries the configured API and normalizes the response.
// Both a bare array and a {"results": [...]} envelope are accepted.
func (t *WebSearchTool) searchEndpoint(ctx context.Context, query string, n int) ([]map[string]any, error) {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid web search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("num", strconv.Itoa(n))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	var hits []searchHit
	var envelope struct {
		Results []searchHit `json:"results"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		hits = envelope.Results
	} else if err := json.Unmarshal(body, &hits); err != nil {
		return nil, fmt.Errorf("unrecognized search API response: %w", err)
	}

	if len(hits) > n {
		hits = hits[:n]
	}
	results := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		results = append(results, map[string]any{
			"title":   h.Title,
			"snippet": h.Snippet,
			"url":     h.URL,
		})
	}
	return results, nil
}
