// internal/tools/readpage.go
package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// maxExtractedChars caps the visible text returned per page so a single
// fetch cannot flood the transcript.
const maxExtractedChars = 8000

// ReadPageTool fetches a URL and returns its title and visible text. Markup,
// scripts, and styles are stripped; the body is decoded through the
// decompression transport before parsing.
type ReadPageTool struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	logger    *zap.Logger
}

// NewReadPageTool creates the page reader.
func NewReadPageTool(client *http.Client, userAgent string, maxBytes int64, logger *zap.Logger) *ReadPageTool {
	return &ReadPageTool{
		client:    client,
		userAgent: userAgent,
		maxBytes:  maxBytes,
		logger:    logger.Named("tools.readpage"),
	}
}

func (t *ReadPageTool) Name() string { return "read_webpage" }

func (t *ReadPageTool) Description() string {
	return "Fetch a web page and return its title and readable text content. Use this to read the contents of a specific URL."
}

func (t *ReadPageTool) Category() Category { return CategoryAnalysis }

func (t *ReadPageTool) Params() map[string]Param {
	return map[string]Param{
		"url": {
			Type:        "string",
			Description: "Absolute URL of the page to read (http or https)",
			Required:    true,
		},
	}
}

// Execute fetches and extracts the page.
func (t *ReadPageTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	rawURL := argString(args, "url", "")

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid url %q: must be absolute http(s)", rawURL)
	}

	t.logger.Info("Executing read_webpage tool", zap.String("url", rawURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch returned status %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read page body: %w", err)
	}

	title, text := extractReadableText(body)
	truncated := false
	if len(text) > maxExtractedChars {
		text = text[:maxExtractedChars]
		truncated = true
	}

	t.logger.Info("read_webpage tool executed",
		zap.String("url", rawURL),
		zap.Int("text_length", len(text)),
		zap.Bool("truncated", truncated),
	)
	return map[string]any{
		"url":       rawURL,
		"title":     title,
		"text":      text,
		"truncated": truncated,
	}, nil
}

// extractReadableText parses HTML and collects the title plus visible text,
// whitespace-collapsed. Parse errors are not possible: html.Parse builds a
// tree for arbitrary input.
func extractReadableText(body []byte) (title, text string) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		// Treat unparseable bytes as plain text.
		return "", collapseWhitespace(string(body))
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "script", "style", "noscript", "template", "iframe":
				return
			case "title":
				if title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return title, collapseWhitespace(sb.String())
}

// collapseWhitespace squeezes runs of whitespace into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
