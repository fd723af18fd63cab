// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"
)

var (
	// Regex definitions use \x60 (hex representation) for backticks because Go raw strings cannot contain backticks.

	// jsonObjectRegex extracts a JSON object if the response is wrapped in markdown.
	jsonObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")
	// jsonArrayRegex extracts a JSON array if the response is wrapped in markdown.
	jsonArrayRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*(\\[.*\\])\\s*\x60\x60\x60")
)

// ParseJSONResponse attempts to parse an LLM response string into a target Go
// type using generics. Models rarely return bare JSON: they wrap it in
// markdown fences, preface it with commentary, or append a sign-off. Each
// plausible extraction is tried in order and the first that unmarshals wins.
// An error is returned only when no candidate parses.
func ParseJSONResponse[T any](response string) (*T, error) {
	response = strings.TrimSpace(response)
	candidates := extractCandidates(response)

	var firstErr error
	for _, candidate := range candidates {
		var result T
		if err := json.Unmarshal([]byte(candidate), &result); err == nil {
			return &result, nil
		} else if firstErr == nil {
			firstErr = err
		}
	}

	return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s",
		firstErr, truncateString(candidates[0], 500))
}

// extractCandidates returns the substrings of response worth handing to the
// JSON decoder, most intentional first: a fenced block, the raw text itself,
// then the widest brace- or bracket-delimited slice found in surrounding
// conversational text. Always returns at least one entry.
func extractCandidates(response string) []string {
	candidates := make([]string, 0, 4)

	if strings.HasPrefix(response, "```") {
		if matches := jsonObjectRegex.FindStringSubmatch(response); len(matches) > 1 {
			candidates = append(candidates, matches[1])
		} else if matches := jsonArrayRegex.FindStringSubmatch(response); len(matches) > 1 {
			candidates = append(candidates, matches[1])
		}
	}

	candidates = append(candidates, response)

	if fb, lb := strings.Index(response, "{"), strings.LastIndex(response, "}"); fb != -1 && lb > fb {
		candidates = append(candidates, response[fb:lb+1])
	}
	if fb, lb := strings.Index(response, "["), strings.LastIndex(response, "]"); fb != -1 && lb > fb {
		candidates = append(candidates, response[fb:lb+1])
	}

	return candidates
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	// Simple truncation; does not account for rune boundaries but sufficient for error logging.
	return s[:maxLen] + "..."
}
