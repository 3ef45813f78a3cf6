package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extraction is the JSON shape analyzers ask the model for.
type extraction struct {
	// Fields maps "domain.field" references to extracted values.
	Fields map[string]string `json:"fields"`

	// Notes carry forward whatever the analyzer wants to remember.
	Notes string `json:"notes"`
}

// extractJSON pulls the first balanced JSON object out of a model response,
// which may wrap it in prose or markdown fences.
func extractJSON(response string) string {
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	// Find matching closing brace
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}

	return ""
}

// parseExtraction decodes the model response into an extraction.
func parseExtraction(response string) (extraction, error) {
	raw := extractJSON(response)
	if raw == "" {
		return extraction{}, fmt.Errorf("no JSON object in response")
	}

	var ex extraction
	if err := json.Unmarshal([]byte(raw), &ex); err != nil {
		return extraction{}, fmt.Errorf("failed to parse extraction: %w", err)
	}
	return ex, nil
}
