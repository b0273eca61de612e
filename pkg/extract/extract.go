// Package extract pulls a structured JSON object out of free-form model text.
package extract

import (
	"strings"

	"github.com/spawn-mcp/campaign-synth/pkg/json"
)

// Extract returns the JSON object carried by text when it holds every key in
// required. The whole text is tried first, then the first balanced-brace span.
// Anything else yields (nil, false).
func Extract(text string, required []string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}

	if obj, ok := parseObject(trimmed); ok {
		if hasKeys(obj, required) {
			return obj, true
		}
	}

	span, ok := FirstObjectSpan(trimmed)
	if !ok {
		return nil, false
	}
	obj, ok := parseObject(span)
	if !ok || !hasKeys(obj, required) {
		return nil, false
	}
	return obj, true
}

// FirstObjectSpan returns the text from the first '{' to its matching '}'.
// Braces inside string literals, escaped quotes included, do not count.
func FirstObjectSpan(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	end := spanEnd(text, start)
	if end < 0 {
		return "", false
	}
	return text[start:end], true
}

func spanEnd(s string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

func parseObject(s string) (map[string]any, bool) {
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func hasKeys(obj map[string]any, required []string) bool {
	for _, k := range required {
		if _, ok := obj[k]; !ok {
			return false
		}
	}
	return true
}
