package interpreter

import (
	"encoding/json"
	"strings"
)

// extractJSONObject returns the first balanced {...} block in text that is
// valid JSON. Models often wrap the object in prose or Markdown fences, so
// the whole response is never assumed to be JSON.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	for start != -1 {
		if end, ok := matchingBrace(text, start); ok {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}

		next := strings.IndexByte(text[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchingBrace scans from the '{' at start and returns the index of the
// brace that closes it. Braces inside JSON strings are ignored.
func matchingBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

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
				return i, true
			}
		}
	}

	return 0, false
}
