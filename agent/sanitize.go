package agent

import (
	"strings"
)

// StripCodeFences removes markdown code fences from model output. Models
// are instructed to return bare source, but some wrap it anyway; the
// original workflow stripped backticks and a leading "python" language tag
// the same way.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	// Language tag on the opening fence: ```python\n
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(s[:idx])
		if firstLine == "" || isLanguageTag(firstLine) {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return len(s) <= 16
}

// ExtractJSONObject returns the first balanced {...} object in s, or ""
// when none exists. Validator responses often surround the JSON verdict
// with prose; the original parsed the first object it found.
func ExtractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
