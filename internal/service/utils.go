package service

import (
	"strings"
	"unicode/utf8"
)

// extractJSONValue recovers a JSON object or array from an LLM reply.
// Models wrap JSON in markdown code fences or surround it with commentary;
// this strips ```json / ``` fences if present and cuts the outermost brace
// (or bracket) pair. The result is a best-effort candidate, the caller still
// has to unmarshal it.
func extractJSONValue(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	objStart := strings.Index(cleaned, "{")
	arrStart := strings.Index(cleaned, "[")

	if objStart != -1 && (arrStart == -1 || objStart < arrStart) {
		if end := strings.LastIndex(cleaned, "}"); end > objStart {
			return cleaned[objStart : end+1]
		}
	}
	if arrStart != -1 {
		if end := strings.LastIndex(cleaned, "]"); end > arrStart {
			return cleaned[arrStart : end+1]
		}
	}
	return cleaned
}

// sanitizeUTF8 removes invalid UTF-8 sequences from string.
// This prevents PostgreSQL encoding errors when saving OCR text.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	var result strings.Builder
	result.Grow(len(s))

	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			s = s[1:]
			continue
		}
		result.WriteRune(r)
		s = s[size:]
	}

	return result.String()
}
