package llm

import (
	"encoding/json"
	"strings"
	"unicode"
)

// StripCodeFences removes surrounding whitespace and a Markdown code fence such as ```json ... ```.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the info string ("json", "JSON", ...), on its own line or directly before the payload
	if i := strings.IndexAny(s, "{["); i >= 0 && isInfoString(strings.TrimSpace(s[:i])) {
		s = s[i:]
	} else if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isInfoString(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// scalarString coerces a decoded JSON value into its string form.
// Strings are kept verbatim, numbers keep their literal text and booleans become "true"/"false".
// Null, objects and arrays report ok=false.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}
