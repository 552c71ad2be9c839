package state

import (
	"encoding/json"
	"regexp"
	"strings"
)

var numberPattern = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)

// IsQuoted reports whether raw is wrapped in matching single, double or
// back quotes.
func IsQuoted(raw string) bool {
	s := strings.TrimSpace(raw)
	if len(s) < 2 {
		return false
	}
	q := s[0]
	return (q == '"' || q == '\'' || q == '`') && s[len(s)-1] == q
}

// Unquote strips one layer of matching quotes, leaving other text alone.
func Unquote(raw string) string {
	s := strings.TrimSpace(raw)
	if !IsQuoted(s) {
		return raw
	}
	return s[1 : len(s)-1]
}

// IsLiteral reports whether raw is literal text (quoted string, number,
// boolean, null or bracketed array/object) rather than a state reference or
// expression.
func IsLiteral(raw string) bool {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return true
	case IsQuoted(s):
		return true
	case s == "true" || s == "false" || s == "null":
		return true
	case numberPattern.MatchString(s):
		return true
	case isBracketed(s, '[', ']') || isBracketed(s, '{', '}'):
		return true
	}
	return false
}

func isBracketed(s string, open, close byte) bool {
	return len(s) >= 2 && s[0] == open && s[len(s)-1] == close
}

// ParseTypedValue coerces a raw attribute string. Quoted strings stay
// strings, number/boolean/null literals coerce, and bracketed text parses as
// an array or object. Anything else is returned unchanged.
func ParseTypedValue(raw string) any {
	s := strings.TrimSpace(raw)
	switch {
	case IsQuoted(s):
		return s[1 : len(s)-1]
	case s == "true":
		return true
	case s == "false":
		return false
	case s == "null":
		return nil
	case numberPattern.MatchString(s):
		var n float64
		if err := json.Unmarshal([]byte(strings.TrimPrefix(normalizeNumber(s), "+")), &n); err == nil {
			return n
		}
		return raw
	case isBracketed(s, '[', ']'):
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			return Normalize(arr)
		}
		parts := SplitTopLevel(s[1:len(s)-1], ',')
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p == "" {
				continue
			}
			out = append(out, ParseTypedValue(p))
		}
		return out
	case isBracketed(s, '{', '}'):
		var obj map[string]any
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			return Normalize(obj)
		}
		out := make(map[string]any)
		for _, p := range SplitTopLevel(s[1:len(s)-1], ',') {
			k, v, ok := cutTopLevel(p, ':')
			if !ok {
				continue
			}
			out[Unquote(strings.TrimSpace(k))] = ParseTypedValue(v)
		}
		return Normalize(out)
	}
	return raw
}

// normalizeNumber makes forms like "1." and ".5" acceptable to the JSON
// number grammar.
func normalizeNumber(s string) string {
	sign := ""
	if s[0] == '-' || s[0] == '+' {
		sign, s = s[:1], s[1:]
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	if i := strings.IndexAny(s, "eE"); i > 0 && s[i-1] == '.' {
		s = s[:i-1] + s[i:]
	}
	s = strings.TrimSuffix(s, ".")
	for len(s) > 1 && s[0] == '0' && s[1] != '.' && s[1] != 'e' && s[1] != 'E' {
		s = s[1:]
	}
	if sign == "-" {
		return "-" + s
	}
	return s
}

// SplitTopLevel splits s on sep, ignoring separators inside quotes or nested
// brackets.
func SplitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c == '[' || c == '{' || c == '(':
			depth++
		case c == ']' || c == '}' || c == ')':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func cutTopLevel(s string, sep byte) (string, string, bool) {
	parts := SplitTopLevel(s, sep)
	if len(parts) < 2 {
		return s, "", false
	}
	return parts[0], strings.Join(parts[1:], string(sep)), true
}
