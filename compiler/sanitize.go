package compiler

import (
	"regexp"
	"strings"
)

var nonAlphanumericRegexp = regexp.MustCompile("[^A-Za-z0-9]")

// Sanitize maps a BPMN element name to a Solidity function identifier:
// non-alphanumeric characters become token boundaries, tokens are joined in
// camel case and a leading digit is prefixed with "f".
//
// Sanitize is idempotent - applying it to its own result is a no-op.
func Sanitize(name string) string {
	cleaned := nonAlphanumericRegexp.ReplaceAllString(name, " ")

	parts := strings.Fields(cleaned)
	if len(parts) == 0 {
		return "unnamedTask"
	}

	var sb strings.Builder
	for i, part := range parts {
		if i == 0 {
			// only the first character is lowercased, to keep Sanitize idempotent
			sb.WriteString(strings.ToLower(part[:1]))
			sb.WriteString(part[1:])
			continue
		}

		part = strings.ToLower(part)
		sb.WriteString(strings.ToUpper(part[:1]))
		sb.WriteString(part[1:])
	}

	s := sb.String()
	if s[0] >= '0' && s[0] <= '9' {
		s = "f" + s
	}

	return s
}

// capitalize uppercases the first character, e.g. for trigger function names.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
