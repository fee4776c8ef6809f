package analysis

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	publicFunctionRegexp = regexp.MustCompile(`function\s+\w+\s*\([^)]*\)\s*public`)
	publicStateRegexp    = regexp.MustCompile(`(uint|int|address|bool|string)\s+public\s+\w+`)

	securityModifiers = []string{"onlyOwner", "onlyParticipant", "nonReentrant", "whenNotPaused"}
)

// CustomChecks applies the regex-based lint checks over the contract source.
func CustomChecks(source string) []string {
	var findings []string

	lines := strings.Split(source, "\n")
	for i, line := range lines {
		if !strings.Contains(line, ".call(") {
			continue
		}

		next := ""
		if i+1 < len(lines) {
			next = lines[i+1]
		}
		if !strings.Contains(line, "require(success") && !strings.Contains(next, "require(success") {
			findings = append(findings, "Use of '.call' without success verification.")
		}
	}

	for _, match := range publicFunctionRegexp.FindAllStringIndex(source, -1) {
		snippetEnd := match[1] + 200
		if snippetEnd > len(source) {
			snippetEnd = len(source)
		}
		snippet := source[match[1]:snippetEnd]

		var hasSecurityCheck bool
		for _, modifier := range securityModifiers {
			if strings.Contains(snippet, modifier) {
				hasSecurityCheck = true
				break
			}
		}

		if !hasSecurityCheck {
			findings = append(findings, "Public function without adequate security controls: "+source[match[0]:match[1]])
		}
	}

	if strings.Contains(source, ".transfer(") || strings.Contains(source, ".send(") {
		findings = append(findings, "Use of transfer/send instead of the recommended call pattern.")
	}

	for _, match := range publicStateRegexp.FindAllString(source, -1) {
		findings = append(findings, fmt.Sprintf("Public state variable found: %s. Consider using private + getters.", match))
	}

	return findings
}
