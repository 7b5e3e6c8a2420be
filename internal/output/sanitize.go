package output

import (
	"regexp"
	"strings"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripANSI removes ANSI escape sequences from external data before terminal output.
func StripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// CleanHost strips ANSI sequences, surrounding whitespace and the trailing
// root dot from a hostname taken from a DNS answer or an autodiscovery
// document.
func CleanHost(s string) string {
	return strings.TrimSuffix(strings.TrimSpace(StripANSI(s)), ".")
}
