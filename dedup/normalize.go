package dedup

import (
	"regexp"
	"strings"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Normalize produces the canonical form of email text used for
// fingerprinting: lowercased, trimmed, line endings standardized to LF,
// HTML-like tags removed, whitespace runs collapsed to a single space.
// The same form must be applied to full threads and derived suffixes.
func Normalize(text string) string {
	t := strings.TrimSpace(strings.ToLower(text))
	// standardize returns
	t = strings.ReplaceAll(t, "\r\n", "\n")
	t = strings.ReplaceAll(t, "\r", "\n")
	// remove html tags
	t = htmlTagPattern.ReplaceAllString(t, "")
	// shrink extra whitespaces
	t = whitespacePattern.ReplaceAllString(t, " ")
	// tag removal can expose whitespace at the edges; trim again so the
	// function is idempotent
	return strings.TrimSpace(t)
}
