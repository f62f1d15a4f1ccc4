package dedup

import (
	"regexp"
	"strings"
)

// headerBlockPattern marks the start of one email in a reply chain. The
// From/To/Subject block is the stable boundary across mail clients; the CC
// line is optional. Matching is case-sensitive on the raw content.
var headerBlockPattern = regexp.MustCompile(`From: [^\n]*\nTo: [^\n]*\n(?:CC: [^\n]*\n)?Subject: `)

// Part is one email in a reply chain. Index 0 is the most recent message.
// Start and End are byte offsets into the raw content, so callers can
// recover the exact byte range spanning any run of parts.
type Part struct {
	Text  string
	Start int
	End   int
}

// Split breaks a raw reply chain into ordered parts, most recent first.
// A new part starts at each header-block occurrence; the text before the
// first boundary, if any, forms the first part on its own. Trailing parts that
// are pure whitespace are discarded. Content with no recognizable headers
// yields a single part equal to the whole input.
func Split(raw string) []Part {
	matches := headerBlockPattern.FindAllStringIndex(raw, -1)

	starts := []int{0}
	for _, m := range matches {
		if m[0] > 0 {
			starts = append(starts, m[0])
		}
	}

	parts := make([]Part, 0, len(starts))
	for i, start := range starts {
		end := len(raw)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		parts = append(parts, Part{Text: raw[start:end], Start: start, End: end})
	}

	// Drop pure-whitespace trailing parts.
	for len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1].Text) == "" {
		parts = parts[:len(parts)-1]
	}

	return parts
}

// Suffix returns the exact byte range of raw covering parts[1:], the
// thread with its most recent message dropped. Returns "" for a
// single-part thread.
func Suffix(raw string, parts []Part) string {
	if len(parts) < 2 {
		return ""
	}
	return raw[parts[1].Start:parts[len(parts)-1].End]
}
