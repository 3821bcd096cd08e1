package pipeline

import "strings"

const (
	openResultTag  = "<result>"
	closeResultTag = "</result>"
)

// extractResult implements pipeline step 8 (spec.md §4.G, testable
// property 6): if raw contains <result>X</result> exactly once, returns X
// trimmed; if only <result> is present, returns everything after it
// trimmed; if neither tag is present, returns raw unchanged (trimmed only
// by the caller's own policy — here left as-is per the invariant's third
// clause) and found=false so the caller can log a warning.
func extractResult(raw string) (text string, found bool) {
	start := strings.Index(raw, openResultTag)
	if start < 0 {
		return raw, false
	}

	rest := raw[start+len(openResultTag):]
	if end := strings.Index(rest, closeResultTag); end >= 0 {
		rest = rest[:end]
	}

	return strings.TrimSpace(rest), true
}
