// Package pinnedjson implements atomic read/modify/write of a JSON payload
// embedded in a sentinel-delimited, fenced block inside a larger markdown
// document (the coordination issue body). The package is intentionally
// dependency-free and purely textual: it never re-flows markdown outside
// the block and never parses the JSON itself, leaving that to callers
// (internal/wavestate).
package pinnedjson

import (
	"errors"
	"fmt"
	"strings"
)

const (
	startSentinel = "<!-- wave-state:DO-NOT-EDIT -->"
	endSentinel   = "<!-- /wave-state -->"
	fenceOpen     = "```json"
	fenceClose    = "```"
)

// ErrGuardsMissing is returned when the start or end sentinel is absent
// or duplicated, "guards-missing".
var ErrGuardsMissing = errors.New("guards-missing: pinned-json sentinels are missing or duplicated")

// Validate reports whether body contains exactly one start and one end
// sentinel.
func Validate(body string) bool {
	return strings.Count(body, startSentinel) == 1 && strings.Count(body, endSentinel) == 1
}

// Extract returns the JSON payload between the sentinels, with its fence
// stripped, or ("", false) if the sentinels are not present exactly once.
func Extract(body string) (string, bool) {
	if !Validate(body) {
		return "", false
	}
	start := strings.Index(body, startSentinel)
	end := strings.Index(body, endSentinel)
	if end < start {
		return "", false
	}
	between := body[start+len(startSentinel) : end]

	fStart := strings.Index(between, fenceOpen)
	if fStart < 0 {
		return "", false
	}
	afterOpen := between[fStart+len(fenceOpen):]
	fEnd := strings.Index(afterOpen, fenceClose)
	if fEnd < 0 {
		return "", false
	}
	return strings.TrimSpace(afterOpen[:fEnd]), true
}

// Replace splices payload between the sentinels, preserving everything
// outside the block verbatim. It returns ErrGuardsMissing if either
// sentinel is absent; callers must not fall back to appending a new
// block elsewhere, "must not attempt a fallback location".
func Replace(body, payload string) (string, error) {
	if !Validate(body) {
		return "", ErrGuardsMissing
	}
	start := strings.Index(body, startSentinel)
	end := strings.Index(body, endSentinel)
	if end < start {
		return "", ErrGuardsMissing
	}

	before := body[:start+len(startSentinel)]
	after := body[end:]
	block := fmt.Sprintf("\n%s\n%s\n%s\n", fenceOpen, payload, fenceClose)
	return before + block + after, nil
}

// NewBody returns a fresh coordination-issue body containing only the
// pinned-JSON block, for callers creating a coordination issue from
// scratch.
func NewBody(payload string) string {
	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s\n", startSentinel, fenceOpen, payload, fenceClose, endSentinel)
}
