// Package summarize turns message text into a single actionable
// summary line and a triage label via an external model service.
package summarize

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrUnavailable indicates a transient failure reaching the
// summarization service. The pipeline holds the message for a bounded
// retry rather than aborting the poll cycle.
var ErrUnavailable = errors.New("summarizer unavailable")

// ErrQuotaExceeded indicates the service rejected the call for quota
// or rate reasons. Handled like ErrUnavailable but surfaced distinctly.
var ErrQuotaExceeded = errors.New("summarizer quota exceeded")

// Triage labels returned by Classify.
const (
	LabelActionable = "actionable"
	LabelFYI        = "fyi"
	LabelMarketing  = "marketing"
)

// MaxSummaryLen clamps generated and heuristic summaries.
const MaxSummaryLen = 140

// Summarizer is the contract the ingestion pipeline depends on. Model
// and temperature are fixed configuration on the implementation; the
// contract exposes no tuning knobs.
type Summarizer interface {
	// Summarize returns a single concise action-oriented line for the
	// message. Failures wrap ErrUnavailable or ErrQuotaExceeded.
	Summarize(ctx context.Context, subject, body string) (string, error)

	// Classify returns one of the Label* constants for triage.
	Classify(ctx context.Context, subject, body string) (string, error)

	// Ping verifies connectivity with a minimal round trip.
	Ping(ctx context.Context) error
}

var whitespacePattern = regexp.MustCompile(`\s+`)

// HeuristicSummary derives a summary locally from the first non-quoted
// body line, used when the summarizer is disabled.
func HeuristicSummary(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = MaxSummaryLen
	}

	for _, line := range strings.Split(text, "\n") {
		s := strings.TrimSpace(line)
		if s == "" || strings.HasPrefix(s, ">") {
			continue
		}
		s = whitespacePattern.ReplaceAllString(s, " ")
		return clamp(s, maxLen)
	}

	flat := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	return clamp(flat, maxLen)
}

// NormalizeLabel maps free-form model output onto a Label* constant.
// Anything unrecognized is treated as actionable so a confused model
// never silently drops mail.
func NormalizeLabel(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(label, "market"):
		return LabelMarketing
	case strings.Contains(label, "fyi"):
		return LabelFYI
	default:
		return LabelActionable
	}
}

// clamp limits s to maxLen characters, cutting at a rune boundary so
// a multibyte character is never split into invalid UTF-8.
func clamp(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:maxLen]))
}
