package summarize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestHeuristicSummary(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "first line",
			body: "Please send the invoice by Friday.\nThanks,\nBob",
			want: "Please send the invoice by Friday.",
		},
		{
			name: "skips quoted lines",
			body: "> On Mon, Alice wrote:\n> old text\nSure, works for me.",
			want: "Sure, works for me.",
		},
		{
			name: "skips blank lines",
			body: "\n\n  \nActual content here",
			want: "Actual content here",
		},
		{
			name: "collapses whitespace",
			body: "Too   much\t\twhitespace   here",
			want: "Too much whitespace here",
		},
		{
			name: "empty body",
			body: "",
			want: "",
		},
		{
			name: "only quotes falls back to flattened text",
			body: "> one\n> two",
			want: "> one > two",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HeuristicSummary(tt.body, MaxSummaryLen))
		})
	}
}

func TestHeuristicSummaryClampsLength(t *testing.T) {
	body := strings.Repeat("long sentence ", 40)
	got := HeuristicSummary(body, MaxSummaryLen)
	assert.LessOrEqual(t, len(got), MaxSummaryLen)
	assert.NotEmpty(t, got)
}

func TestHeuristicSummaryKeepsMultibyteRunesIntact(t *testing.T) {
	// A multibyte character straddling the limit must not be split
	// into invalid UTF-8.
	body := strings.Repeat("a", MaxSummaryLen-1) + "日本語の文"
	got := HeuristicSummary(body, MaxSummaryLen)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, MaxSummaryLen, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "日"))
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"actionable", LabelActionable},
		{"Actionable.", LabelActionable},
		{"fyi", LabelFYI},
		{"FYI", LabelFYI},
		{"This is just FYI", LabelFYI},
		{"marketing", LabelMarketing},
		{"Marketing email", LabelMarketing},
		{"looks like a market blast", LabelMarketing},
		{"no idea", LabelActionable},
		{"", LabelActionable},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeLabel(tt.in), "input %q", tt.in)
	}
}
