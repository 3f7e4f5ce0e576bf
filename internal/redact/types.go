package redact

import (
	"context"
	"regexp"

	"github.com/raaihank/rcp-pseudonymizer/internal/pseudonym"
)

// Span is a piece of page text tagged by a recognizer
type Span struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Recognizer locates identifying spans in page text
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Span, error)
}

// RecognizerFunc adapts a function to Recognizer
type RecognizerFunc func(ctx context.Context, text string) ([]Span, error)

// Recognize calls f
func (f RecognizerFunc) Recognize(ctx context.Context, text string) ([]Span, error) {
	return f(ctx, text)
}

// Rewriter replaces a span on a page with its substitute
type Rewriter interface {
	Rewrite(ctx context.Context, page int, span Span, substitute string) error
}

// DetectionRule is a pattern based recognizer rule. When Group is set, only
// that capture group is reported.
type DetectionRule struct {
	Name    string
	Pattern *regexp.Regexp
	Label   string
	Group   int
}

// Replacement is a resolved span
type Replacement struct {
	Span       Span   `json:"span"`
	Substitute string `json:"substitute"`
}

// PageReport summarizes one processed page. It carries counts only.
type PageReport struct {
	Page        int                        `json:"page"`
	Spans       int                        `json:"spans"`
	Passthrough int                        `json:"passthrough"`
	PerCategory map[pseudonym.Category]int `json:"per_category"`
	PerRule     map[string]int             `json:"per_recognizer,omitempty"`
}
