// Package redact drives a pseudonymization session over page text: it
// collects spans from recognizers, resolves them and hands the substitutes
// to a rewriter.
package redact

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/raaihank/rcp-pseudonymizer/internal/pseudonym"
	"go.uber.org/zap"
)

// Orchestrator is safe for concurrent use when its rewriter is
type Orchestrator struct {
	session     *pseudonym.Session
	recognizers []Recognizer
	rewriter    Rewriter
	logger      *zap.Logger
}

// NewOrchestrator wires recognizers and a rewriter to a session
func NewOrchestrator(session *pseudonym.Session, rewriter Rewriter, logger *zap.Logger, recognizers ...Recognizer) *Orchestrator {
	return &Orchestrator{
		session:     session,
		recognizers: recognizers,
		rewriter:    rewriter,
		logger:      logger,
	}
}

// ProcessPage resolves every span found on a page. Spans are rewritten
// longest first and each distinct (text, label) pair once.
func (o *Orchestrator) ProcessPage(ctx context.Context, page int, text string) (*PageReport, []Replacement, error) {
	report := &PageReport{
		Page:        page,
		PerCategory: make(map[pseudonym.Category]int),
		PerRule:     make(map[string]int),
	}

	seen := make(map[Span]bool)
	var spans []Span
	for i, r := range o.recognizers {
		found, err := r.Recognize(ctx, text)
		if err != nil {
			return nil, nil, fmt.Errorf("recognizer %d failed on page %d: %w", i, page, err)
		}
		for _, s := range found {
			if s.Text == "" || seen[s] {
				continue
			}
			seen[s] = true
			spans = append(spans, s)
			report.PerRule[s.Label]++
		}
	}

	sort.SliceStable(spans, func(i, j int) bool { return len(spans[i].Text) > len(spans[j].Text) })

	replacements := make([]Replacement, 0, len(spans))
	for _, s := range spans {
		category := pseudonym.ParseLabel(s.Label)
		substitute, err := o.session.Pseudonymize(ctx, s.Text, category)
		if err != nil {
			return nil, nil, err
		}

		report.Spans++
		if category == pseudonym.CategoryOther {
			report.Passthrough++
			continue
		}
		report.PerCategory[category]++

		if o.rewriter != nil {
			if err := o.rewriter.Rewrite(ctx, page, s, substitute); err != nil {
				return nil, nil, fmt.Errorf("failed to rewrite span on page %d: %w", page, err)
			}
		}
		replacements = append(replacements, Replacement{Span: s, Substitute: substitute})
	}

	o.logger.Debug("Page processed",
		zap.String("session_id", o.session.ID()),
		zap.Int("page", page),
		zap.Int("spans", report.Spans),
		zap.Int("passthrough", report.Passthrough))

	return report, replacements, nil
}

// TextRewriter is the plain text rewriter: it queues replacements per page
// and applies them in a single pass, so a substitute is never rewritten
// again.
type TextRewriter struct {
	mu      sync.Mutex
	pending map[int][]Replacement
}

// NewTextRewriter returns an empty rewriter
func NewTextRewriter() *TextRewriter {
	return &TextRewriter{pending: make(map[int][]Replacement)}
}

// Rewrite implements Rewriter
func (w *TextRewriter) Rewrite(_ context.Context, page int, span Span, substitute string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[page] = append(w.pending[page], Replacement{Span: span, Substitute: substitute})
	return nil
}

// Apply returns text with every queued replacement of page applied and
// clears the queue. At any position the longest queued span wins.
func (w *TextRewriter) Apply(page int, text string) string {
	w.mu.Lock()
	queued := w.pending[page]
	delete(w.pending, page)
	w.mu.Unlock()

	if len(queued) == 0 {
		return text
	}

	sort.SliceStable(queued, func(i, j int) bool { return len(queued[i].Span.Text) > len(queued[j].Span.Text) })
	pairs := make([]string, 0, 2*len(queued))
	for _, r := range queued {
		pairs = append(pairs, r.Span.Text, r.Substitute)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// RedactText runs ProcessPage and applies the result to text with a fresh
// TextRewriter
func RedactText(ctx context.Context, session *pseudonym.Session, page int, text string, logger *zap.Logger, recognizers ...Recognizer) (string, *PageReport, error) {
	rw := NewTextRewriter()
	report, _, err := NewOrchestrator(session, rw, logger, recognizers...).ProcessPage(ctx, page, text)
	if err != nil {
		return "", nil, err
	}
	return rw.Apply(page, text), report, nil
}
