package redact

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// GetDefaultRules returns the pattern rules for identifiers with a rigid
// shape. Names and free-text addresses are left to the entity recognizer.
func GetDefaultRules() []DetectionRule {
	return []DetectionRule{
		{
			Name:    "phone",
			Pattern: regexp.MustCompile(`(?:\+\d{2}\s?|\(\d{2}\)\s?|\b0)[1-9](?:[\s.\-]?\d{2}){4}\b`),
			Label:   "TEL",
		},
		{
			Name:    "email",
			Pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
			Label:   "MAIL",
		},
		{
			Name:    "postal_code",
			Pattern: regexp.MustCompile(`\b((?:\d{2}|2[AB])\s?\d{3})\s+\p{Lu}`),
			Label:   "ZIP",
			Group:   1,
		},
		{
			Name:    "date",
			Pattern: regexp.MustCompile(`\b\d{1,2}[/.]\d{1,2}[/.](?:\d{4}|\d{2})\b`),
			Label:   "DATE",
		},
	}
}

// RuleRecognizer applies enabled detection rules
type RuleRecognizer struct {
	rules   []DetectionRule
	enabled map[string]bool
	logger  *zap.Logger
}

// NewRuleRecognizer enables the named rules; "all" enables every rule
func NewRuleRecognizer(rules []DetectionRule, enable []string, logger *zap.Logger) (*RuleRecognizer, error) {
	r := &RuleRecognizer{
		rules:   rules,
		enabled: make(map[string]bool, len(rules)),
		logger:  logger,
	}
	if err := r.configure(enable); err != nil {
		return nil, fmt.Errorf("failed to configure rules: %w", err)
	}

	logger.Info("Rule recognizer initialized",
		zap.Int("total_rules", len(r.rules)),
		zap.Strings("enabled_rules", r.EnabledRules()))
	return r, nil
}

func (r *RuleRecognizer) configure(enable []string) error {
	for _, rule := range r.rules {
		r.enabled[rule.Name] = false
	}

	for _, name := range enable {
		if name == "all" {
			for _, rule := range r.rules {
				r.enabled[rule.Name] = true
			}
			continue
		}
		if _, ok := r.enabled[name]; !ok {
			return fmt.Errorf("unknown rule: %s", name)
		}
		r.enabled[name] = true
	}
	return nil
}

// Recognize implements Recognizer
func (r *RuleRecognizer) Recognize(_ context.Context, text string) ([]Span, error) {
	var spans []Span
	for _, rule := range r.rules {
		if !r.enabled[rule.Name] {
			continue
		}

		matches := rule.Pattern.FindAllStringSubmatch(text, -1)
		for _, m := range matches {
			if rule.Group >= len(m) {
				continue
			}
			spans = append(spans, Span{Text: strings.TrimSpace(m[rule.Group]), Label: rule.Label})
		}
		if len(matches) > 0 {
			r.logger.Debug("Rule matched", zap.String("rule", rule.Name), zap.Int("count", len(matches)))
		}
	}
	return spans, nil
}

// EnabledRules returns the enabled rule names, sorted
func (r *RuleRecognizer) EnabledRules() []string {
	var names []string
	for name, on := range r.enabled {
		if on {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// KnownIdentifiers tags configured literal identifiers, typically facility
// and town names the entity recognizer misses. Matching ignores case and
// reports the text as written on the page.
type KnownIdentifiers struct {
	pattern *regexp.Regexp
	label   string
}

// NewKnownIdentifiers builds a recognizer for identifiers, tagged with label
// (LOCATION when empty)
func NewKnownIdentifiers(identifiers []string, label string) *KnownIdentifiers {
	if label == "" {
		label = "LOCATION"
	}

	var quoted []string
	for _, id := range identifiers {
		if id = strings.TrimSpace(id); id != "" {
			quoted = append(quoted, regexp.QuoteMeta(id))
		}
	}
	k := &KnownIdentifiers{label: label}
	if len(quoted) == 0 {
		return k
	}

	// Longest first so "CHU LA MILETRIE" wins over a shorter prefix
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	k.pattern = regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))
	return k
}

// Recognize implements Recognizer
func (k *KnownIdentifiers) Recognize(_ context.Context, text string) ([]Span, error) {
	if k.pattern == nil {
		return nil, nil
	}
	var spans []Span
	for _, m := range k.pattern.FindAllString(text, -1) {
		spans = append(spans, Span{Text: m, Label: k.label})
	}
	return spans, nil
}
