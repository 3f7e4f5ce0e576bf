package pseudonym

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NameClassifier decides which memo table a raw name span belongs to
type NameClassifier interface {
	Classify(raw string) Kind
}

// NameClassifierFunc adapts a function to NameClassifier
type NameClassifierFunc func(raw string) Kind

// Classify calls f(raw)
func (f NameClassifierFunc) Classify(raw string) Kind { return f(raw) }

// CasingClassifier is the casing heuristic: spans containing whitespace are
// full names, title-cased words are first names and everything else (all
// caps included) is a last name. Hyphenated names, particles and initials
// are not handled specially.
type CasingClassifier struct{}

// NewCasingClassifier returns the casing heuristic
func NewCasingClassifier() *CasingClassifier {
	return &CasingClassifier{}
}

// Classify implements NameClassifier
func (c *CasingClassifier) Classify(raw string) Kind {
	if strings.ContainsFunc(raw, unicode.IsSpace) {
		return KindFullName
	}
	if isTitleCased(raw) {
		return KindFirstName
	}
	return KindLastName
}

// isTitleCased reports whether raw has at least one letter and each word
// starts upper case with the rest lower case, so "Jean-Luc" qualifies
func isTitleCased(raw string) bool {
	if !strings.ContainsFunc(raw, unicode.IsLetter) {
		return false
	}
	// Casers carry state and are not shared
	return cases.Title(language.French).String(raw) == raw
}
