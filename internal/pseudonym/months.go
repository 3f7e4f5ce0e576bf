package pseudonym

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var monthNames = map[string][2][12]string{
	"fr": {
		{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"},
		{"janv", "févr", "mars", "avr", "mai", "juin", "juil", "août", "sept", "oct", "nov", "déc"},
	},
	"en": {
		{"january", "february", "march", "april", "may", "june", "july", "august", "september", "october", "november", "december"},
		{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"},
	},
}

var weekdayWords = map[string]bool{
	"lundi": true, "mardi": true, "mercredi": true, "jeudi": true, "vendredi": true, "samedi": true, "dimanche": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true, "friday": true, "saturday": true, "sunday": true,
	"le": true, "du": true,
}

var wordRe = regexp.MustCompile(`\p{L}+\.?`)

type letterCase int

const (
	caseLower letterCase = iota
	caseTitle
	caseUpper
)

// monthStyle remembers how a month token was written so the shifted month
// can be written the same way
type monthStyle struct {
	lang    string
	abbr    bool
	accents bool
	dot     bool
	casing  letterCase
}

type monthRef struct {
	month time.Month
	lang  string
	abbr  bool
}

// monthIndex resolves folded month tokens, preferring the session locale
type monthIndex struct {
	entries map[string]monthRef
}

func newMonthIndex(locale string) *monthIndex {
	order := []string{"en", "fr"}
	if locale != "en" {
		order = []string{"fr", "en"}
	}

	idx := &monthIndex{entries: make(map[string]monthRef)}
	// Walk in reverse preference so preferred entries overwrite; full names
	// are written after abbreviations so identical spellings count as full.
	for i := len(order) - 1; i >= 0; i-- {
		lang := order[i]
		names := monthNames[lang]
		for _, abbr := range []bool{true, false} {
			table := names[0]
			if abbr {
				table = names[1]
			}
			for m, name := range table {
				idx.entries[stripAccents(name)] = monthRef{month: time.Month(m + 1), lang: lang, abbr: abbr}
			}
		}
	}
	return idx
}

// lookup resolves a month token such as "Févr.", "MARS" or "september"
func (idx *monthIndex) lookup(token string) (time.Month, monthStyle, bool) {
	word := strings.TrimSuffix(token, ".")
	ref, ok := idx.entries[stripAccents(strings.ToLower(word))]
	if !ok {
		return 0, monthStyle{}, false
	}

	style := monthStyle{
		lang:    ref.lang,
		abbr:    ref.abbr,
		accents: stripAccents(word) != word,
		dot:     strings.HasSuffix(token, "."),
		casing:  detectCase(word),
	}
	// A canonical name without accents cannot tell us anything
	canonical := monthName(ref.month, ref.lang, ref.abbr)
	if stripAccents(canonical) == canonical {
		style.accents = true
	}
	return ref.month, style, true
}

// translate rewrites month words to English and drops weekday words so the
// generic parser can read French dates such as "lundi 1er mars 2021"
func (idx *monthIndex) translate(text string) string {
	out := wordRe.ReplaceAllStringFunc(text, func(w string) string {
		folded := stripAccents(strings.ToLower(strings.TrimSuffix(w, ".")))
		if weekdayWords[folded] {
			return ""
		}
		if folded == "er" {
			return ""
		}
		if ref, ok := idx.entries[folded]; ok {
			return ref.month.String()
		}
		return w
	})
	out = strings.ReplaceAll(out, ",", " ")
	return strings.Join(strings.Fields(out), " ")
}

func monthName(m time.Month, lang string, abbr bool) string {
	names, ok := monthNames[lang]
	if !ok {
		names = monthNames["fr"]
	}
	if abbr {
		return names[1][m-1]
	}
	return names[0][m-1]
}

func (s monthStyle) render(m time.Month) string {
	name := monthName(m, s.lang, s.abbr)
	if !s.accents {
		name = stripAccents(name)
	}
	switch s.casing {
	case caseUpper:
		name = cases.Upper(language.French).String(name)
	case caseTitle:
		name = cases.Title(language.French).String(name)
	}
	if s.dot {
		name += "."
	}
	return name
}

func detectCase(word string) letterCase {
	if word == "" {
		return caseLower
	}
	if strings.ToUpper(word) == word {
		return caseUpper
	}
	first := []rune(word)[0]
	if unicode.IsUpper(first) {
		return caseTitle
	}
	return caseLower
}

// stripAccents removes combining marks after canonical decomposition
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
