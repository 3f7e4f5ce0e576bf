package pseudonym

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
)

// DateShifter moves every date it reads by one fixed number of days and
// writes it back in the shape it was read in
type DateShifter struct {
	catalog *Catalog
	offset  int
}

// NewDateShifter returns a shifter applying offsetDays to every date
func NewDateShifter(catalog *Catalog, offsetDays int) *DateShifter {
	return &DateShifter{catalog: catalog, offset: offsetDays}
}

// Shift returns the shifted rendering of text along with the token that was
// read. When no date could be read the original text is returned and the
// token has Parsed false.
func (d *DateShifter) Shift(text string) (string, DateToken) {
	tok := d.catalog.Parse(text)
	if !tok.Parsed {
		return text, tok
	}
	return d.catalog.Render(tok, tok.Date.AddDate(0, 0, d.offset)), tok
}

var (
	numericMonthYearRe = regexp.MustCompile(`^(\d{1,2})/(\d{4})$`)
	spacedDateRe       = regexp.MustCompile(`^(\d{1,2})\s+(\d{1,2})\s+(\d{4})$`)
	wordMonthYearRe    = regexp.MustCompile(`^(\p{L}+\.?)[-/](\d{4})$`)
)

// parseGeneric is the best-effort path for shapes outside the catalog.
// Numbers are read day first.
func (c *Catalog) parseGeneric(trimmed string) (time.Time, bool) {
	if date, matched, ok := c.parsePartial(trimmed); matched {
		return date, ok
	}

	value := c.months.translate(trimmed)
	if value == "" {
		return time.Time{}, false
	}
	// Bare digit runs other than yyyymmdd would be read as unix timestamps
	if isDigits(value) && len(value) != 8 {
		return time.Time{}, false
	}

	t, err := dateparse.ParseIn(value, time.UTC, dateparse.PreferMonthFirst(false))
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

// parsePartial reads the numeric and hyphenated shapes dateparse rejects:
// "03/2021", "15 03 2021" and "mars-2021". Month and year shapes anchor
// on the first of the month. matched reports whether a shape applied.
func (c *Catalog) parsePartial(trimmed string) (date time.Time, matched, ok bool) {
	if m := numericMonthYearRe.FindStringSubmatch(trimmed); m != nil {
		month, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return time.Time{}, true, false
		}
		return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true, true
	}

	if m := spacedDateRe.FindStringSubmatch(trimmed); m != nil {
		t, err := time.Parse("2/1/2006", m[1]+"/"+m[2]+"/"+m[3])
		if err != nil {
			return time.Time{}, true, false
		}
		return t, true, true
	}

	if m := wordMonthYearRe.FindStringSubmatch(trimmed); m != nil {
		month, _, found := c.months.lookup(m[1])
		if !found {
			return time.Time{}, true, false
		}
		year, _ := strconv.Atoi(m[2])
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true, true
	}
	return time.Time{}, false, false
}

func isDigits(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
}
