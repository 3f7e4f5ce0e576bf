package pseudonym

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"
)

var errUnknownMonth = errors.New("unknown month name")

// FormatGeneric identifies dates read by the generic fallback parser
const FormatGeneric = "generic"

// genericTemplate is used to render dates read by the generic parser
const genericTemplate = "02/01/2006"

// DateFormat is one entry of the format catalog: a detection pattern paired
// with the template used to parse and re-render the date
type DateFormat struct {
	ID       string
	Pattern  *regexp.Regexp
	Template string

	// layout is the lenient variant of Template accepting unpadded fields
	layout string
	// monthWord marks templates carrying a month name
	monthWord bool
}

// Catalog is the ordered list of recognized date shapes. The first entry
// whose pattern matches wins.
type Catalog struct {
	formats []DateFormat
	months  *monthIndex
}

// NewCatalog builds the default catalog. Month words are looked up in both
// French and English, preferring the given locale on ambiguous spellings.
func NewCatalog(locale string) *Catalog {
	return &Catalog{
		formats: defaultFormats(),
		months:  newMonthIndex(locale),
	}
}

func defaultFormats() []DateFormat {
	return []DateFormat{
		{
			ID:       "day_month_year",
			Pattern:  regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`),
			Template: "02/01/2006",
			layout:   "2/1/2006",
		},
		// Two-digit years follow the time package pivot: 69-99 read as 19xx
		// and 00-68 as 20xx. A shift across the pivot renders a year that
		// reads back in the other century ("05/01/69" at -10 gives "26/12/68").
		{
			ID:       "day_month_short_year",
			Pattern:  regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2}$`),
			Template: "02/01/06",
			layout:   "2/1/06",
		},
		{
			ID:       "dotted_day_month_year",
			Pattern:  regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`),
			Template: "02.01.2006",
			layout:   "2.1.2006",
		},
		{
			ID:       "dotted_day_month_short_year",
			Pattern:  regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{2}$`),
			Template: "02.01.06",
			layout:   "2.1.06",
		},
		{
			ID:        "month_name_year",
			Pattern:   regexp.MustCompile(`^\p{L}+\.?\s+\d{4}$`),
			Template:  "January 2006",
			layout:    "January 2006",
			monthWord: true,
		},
		{
			ID:       "day_month",
			Pattern:  regexp.MustCompile(`^\d{1,2}/\d{1,2}$`),
			Template: "02/01",
			layout:   "2/1",
		},
		{
			ID:       "year",
			Pattern:  regexp.MustCompile(`^\d{4}$`),
			Template: "2006",
			layout:   "2006",
		},
		{
			ID:        "month_name",
			Pattern:   regexp.MustCompile(`^\p{L}{3,}\.?$`),
			Template:  "January",
			layout:    "January",
			monthWord: true,
		},
	}
}

// Formats returns the catalog entries in priority order
func (c *Catalog) Formats() []DateFormat {
	out := make([]DateFormat, len(c.formats))
	copy(out, c.formats)
	return out
}

// Detect returns the first entry whose pattern matches text. Surrounding
// whitespace is ignored.
func (c *Catalog) Detect(text string) (*DateFormat, bool) {
	trimmed := strings.TrimSpace(text)
	for i := range c.formats {
		if c.formats[i].Pattern.MatchString(trimmed) {
			return &c.formats[i], true
		}
	}
	return nil, false
}

// DateToken is the transient result of reading one date span
type DateToken struct {
	Original string
	Date     time.Time
	FormatID string
	Parsed   bool

	format  *DateFormat
	month   monthStyle
	sep     string
	leading string
	trailer string
}

// Parse reads text with the catalog and, failing that, the generic parser.
// A token with Parsed false carries no date.
func (c *Catalog) Parse(text string) DateToken {
	trimmed := strings.TrimSpace(text)
	tok := DateToken{Original: text}
	if trimmed == "" {
		return tok
	}
	tok.leading = text[:strings.Index(text, trimmed)]
	tok.trailer = text[len(tok.leading)+len(trimmed):]

	if f, ok := c.Detect(trimmed); ok {
		if date, err := c.parseStrict(f, trimmed, &tok); err == nil {
			tok.Date = date
			tok.FormatID = f.ID
			tok.format = f
			tok.Parsed = true
			return tok
		}
	}

	if date, ok := c.parseGeneric(trimmed); ok {
		tok.Date = date
		tok.FormatID = FormatGeneric
		tok.Parsed = true
	}
	return tok
}

func (c *Catalog) parseStrict(f *DateFormat, trimmed string, tok *DateToken) (time.Time, error) {
	value := trimmed
	if f.monthWord {
		fields := strings.Fields(trimmed)
		month, style, ok := c.months.lookup(fields[0])
		if !ok {
			return time.Time{}, errUnknownMonth
		}
		tok.month = style
		fields[0] = month.String()
		if len(fields) > 1 {
			tok.sep = separatorBetween(trimmed)
		}
		value = strings.Join(fields, " ")
	}
	return time.Parse(f.layout, value)
}

// separatorBetween returns the whitespace run between the month word and
// the year of a month_name_year token
func separatorBetween(trimmed string) string {
	start := strings.IndexFunc(trimmed, unicode.IsSpace)
	if start < 0 {
		return " "
	}
	end := strings.IndexFunc(trimmed[start:], func(r rune) bool { return !unicode.IsSpace(r) })
	if end < 0 {
		return trimmed[start:]
	}
	return trimmed[start : start+end]
}

// Render writes date using the shape of tok
func (c *Catalog) Render(tok DateToken, date time.Time) string {
	var out string
	switch {
	case tok.format == nil:
		out = date.Format(genericTemplate)
	case tok.format.monthWord:
		out = tok.month.render(date.Month())
		if tok.format.ID == "month_name_year" {
			out += tok.sep + date.Format("2006")
		}
	default:
		out = date.Format(tok.format.Template)
	}
	return tok.leading + out + tok.trailer
}
