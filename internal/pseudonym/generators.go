package pseudonym

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"unicode"

	"github.com/brianvoe/gofakeit/v6"
)

// Generator produces synthetic substitutes. Implementations must be total:
// every method returns a well-formed value.
type Generator interface {
	FirstName() string
	LastName() string
	Location() string
	Phone() string
	PostalCode() string
	Email() string
}

// FakerGenerator draws names and places from gofakeit and builds phone
// numbers, postal codes and email addresses itself. All draws come from the
// session's random source.
type FakerGenerator struct {
	faker  *gofakeit.Faker
	rng    *rand.Rand
	locale string
}

// NewFakerGenerator returns a generator for locale ("fr" or "en") drawing
// from src
func NewFakerGenerator(locale string, src rand.Source) *FakerGenerator {
	locked := &lockedSource{src: src}
	return &FakerGenerator{
		faker:  gofakeit.NewCustom(locked),
		rng:    rand.New(locked),
		locale: locale,
	}
}

// FirstName returns a plausible first name for the locale
func (g *FakerGenerator) FirstName() string {
	if g.locale == "fr" {
		return g.faker.RandomString(frenchFirstNames)
	}
	return g.faker.FirstName()
}

// LastName returns a plausible last name for the locale
func (g *FakerGenerator) LastName() string {
	if g.locale == "fr" {
		return g.faker.RandomString(frenchLastNames)
	}
	return g.faker.LastName()
}

// Location returns a plausible place name for the locale
func (g *FakerGenerator) Location() string {
	if g.locale == "fr" {
		return g.faker.RandomString(frenchCities)
	}
	return g.faker.City()
}

// Phone composes a French-shaped telephone number: a national form with a
// leading zero or an international form with a +NN or (NN) prefix, a nine
// digit body and one of several separator styles.
func (g *FakerGenerator) Phone() string {
	country := 33
	if g.rng.Intn(3) == 0 {
		country = 11 + g.rng.Intn(89)
	}
	prefix := fmt.Sprintf("+%02d", country)
	if g.rng.Intn(3) == 0 {
		prefix = fmt.Sprintf("(%02d)", country)
	}

	// The first digit of the body is the zone or mobile prefix, never 0 or 8-9
	body := make([]byte, 9)
	for i := range body {
		lo := 0
		if i == 0 {
			lo = 1
		}
		body[i] = byte('0' + lo + g.rng.Intn(8-lo))
	}
	pairs := []string{string(body[1:3]), string(body[3:5]), string(body[5:7]), string(body[7:9])}

	var phone string
	switch g.rng.Intn(3) {
	case 0, 1:
		sep := phoneSeparators[g.rng.Intn(len(phoneSeparators))]
		phone = "0" + string(body[0]) + sep + strings.Join(pairs, sep)
	default:
		sep := ""
		if g.rng.Intn(2) == 0 {
			sep = " "
		}
		lead := string(body[0])
		if g.rng.Intn(3) == 0 {
			lead = "0" + lead
		}
		phone = prefix + sep + lead + sep + strings.Join(pairs, sep)
	}

	if g.rng.Intn(7) == 0 {
		phone = strings.Join(strings.Fields(phone), "")
	}
	return phone
}

var phoneSeparators = []string{" ", "-", ".", "", "", ""}

// Territory classes of French postal codes
const (
	TerritoryMetropolitan = "metropolitan"
	TerritoryOverseas     = "overseas"
	TerritoryCorsica      = "corsica"
)

var overseasDepartments = []int{971, 972, 973, 974, 976}

// PostalCode draws a French postal code: metropolitan five in seven times,
// overseas and Corsica one in seven each. Half of the codes carry a space
// after the department.
func (g *FakerGenerator) PostalCode() string {
	var department, suffix string
	switch n := g.rng.Intn(7); {
	case n < 5:
		d := 1 + g.rng.Intn(94)
		if d >= 20 {
			d++
		}
		department = fmt.Sprintf("%02d", d)
		suffix = fmt.Sprintf("%03d", g.rng.Intn(1000))
	case n == 5:
		department = fmt.Sprintf("%d", overseasDepartments[g.rng.Intn(len(overseasDepartments))])
		suffix = fmt.Sprintf("%02d", g.rng.Intn(100))
	default:
		department = []string{"2A", "2B"}[g.rng.Intn(2)]
		suffix = fmt.Sprintf("%03d", g.rng.Intn(1000))
	}

	if g.rng.Intn(2) == 0 {
		return department + " " + suffix
	}
	return department + suffix
}

var mailDomains = []string{
	"gmail.com", "orange.fr", "free.fr", "wanadoo.fr", "laposte.net",
	"hotmail.fr", "sfr.fr", "yahoo.fr", "outlook.fr",
}

var mailSeparators = []string{"-", ".", "_", "", ""}

// Email builds an address from a fresh name pair unrelated to any resolved
// name
func (g *FakerGenerator) Email() string {
	first := mailPart(g.FirstName())
	last := mailPart(g.LastName())
	first = first[:1+g.rng.Intn(len(first))]
	last = last[:1+g.rng.Intn(len(last))]

	num := func() string {
		if g.rng.Intn(3) == 0 {
			return fmt.Sprintf("%d", g.rng.Intn(100))
		}
		return ""
	}
	sep := mailSeparators[g.rng.Intn(len(mailSeparators))]
	domain := mailDomains[g.rng.Intn(len(mailDomains))]

	if g.rng.Intn(2) == 0 {
		return first + num() + sep + last + num() + "@" + domain
	}
	return last + num() + sep + first + num() + "@" + domain
}

// mailPart lowercases a name and keeps only ASCII letters
func mailPart(name string) string {
	folded := strings.ToLower(stripAccents(name))
	var b strings.Builder
	for _, r := range folded {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "contact"
	}
	return b.String()
}

// lockedSource serializes access to a rand.Source shared by the faker and
// the bespoke generators
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s64, ok := s.src.(rand.Source64); ok {
		return s64.Uint64()
	}
	return uint64(s.src.Int63())>>31 | uint64(s.src.Int63())<<32
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}
