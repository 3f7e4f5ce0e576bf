// Package pseudonym replaces identifying text spans of clinical documents
// with synthetic substitutes that stay consistent for the lifetime of a
// session: names, places, phone numbers, postal codes and email addresses
// are memoized per session, and every date is moved by one session-wide
// day offset while keeping its textual shape.
package pseudonym

import "strings"

// Category identifies the kind of identifying value a span carries
type Category string

const (
	CategoryName       Category = "NAME"
	CategoryFirstName  Category = "FIRST_NAME"
	CategoryLocation   Category = "LOCATION"
	CategoryDate       Category = "DATE"
	CategoryPhone      Category = "PHONE"
	CategoryPostalCode Category = "POSTAL_CODE"
	CategoryEmail      Category = "EMAIL"
	CategoryOther      Category = "OTHER"
)

// labelAliases maps the recognizer's native labels onto categories
var labelAliases = map[string]Category{
	"NAME":        CategoryName,
	"NOM":         CategoryName,
	"PERSON":      CategoryName,
	"FIRST_NAME":  CategoryFirstName,
	"PRENOM":      CategoryFirstName,
	"LOCATION":    CategoryLocation,
	"ADRESSE":     CategoryLocation,
	"VILLE":       CategoryLocation,
	"DATE":        CategoryDate,
	"PHONE":       CategoryPhone,
	"TEL":         CategoryPhone,
	"POSTAL_CODE": CategoryPostalCode,
	"ZIP":         CategoryPostalCode,
	"EMAIL":       CategoryEmail,
	"MAIL":        CategoryEmail,
}

// ParseLabel maps an entity label to its category. Unknown labels map to
// CategoryOther, which the facade passes through untouched.
func ParseLabel(label string) Category {
	if c, ok := labelAliases[strings.ToUpper(strings.TrimSpace(label))]; ok {
		return c
	}
	return CategoryOther
}

// Known reports whether the category is transformed by the facade
func (c Category) Known() bool {
	switch c {
	case CategoryName, CategoryFirstName, CategoryLocation, CategoryDate,
		CategoryPhone, CategoryPostalCode, CategoryEmail:
		return true
	}
	return false
}

// Categories lists every category the facade transforms
func Categories() []Category {
	return []Category{
		CategoryName, CategoryFirstName, CategoryLocation, CategoryDate,
		CategoryPhone, CategoryPostalCode, CategoryEmail,
	}
}

// Kind names one of the memo tables of the mapping store
type Kind string

const (
	KindFirstName  Kind = "first_names"
	KindLastName   Kind = "last_names"
	KindFullName   Kind = "full_names"
	KindLocation   Kind = "locations"
	KindPhone      Kind = "phones"
	KindPostalCode Kind = "postal_codes"
	KindEmail      Kind = "emails"
)

// Kinds lists every memo table in a stable order
func Kinds() []Kind {
	return []Kind{
		KindFirstName, KindLastName, KindFullName, KindLocation,
		KindPhone, KindPostalCode, KindEmail,
	}
}
