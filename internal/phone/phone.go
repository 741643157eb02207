// Package phone parses free-form North American phone number text into a
// single canonical E.164 rendering and derives a coarse region from the area code.
//
// Validation is purely structural: no carrier or line-type registry is consulted.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	countryCode    = "1"
	defaultRegion  = "US"
	subscriberLen  = 10
	withTrunkLen   = subscriberLen + 1
	areaCodeLength = 3
)

// Number is a structurally valid phone number
type Number struct {
	// Formatted is the canonical E.164 form, e.g. +15551234567
	Formatted string `json:"formatted"`
	// Display is the national rendering, e.g. (555) 123-4567
	Display  string `json:"display"`
	AreaCode string `json:"area_code"`
	// Region is the 2-letter region for the area code, empty when unknown
	Region string `json:"region,omitempty"`
}

// Result is the outcome of Normalize
type Result struct {
	OK        bool   `json:"ok"`
	Formatted string `json:"formatted,omitempty"`
	Display   string `json:"display,omitempty"`
	Region    string `json:"region,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

// Normalize parses raw and reports the outcome as a value.
func Normalize(raw string) Result {
	n, err := Parse(raw)
	if err != nil {
		return Result{OK: false, Reason: err.Error(), Kind: string(KindOf(err))}
	}
	return Result{OK: true, Formatted: n.Formatted, Display: n.Display, Region: n.Region}
}

// Parse strips every non-digit from raw and accepts 10 digits, or 11 digits
// with a leading 1. The area code must not start with 0 or 1.
func Parse(raw string) (Number, error) {
	digits := stripNonDigits(raw)

	switch {
	case len(digits) == withTrunkLen && digits[0] == '1':
		digits = digits[1:]
	case len(digits) == subscriberLen:
	default:
		return Number{}, &FormatError{Kind: InvalidLength, Input: raw, Digits: len(digits)}
	}

	if digits[0] == '0' || digits[0] == '1' {
		return Number{}, &FormatError{Kind: InvalidPrefix, Input: raw, Digits: len(digits)}
	}

	areaCode := digits[:areaCodeLength]
	formatted, display := render(digits)

	return Number{
		Formatted: formatted,
		Display:   display,
		AreaCode:  areaCode,
		Region:    RegionForAreaCode(areaCode),
	}, nil
}

// IsValid reports whether raw parses
func IsValid(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}

// render produces the canonical and display forms of a 10-digit subscriber number.
func render(digits string) (string, string) {
	fallback := "+" + countryCode + digits
	num, err := phonenumbers.Parse(fallback, defaultRegion)
	if err != nil {
		return fallback, fallback
	}

	formatted := phonenumbers.Format(num, phonenumbers.E164)
	if formatted != fallback {
		// The canonical form must be a function of the digits alone.
		formatted = fallback
	}
	return formatted, phonenumbers.Format(num, phonenumbers.NATIONAL)
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
