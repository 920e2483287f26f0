package utils

import (
	"strings"
)

// DefaultCountryCode is applied when a phone number is given in national
// form with a leading trunk zero.
const DefaultCountryCode = "62"

// NormalizePhone canonicalizes a phone number to bare international digits:
// punctuation and whitespace are stripped, a leading "+" or "00" prefix is
// removed, and a national trunk "0" is replaced with the country code.
// Returns an empty string when the input cannot be a phone number.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(raw, "+") {
		// already international, digits are complete
	} else if strings.HasPrefix(digits, "00") {
		digits = digits[2:]
	} else if strings.HasPrefix(digits, "0") {
		digits = DefaultCountryCode + digits[1:]
	}
	if len(digits) < 8 || len(digits) > 15 {
		return ""
	}
	return digits
}

// IsValidPhone reports whether raw normalizes to a usable phone number.
func IsValidPhone(raw string) bool {
	return NormalizePhone(raw) != ""
}
