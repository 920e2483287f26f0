package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const codeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateShortCode returns a random code of RandomCodeLength characters
// drawn from [a-z0-9].
func GenerateShortCode() (string, error) {
	var b strings.Builder
	b.Grow(RandomCodeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < RandomCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// IsValidCustomCode reports whether a caller-chosen code is acceptable:
// lowercase letters, digits and hyphens, within the configured length
// bounds, not starting or ending with a hyphen.
func IsValidCustomCode(code string) bool {
	if len(code) < CustomCodeMinLength || len(code) > CustomCodeMaxLength {
		return false
	}
	if code[0] == '-' || code[len(code)-1] == '-' {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			continue
		}
		return false
	}
	return true
}
