package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"international with plus", "+6281234567890", "6281234567890"},
		{"international with 00", "006281234567890", "6281234567890"},
		{"already bare", "6281234567890", "6281234567890"},
		{"national trunk zero", "081234567890", "6281234567890"},
		{"punctuation stripped", "+62 812-3456-7890", "6281234567890"},
		{"too short", "12345", ""},
		{"too long", "1234567890123456", ""},
		{"letters only", "not-a-phone", ""},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePhone(tc.in))
		})
	}
}

func TestIsValidPhone(t *testing.T) {
	assert.True(t, IsValidPhone("+6281234567890"))
	assert.False(t, IsValidPhone("hello"))
}
