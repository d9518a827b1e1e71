package utils

import (
	"strings"
	"unicode"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const slugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Slugify lowercases the name and collapses everything non-alphanumeric
// into single dashes.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastDash = false
		} else if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// SlugSuffix returns a short random suffix for de-duplicating slugs.
func SlugSuffix() string {
	code, err := gonanoid.Generate(slugAlphabet, 6)
	if err != nil {
		// nanoid only fails when the system RNG does
		return "000000"
	}
	return code
}
