package utils

import (
	"errors"
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	scriptTag   = regexp.MustCompile(`<script[^>]*>.*?</script>`)
	nonDigit    = regexp.MustCompile(`\D`)
	errBadPhone = errors.New("invalid mobile number")
)

// SanitizeInput trims, HTML-escapes and strips control characters from free text
func SanitizeInput(input string) string {
	input = scriptTag.ReplaceAllString(strings.TrimSpace(input), "")
	input = html.EscapeString(input)
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
}

// SanitizeMobileNumber keeps only the digits of a mobile money number.
// The payout provider expects local numbers, so a leading "+" or spaces are dropped.
func SanitizeMobileNumber(phone string) (string, error) {
	phone = nonDigit.ReplaceAllString(phone, "")
	if len(phone) < 8 || len(phone) > 15 {
		return "", errBadPhone
	}
	return phone, nil
}
