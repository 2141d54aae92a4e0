// Package utils holds small helpers shared across packages
package utils

import (
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// MaxLogStringLength defines the maximum length for remote-provided strings in logs
const MaxLogStringLength = 200

var unprintable = regexp.MustCompile(`[^\p{L}\p{N}\p{P}\p{S}\p{Z}]`)

// SanitizeLogString makes a string taken from a fetched document safe to log.
// Control characters become spaces, long values are cut and anything that
// is not a printable letter, number, punctuation, symbol or space is dropped.
func SanitizeLogString(input string) string {
	if input == "" {
		return ""
	}

	if len(input) > MaxLogStringLength {
		input = truncateUTF8(input, MaxLogStringLength) + "... (truncated)"
	}

	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, input)

	return unprintable.ReplaceAllString(input, "")
}

// SafeString returns a zap field whose value has been sanitized
func SafeString(key, value string) zap.Field {
	return zap.String(key, SanitizeLogString(value))
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	for n > 0 && n < len(s) && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
