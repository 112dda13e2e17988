// Package utils provides common utility functions.
package utils

import (
	"strings"
	"unicode/utf8"
)

// MaskKey masks a secret for safe logging (shows first 8 and last 4 chars).
// Use this to avoid logging tokens in plain text.
func MaskKey(key string) string {
	if key == "" {
		return "(empty)"
	}
	if len(key) < 16 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}

// MaskAuthorization masks an Authorization header value, keeping the scheme
// readable: "Bearer eyJhbGci...x9Qw".
func MaskAuthorization(value string) string {
	if value == "" {
		return "(none)"
	}
	scheme, token, ok := strings.Cut(value, " ")
	if !ok {
		return MaskKey(value)
	}
	return scheme + " " + MaskKey(strings.TrimSpace(token))
}

// Truncate shortens s to at most maxLen bytes, marking the cut. The cut
// never splits a UTF-8 sequence.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}
