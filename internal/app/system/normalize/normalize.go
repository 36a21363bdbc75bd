// Package normalize provides helper functions for consistent string
// normalization before storage or comparison.
package normalize

import "strings"

// Email trims whitespace and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims whitespace from a display name.
// Use text.Fold() for case-insensitive comparison keys.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Username trims whitespace and a leading "@" from a handle. Case is
// preserved; lookups use the folded form.
func Username(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}

// Content trims surrounding whitespace and normalizes line endings of
// user-written text (posts, comments, messages, bios).
func Content(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s)
}

// Status lowercases and trims a status value.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Role lowercases and trims a role value.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims a query parameter.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
