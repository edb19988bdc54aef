// Package uuid issues the stable identifiers attached to leads.
//
// Lead IDs are time-ordered UUIDv7 strings so that sorting by ID roughly
// follows creation order. IDs read back from storage may be any RFC 4122
// version (files written by older tools carry v4 IDs).
package uuid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// canonicalLen is the length of the hyphenated 8-4-4-4-12 form.
const canonicalLen = 36

// New returns a new lead ID. It falls back to a random v4 ID if the v7
// generator fails to read the clock or entropy source.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Normalize parses s and returns its lowercase hyphenated form.
func Normalize(s string) (string, error) {
	if len(s) != canonicalLen {
		return "", fmt.Errorf("invalid lead ID %q: want %d characters, got %d", s, canonicalLen, len(s))
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid lead ID %q: %w", s, err)
	}
	if id == uuid.Nil {
		return "", fmt.Errorf("invalid lead ID %q: nil UUID", s)
	}
	return strings.ToLower(id.String()), nil
}

// IsValid reports whether s is a usable lead ID.
func IsValid(s string) bool {
	_, err := Normalize(s)
	return err == nil
}
