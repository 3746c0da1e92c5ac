// Package uuid issues identifiers for requests and WebSocket clients.
package uuid

import (
	"github.com/google/uuid"
)

// New returns a random (v4) identifier.
func New() string {
	return uuid.New().String()
}

// IsValid reports whether s is a canonical v4 identifier
// (36 characters, dashes included).
func IsValid(s string) bool {
	if len(s) != 36 {
		return false
	}
	id, err := uuid.Parse(s)
	return err == nil && id.Version() == 4 && id.Variant() == uuid.RFC4122
}

// OrNew returns s when it is a valid v4 identifier and a fresh one otherwise.
// Caller-supplied request ids pass through this so only well-formed values
// reach the logs.
func OrNew(s string) string {
	if IsValid(s) {
		return s
	}
	return New()
}
