package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateID returns a new unique identifier string
func GenerateID() string {
	return uuid.New().String()
}

// NewToken returns an opaque random token proving ownership of a lease.
func NewToken() string {
	return uuid.NewString()
}

// StableID derives the same identifier from the same parts, so a record written
// again for the same key replaces the earlier one.
func StableID(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(parts, ":"))).String()
}
