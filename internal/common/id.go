package common

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a new UUID string.
func NewID() string {
	return uuid.New().String()
}

// ShortID returns the first segment of a UUID, for log correlation.
func ShortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
