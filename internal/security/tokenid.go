package security

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Token and profile ids travel on the wire as 32-character lowercase hex
// UUIDs without dashes.

var ErrMalformedID = errors.New("malformed unsigned uuid")

// NewID returns a fresh random undashed UUID.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ParseID validates an undashed UUID and returns its canonical lowercase
// form.
func ParseID(s string) (string, error) {
	if len(s) != 32 || !IsHex(s) {
		return "", ErrMalformedID
	}
	return strings.ToLower(s), nil
}
