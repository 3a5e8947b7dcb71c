package security

import (
	"crypto/rand"
	"regexp"
)

// HexLength is the default length for generated salts and verify codes.
const HexLength = 16

var hexPattern = regexp.MustCompile(`^[0-9A-Fa-f]+$`)

const hexTable = "0123456789abcdef"

// IsHex reports whether s is a non-empty hexadecimal string.
func IsHex(s string) bool {
	return s != "" && hexPattern.MatchString(s)
}

// RandomHex returns a random lowercase hex string of the given length.
func RandomHex(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the platform entropy source is
		// broken; nothing sensible to do but crash.
		panic(err)
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = hexTable[int(b)%len(hexTable)]
	}
	return string(out)
}
