package security

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedHash = errors.New("encrypted value does not match this encryption algorithm")

// saltedEncryption stores "$HASH$<salt>$<digest>" where
// digest = H(H(password) + salt) and salt is 16 random hex chars. The
// serialized value splits into exactly four $-delimited fields, the first
// being empty.
type saltedEncryption struct {
	digest digestFunc
}

func (e saltedEncryption) Parse(encrypted string) (HashedPassword, error) {
	fields := strings.Split(encrypted, "$")
	if len(fields) != 4 {
		return HashedPassword{}, ErrMalformedHash
	}
	return HashedPassword{Hash: encrypted, Salt: fields[2]}, nil
}

func (e saltedEncryption) ComputeHashed(password string) HashedPassword {
	salt := e.GenerateSalt()
	return HashedPassword{Hash: e.computeHash(password, salt), Salt: salt}
}

// Compare re-derives the full serialized value from the salt embedded in
// the stored hash. The salt carried on the HashedPassword is ignored on
// purpose: only the stored value is trusted.
func (e saltedEncryption) Compare(password string, hashed HashedPassword) bool {
	fields := strings.Split(hashed.Hash, "$")
	if len(fields) != 4 {
		return false
	}
	computed := e.computeHash(password, fields[2])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hashed.Hash)) == 1
}

func (e saltedEncryption) GenerateSalt() string { return RandomHex(HexLength) }

func (e saltedEncryption) HasSeparateSalt() bool { return true }

func (e saltedEncryption) computeHash(password, salt string) string {
	inner := hexDigest(e.digest, password)
	return fmt.Sprintf("$HASH$%s$%s", salt, hexDigest(e.digest, inner+salt))
}
