package security

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
)

// HashedPassword is a stored password digest plus its salt when the
// algorithm keeps one separately.
type HashedPassword struct {
	Hash string
	Salt string
}

// PasswordEncryption is the pluggable hashing strategy. Compare semantics
// are uniform across algorithms: the claimed password is re-hashed and
// the stored value checked as a whole, never trusting caller-supplied
// salt material.
type PasswordEncryption interface {
	// Parse rebuilds a HashedPassword from its serialized form.
	Parse(encrypted string) (HashedPassword, error)
	ComputeHashed(password string) HashedPassword
	Compare(password string, hashed HashedPassword) bool
	GenerateSalt() string
	HasSeparateSalt() bool
}

// Supported strategy names, selected by configuration. The first three
// are kept for legacy databases only.
const (
	StrategyPlaintext    = "plaintext"
	StrategyMd5          = "md5"
	StrategySha1         = "sha1"
	StrategySha256       = "sha256"
	StrategySha512       = "sha512"
	StrategySaltedMd5    = "salted-md5"
	StrategySaltedSha1   = "salted-sha1"
	StrategySaltedSha256 = "salted-sha256"
	StrategySaltedSha512 = "salted-sha512"
	StrategyBcrypt       = "bcrypt"
)

type digestFunc func() hash.Hash

// NewEncryption returns the strategy for a configuration name. An unknown
// name is a fatal configuration error, surfaced at startup.
func NewEncryption(name string) (PasswordEncryption, error) {
	switch name {
	case StrategyPlaintext:
		return unsaltedEncryption{digest: nil}, nil
	case StrategyMd5:
		return unsaltedEncryption{digest: md5.New}, nil
	case StrategySha1:
		return unsaltedEncryption{digest: sha1.New}, nil
	case StrategySha256:
		return unsaltedEncryption{digest: sha256.New}, nil
	case StrategySha512:
		return unsaltedEncryption{digest: sha512.New}, nil
	case StrategySaltedMd5:
		return saltedEncryption{digest: md5.New}, nil
	case StrategySaltedSha1:
		return saltedEncryption{digest: sha1.New}, nil
	case StrategySaltedSha256:
		return saltedEncryption{digest: sha256.New}, nil
	case StrategySaltedSha512:
		return saltedEncryption{digest: sha512.New}, nil
	case StrategyBcrypt:
		return bcryptEncryption{}, nil
	default:
		return nil, fmt.Errorf("unsupported password encryption: %q", name)
	}
}

// IsDeprecated reports whether a strategy name is one of the unsafe
// legacy schemes that deserve a startup warning.
func IsDeprecated(name string) bool {
	switch name {
	case StrategyPlaintext, StrategyMd5, StrategySha1:
		return true
	}
	return false
}

func hexDigest(digest digestFunc, input string) string {
	if digest == nil {
		return input // plaintext
	}
	h := digest()
	h.Write([]byte(input))
	return hex.EncodeToString(h.Sum(nil))
}
