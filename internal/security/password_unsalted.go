package security

import "crypto/subtle"

// unsaltedEncryption covers the legacy digest families: the stored hash
// is digest(password) with no salt. A nil digest is plaintext.
type unsaltedEncryption struct {
	digest digestFunc
}

func (e unsaltedEncryption) Parse(encrypted string) (HashedPassword, error) {
	return HashedPassword{Hash: encrypted}, nil
}

func (e unsaltedEncryption) ComputeHashed(password string) HashedPassword {
	return HashedPassword{Hash: hexDigest(e.digest, password)}
}

func (e unsaltedEncryption) Compare(password string, hashed HashedPassword) bool {
	computed := hexDigest(e.digest, password)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hashed.Hash)) == 1
}

func (e unsaltedEncryption) GenerateSalt() string { return "" }

func (e unsaltedEncryption) HasSeparateSalt() bool { return false }
