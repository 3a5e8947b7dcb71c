package security

import "golang.org/x/crypto/bcrypt"

// bcryptEncryption is the recommended strategy for new deployments. The
// salt lives inside the bcrypt string, so HasSeparateSalt is false even
// though every hash is salted.
type bcryptEncryption struct{}

func (e bcryptEncryption) Parse(encrypted string) (HashedPassword, error) {
	if _, err := bcrypt.Cost([]byte(encrypted)); err != nil {
		return HashedPassword{}, ErrMalformedHash
	}
	return HashedPassword{Hash: encrypted}, nil
}

func (e bcryptEncryption) ComputeHashed(password string) HashedPassword {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		// only reachable for passwords beyond bcrypt's 72-byte limit
		panic(err)
	}
	return HashedPassword{Hash: string(hash)}
}

func (e bcryptEncryption) Compare(password string, hashed HashedPassword) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed.Hash), []byte(password)) == nil
}

func (e bcryptEncryption) GenerateSalt() string { return "" }

func (e bcryptEncryption) HasSeparateSalt() bool { return false }
