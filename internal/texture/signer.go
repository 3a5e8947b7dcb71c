// Package texture implements the signing collaborator for profile texture
// properties: RSA-SHA1 signatures over the base64 textures payload, plus
// URL wrapping for stored texture hashes.
package texture

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrNoSigningKey = errors.New("texture signing key not configured")

type Signer struct {
	key     *rsa.PrivateKey
	baseURL string
}

// NewSigner loads a PEM-encoded RSA private key. baseURL is where texture
// payloads are served from, e.g. "http://localhost:8080/textures".
func NewSigner(keyPath, baseURL string) (*Signer, error) {
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("signing key is not PEM encoded")
	}
	key, err := parseRSAKey(block)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return &Signer{key: key, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// NewUnsignedSigner serves unsigned texture properties only; Sign fails.
// Used when no key is configured, e.g. in development.
func NewUnsignedSigner(baseURL string) *Signer {
	return &Signer{baseURL: strings.TrimRight(baseURL, "/")}
}

func parseRSAKey(block *pem.Block) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("signing key is not RSA")
	}
	return key, nil
}

// Sign returns the base64 RSA-SHA1 signature over payload. Game clients
// verify texture properties against the paired public key.
func (s *Signer) Sign(payload string) (string, error) {
	if s.key == nil {
		return "", ErrNoSigningKey
	}
	digest := sha1.Sum([]byte(payload))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA1, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign textures payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// CanSign reports whether a private key is loaded.
func (s *Signer) CanSign() bool { return s.key != nil }

// WrapURL turns a stored texture hash into its public URL.
func (s *Signer) WrapURL(hash string) string {
	return s.baseURL + "/" + hash
}

// PublicKeyPEM exports the verification key for clients, empty when
// unsigned.
func (s *Signer) PublicKeyPEM() string {
	if s.key == nil {
		return ""
	}
	der, err := x509.MarshalPKIXPublicKey(&s.key.PublicKey)
	if err != nil {
		return ""
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}
