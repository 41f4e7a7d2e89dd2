package cryptography

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

// Signer produces a deterministic signature over a payload which a
// remote party holding the same secret can independently recompute.
type Signer interface {
	// SignPayload signs the given payload
	SignPayload(payload []byte) (string, error)
	// VerifySignature checks a signature produced by the same secret
	VerifySignature(payload []byte, signature string) bool
}

// SaltedDigestSigner signs as base64(sha1(secret || payload || secret)).
// The secret never leaves the signer and is never logged.
type SaltedDigestSigner struct {
	secret []byte
}

// NewSaltedDigestSigner creates a new Signer around the shared secret
func NewSaltedDigestSigner(secret []byte) Signer {
	signer := SaltedDigestSigner{secret}
	return &signer
}

// SignPayload signs using the in process secret
func (s *SaltedDigestSigner) SignPayload(payload []byte) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("no secret material configured for signer")
	}
	h := sha1.New()
	h.Write(s.secret)
	h.Write(payload)
	h.Write(s.secret)
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// VerifySignature recomputes the signature and compares in constant time
func (s *SaltedDigestSigner) VerifySignature(payload []byte, signature string) bool {
	expected, err := s.SignPayload(payload)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
