package cryptography

import (
	"crypto/sha1"
	"encoding/base64"
	"testing"

	testutils "github.com/marketwell/payhub/libs/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaltedDigestSigner_SignPayload(t *testing.T) {
	secret := []byte("private_key")
	payload := []byte("eyJhY3Rpb24iOiJwYXkifQ==")

	signer := NewSaltedDigestSigner(secret)
	signature, err := signer.SignPayload(payload)
	require.NoError(t, err)

	h := sha1.New()
	h.Write(secret)
	h.Write(payload)
	h.Write(secret)
	expected := base64.StdEncoding.EncodeToString(h.Sum(nil))

	assert.Equal(t, expected, signature)
}

func TestSaltedDigestSigner_Deterministic(t *testing.T) {
	signer := NewSaltedDigestSigner([]byte(testutils.RandomString()))
	payload := []byte(testutils.RandomString())

	first, err := signer.SignPayload(payload)
	require.NoError(t, err)
	second, err := signer.SignPayload(payload)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSaltedDigestSigner_VerifySignature(t *testing.T) {
	signer := NewSaltedDigestSigner([]byte(testutils.RandomString()))
	payload := []byte(testutils.RandomString())

	signature, err := signer.SignPayload(payload)
	require.NoError(t, err)

	assert.True(t, signer.VerifySignature(payload, signature))
	assert.False(t, signer.VerifySignature([]byte("tampered"), signature))

	other := NewSaltedDigestSigner([]byte(testutils.RandomString()))
	assert.False(t, other.VerifySignature(payload, signature))
}

func TestSaltedDigestSigner_EmptySecret(t *testing.T) {
	signer := NewSaltedDigestSigner(nil)
	_, err := signer.SignPayload([]byte("payload"))
	assert.Error(t, err)
}
