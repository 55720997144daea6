package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecp256k1_SignAndVerify(t *testing.T) {
	signer, err := NewInMemorySecp256K1Signer()
	require.NoError(t, err)

	data := []byte("score 42")
	sig, err := signer.SignBytes(data)
	require.NoError(t, err)
	require.Len(t, sig, SignatureSecp256K1Size)

	verifier, err := signer.Verifier()
	require.NoError(t, err)
	require.NoError(t, verifier.VerifyBytes(sig, data))
	require.ErrorIs(t, verifier.VerifyBytes(sig, []byte("score 43")), ErrVerificationFailed)

	pub, err := verifier.MarshalPublicKey()
	require.NoError(t, err)
	require.Len(t, pub, CompressedSecp256K1PublicKeySize)

	// verifier restored from the compressed key accepts the same signature
	v2, err := NewVerifierSecp256k1(pub)
	require.NoError(t, err)
	require.NoError(t, v2.VerifyBytes(sig, data))
}

func TestSecp256k1_SignerFromKey(t *testing.T) {
	s1, err := NewInMemorySecp256K1Signer()
	require.NoError(t, err)
	key, err := s1.MarshalPrivateKey()
	require.NoError(t, err)

	s2, err := NewInMemorySecp256K1SignerFromKey(key)
	require.NoError(t, err)

	v1, err := s1.Verifier()
	require.NoError(t, err)
	v2, err := s2.Verifier()
	require.NoError(t, err)
	p1, _ := v1.MarshalPublicKey()
	p2, _ := v2.MarshalPublicKey()
	require.Equal(t, p1, p2)

	_, err = NewInMemorySecp256K1SignerFromKey([]byte{1, 2, 3})
	require.EqualError(t, err, "invalid private key length. Is 3 (expected 32)")
}

func TestSecp256k1_NilSigner(t *testing.T) {
	var s *InMemorySecp256K1Signer
	_, err := s.SignBytes([]byte{1})
	require.ErrorIs(t, err, errNilSigner)
	_, err = s.Verifier()
	require.ErrorIs(t, err, errNilSigner)
}

func TestNewVerifierSecp256k1_InvalidKey(t *testing.T) {
	_, err := NewVerifierSecp256k1([]byte{1, 2})
	require.EqualError(t, err, "pubkey must be 33 bytes long, but is 2")
}
