package crypto

import (
	"crypto"
	"crypto/sha256"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var ErrVerificationFailed = errors.New("verification failed")

type (
	verifierSecp256k1 struct {
		pubKey []byte // uncompressed
	}
)

// NewVerifierSecp256k1 creates new verifier from an existing Secp256k1 compressed public key.
func NewVerifierSecp256k1(compressedPubKey []byte) (Verifier, error) {
	if len(compressedPubKey) != CompressedSecp256K1PublicKeySize {
		return nil, fmt.Errorf("pubkey must be %d bytes long, but is %d", CompressedSecp256K1PublicKeySize, len(compressedPubKey))
	}
	pubKey, err := ethcrypto.DecompressPubkey(compressedPubKey)
	if err != nil {
		return nil, fmt.Errorf("decompressing public key: %w", err)
	}
	return &verifierSecp256k1{pubKey: ethcrypto.FromECDSAPub(pubKey)}, nil
}

// VerifyBytes hashes the data with SHA256 and verifies it using the public key of the verifier.
func (v *verifierSecp256k1) VerifyBytes(sig []byte, data []byte) error {
	if v == nil || sig == nil || data == nil {
		return errors.New("nil argument")
	}
	hash := sha256.Sum256(data)
	return v.VerifyHash(sig, hash[:])
}

// VerifyHash verifies the hash against the signature, using the internal public key.
func (v *verifierSecp256k1) VerifyHash(sig []byte, hash []byte) error {
	if v == nil || sig == nil || hash == nil {
		return errors.New("nil argument")
	}
	if len(sig) != SignatureSecp256K1Size {
		return fmt.Errorf("signature length is %d b (expected %d b)", len(sig), SignatureSecp256K1Size)
	}
	// Ignore the recovery ID
	if !ethcrypto.VerifySignature(v.pubKey, hash, sig[:64]) {
		return ErrVerificationFailed
	}
	return nil
}

// MarshalPublicKey returns compressed public key, 33 bytes
func (v *verifierSecp256k1) MarshalPublicKey() ([]byte, error) {
	pubKey, err := ethcrypto.UnmarshalPubkey(v.pubKey)
	if err != nil {
		return nil, err
	}
	return ethcrypto.CompressPubkey(pubKey), nil
}

func (v *verifierSecp256k1) UnmarshalPubKey() (crypto.PublicKey, error) {
	return ethcrypto.UnmarshalPubkey(v.pubKey)
}
