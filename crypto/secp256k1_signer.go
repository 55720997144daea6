package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// PrivateKeySecp256K1Size is the size of the private key in bytes
	PrivateKeySecp256K1Size = 32
	// CompressedSecp256K1PublicKeySize is size of public key in compressed format
	CompressedSecp256K1PublicKeySize = 33
	// SignatureSecp256K1Size is the size of the signature, [R || S || V] format
	SignatureSecp256K1Size = 65
)

var errNilSigner = errors.New("nil signer")

type (
	// InMemorySecp256K1Signer for using during development
	InMemorySecp256K1Signer struct {
		privKey []byte
	}
)

// NewInMemorySecp256K1Signer generates new key pair and creates a new InMemorySecp256K1Signer.
func NewInMemorySecp256K1Signer() (*InMemorySecp256K1Signer, error) {
	privKey, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating secp256k1 key: %w", err)
	}
	return NewInMemorySecp256K1SignerFromKey(ethcrypto.FromECDSA(privKey))
}

// NewInMemorySecp256K1SignerFromKey creates signer from an existing private key.
func NewInMemorySecp256K1SignerFromKey(privKey []byte) (*InMemorySecp256K1Signer, error) {
	if len(privKey) != PrivateKeySecp256K1Size {
		return nil, fmt.Errorf("invalid private key length. Is %d (expected %d)", len(privKey), PrivateKeySecp256K1Size)
	}
	return &InMemorySecp256K1Signer{privKey: privKey}, nil
}

// SignBytes hashes the data with SHA256 and creates a recoverable ECDSA signature.
// The produced signature is in the 65-byte [R || S || V] format where V is 0 or 1.
func (s *InMemorySecp256K1Signer) SignBytes(data []byte) ([]byte, error) {
	if s == nil {
		return nil, errNilSigner
	}
	hash := sha256.Sum256(data)
	return s.SignHash(hash[:])
}

// SignHash creates a recoverable ECDSA signature.
// The produced signature is in the 65-byte [R || S || V] format where V is 0 or 1.
func (s *InMemorySecp256K1Signer) SignHash(hash []byte) ([]byte, error) {
	if s == nil {
		return nil, errNilSigner
	}
	privateKey, err := ethcrypto.ToECDSA(s.privKey)
	if err != nil {
		return nil, err
	}
	return ethcrypto.Sign(hash, privateKey)
}

func (s *InMemorySecp256K1Signer) Verifier() (Verifier, error) {
	if s == nil {
		return nil, errNilSigner
	}
	privateKey, err := ethcrypto.ToECDSA(s.privKey)
	if err != nil {
		return nil, err
	}
	return NewVerifierSecp256k1(ethcrypto.CompressPubkey(&privateKey.PublicKey))
}

func (s *InMemorySecp256K1Signer) MarshalPrivateKey() ([]byte, error) {
	if s == nil {
		return nil, errNilSigner
	}
	return s.privKey, nil
}
