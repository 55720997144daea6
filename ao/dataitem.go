package ao

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fxamacker/cbor/v2"

	"github.com/fruitslash/scorekeeper/crypto"
)

/*
DataItem is a signed message sent to the process. It is signed once and the
same bytes are sent on every delivery attempt.
*/
type DataItem struct {
	ID        string        `json:"id"`
	Target    string        `json:"target"`
	Owner     hexutil.Bytes `json:"owner"`
	Anchor    string        `json:"anchor,omitempty"`
	Tags      Tags          `json:"tags"`
	Data      string        `json:"data,omitempty"`
	Signature hexutil.Bytes `json:"signature"`
}

var sigEncMode cbor.EncMode

func init() {
	var err error
	if sigEncMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(fmt.Errorf("initializing CBOR encoder: %w", err))
	}
}

func NewDataItem(target string, tags ...Tag) *DataItem {
	return &DataItem{Target: target, Tags: tags}
}

/*
SigBytes returns the deterministic CBOR encoding of the signed fields
(target, owner, anchor, tags, data).
*/
func (di *DataItem) SigBytes() ([]byte, error) {
	tags := make([][2]string, len(di.Tags))
	for i, t := range di.Tags {
		tags[i] = [2]string{t.Name, t.Value}
	}
	return sigEncMode.Marshal([]any{di.Target, []byte(di.Owner), di.Anchor, tags, di.Data})
}

/*
Sign sets the owner to the public key of the signer and signs the item.
ID of the item is the hex encoded SHA256 hash of the signature.
*/
func (di *DataItem) Sign(signer crypto.Signer) error {
	if signer == nil {
		return crypto.ErrSigningUnavailable
	}
	verifier, err := signer.Verifier()
	if err != nil {
		return fmt.Errorf("getting verifier: %w", err)
	}
	if di.Owner, err = verifier.MarshalPublicKey(); err != nil {
		return fmt.Errorf("marshal public key: %w", err)
	}
	data, err := di.SigBytes()
	if err != nil {
		return fmt.Errorf("encoding data item: %w", err)
	}
	if di.Signature, err = signer.SignBytes(data); err != nil {
		return fmt.Errorf("signing data item: %w", err)
	}
	h := sha256.Sum256(di.Signature)
	di.ID = hexutil.Encode(h[:])
	return nil
}

// Verify checks the signature of the item against it's owner key.
func (di *DataItem) Verify() error {
	if len(di.Signature) == 0 {
		return errors.New("data item is not signed")
	}
	verifier, err := crypto.NewVerifierSecp256k1(di.Owner)
	if err != nil {
		return fmt.Errorf("invalid owner: %w", err)
	}
	data, err := di.SigBytes()
	if err != nil {
		return fmt.Errorf("encoding data item: %w", err)
	}
	if err := verifier.VerifyBytes(di.Signature, data); err != nil {
		return fmt.Errorf("verifying signature: %w", err)
	}
	h := sha256.Sum256(di.Signature)
	if id := hexutil.Encode(h[:]); id != di.ID {
		return fmt.Errorf("id mismatch, expected %s got %s", id, di.ID)
	}
	return nil
}
