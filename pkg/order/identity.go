package order

import (
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	// an order without checkpoints has one encoding, omitted or empty
	opts.NilContainers = cbor.NilContainerAsEmpty
	var err error
	encMode, err = opts.EncMode()
	if err != nil {
		panic(err)
	}
}

type binding struct {
	_ struct{} `cbor:",toarray"`

	Order   Order
	Parties Parties
}

// Encode returns the deterministic encoding of the order bound to its parties.
func Encode(o Order, p Parties) ([]byte, error) {
	data, err := encMode.Marshal(binding{Order: o, Parties: p})
	if err != nil {
		return nil, fmt.Errorf("failed to encode order: %w", err)
	}
	return data, nil
}

// Identity is the sha256 fingerprint of the order bound to its parties.
func Identity(o Order, p Parties) (common.Hash, error) {
	data, err := Encode(o, p)
	if err != nil {
		return common.Hash{}, err
	}
	return sha256.Sum256(data), nil
}

// EscrowAddress is the custody key of the maker's escrow for an order
// identity.
func EscrowAddress(maker common.Address, identity common.Hash) common.Hash {
	h := sha256.New()
	h.Write([]byte("escrow"))
	h.Write(maker.Bytes())
	h.Write(identity.Bytes())
	return common.BytesToHash(h.Sum(nil))
}
