package htlc

import (
	"crypto/rand"
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/common"
)

// NewSecret returns a random 32 byte secret and its hash lock.
func NewSecret() ([]byte, common.Hash, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, common.Hash{}, err
	}
	return secret, HashSecret(secret), nil
}

func HashSecret(secret []byte) common.Hash {
	return sha256.Sum256(secret)
}
