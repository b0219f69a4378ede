package database

import (
	"fmt"

	"github.com/blockj/node/foundation/blockchain/signature"
)

// Wallet represents a key pair kept by the node. One wallet is designated
// as the mining identity.
type Wallet struct {
	Address string `json:"address"`
	PubKey  string `json:"pub_key"`
	PrivKey string `json:"priv_key"`
}

// NewWallet generates a new key pair and derives its address.
func NewWallet() (Wallet, error) {
	pk, err := signature.GenerateKeyPair()
	if err != nil {
		return Wallet{}, err
	}

	pubKey := signature.PublicKeyHex(&pk.PublicKey)

	address, err := signature.Address(pubKey)
	if err != nil {
		return Wallet{}, fmt.Errorf("address: %w", err)
	}

	w := Wallet{
		Address: address,
		PubKey:  pubKey,
		PrivKey: signature.PrivateKeyHex(pk),
	}

	return w, nil
}
