// Package signature provides helper functions for handling the blockchain
// signature needs.
package signature

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrCrypto is returned when signing can't take place because of a missing
// or malformed key.
var ErrCrypto = errors.New("crypto failure")

// blockjID is an arbitrary number added to the recovery id so it's clear
// the signature comes from this blockchain. Ethereum and Bitcoin do this as
// well, but they use the value of 27.
const blockjID = 29

// =============================================================================

// GenerateKeyPair constructs a new secp256k1 private key.
func GenerateKeyPair() (*ecdsa.PrivateKey, error) {
	pk, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: generate key: %s", ErrCrypto, err)
	}

	return pk, nil
}

// PrivateKeyHex returns the hex encoding of the private key.
func PrivateKeyHex(pk *ecdsa.PrivateKey) string {
	return hexutil.Encode(crypto.FromECDSA(pk))
}

// PublicKeyHex returns the compressed public key as a hex string.
func PublicKeyHex(pk *ecdsa.PublicKey) string {
	return hexutil.Encode(crypto.CompressPubkey(pk))
}

// Address returns the account address for the hex encoded public key.
func Address(pubKey string) (string, error) {
	pub, err := toPublicKey(pubKey)
	if err != nil {
		return "", err
	}

	return crypto.PubkeyToAddress(*pub).String(), nil
}

// Sign uses the hex encoded private key to sign the data. The signature is
// returned in the [R|S|V] format as a hex string.
func Sign(privKey string, data []byte) (string, error) {
	if privKey == "" {
		return "", fmt.Errorf("%w: private key not provided", ErrCrypto)
	}

	raw, err := hexutil.Decode(privKey)
	if err != nil {
		return "", fmt.Errorf("%w: decode private key: %s", ErrCrypto, err)
	}

	pk, err := crypto.ToECDSA(raw)
	if err != nil {
		return "", fmt.Errorf("%w: private key: %s", ErrCrypto, err)
	}

	sig, err := crypto.Sign(stamp(data), pk)
	if err != nil {
		return "", fmt.Errorf("%w: sign: %s", ErrCrypto, err)
	}

	sig[crypto.RecoveryIDOffset] += blockjID

	return hexutil.Encode(sig), nil
}

// Verify checks the signature was produced for the data by the owner of the
// public key. Malformed input never panics and is reported as false.
func Verify(pubKey string, data []byte, sigStr string) bool {
	pub, err := toPublicKey(pubKey)
	if err != nil {
		return false
	}

	sig, err := hexutil.Decode(sigStr)
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}

	// Check the recovery id is either 0 or 1.
	v := sig[crypto.RecoveryIDOffset] - blockjID
	if v != 0 && v != 1 {
		return false
	}

	return crypto.VerifySignature(crypto.CompressPubkey(pub), stamp(data), sig[:crypto.RecoveryIDOffset])
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this data with
// the blockj stamp embedded into the final hash.
func stamp(data []byte) []byte {

	// Hash the data into a 32 byte array. This will provide
	// a data length consistency with all data.
	dataHash := crypto.Keccak256(data)

	// This stamp is used so signatures we produce are always unique
	// to this blockchain.
	stamp := []byte("\x19Blockj Signed Message:\n32")

	return crypto.Keccak256(stamp, dataHash)
}

// toPublicKey decodes a compressed or uncompressed hex public key.
func toPublicKey(pubKey string) (*ecdsa.PublicKey, error) {
	raw, err := hexutil.Decode(pubKey)
	if err != nil {
		return nil, fmt.Errorf("%w: decode public key: %s", ErrCrypto, err)
	}

	switch len(raw) {
	case 33:
		pub, err := crypto.DecompressPubkey(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: public key: %s", ErrCrypto, err)
		}
		return pub, nil

	default:
		pub, err := crypto.UnmarshalPubkey(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: public key: %s", ErrCrypto, err)
		}
		return pub, nil
	}
}
