package database

import (
	"fmt"

	"github.com/blockj/node/foundation/blockchain/codec"
	"github.com/blockj/node/foundation/blockchain/merkle"
	"github.com/blockj/node/foundation/blockchain/signature"
	"github.com/holiman/uint256"
)

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Height      uint64       `json:"height"`       // Block number in the chain, genesis is zero.
	ParentHash  string       `json:"parent_hash"`  // Cid of the parent header, empty at genesis.
	CreateTime  uint64       `json:"create_time"`  // Time the block was assembled.
	TimeStamp   uint64       `json:"timestamp"`    // Create time aligned to the next block interval.
	Interval    uint64       `json:"interval"`     // Block interval in seconds, fixed at genesis.
	Difficulty  *uint256.Int `json:"difficulty"`   // Upper bound the hash must not exceed.
	Nonce       uint64       `json:"nonce"`        // Value identified to solve the hash solution.
	MessageRoot string       `json:"message_root"` // Merkle root over the message cids.
	PubKey      string       `json:"pub_key"`      // Public key of the miner.
	Hash        string       `json:"hash"`         // Cid of the header once sealed.
	BlockSign   string       `json:"block_sign"`   // Miner signature over the hash.
}

// SignableFields returns the fields that make up the content of the header
// in their canonical order. The hash and block signature are excluded.
func (h BlockHeader) SignableFields() []any {
	difficulty := h.Difficulty
	if difficulty == nil {
		difficulty = new(uint256.Int)
	}

	return []any{h.Height, h.ParentHash, h.CreateTime, h.TimeStamp, h.Interval, difficulty, h.Nonce, h.MessageRoot, h.PubKey}
}

// CID recalculates the content identifier of the header.
func (h BlockHeader) CID() (string, error) {
	cid, err := codec.CID(h)
	if err != nil {
		return "", err
	}

	return cid.String(), nil
}

// SignedBytes returns the bytes of the hash the miner signs.
func (h BlockHeader) SignedBytes() ([]byte, error) {
	cid, err := codec.Parse(h.Hash)
	if err != nil {
		return nil, err
	}

	return cid.Bytes(), nil
}

// VerifySign checks the block signature against the miner public key.
func (h BlockHeader) VerifySign() bool {
	data, err := h.SignedBytes()
	if err != nil {
		return false
	}

	return signature.Verify(h.PubKey, data, h.BlockSign)
}

// =============================================================================

// Block represents a group of messages batched together. The order of the
// messages is the order they are applied.
type Block struct {
	Header   BlockHeader `json:"header"`
	Messages []Message   `json:"messages"`
}

// MessageRoot calculates the merkle root over the message cids.
func (b Block) MessageRoot() string {
	leaves := make([][]byte, len(b.Messages))
	for i, msg := range b.Messages {
		leaves[i] = []byte(msg.Cid)
	}

	return merkle.RootHex(leaves)
}

// Sign signs the sealed hash with the wallet.
func (b *Block) Sign(w Wallet) error {
	data, err := b.Header.SignedBytes()
	if err != nil {
		return err
	}

	sig, err := signature.Sign(w.PrivKey, data)
	if err != nil {
		return err
	}

	b.Header.BlockSign = sig

	return nil
}

// String implements the fmt.Stringer interface for logging.
func (b Block) String() string {
	return fmt.Sprintf("%d:%s", b.Header.Height, b.Header.Hash)
}
