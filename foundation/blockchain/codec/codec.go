// Package codec provides the canonical encoding and content addressing
// used to identify headers and messages on the blockchain.
package codec

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/ipfs/go-cid"
	"github.com/minio/sha256-simd"
	mh "github.com/multiformats/go-multihash"
)

// ErrInvalidCID is returned when a string can't be decoded into a content
// identifier produced by this package.
var ErrInvalidCID = errors.New("invalid cid")

// Encodable represents a value that can produce the ordered list of fields
// that make up its content. Self referencing fields like a hash or a
// signature must not be part of the list.
type Encodable interface {
	SignableFields() []any
}

// =============================================================================

// Encode returns the canonical bytes for the ordered set of fields. RLP is
// used since it only encodes values in the order they are provided.
func Encode(fields ...any) ([]byte, error) {
	data, err := rlp.EncodeToBytes(fields)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	return data, nil
}

// Sum produces a version 1 content identifier for the data using a sha2-256
// multihash.
func Sum(data []byte) (cid.Cid, error) {
	digest := sha256.Sum256(data)

	hash, err := mh.Encode(digest[:], mh.SHA2_256)
	if err != nil {
		return cid.Undef, fmt.Errorf("multihash: %w", err)
	}

	return cid.NewCidV1(cid.Raw, hash), nil
}

// CID returns the content identifier for the specified value.
func CID(v Encodable) (cid.Cid, error) {
	data, err := Encode(v.SignableFields()...)
	if err != nil {
		return cid.Undef, err
	}

	return Sum(data)
}

// Parse decodes the string form of a content identifier.
func Parse(s string) (cid.Cid, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: %s", ErrInvalidCID, err)
	}

	return c, nil
}

// Digest returns the raw hash inside the content identifier as a 256 bit
// integer so it can be compared against a difficulty target.
func Digest(c cid.Cid) (*uint256.Int, error) {
	dm, err := mh.Decode(c.Hash())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCID, err)
	}

	if dm.Code != mh.SHA2_256 || len(dm.Digest) != sha256.Size {
		return nil, fmt.Errorf("%w: unexpected hash function %s", ErrInvalidCID, dm.Name)
	}

	return new(uint256.Int).SetBytes(dm.Digest), nil
}

// MeetsTarget reports whether the hash inside the content identifier is
// less than or equal to the target.
func MeetsTarget(s string, target *uint256.Int) (bool, error) {
	if target == nil {
		return false, errors.New("target not provided")
	}

	c, err := Parse(s)
	if err != nil {
		return false, err
	}

	digest, err := Digest(c)
	if err != nil {
		return false, err
	}

	return digest.Cmp(target) <= 0, nil
}
