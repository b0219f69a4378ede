// Package pow implements the proof of work engine. It assembles candidate
// blocks, searches for a nonce that solves the difficulty target, seals the
// result with the miner signature and validates blocks received from peers.
package pow

import (
	"context"
	"fmt"
	"time"

	"github.com/blockj/node/foundation/blockchain/codec"
	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/holiman/uint256"
)

// DefaultNonceBatch is the number of nonces tried between checks for
// cancellation.
const DefaultNonceBatch = 10_000

// EventHandler defines a function that is called when events
// occur in the processing of mining blocks.
type EventHandler func(v string, args ...any)

// Engine holds the chain parameters used to mine and validate blocks. The
// target is fixed at genesis and never retargeted.
type Engine struct {
	Target     *uint256.Int
	Interval   time.Duration
	NonceBatch uint64
	EvHandler  EventHandler
}

// New constructs an engine for the target and block interval. The interval
// only matters when minting a genesis block, every later block inherits the
// interval recorded in the genesis header.
func New(target *uint256.Int, interval time.Duration, evHandler EventHandler) Engine {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	return Engine{
		Target:     target.Clone(),
		Interval:   interval,
		NonceBatch: DefaultNonceBatch,
		EvHandler:  ev,
	}
}

// ForChain constructs the engine for the chain started by the genesis header.
// The target and block interval are chain parameters, local configuration
// never overrides them.
func ForChain(genesis database.BlockHeader, evHandler EventHandler) Engine {
	target := genesis.Difficulty
	if target == nil {
		target = new(uint256.Int)
	}

	return New(target, time.Duration(genesis.Interval)*time.Second, evHandler)
}

// =============================================================================

// IntervalSeconds returns the block interval in whole seconds, never less
// than one.
func (e Engine) IntervalSeconds() uint64 {
	if secs := uint64(e.Interval / time.Second); secs > 0 {
		return secs
	}

	return 1
}

// AlignTimestamp aligns the create time using the engine interval.
func (e Engine) AlignTimestamp(createTime uint64) uint64 {
	return Align(createTime, e.IntervalSeconds())
}

// Align rounds the create time down to the interval and adds one interval so
// block times are spaced even under clock jitter.
func Align(createTime uint64, interval uint64) uint64 {
	if interval == 0 {
		interval = 1
	}

	return createTime - createTime%interval + interval
}

// Assemble builds the candidate block that extends the parent. The nonce
// starts at zero and the interval is inherited from the parent.
func (e Engine) Assemble(parent database.BlockHeader, msgs []database.Message, pubKey string, now time.Time) database.Block {
	createTime := uint64(now.UTC().Unix())

	b := database.Block{
		Header: database.BlockHeader{
			Height:     parent.Height + 1,
			ParentHash: parent.Hash,
			CreateTime: createTime,
			TimeStamp:  Align(createTime, parent.Interval),
			Interval:   parent.Interval,
			Difficulty: e.Target.Clone(),
			PubKey:     pubKey,
		},
		Messages: msgs,
	}
	b.Header.MessageRoot = b.MessageRoot()

	return b
}

// Search increments the nonce until the header hash is less than or equal
// to the difficulty. Cancellation is checked once per nonce batch. Pointer
// semantics are used since the nonce and hash are being discovered.
func (e Engine) Search(ctx context.Context, b *database.Block) error {
	e.EvHandler("pow: Search: MINING: blk[%d]: started", b.Header.Height)
	defer e.EvHandler("pow: Search: MINING: blk[%d]: completed", b.Header.Height)

	batch := e.NonceBatch
	if batch == 0 {
		batch = DefaultNonceBatch
	}

	start := b.Header.Nonce
	for {
		if (b.Header.Nonce-start)%batch == 0 {
			if err := ctx.Err(); err != nil {
				e.EvHandler("pow: Search: MINING: blk[%d]: CANCELLED: attempts[%d]", b.Header.Height, b.Header.Nonce-start)
				return err
			}
		}

		c, err := codec.CID(b.Header)
		if err != nil {
			return err
		}

		digest, err := codec.Digest(c)
		if err != nil {
			return err
		}

		if digest.Cmp(b.Header.Difficulty) <= 0 {
			b.Header.Hash = c.String()
			e.EvHandler("pow: Search: MINING: blk[%d]: SOLVED: nonce[%d]: hash[%s]", b.Header.Height, b.Header.Nonce, b.Header.Hash)
			return nil
		}

		b.Header.Nonce++
		if b.Header.Nonce == start {
			return fmt.Errorf("nonce space exhausted for block %d", b.Header.Height)
		}
	}
}

// Seal signs the solved hash with the mining wallet.
func (e Engine) Seal(b *database.Block, w database.Wallet) error {
	if b.Header.Hash == "" {
		return fmt.Errorf("block %d has not been solved", b.Header.Height)
	}

	if b.Header.PubKey != w.PubKey {
		return fmt.Errorf("block %d was assembled for a different miner", b.Header.Height)
	}

	return b.Sign(w)
}

// Mine performs the assemble, search and seal steps for the next block.
func (e Engine) Mine(ctx context.Context, parent database.BlockHeader, msgs []database.Message, w database.Wallet, now time.Time) (database.Block, error) {
	b := e.Assemble(parent, msgs, w.PubKey, now)

	if err := e.Search(ctx, &b); err != nil {
		return database.Block{}, err
	}

	if err := e.Seal(&b, w); err != nil {
		return database.Block{}, err
	}

	return b, nil
}

// MineGenesis produces the genesis block. The search starts at the fixed
// genesis nonce so every genesis block also satisfies the target.
func (e Engine) MineGenesis(ctx context.Context, msgs []database.Message, w database.Wallet, genesisNonce uint64, now time.Time) (database.Block, error) {
	createTime := uint64(now.UTC().Unix())

	b := database.Block{
		Header: database.BlockHeader{
			Height:     0,
			CreateTime: createTime,
			TimeStamp:  e.AlignTimestamp(createTime),
			Interval:   e.IntervalSeconds(),
			Difficulty: e.Target.Clone(),
			Nonce:      genesisNonce,
			PubKey:     w.PubKey,
		},
		Messages: msgs,
	}
	b.Header.MessageRoot = b.MessageRoot()

	if err := e.Search(ctx, &b); err != nil {
		return database.Block{}, err
	}

	if err := e.Seal(&b, w); err != nil {
		return database.Block{}, err
	}

	return b, nil
}
