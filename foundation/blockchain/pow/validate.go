package pow

import (
	"errors"
	"fmt"

	"github.com/blockj/node/foundation/blockchain/codec"
	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/shopspring/decimal"
)

// AccountLookup represents the behavior needed to read the account state a
// block is validated against.
type AccountLookup interface {
	Account(address string) (database.Account, error)
}

// ValidateHeader checks the header is sealed correctly and extends the parent.
func (e Engine) ValidateHeader(h database.BlockHeader, parent database.BlockHeader) error {
	e.EvHandler("pow: ValidateHeader: blk[%d]: check: block is the next height", h.Height)

	if h.Height != parent.Height+1 {
		return database.NewValidationError("block is not the next height, got %d, exp %d", h.Height, parent.Height+1)
	}

	if h.ParentHash != parent.Hash {
		return database.NewValidationError("parent hash doesn't match our known parent, got %s, exp %s", h.ParentHash, parent.Hash)
	}

	e.EvHandler("pow: ValidateHeader: blk[%d]: check: difficulty is unchanged from parent", h.Height)

	if h.Difficulty == nil || parent.Difficulty == nil || !h.Difficulty.Eq(parent.Difficulty) {
		return database.NewValidationError("block difficulty %v does not match parent difficulty %v", h.Difficulty, parent.Difficulty)
	}

	e.EvHandler("pow: ValidateHeader: blk[%d]: check: timestamp is aligned and after parent", h.Height)

	if h.Interval != parent.Interval {
		return database.NewValidationError("block interval %d does not match parent interval %d", h.Interval, parent.Interval)
	}

	if h.TimeStamp != Align(h.CreateTime, parent.Interval) {
		return database.NewValidationError("block timestamp %d is not aligned to create time %d", h.TimeStamp, h.CreateTime)
	}

	if h.TimeStamp <= parent.TimeStamp {
		return database.NewValidationError("block timestamp is not after parent, parent %d, block %d", parent.TimeStamp, h.TimeStamp)
	}

	return e.validateSeal(h)
}

// ValidateBlock checks the block against its parent and the account state
// of the parent. Every message must be signed by its sender, funded and carry
// the next nonce. Messages are checked in order so earlier messages in the
// block are accounted for.
func (e Engine) ValidateBlock(b database.Block, parent database.BlockHeader, accounts AccountLookup) error {
	if err := e.ValidateHeader(b.Header, parent); err != nil {
		return err
	}

	if err := validateMessageRoot(b); err != nil {
		return err
	}

	e.EvHandler("pow: ValidateBlock: blk[%d]: check: messages: count[%d]", b.Header.Height, len(b.Messages))

	// Staged accounts are keyed by checksummed address, the same key the
	// ledger applies the block with.
	staged := make(map[string]database.Account)
	load := func(address string) (database.Account, error) {
		address = database.ToAddress(address)

		if account, exists := staged[address]; exists {
			return account, nil
		}

		account, err := accounts.Account(address)
		switch {
		case err == nil:
			return account, nil
		case errors.Is(err, database.ErrNotFound):
			return database.NewAccount(address, decimal.Zero), nil
		default:
			return database.Account{}, fmt.Errorf("account %s: %w", address, err)
		}
	}

	for _, msg := range b.Messages {
		if msg.IsReward() {
			return database.NewValidationError("message %s mints value outside of genesis", msg.Cid)
		}

		if err := msg.Validate(); err != nil {
			return err
		}

		from, err := load(msg.From)
		if err != nil {
			return err
		}

		if from.Balance.LessThan(msg.Value) {
			return database.NewValidationError("message %s has insufficient funds, bal %s, needed %s", msg.Cid, from.Balance, msg.Value)
		}

		if msg.Nonce != from.MessageNonce+1 {
			return database.NewValidationError("message %s has invalid nonce, got %d, exp %d", msg.Cid, msg.Nonce, from.MessageNonce+1)
		}

		from.Balance = from.Balance.Sub(msg.Value)
		from.MessageNonce++
		staged[database.ToAddress(msg.From)] = from

		to, err := load(msg.To)
		if err != nil {
			return err
		}

		to.Balance = to.Balance.Add(msg.Value)
		staged[database.ToAddress(msg.To)] = to
	}

	return nil
}

// ValidateGenesis checks the genesis block. Its messages must all come from
// the reward address and are exempt from signature and balance checks.
func (e Engine) ValidateGenesis(b database.Block) error {
	h := b.Header

	if h.Height != 0 || h.ParentHash != "" {
		return database.NewValidationError("genesis must be height 0 with no parent, got %d", h.Height)
	}

	if h.Difficulty == nil {
		return database.NewValidationError("genesis has no difficulty")
	}

	if h.Interval == 0 {
		return database.NewValidationError("genesis has no block interval")
	}

	if h.TimeStamp != Align(h.CreateTime, h.Interval) {
		return database.NewValidationError("genesis timestamp %d is not aligned to create time %d", h.TimeStamp, h.CreateTime)
	}

	if err := e.validateSeal(h); err != nil {
		return err
	}

	if err := validateMessageRoot(b); err != nil {
		return err
	}

	for _, msg := range b.Messages {
		if !msg.IsReward() {
			return database.NewValidationError("genesis message %s is not a reward", msg.Cid)
		}

		cid, err := msg.CID()
		if err != nil {
			return err
		}

		if cid != msg.Cid {
			return database.NewValidationError("genesis message cid mismatch, got %s, exp %s", msg.Cid, cid)
		}
	}

	return nil
}

// =============================================================================

// validateSeal recomputes the hash, checks it solves the difficulty and that
// the miner signed it.
func (e Engine) validateSeal(h database.BlockHeader) error {
	e.EvHandler("pow: validateSeal: blk[%d]: check: block hash has been solved", h.Height)

	c, err := codec.CID(h)
	if err != nil {
		return err
	}

	if c.String() != h.Hash {
		return database.NewValidationError("block hash mismatch, got %s, exp %s", h.Hash, c)
	}

	digest, err := codec.Digest(c)
	if err != nil {
		return err
	}

	if digest.Cmp(h.Difficulty) > 0 {
		return database.NewValidationError("block hash %s exceeds the difficulty", h.Hash)
	}

	e.EvHandler("pow: validateSeal: blk[%d]: check: block signature belongs to miner", h.Height)

	if !h.VerifySign() {
		return database.NewValidationError("block %s signature does not verify", h.Hash)
	}

	return nil
}

// validateMessageRoot checks the header commits to the block messages.
func validateMessageRoot(b database.Block) error {
	if root := b.MessageRoot(); root != b.Header.MessageRoot {
		return database.NewValidationError("merkle root does not match messages, got %s, exp %s", b.Header.MessageRoot, root)
	}

	return nil
}
