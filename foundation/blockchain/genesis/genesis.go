// Package genesis maintains the constants of a new chain and access to the
// genesis file other nodes use to join it.
package genesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/blockj/node/foundation/blockchain/pow"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Chain constants used when a new chain is created.
const (
	DefaultTargetBits    = 18
	DefaultBlockInterval = 10 * time.Second
	DefaultSupply        = "50000000"
	GenesisNonce         = 0x626c6f636b6a
	RewardParams         = "Miner Reward."
)

// Target returns the difficulty target with the specified number of leading
// zero bits.
func Target(bits uint) *uint256.Int {
	return new(uint256.Int).Rsh(new(uint256.Int).SetAllOne(), bits)
}

// =============================================================================

// InitError is returned when a node can't be initialized. It is fatal to
// the startup of the node.
type InitError struct {
	Err error
}

// Error implements the error interface.
func (ie *InitError) Error() string {
	return "initialization: " + ie.Err.Error()
}

// Unwrap provides access to the underlying error.
func (ie *InitError) Unwrap() error {
	return ie.Err
}

func initErrorf(format string, args ...any) error {
	return &InitError{Err: fmt.Errorf(format, args...)}
}

// IsInitError checks if an error of type InitError exists.
func IsInitError(err error) bool {
	var ie *InitError
	return errors.As(err, &ie)
}

// =============================================================================

// Create mints the genesis block. The reward message moves the supply from the
// reward address to the miner wallet.
func Create(ctx context.Context, engine pow.Engine, w database.Wallet, supply decimal.Decimal, now time.Time) (database.Block, error) {
	msg, err := database.NewMessage(database.RewardAddress, w.Address, supply, RewardParams, 0)
	if err != nil {
		return database.Block{}, fmt.Errorf("reward message: %w", err)
	}

	msg, err = msg.SignWith(w)
	if err != nil {
		return database.Block{}, fmt.Errorf("sign reward message: %w", err)
	}

	block, err := engine.MineGenesis(ctx, []database.Message{msg}, w, GenesisNonce, now)
	if err != nil {
		return database.Block{}, fmt.Errorf("mine genesis: %w", err)
	}

	return block, nil
}

// Mint starts a new chain on an empty ledger. The miner wallet is created,
// the genesis block is mined with the supply rewarded to it and the block is
// applied.
func Mint(ctx context.Context, db *database.Database, engine pow.Engine, supply decimal.Decimal, now time.Time) (database.Block, database.Wallet, error) {
	if err := checkEmpty(db); err != nil {
		return database.Block{}, database.Wallet{}, err
	}

	w, err := database.NewWallet()
	if err != nil {
		return database.Block{}, database.Wallet{}, err
	}

	block, err := Create(ctx, engine, w, supply, now)
	if err != nil {
		return database.Block{}, database.Wallet{}, err
	}

	if err := db.SaveWallet(w, true); err != nil {
		return database.Block{}, database.Wallet{}, fmt.Errorf("save miner wallet: %w", err)
	}

	if _, err := db.ApplyBlock(block); err != nil {
		return database.Block{}, database.Wallet{}, fmt.Errorf("apply genesis: %w", err)
	}

	return block, w, nil
}

// Join prepares an empty ledger to follow an existing chain. The genesis
// block is validated, a new miner wallet is created and the block is applied.
func Join(db *database.Database, engine pow.Engine, block database.Block) (database.Wallet, error) {
	if err := checkEmpty(db); err != nil {
		return database.Wallet{}, err
	}

	if err := engine.ValidateGenesis(block); err != nil {
		return database.Wallet{}, initErrorf("invalid genesis block: %w", err)
	}

	w, err := database.NewWallet()
	if err != nil {
		return database.Wallet{}, err
	}

	if err := db.SaveWallet(w, true); err != nil {
		return database.Wallet{}, fmt.Errorf("save miner wallet: %w", err)
	}

	if _, err := db.ApplyBlock(block); err != nil {
		return database.Wallet{}, fmt.Errorf("apply genesis: %w", err)
	}

	return w, nil
}

func checkEmpty(db *database.Database) error {
	height, err := db.ChainHead()
	switch {
	case err == nil:
		return initErrorf("ledger already holds a chain at height %d", height)
	case !errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("chain head: %w", err)
	}

	return nil
}

// Export writes the serialized genesis block to the specified file.
func Export(path string, block database.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("marshal genesis: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write genesis: %w", err)
	}

	return nil
}

// Load reads the whole genesis file and deserializes the block. A missing
// file, a short read or a corrupt block is reported as an InitError.
func Load(path string) (database.Block, error) {
	if path == "" {
		return database.Block{}, initErrorf("genesis file not provided")
	}

	f, err := os.Open(path)
	if err != nil {
		return database.Block{}, initErrorf("open genesis file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return database.Block{}, initErrorf("stat genesis file: %w", err)
	}

	data := make([]byte, info.Size())
	n, err := io.ReadFull(f, data)
	if err != nil || int64(n) != info.Size() {
		return database.Block{}, initErrorf("read genesis file %s: read %d of %d bytes", path, n, info.Size())
	}

	var block database.Block
	if err := json.Unmarshal(data, &block); err != nil {
		return database.Block{}, initErrorf("decode genesis file: %w", err)
	}

	return block, nil
}
