package commands

import (
	"fmt"
	"io"

	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/blockj/node/foundation/blockchain/database/storage/memory"
	"github.com/blockj/node/foundation/blockchain/pow"
)

// Verify replays every applied block into an in-memory ledger, validating
// each block against the state built by the blocks before it. The replayed
// accounts must match the stored accounts.
func Verify(w io.Writer, db *database.Database) error {
	replay := database.New(memory.New(), nil)
	defer replay.Close()

	var engine pow.Engine
	var parent database.BlockHeader
	var blocks int

	err := db.ForEach(func(block database.Block) error {
		switch block.Header.Height {
		case 0:
			engine = pow.ForChain(block.Header, nil)
			if err := engine.ValidateGenesis(block); err != nil {
				return err
			}

		default:
			if err := engine.ValidateBlock(block, parent, replay); err != nil {
				return fmt.Errorf("block %d: %w", block.Header.Height, err)
			}
		}

		if _, err := replay.ApplyBlock(block); err != nil {
			return err
		}
		parent = block.Header
		blocks++

		return nil
	})
	if err != nil {
		return err
	}

	stored, err := db.Accounts()
	if err != nil {
		return err
	}

	for _, account := range stored {
		got, err := replay.Account(account.Address)
		if err != nil {
			return fmt.Errorf("account %s: %w", account.Address, err)
		}

		if !got.Balance.Equal(account.Balance) || got.MessageNonce != account.MessageNonce {
			return fmt.Errorf("account %s: stored balance %s nonce %d, replayed balance %s nonce %d",
				account.Address, account.Balance, account.MessageNonce, got.Balance, got.MessageNonce)
		}
	}

	fmt.Fprintf(w, "Verified: %d blocks, %d accounts\n", blocks, len(stored))

	return nil
}
