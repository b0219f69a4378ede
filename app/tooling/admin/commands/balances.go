// Package commands contains the functionality for the set of commands
// currently supported by the admin tool.
package commands

import (
	"fmt"
	"io"

	"github.com/blockj/node/foundation/blockchain/database"
)

// Balances writes the accounts of the ledger. A non empty address limits
// the output to that account.
func Balances(w io.Writer, db *database.Database, address string) error {
	block, err := db.LatestBlock()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "LatestBlock: %d %s\n\n", block.Header.Height, block.Header.Hash)

	accounts, err := db.Accounts()
	if err != nil {
		return err
	}

	for _, account := range accounts {
		if address != "" && account.Address != address {
			continue
		}
		fmt.Fprintf(w, "Account: %s  Balance: %s  Nonce: %d\n", account.Address, account.Balance, account.MessageNonce)
	}

	return nil
}
