package commands

import (
	"fmt"
	"io"

	"github.com/blockj/node/foundation/blockchain/database"
)

// Blocks writes the applied blocks starting at the height with their messages.
func Blocks(w io.Writer, db *database.Database, from uint64) error {
	return db.ForEach(func(block database.Block) error {
		if block.Header.Height < from {
			return nil
		}

		fmt.Fprintf(w, "Block: %d  Hash: %s  Parent: %s  Nonce: %d  Msgs: %d\n",
			block.Header.Height, block.Header.Hash, block.Header.ParentHash, block.Header.Nonce, len(block.Messages))

		for _, msg := range block.Messages {
			fmt.Fprintf(w, "  Msg: %s  From: %s  To: %s  Value: %s  Nonce: %d\n",
				msg.Cid, msg.From, msg.To, msg.Value, msg.Nonce)
		}

		return nil
	})
}
