package database_test

import (
	"errors"
	"testing"

	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/blockj/node/foundation/blockchain/database/storage/memory"
	"github.com/shopspring/decimal"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	miner = "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"
	other = "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32"
)

var supply = decimal.RequireFromString("50000000")

// =============================================================================

func Test_ApplyBlock(t *testing.T) {
	db := database.New(memory.New(), nil)

	t.Log("Given the need to apply blocks to the ledger.")
	{
		t.Logf("\tTest 0:\tWhen handling a genesis block and a transfer.")
		{
			if _, err := db.ChainHead(); !errors.Is(err, database.ErrNotFound) {
				t.Fatalf("\t%s\tTest 0:\tShould not have a chain head before genesis: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould not have a chain head before genesis.", success)

			genesis := genesisBlock(t)
			applied, err := db.ApplyBlock(genesis)
			if err != nil || !applied {
				t.Fatalf("\t%s\tTest 0:\tShould be able to apply the genesis block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to apply the genesis block.", success)

			checkBalance(t, db, miner, supply)

			value := decimal.RequireFromString("1250.75")
			blk := transferBlock(t, 1, "hash-1", genesis.Header.Hash, message(t, miner, other, value, 1))

			minerBefore, _ := db.Account(miner)
			applied, err = db.ApplyBlock(blk)
			if err != nil || !applied {
				t.Fatalf("\t%s\tTest 0:\tShould be able to apply block 1: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to apply block 1.", success)

			minerAfter, _ := db.Account(miner)
			if !minerAfter.Balance.Add(value).Equal(minerBefore.Balance) {
				t.Fatalf("\t%s\tTest 0:\tShould conserve the balance of the sender: %s", failed, minerAfter.Balance)
			}
			if minerAfter.MessageNonce != minerBefore.MessageNonce+1 {
				t.Fatalf("\t%s\tTest 0:\tShould increment the sender nonce by one: %d", failed, minerAfter.MessageNonce)
			}
			checkBalance(t, db, other, value)
			t.Logf("\t%s\tTest 0:\tShould move the value between accounts.", success)

			head, err := db.ChainHead()
			if err != nil || head != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould have the chain head at 1: %d, %v", failed, head, err)
			}

			latest, err := db.LatestBlock()
			if err != nil || latest.Header.Hash != blk.Header.Hash {
				t.Fatalf("\t%s\tTest 0:\tShould get back the latest block: %v", failed, err)
			}

			msg, err := db.Message(blk.Messages[0].Cid)
			if err != nil || msg.Cid != blk.Messages[0].Cid {
				t.Fatalf("\t%s\tTest 0:\tShould be able to look up the message by cid: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould index the block and its messages.", success)

			applied, err = db.ApplyBlock(blk)
			if err != nil || applied {
				t.Fatalf("\t%s\tTest 0:\tShould treat a known block as a no-op: %v", failed, err)
			}
			checkBalance(t, db, other, value)
			t.Logf("\t%s\tTest 0:\tShould treat a known block as a no-op.", success)

			var heights []uint64
			db.ForEach(func(b database.Block) error {
				heights = append(heights, b.Header.Height)
				return nil
			})
			if len(heights) != 2 || heights[0] != 0 || heights[1] != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould walk the blocks in height order: %v", failed, heights)
			}
			t.Logf("\t%s\tTest 0:\tShould walk the blocks in height order.", success)
		}
	}
}

func Test_ApplyBlockRejected(t *testing.T) {
	type table struct {
		name   string
		height uint64
		parent string
		msgs   func(t *testing.T) []database.Message
	}

	tt := []table{
		{
			name:   "funds",
			height: 1,
			parent: "genesis",
			msgs: func(t *testing.T) []database.Message {
				return []database.Message{
					message(t, miner, other, decimal.NewFromInt(10), 1),
					message(t, miner, other, supply, 2),
				}
			},
		},
		{
			name:   "nonce",
			height: 1,
			parent: "genesis",
			msgs: func(t *testing.T) []database.Message {
				return []database.Message{message(t, miner, other, decimal.NewFromInt(10), 5)}
			},
		},
		{
			name:   "height",
			height: 2,
			parent: "genesis",
			msgs:   func(t *testing.T) []database.Message { return nil },
		},
		{
			name:   "parent",
			height: 1,
			parent: "unknown",
			msgs:   func(t *testing.T) []database.Message { return nil },
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			db := database.New(memory.New(), nil)

			if _, err := db.ApplyBlock(genesisBlock(t)); err != nil {
				t.Fatalf("Test %s:\tShould be able to apply the genesis block: %v", tst.name, err)
			}

			blk := transferBlock(t, tst.height, "bad-block", tst.parent, tst.msgs(t)...)
			applied, err := db.ApplyBlock(blk)

			var ce *database.ChainError
			if applied || !errors.As(err, &ce) {
				t.Fatalf("Test %s:\tShould get a chain error: %v", tst.name, err)
			}

			head, err := db.ChainHead()
			if err != nil || head != 0 {
				t.Fatalf("Test %s:\tShould leave the chain head at genesis: %d", tst.name, head)
			}

			checkBalance(t, db, miner, supply)

			if _, err := db.Account(other); !errors.Is(err, database.ErrNotFound) {
				t.Fatalf("Test %s:\tShould not persist any part of the block: %v", tst.name, err)
			}

			if ok, _ := db.HasBlock("bad-block"); ok {
				t.Fatalf("Test %s:\tShould not index the rejected block.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_Wallets(t *testing.T) {
	db := database.New(memory.New(), nil)

	if _, err := db.MinerAddress(); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("Should not have a miner before one is saved: %v", err)
	}

	w1, err := database.NewWallet()
	if err != nil {
		t.Fatalf("Should be able to create a wallet: %v", err)
	}

	w2, err := database.NewWallet()
	if err != nil {
		t.Fatalf("Should be able to create a wallet: %v", err)
	}

	if err := db.SaveWallet(w1, true); err != nil {
		t.Fatalf("Should be able to save the miner wallet: %v", err)
	}

	if err := db.SaveWallet(w2, false); err != nil {
		t.Fatalf("Should be able to save a wallet: %v", err)
	}

	mw, err := db.MinerWallet()
	if err != nil || mw.Address != w1.Address || mw.PrivKey != w1.PrivKey {
		t.Fatalf("Should get back the miner wallet: %v", err)
	}

	wallets, err := db.Wallets()
	if err != nil || len(wallets) != 2 {
		t.Fatalf("Should get back both wallets: %d, %v", len(wallets), err)
	}
}

func Test_NewAccount(t *testing.T) {
	a := database.NewAccount(miner, supply)
	if a.MessageNonce != 0 || a.PubKey != "" {
		t.Fatalf("Should construct a new account at nonce zero.")
	}

	if !database.IsAddress(miner) || database.IsAddress("0x123") {
		t.Fatalf("Should be able to recognize an address.")
	}
}

// =============================================================================

func genesisBlock(t *testing.T) database.Block {
	msg, err := database.NewMessage(database.RewardAddress, miner, supply, "Miner Reward.", 0)
	if err != nil {
		t.Fatalf("Should be able to construct the reward message: %v", err)
	}

	return transferBlock(t, 0, "genesis", "", msg)
}

func transferBlock(t *testing.T, height uint64, hash string, parent string, msgs ...database.Message) database.Block {
	return database.Block{
		Header: database.BlockHeader{
			Height:     height,
			ParentHash: parent,
			Hash:       hash,
		},
		Messages: msgs,
	}
}

func message(t *testing.T, from string, to string, value decimal.Decimal, nonce uint64) database.Message {
	msg, err := database.NewMessage(from, to, value, "", nonce)
	if err != nil {
		t.Fatalf("Should be able to construct a message: %v", err)
	}

	return msg
}

func checkBalance(t *testing.T, db *database.Database, address string, exp decimal.Decimal) {
	t.Helper()

	account, err := db.Account(address)
	if err != nil {
		t.Fatalf("Should be able to get the account %s: %v", address, err)
	}

	if !account.Balance.Equal(exp) {
		t.Logf("got: %s", account.Balance)
		t.Logf("exp: %s", exp)
		t.Fatalf("Should get back the right balance for %s.", address)
	}
}
