package genesis_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/blockj/node/foundation/blockchain/database/storage/memory"
	"github.com/blockj/node/foundation/blockchain/genesis"
	"github.com/blockj/node/foundation/blockchain/pow"
	"github.com/shopspring/decimal"
)

const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_MintJoin(t *testing.T) {
	t.Log("Given the need to start a chain and join it from a second node.")
	{
		engine := pow.New(genesis.Target(4), genesis.DefaultBlockInterval, nil)
		supply := decimal.RequireFromString(genesis.DefaultSupply)

		dbA := database.New(memory.New(), nil)
		block, miner, err := genesis.Mint(context.Background(), dbA, engine, supply, time.Now())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mint the genesis block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to mint the genesis block.", success)

		dbB := database.New(memory.New(), nil)
		joined, err := genesis.Join(dbB, engine, block)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to join the chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to join the chain.", success)

		if joined.Address == miner.Address {
			t.Fatalf("\t%s\tShould create a new miner wallet for the joining node.", failed)
		}

		for _, db := range []*database.Database{dbA, dbB} {
			head, err := db.ChainHead()
			if err != nil || head != 0 {
				t.Fatalf("\t%s\tShould have the chain head at genesis: %d, %v", failed, head, err)
			}

			account, err := db.Account(miner.Address)
			if err != nil || !account.Balance.Equal(supply) {
				t.Fatalf("\t%s\tShould have the supply credited to the miner: %v, %v", failed, account.Balance, err)
			}
		}
		t.Logf("\t%s\tShould have the same ledger on both nodes.", success)

		if _, err := genesis.Join(dbB, engine, block); !genesis.IsInitError(err) {
			t.Fatalf("\t%s\tShould not be able to join twice: %v", failed, err)
		}
		t.Logf("\t%s\tShould not be able to join twice.", success)

		tampered := block
		tampered.Header.Nonce++
		if _, err := genesis.Join(database.New(memory.New(), nil), engine, tampered); !genesis.IsInitError(err) {
			t.Fatalf("\t%s\tShould reject a tampered genesis block: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a tampered genesis block.", success)
	}
}

func Test_ExportLoad(t *testing.T) {
	engine := pow.New(genesis.Target(4), genesis.DefaultBlockInterval, nil)

	w, err := database.NewWallet()
	if err != nil {
		t.Fatalf("Should be able to create a wallet: %v", err)
	}

	block, err := genesis.Create(context.Background(), engine, w, decimal.RequireFromString(genesis.DefaultSupply), time.Now())
	if err != nil {
		t.Fatalf("Should be able to create the genesis block: %v", err)
	}

	path := filepath.Join(t.TempDir(), "genesis.json")
	if err := genesis.Export(path, block); err != nil {
		t.Fatalf("Should be able to export the genesis block: %v", err)
	}

	loaded, err := genesis.Load(path)
	if err != nil {
		t.Fatalf("Should be able to load the genesis block: %v", err)
	}

	if loaded.Header.Hash != block.Header.Hash || !loaded.Header.Difficulty.Eq(block.Header.Difficulty) {
		t.Fatalf("Should get back the same genesis block.")
	}

	if err := engine.ValidateGenesis(loaded); err != nil {
		t.Fatalf("Should be able to validate the loaded genesis block: %v", err)
	}
}

func Test_LoadErrors(t *testing.T) {
	dir := t.TempDir()

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte(`{"header":`), 0644); err != nil {
		t.Fatalf("Should be able to write a file: %v", err)
	}

	type table struct {
		name string
		path string
	}

	tt := []table{
		{name: "empty", path: ""},
		{name: "missing", path: filepath.Join(dir, "missing.json")},
		{name: "corrupt", path: corrupt},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			_, err := genesis.Load(tst.path)
			if !genesis.IsInitError(err) {
				t.Logf("Test %s:\tgot: %v", tst.name, err)
				t.Fatalf("Test %s:\tShould get an initialization error.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}
