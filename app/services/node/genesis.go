package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/blockj/node/foundation/blockchain/database/storage/disk"
	"github.com/blockj/node/foundation/blockchain/genesis"
	"github.com/blockj/node/foundation/blockchain/pow"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// genesisCmd creates a new repo holding a freshly mined genesis block and
// writes that block to the genesis file so other nodes can join.
func genesisCmd(log *zap.SugaredLogger, cfg config) error {
	if err := checkRepo(cfg.State.Repo); err != nil {
		return err
	}

	supply, err := decimal.NewFromString(cfg.Genesis.Supply)
	if err != nil {
		return fmt.Errorf("parsing supply: %w", err)
	}

	engine := pow.New(genesis.Target(cfg.Genesis.TargetBits), cfg.Genesis.BlockInterval, evHandler(log))

	var block database.Block
	var w database.Wallet

	f := func(db *database.Database) error {
		block, w, err = genesis.Mint(context.Background(), db, engine, supply, time.Now())
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(cfg.Genesis.File), 0755); err != nil {
			return fmt.Errorf("genesis dir: %w", err)
		}

		return genesis.Export(cfg.Genesis.File, block)
	}

	if err := createRepo(log, cfg.State.Repo, f); err != nil {
		return err
	}

	log.Infow("genesis", "status", "genesis created", "hash", block.Header.Hash, "miner", w.Address, "file", cfg.Genesis.File)

	return nil
}

// initCmd creates a new repo from the genesis block held by the file. The
// block is validated before the repo is touched.
func initCmd(log *zap.SugaredLogger, cfg config, path string) error {
	if err := checkRepo(cfg.State.Repo); err != nil {
		return err
	}

	block, err := genesis.Load(path)
	if err != nil {
		return err
	}

	engine := pow.ForChain(block.Header, evHandler(log))

	if err := engine.ValidateGenesis(block); err != nil {
		return &genesis.InitError{Err: fmt.Errorf("invalid genesis block: %w", err)}
	}

	var w database.Wallet

	f := func(db *database.Database) error {
		w, err = genesis.Join(db, engine, block)
		return err
	}

	if err := createRepo(log, cfg.State.Repo, f); err != nil {
		return err
	}

	log.Infow("init", "status", "genesis applied", "hash", block.Header.Hash, "miner", w.Address, "file", path)

	return nil
}

// =============================================================================

// checkRepo fails with an InitError when the repo already exists.
func checkRepo(repo string) error {
	if _, err := os.Stat(repo); err == nil {
		return &genesis.InitError{Err: fmt.Errorf("repo %s already exists", repo)}
	}

	return nil
}

// createRepo opens a new repo and runs the function against it. The repo is
// removed when anything fails so the command can be retried.
func createRepo(log *zap.SugaredLogger, repo string, f func(db *database.Database) error) error {
	storage, err := disk.New(repo)
	if err != nil {
		removeRepo(log, repo)
		return fmt.Errorf("opening repo: %w", err)
	}

	db := database.New(storage, evHandler(log))

	if err := f(db); err != nil {
		db.Close()
		removeRepo(log, repo)
		return err
	}

	return db.Close()
}

func removeRepo(log *zap.SugaredLogger, repo string) {
	if err := os.RemoveAll(repo); err != nil {
		log.Errorw("repo", "status", "removing partial repo", "repo", repo, "ERROR", err)
	}
}

func evHandler(log *zap.SugaredLogger) func(v string, args ...any) {
	return func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...), "traceid", "00000000-0000-0000-0000-000000000000")
	}
}
