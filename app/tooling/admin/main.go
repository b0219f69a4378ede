// This program performs offline administrative tasks against a node repo.
// The node must not be running since the repo is opened exclusively.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/ardanlabs/conf/v3"
	"github.com/blockj/node/app/tooling/admin/commands"
	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/blockj/node/foundation/blockchain/database/storage/disk"
	"github.com/blockj/node/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	cfg := struct {
		conf.Version
		conf.Args
		Repo string `conf:"default:zblock/repo"`
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "blockj admin: bals [address] | blocks [from] | verify",
		},
	}

	const prefix = "ADMIN"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	storage, err := disk.New(cfg.Repo)
	if err != nil {
		return fmt.Errorf("opening repo: %w", err)
	}

	db := database.New(storage, func(v string, args ...any) {
		log.Debugw(fmt.Sprintf(v, args...))
	})
	defer db.Close()

	return processCommands(cfg.Args, db)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args conf.Args, db *database.Database) error {
	switch args.Num(0) {
	case "bals":
		if err := commands.Balances(os.Stdout, db, args.Num(1)); err != nil {
			return fmt.Errorf("getting balances: %w", err)
		}

	case "blocks":
		var from uint64
		if s := args.Num(1); s != "" {
			var err error
			if from, err = strconv.ParseUint(s, 10, 64); err != nil {
				return fmt.Errorf("parsing from: %w", err)
			}
		}
		if err := commands.Blocks(os.Stdout, db, from); err != nil {
			return fmt.Errorf("getting blocks: %w", err)
		}

	case "verify":
		if err := commands.Verify(os.Stdout, db); err != nil {
			return fmt.Errorf("verifying chain: %w", err)
		}

	default:
		return fmt.Errorf("unknown command %q", args.Num(0))
	}

	return nil
}
