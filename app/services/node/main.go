package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/blockj/node/app/services/node/handlers"
	"github.com/blockj/node/foundation/blockchain/database/storage/disk"
	"github.com/blockj/node/foundation/blockchain/peer"
	"github.com/blockj/node/foundation/blockchain/state"
	"github.com/blockj/node/foundation/blockchain/worker"
	"github.com/blockj/node/foundation/events"
	"github.com/blockj/node/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

// config holds all the configuration for the node and the default values.
type config struct {
	conf.Version
	conf.Args
	Web struct {
		ReadTimeout     time.Duration `conf:"default:5s"`
		WriteTimeout    time.Duration `conf:"default:10s"`
		IdleTimeout     time.Duration `conf:"default:120s"`
		ShutdownTimeout time.Duration `conf:"default:20s"`
		DebugHost       string        `conf:"default:0.0.0.0:7080"`
		PublicHost      string        `conf:"default:0.0.0.0:8080"`
		PrivateHost     string        `conf:"default:0.0.0.0:9080"`
		CorsOrigins     []string      `conf:"default:*"`
	}
	State struct {
		Repo             string        `conf:"default:zblock/repo"`
		Self             string        `conf:"default:127.0.0.1:9080"`
		KnownPeers       []string
		MaxBlockMessages int           `conf:"default:100"`
		MineEmpty        bool          `conf:"default:false"`
		ReconnectDelay   time.Duration `conf:"default:5s"`
		ReconnectRetries uint64        `conf:"default:20"`
	}
	Genesis struct {
		File          string        `conf:"default:zblock/genesis.json"`
		TargetBits    uint          `conf:"default:18"`
		BlockInterval time.Duration `conf:"default:10s"`
		Supply        string        `conf:"default:50000000"`
	}
	Events struct {
		Buffer int `conf:"default:100"`
	}
}

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
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

	// =========================================================================
	// Configuration

	cfg := config{
		Version: conf.Version{
			Build: build,
			Desc:  "blockj node: genesis | init <genesis-file> | run",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	switch cmd := cfg.Args.Num(0); cmd {
	case "genesis":
		return genesisCmd(log, cfg)
	case "init":
		return initCmd(log, cfg, cfg.Args.Num(1))
	case "run", "":
		return runCmd(log, cfg)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// runCmd starts the node: the ledger, mining, networking and the api.
func runCmd(log *zap.SugaredLogger, cfg config) error {

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	self, err := peer.Parse(cfg.State.Self)
	if err != nil {
		return fmt.Errorf("parsing self: %w", err)
	}

	// A peer list is the collection of known nodes in the network so messages
	// and blocks can be shared.
	var knownPeers []peer.Peer
	for _, host := range cfg.State.KnownPeers {
		if host == "" {
			continue
		}
		p, err := peer.Parse(host)
		if err != nil {
			return fmt.Errorf("parsing known peer: %w", err)
		}
		knownPeers = append(knownPeers, p)
	}

	// =========================================================================
	// Blockchain Support

	// The blockchain packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New(cfg.Events.Buffer)
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	storage, err := disk.New(cfg.State.Repo)
	if err != nil {
		return fmt.Errorf("opening repo: %w", err)
	}

	// The state value represents the blockchain node and manages the blockchain
	// database and provides an API for application support.
	st, err := state.New(state.Config{
		Storage:          storage,
		Self:             self,
		KnownPeers:       knownPeers,
		MaxBlockMessages: cfg.State.MaxBlockMessages,
		MineEmpty:        cfg.State.MineEmpty,
		ReconnectDelay:   cfg.State.ReconnectDelay,
		ReconnectRetries: cfg.State.ReconnectRetries,
		EvHandler:        ev,
	})
	if err != nil {
		storage.Close()
		return err
	}

	log.Infow("startup", "status", "ledger loaded", "miner", st.MinerAddress(), "self", self)

	// The worker package implements the mining and message sharing workflows.
	// The worker will register itself with the state.
	worker.Run(st, ev)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, st)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	// Construct the mux for the node to node calls.
	privateMux := handlers.PrivateMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
	})

	// Construct a server to service the requests against the mux.
	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      privateMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for peer sessions.
	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// The network starts once peers can connect back to us.
	st.Start()

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Evts:     evts,
		Origins:  cfg.Web.CorsOrigins,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		if err := st.Shutdown(); err != nil {
			log.Errorw("shutdown", "status", "shutdown node", "ERROR", err)
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}

		// Peer sessions are hijacked connections the server doesn't track,
		// so the network is shut down before the private listener.
		log.Infow("shutdown", "status", "shutdown node started")
		if err := st.Shutdown(); err != nil {
			log.Errorw("shutdown", "status", "shutdown node", "ERROR", err)
		}

		// Give outstanding requests a deadline for completion.
		ctx, cancelPri := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPri()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown private API started")
		if err := private.Shutdown(ctx); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private service gracefully: %w", err)
		}
	}

	return nil
}
