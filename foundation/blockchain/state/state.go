// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/blockj/node/foundation/blockchain/mempool"
	"github.com/blockj/node/foundation/blockchain/p2p"
	"github.com/blockj/node/foundation/blockchain/peer"
	"github.com/blockj/node/foundation/blockchain/pow"
)

// DefaultMaxBlockMessages is the number of messages a mined block carries
// when the config doesn't say otherwise.
const DefaultMaxBlockMessages = 100

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining and message sharing.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
	SignalShareMessage(msg database.Message)
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Storage          database.Storage
	Self             peer.Peer
	KnownPeers       []peer.Peer
	MaxBlockMessages int
	MineEmpty        bool
	ReconnectDelay   time.Duration
	ReconnectRetries uint64
	EvHandler        EventHandler
}

// State manages the blockchain database.
type State struct {
	mu          sync.Mutex
	evHandler   EventHandler
	knownPeers  []peer.Peer
	mineEmpty   bool
	maxMessages int

	minerWallet database.Wallet
	db          *database.Database
	engine      pow.Engine
	mempool     *mempool.Mempool
	network     *p2p.Network

	Worker Worker
}

// New constructs a new blockchain for data management. The ledger held by
// the storage must already contain the genesis block.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	db := database.New(cfg.Storage, ev)

	// The genesis block carries the difficulty and block interval every
	// later block is mined and validated against.
	genesisBlock, err := db.BlockByHeight(0)
	if err != nil {
		return nil, fmt.Errorf("chain not initialized: %w", err)
	}

	minerWallet, err := db.MinerWallet()
	if err != nil {
		return nil, fmt.Errorf("miner wallet: %w", err)
	}

	maxMessages := cfg.MaxBlockMessages
	if maxMessages <= 0 {
		maxMessages = DefaultMaxBlockMessages
	}

	s := State{
		evHandler:   ev,
		knownPeers:  cfg.KnownPeers,
		mineEmpty:   cfg.MineEmpty,
		maxMessages: maxMessages,

		minerWallet: minerWallet,
		db:          db,
		engine:      pow.ForChain(genesisBlock.Header, ev),
		mempool:     mempool.New(),
	}

	s.network = p2p.New(p2p.Config{
		Self:             cfg.Self,
		ReconnectDelay:   cfg.ReconnectDelay,
		ReconnectRetries: cfg.ReconnectRetries,
		OnPacket:         s.handlePacket,
		OnConnected:      s.requestBlocks,
		EvHandler:        ev,
	})

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &s, nil
}

// Start brings the network up and connects to the configured peers. Peers
// that can't be reached are retried in the background.
func (s *State) Start() {
	s.evHandler("state: start: started")
	defer s.evHandler("state: start: completed")

	s.network.Start()

	for _, p := range s.knownPeers {
		if err := s.network.Connect(context.Background(), p); err != nil {
			s.evHandler("state: start: peer[%s]: WARNING: %s", p, err)
		}
	}
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	s.network.Shutdown()

	// Make sure the database file is properly closed.
	return s.db.Close()
}

// NetworkHandler returns the handler accepting sessions from other nodes.
func (s *State) NetworkHandler() http.Handler {
	return s.network
}

// MineEmpty reports whether blocks are mined when the mempool is empty.
func (s *State) MineEmpty() bool {
	return s.mineEmpty
}

// =============================================================================

func (s *State) signalStartMining() {
	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}
}

func (s *State) signalCancelMining() (done func()) {
	if s.Worker == nil {
		return func() {}
	}
	return s.Worker.SignalCancelMining()
}

func (s *State) signalShareMessage(msg database.Message) {
	if s.Worker != nil {
		s.Worker.SignalShareMessage(msg)
	}
}
