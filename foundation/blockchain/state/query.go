package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/blockj/node/foundation/blockchain/peer"
	"github.com/shopspring/decimal"
)

// QueryBalance returns the balance of the account. An account that has never
// been part of an applied message has a zero balance.
func (s *State) QueryBalance(address string) (decimal.Decimal, error) {
	if !database.IsAddress(address) {
		return decimal.Zero, database.NewValidationError("account %q is not properly formatted", address)
	}

	account, err := s.account(address)
	if err != nil {
		return decimal.Zero, err
	}

	return account.Balance, nil
}

// QueryAccount returns the stored account.
func (s *State) QueryAccount(address string) (database.Account, error) {
	return s.db.Account(address)
}

// QueryAccounts returns every account known to the ledger.
func (s *State) QueryAccounts() ([]database.Account, error) {
	return s.db.Accounts()
}

// QueryMessage returns the applied message for the cid.
func (s *State) QueryMessage(cid string) (database.Message, error) {
	return s.db.Message(cid)
}

// QueryChainHead returns the height of the latest block.
func (s *State) QueryChainHead() (uint64, error) {
	return s.db.ChainHead()
}

// QueryLatestBlock returns the block at the chain head.
func (s *State) QueryLatestBlock() (database.Block, error) {
	return s.db.LatestBlock()
}

// QueryBlockByHeight returns the block applied at the height.
func (s *State) QueryBlockByHeight(height uint64) (database.Block, error) {
	return s.db.BlockByHeight(height)
}

// QueryBlockByHash returns the block for the hash.
func (s *State) QueryBlockByHash(hash string) (database.Block, error) {
	return s.db.Block(hash)
}

// QueryMempool returns the messages waiting to be mined in arrival order.
func (s *State) QueryMempool() []database.Message {
	return s.mempool.Pick(-1)
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryWallets returns the addresses of the wallets kept by this node.
func (s *State) QueryWallets() ([]string, error) {
	wallets, err := s.db.Wallets()
	if err != nil {
		return nil, err
	}

	addresses := make([]string, len(wallets))
	for i, w := range wallets {
		addresses[i] = w.Address
	}
	sort.Strings(addresses)

	return addresses, nil
}

// NewWallet creates a wallet kept by this node and returns its address.
func (s *State) NewWallet() (string, error) {
	w, err := database.NewWallet()
	if err != nil {
		return "", err
	}

	if err := s.db.SaveWallet(w, false); err != nil {
		return "", fmt.Errorf("save wallet: %w", err)
	}

	s.evHandler("state: NewWallet: account[%s]", w.Address)

	return w.Address, nil
}

// MinerAddress returns the address of the wallet this node mines with.
func (s *State) MinerAddress() string {
	return s.minerWallet.Address
}

// =============================================================================

// Self returns the address this node advertises to peers.
func (s *State) Self() peer.Peer {
	return s.network.Self()
}

// KnownPeers returns the peers this node keeps connecting to.
func (s *State) KnownPeers() []peer.Peer {
	return s.network.KnownPeers()
}

// ConnectedPeers returns the peers this node is connected to.
func (s *State) ConnectedPeers() []peer.Peer {
	return s.network.Peers()
}

// Status returns the chain head and the known peers of this node.
func (s *State) Status() (peer.PeerStatus, error) {
	block, err := s.db.LatestBlock()
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return peer.PeerStatus{}, err
	}

	status := peer.PeerStatus{
		LatestBlockHash:   block.Header.Hash,
		LatestBlockHeight: block.Header.Height,
		KnownPeers:        s.KnownPeers(),
	}

	return status, nil
}
