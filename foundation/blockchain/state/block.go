package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/blockj/node/foundation/blockchain/p2p"
	"github.com/blockj/node/foundation/blockchain/peer"
)

// ErrNoMessages is returned when a block is requested to be created
// and there are no messages to include.
var ErrNoMessages = errors.New("no messages in mempool")

// =============================================================================

// MineNewBlock attempts to create a new block with a proper hash that can become
// the next block in the chain. The block is applied to the ledger before it's
// returned.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: check mempool count")

	parent, err := s.db.LatestBlock()
	if err != nil {
		return database.Block{}, fmt.Errorf("latest block: %w", err)
	}

	msgs := s.selectMessages()
	if len(msgs) == 0 && !s.mineEmpty {
		return database.Block{}, ErrNoMessages
	}

	// A block can't share the timestamp slot of its parent.
	if err := waitUntil(ctx, time.Unix(int64(parent.Header.TimeStamp), 0)); err != nil {
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW: blk[%d]: msgs[%d]", parent.Header.Height+1, len(msgs))

	block, err := s.engine.Mine(ctx, parent.Header, msgs, s.minerWallet, time.Now())
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: validate and update database")

	if err := s.engine.ValidateBlock(block, parent.Header, s.db); err != nil {
		return database.Block{}, err
	}

	// A block from a peer may have been committed at this height while we
	// were searching. The first block committed wins.
	if _, err := s.db.ApplyBlock(block); err != nil {
		return database.Block{}, err
	}

	s.removeMessages(block)
	s.blockEvent(block)

	return block, nil
}

// ProcessProposedBlock takes a block received from a peer, validates it and
// if that passes, adds the block to the local blockchain and passes it on to
// the other peers.
func (s *State) ProcessProposedBlock(from peer.Peer, block database.Block) error {
	s.evHandler("state: ProcessProposedBlock: started: peer[%s]: blk[%d]: hash[%s]: msgs[%d]", from, block.Header.Height, block.Header.Hash, len(block.Messages))
	defer s.evHandler("state: ProcessProposedBlock: completed: blk[%d]", block.Header.Height)

	known, err := s.db.HasBlock(block.Header.Hash)
	if err != nil {
		return err
	}

	if known {
		s.evHandler("state: ProcessProposedBlock: blk[%d]: already known", block.Header.Height)
		return nil
	}

	parent, err := s.db.LatestBlock()
	if err != nil {
		return fmt.Errorf("latest block: %w", err)
	}

	switch {
	case block.Header.Height > parent.Header.Height+1:
		s.evHandler("state: ProcessProposedBlock: blk[%d]: ahead of chain head[%d]: requesting blocks", block.Header.Height, parent.Header.Height)
		s.requestBlocks(from)
		return nil

	case block.Header.Height <= parent.Header.Height:
		return database.NewValidationError("block height %d is not after chain head %d", block.Header.Height, parent.Header.Height)
	}

	if err := s.engine.ValidateBlock(block, parent.Header, s.db); err != nil {
		return err
	}

	// If the runMiningOperation function is being executed it needs to stop
	// immediately. The G executing runMiningOperation will not return from the
	// function until done is called. That allows this function to complete
	// its state changes before a new mining operation takes place.
	done := s.signalCancelMining()
	defer func() {
		s.evHandler("state: ProcessProposedBlock: signal runMiningOperation to terminate")
		done()
	}()

	applied, err := s.db.ApplyBlock(block)
	if err != nil {
		return err
	}

	if !applied {
		return nil
	}

	s.removeMessages(block)
	s.blockEvent(block)

	pkt, err := p2p.NewPacket(p2p.BlockAnnouncement, block)
	if err != nil {
		return err
	}

	if _, err := s.network.Broadcast(pkt, from); err != nil {
		s.evHandler("state: ProcessProposedBlock: rebroadcast: WARNING: %s", err)
	}

	s.signalStartMining()

	return nil
}

// =============================================================================

// selectMessages picks the messages for the next block in arrival order.
// Only messages carrying the next nonce of a funded sender are taken.
// Messages with a nonce that has already been used are removed.
func (s *State) selectMessages() []database.Message {
	staged := make(map[string]database.Account)

	var msgs []database.Message
	for _, msg := range s.mempool.Pick(-1) {
		if len(msgs) == s.maxMessages {
			break
		}

		account, exists := staged[msg.From]
		if !exists {
			var err error
			if account, err = s.account(msg.From); err != nil {
				s.evHandler("state: selectMessages: msg[%s]: ERROR: %s", msg.Cid, err)
				continue
			}
		}

		switch {
		case msg.Nonce <= account.MessageNonce:
			s.evHandler("state: selectMessages: msg[%s]: nonce[%d] already used, removed", msg.Cid, msg.Nonce)
			s.mempool.Delete(msg)
			continue

		case msg.Nonce != account.MessageNonce+1:
			continue

		case account.Balance.LessThan(msg.Value):
			continue
		}

		account.Balance = account.Balance.Sub(msg.Value)
		account.MessageNonce = msg.Nonce
		staged[msg.From] = account

		msgs = append(msgs, msg)
	}

	return msgs
}

// removeMessages takes the messages of an applied block out of the mempool.
func (s *State) removeMessages(block database.Block) {
	for _, msg := range block.Messages {
		s.mempool.Delete(msg)
	}
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockHeaderJSON, err := json.Marshal(block.Header)
	if err != nil {
		blockHeaderJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	blockMsgsJSON, err := json.Marshal(block.Messages)
	if err != nil {
		blockMsgsJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: {"hash":%q,"header":%s,"messages":%s}`, block.Header.Hash, string(blockHeaderJSON), string(blockMsgsJSON))
}

// waitUntil blocks until the specified time or the context is cancelled.
func waitUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
