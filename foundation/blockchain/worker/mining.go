package worker

import (
	"context"
	"errors"
	"time"

	"github.com/blockj/node/foundation/blockchain/state"
)

// miningOperations handles mining. One attempt runs at a time and a start
// signal that arrives during an attempt is picked up once it returns.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.startMining:
			if w.isShutdown() {
				continue
			}

			w.runMiningOperation(w.attempts.Add(1))

		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal: attempts[%d]: mined[%d]", w.attempts.Load(), w.mined)
			return
		}
	}
}

// wantsMining reports whether there is a reason to search for a block.
func (w *Worker) wantsMining() (int, bool) {
	length := w.state.QueryMempoolLength()
	return length, length > 0 || w.state.MineEmpty()
}

// runMiningOperation mines one block from the mempool. The attempt is
// cancelled when a block from a peer is being applied or on shutdown. When
// nothing in the mempool could be selected the next attempt waits for a new
// message or block to signal it.
func (w *Worker) runMiningOperation(attempt uint64) {
	w.evHandler("worker: runMiningOperation: MINING: attempt[%d]: started", attempt)
	defer w.evHandler("worker: runMiningOperation: MINING: attempt[%d]: completed", attempt)

	if length, ok := w.wantsMining(); !ok {
		w.evHandler("worker: runMiningOperation: MINING: nothing to mine: Msgs[%d]", length)
		return
	}

	// A cancel request that arrived between attempts is stale. Release
	// the requester so it doesn't wait on an attempt that never ran.
	select {
	case wait := <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: drained stale cancel request")
		<-wait
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())

	// The watcher owns the cancel request for this attempt. It reports the
	// request's wait channel, or nil when the attempt ended on its own.
	waitCh := make(chan chan struct{}, 1)
	go func() {
		var wait chan struct{}

		select {
		case wait = <-w.cancelMining:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: requested")
		case <-w.shut:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: shutdown")
		case <-ctx.Done():
		}

		cancel()
		waitCh <- wait
	}()

	again := w.mine(ctx, attempt)

	cancel()
	wait := <-waitCh

	// The requester is changing the ledger. The next attempt must see
	// those changes so hold here until it says it is done.
	if wait != nil {
		w.evHandler("worker: runMiningOperation: MINING: termination signal: waiting")
		<-wait
		w.evHandler("worker: runMiningOperation: MINING: termination signal: received")
	}

	if !again {
		return
	}

	if length, ok := w.wantsMining(); ok && !w.isShutdown() {
		w.evHandler("worker: runMiningOperation: MINING: signal new mining operation: Msgs[%d]", length)
		w.SignalStartMining()
	}
}

// mine searches for the next block and sends it to the peers when found. It
// reports whether another attempt could make progress right away.
func (w *Worker) mine(ctx context.Context, attempt uint64) bool {
	t := time.Now()
	block, err := w.state.MineNewBlock(ctx)
	duration := time.Since(t)

	w.evHandler("worker: mine: MINING: attempt[%d]: duration[%v]", attempt, duration)

	if err != nil {
		switch {
		case errors.Is(err, state.ErrNoMessages):
			w.evHandler("worker: mine: MINING: WARNING: no minable messages in mempool")
			return false
		case ctx.Err() != nil:
			w.evHandler("worker: mine: MINING: CANCEL: complete")
			return true
		default:
			w.evHandler("worker: mine: MINING: ERROR: %s", err)
			return false
		}
	}

	w.mined++

	// WOW, we mined a block. Send the new block to the network.
	// Log the error, but that's it.
	if err := w.state.NetSendBlockToPeers(block); err != nil {
		w.evHandler("worker: mine: MINING: NetSendBlockToPeers: WARNING %s", err)
	}

	return true
}
