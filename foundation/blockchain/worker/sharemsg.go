package worker

import "github.com/blockj/node/foundation/blockchain/database"

// maxMsgShareRequests represents the max number of pending message network
// share requests that can be outstanding before share requests are dropped.
// If the channel does become full, requests for new messages to be shared
// will not be accepted.
const maxMsgShareRequests = 100

// =============================================================================

// shareMsgOperations handles sharing new messages.
func (w *Worker) shareMsgOperations() {
	w.evHandler("worker: shareMsgOperations: G started")
	defer w.evHandler("worker: shareMsgOperations: G completed")

	for {
		select {
		case msg := <-w.msgSharing:
			if !w.isShutdown() {
				w.runShareMsgOperation(msg)
			}
		case <-w.shut:
			w.evHandler("worker: shareMsgOperations: received shut signal")
			return
		}
	}
}

// runShareMsgOperation shares a new message with the connected peers.
func (w *Worker) runShareMsgOperation(msg database.Message) {
	w.evHandler("worker: runShareMsgOperation: started")
	defer w.evHandler("worker: runShareMsgOperation: completed")

	if err := w.state.NetSendMessageToPeers(msg); err != nil {
		w.evHandler("worker: runShareMsgOperation: WARNING: %s", err)
	}
}
