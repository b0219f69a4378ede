// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"net/http"

	"github.com/blockj/node/foundation/blockchain/state"
	"github.com/blockj/node/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// Connect upgrades the request into a peer session. The session is owned by
// the network from here on and the handler returns once it ends.
func (h Handlers) Connect(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.Log.Infow("peer connect", "traceid", web.GetTraceID(ctx), "remoteaddr", r.RemoteAddr)

	h.State.NetworkHandler().ServeHTTP(w, r)
	return nil
}

// Status returns the chain head and the known peers of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	status, err := h.State.Status()
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// Peers returns the peers the node is currently connected to.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	peers := struct {
		Self      string   `json:"self"`
		Connected []string `json:"connected"`
	}{
		Self:      h.State.Self().String(),
		Connected: []string{},
	}

	for _, p := range h.State.ConnectedPeers() {
		peers.Connected = append(peers.Connected, p.String())
	}

	return web.Respond(ctx, w, peers, http.StatusOK)
}
