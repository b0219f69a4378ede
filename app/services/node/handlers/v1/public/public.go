// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/blockj/node/business/web/errs"
	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/blockj/node/foundation/blockchain/state"
	"github.com/blockj/node/foundation/events"
	"github.com/blockj/node/foundation/validate"
	"github.com/blockj/node/foundation/web"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// NewWallet creates a wallet kept by the node.
func (h Handlers) NewWallet(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	addr, err := h.State.NewWallet()
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, address{Address: addr}, http.StatusCreated)
}

// Wallets returns the addresses of the wallets kept by the node.
func (h Handlers) Wallets(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	addresses, err := h.State.QueryWallets()
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, addresses, http.StatusOK)
}

// Balance returns the balance for the specified address.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	addr := web.Param(r, "address")

	bal, err := h.State.QueryBalance(addr)
	if err != nil {
		return translate(err)
	}

	return web.Respond(ctx, w, balance{Address: addr, Balance: bal}, http.StatusOK)
}

// SendMessage signs a message with a wallet kept by the node and adds it
// to the mempool.
func (h Handlers) SendMessage(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var nm newMessage
	if err := web.Decode(r, &nm); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(nm); err != nil {
		return err
	}

	value, err := decimal.NewFromString(nm.Value)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("send message", "traceid", v.TraceID, "from", nm.From, "to", nm.To, "value", value)

	msg, err := h.State.SubmitMessage(nm.From, nm.To, value, nm.Params)
	if err != nil {
		return translate(err)
	}

	return web.Respond(ctx, w, messageCid{Cid: msg.Cid}, http.StatusOK)
}

// Message returns the applied message for the cid.
func (h Handlers) Message(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	msg, err := h.State.QueryMessage(web.Param(r, "cid"))
	if err != nil {
		return translate(err)
	}

	return web.Respond(ctx, w, msg, http.StatusOK)
}

// ChainHead returns the height of the latest block.
func (h Handlers) ChainHead(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	height, err := h.State.QueryChainHead()
	if err != nil {
		return translate(err)
	}

	return web.Respond(ctx, w, chainHead{Height: height}, http.StatusOK)
}

// Block returns the block at the specified height.
func (h Handlers) Block(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	height, err := strconv.ParseUint(web.Param(r, "height"), 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	block, err := h.State.QueryBlockByHeight(height)
	if err != nil {
		return translate(err)
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// Mempool returns the messages waiting to be mined.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	msgs := h.State.QueryMempool()

	return web.Respond(ctx, w, mempool{Count: len(msgs), Messages: msgs}, http.StatusOK)
}

// Status returns the chain head and the known peers of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	status, err := h.State.Status()
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// =============================================================================

// translate converts ledger errors into errors that are safe to return.
func translate(err error) error {
	switch {
	case database.IsValidationError(err):
		return errs.NewTrusted(err, http.StatusBadRequest)
	case errors.Is(err, database.ErrNotFound):
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	return err
}
