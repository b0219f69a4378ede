// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/blockj/node/app/services/node/handlers/v1/private"
	"github.com/blockj/node/app/services/node/handlers/v1/public"
	"github.com/blockj/node/foundation/blockchain/state"
	"github.com/blockj/node/foundation/events"
	"github.com/blockj/node/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		WS:    websocket.Upgrader{},
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodPost, version, "/wallet/new", pbl.NewWallet)
	app.Handle(http.MethodGet, version, "/wallet/list", pbl.Wallets)
	app.Handle(http.MethodGet, version, "/balance/:address", pbl.Balance)
	app.Handle(http.MethodPost, version, "/message/send", pbl.SendMessage)
	app.Handle(http.MethodGet, version, "/message/:cid", pbl.Message)
	app.Handle(http.MethodGet, version, "/chain/head", pbl.ChainHead)
	app.Handle(http.MethodGet, version, "/block/:height", pbl.Block)
	app.Handle(http.MethodGet, version, "/mempool/list", pbl.Mempool)
	app.Handle(http.MethodGet, version, "/node/status", pbl.Status)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}

	app.Handle(http.MethodGet, version, "/node/p2p", prv.Connect)
	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodGet, version, "/node/peers", prv.Peers)
}
