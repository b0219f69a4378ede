package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/blockj/node/app/services/node/handlers"
	"github.com/blockj/node/business/web/errs"
	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/blockj/node/foundation/blockchain/database/storage/memory"
	"github.com/blockj/node/foundation/blockchain/genesis"
	"github.com/blockj/node/foundation/blockchain/peer"
	"github.com/blockj/node/foundation/blockchain/pow"
	"github.com/blockj/node/foundation/blockchain/state"
	"github.com/blockj/node/foundation/events"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	success = "\u2713"
	failed  = "\u2717"
)

type api struct {
	mux   http.Handler
	state *state.State
	miner string
}

func newAPI(t *testing.T) api {
	t.Helper()

	storage := memory.New()
	db := database.New(storage, nil)
	engine := pow.New(genesis.Target(4), time.Second, nil)

	_, w, err := genesis.Mint(context.Background(), db, engine, decimal.NewFromInt(1000), time.Now())
	if err != nil {
		t.Fatalf("Should be able to mint the genesis block: %v", err)
	}

	st, err := state.New(state.Config{
		Storage: storage,
		Self:    peer.New("127.0.0.1", 9080),
	})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %v", err)
	}
	t.Cleanup(func() { st.Shutdown() })

	mux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      zap.NewNop().Sugar(),
		State:    st,
		Evts:     events.New(0),
	})

	return api{mux: mux, state: st, miner: w.Address}
}

func (a api) call(method string, path string, body string, v any) int {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	a.mux.ServeHTTP(w, r)

	if v != nil {
		json.NewDecoder(w.Body).Decode(v)
	}

	return w.Code
}

// =============================================================================

func Test_Queries(t *testing.T) {
	t.Log("Given the need to query a node over the public api.")
	{
		a := newAPI(t)

		var head struct {
			Height uint64 `json:"height"`
		}
		if code := a.call(http.MethodGet, "/v1/chain/head", "", &head); code != http.StatusOK || head.Height != 0 {
			t.Fatalf("\t%s\tShould get the genesis height: code %d, height %d", failed, code, head.Height)
		}
		t.Logf("\t%s\tShould get the genesis height.", success)

		var wallets []string
		if code := a.call(http.MethodGet, "/v1/wallet/list", "", &wallets); code != http.StatusOK || len(wallets) != 1 || wallets[0] != a.miner {
			t.Fatalf("\t%s\tShould list the miner wallet: code %d, got %v", failed, code, wallets)
		}
		t.Logf("\t%s\tShould list the miner wallet.", success)

		var bal struct {
			Balance decimal.Decimal `json:"balance"`
		}
		if code := a.call(http.MethodGet, "/v1/balance/"+a.miner, "", &bal); code != http.StatusOK || !bal.Balance.Equal(decimal.NewFromInt(1000)) {
			t.Fatalf("\t%s\tShould get the genesis supply for the miner: code %d, got %s", failed, code, bal.Balance)
		}
		t.Logf("\t%s\tShould get the genesis supply for the miner.", success)

		var block database.Block
		if code := a.call(http.MethodGet, "/v1/block/0", "", &block); code != http.StatusOK || block.Header.Height != 0 || block.Header.Hash == "" {
			t.Fatalf("\t%s\tShould get the genesis block: code %d", failed, code)
		}
		t.Logf("\t%s\tShould get the genesis block.", success)

		type table struct {
			name   string
			path   string
			status int
		}

		tt := []table{
			{name: "badaddress", path: "/v1/balance/nope", status: http.StatusBadRequest},
			{name: "badheight", path: "/v1/block/abc", status: http.StatusBadRequest},
			{name: "noblock", path: "/v1/block/7", status: http.StatusNotFound},
			{name: "nomessage", path: "/v1/message/bafkreiunknown", status: http.StatusNotFound},
		}

		for _, tst := range tt {
			f := func(t *testing.T) {
				var er errs.Response
				code := a.call(http.MethodGet, tst.path, "", &er)
				if code != tst.status || er.Error == "" {
					t.Fatalf("\t%s\tTest %s:\tShould get status %d with an error: got %d %q", failed, tst.name, tst.status, code, er.Error)
				}
				t.Logf("\t%s\tTest %s:\tShould get status %d with an error.", success, tst.name, tst.status)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_SendMessage(t *testing.T) {
	t.Log("Given the need to send value from a wallet kept by the node.")
	{
		a := newAPI(t)

		var addr struct {
			Address string `json:"address"`
		}
		if code := a.call(http.MethodPost, "/v1/wallet/new", "", &addr); code != http.StatusCreated || !database.IsAddress(addr.Address) {
			t.Fatalf("\t%s\tShould be able to create a wallet: code %d", failed, code)
		}
		t.Logf("\t%s\tShould be able to create a wallet.", success)

		body := `{"from":"` + a.miner + `","to":"` + addr.Address + `","value":"25","params":"rent"}`

		var resp struct {
			Cid string `json:"cid"`
		}
		if code := a.call(http.MethodPost, "/v1/message/send", body, &resp); code != http.StatusOK || resp.Cid == "" {
			t.Fatalf("\t%s\tShould be able to send a message: code %d", failed, code)
		}
		t.Logf("\t%s\tShould be able to send a message.", success)

		var pool struct {
			Count int `json:"count"`
		}
		if code := a.call(http.MethodGet, "/v1/mempool/list", "", &pool); code != http.StatusOK || pool.Count != 1 {
			t.Fatalf("\t%s\tShould see the message in the mempool: code %d, count %d", failed, code, pool.Count)
		}
		t.Logf("\t%s\tShould see the message in the mempool.", success)

		type table struct {
			name   string
			body   string
			status int
			fields bool
		}

		tt := []table{
			{name: "notjson", body: `{`, status: http.StatusBadRequest},
			{name: "unknownfield", body: `{"from":"` + a.miner + `","tip":1}`, status: http.StatusBadRequest},
			{name: "noto", body: `{"from":"` + a.miner + `","value":"1"}`, status: http.StatusBadRequest, fields: true},
			{name: "badvalue", body: `{"from":"` + a.miner + `","to":"` + addr.Address + `","value":"ten"}`, status: http.StatusBadRequest, fields: true},
			{name: "funds", body: `{"from":"` + addr.Address + `","to":"` + a.miner + `","value":"1"}`, status: http.StatusBadRequest},
		}

		for _, tst := range tt {
			f := func(t *testing.T) {
				var er errs.Response
				code := a.call(http.MethodPost, "/v1/message/send", tst.body, &er)
				if code != tst.status {
					t.Fatalf("\t%s\tTest %s:\tShould get status %d: got %d %q", failed, tst.name, tst.status, code, er.Error)
				}
				if tst.fields != (len(er.Fields) > 0) {
					t.Fatalf("\t%s\tTest %s:\tShould report field errors only for invalid fields: got %v", failed, tst.name, er.Fields)
				}
				t.Logf("\t%s\tTest %s:\tShould get status %d.", success, tst.name, tst.status)
			}

			t.Run(tst.name, f)
		}
	}
}
