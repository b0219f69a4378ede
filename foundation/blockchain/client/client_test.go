package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blockj/node/foundation/blockchain/client"
	"github.com/shopspring/decimal"
)

const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Calls(t *testing.T) {
	t.Log("Given the need to call the public api of a node.")
	{
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/chain/head", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"height":12}`))
		})
		mux.HandleFunc("/v1/balance/0xabc", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"address":"0xabc","balance":"10.5"}`))
		})
		mux.HandleFunc("/v1/message/send", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.Write([]byte(`{"cid":"bafk"}`))
		})

		srv := httptest.NewServer(mux)
		defer srv.Close()

		c := client.New(srv.URL + "/")
		ctx := context.Background()

		height, err := c.ChainHead(ctx)
		if err != nil || height != 12 {
			t.Fatalf("\t%s\tShould get the chain head: %d, %v", failed, height, err)
		}
		t.Logf("\t%s\tShould get the chain head.", success)

		bal, err := c.Balance(ctx, "0xabc")
		if err != nil || !bal.Equal(decimal.RequireFromString("10.5")) {
			t.Fatalf("\t%s\tShould get the balance: %s, %v", failed, bal, err)
		}
		t.Logf("\t%s\tShould get the balance.", success)

		cid, err := c.SendMessage(ctx, "0xabc", "0xdef", decimal.NewFromInt(1), "")
		if err != nil || cid != "bafk" {
			t.Fatalf("\t%s\tShould get the cid of a sent message: %q, %v", failed, cid, err)
		}
		t.Logf("\t%s\tShould get the cid of a sent message.", success)
	}
}

func Test_ApiError(t *testing.T) {
	type table struct {
		name    string
		status  int
		body    string
		message string
	}

	tt := []table{
		{name: "document", status: http.StatusBadRequest, body: `{"error":"insufficient funds"}`, message: "insufficient funds"},
		{name: "notfound", status: http.StatusNotFound, body: `{"error":"not found"}`, message: "not found"},
		{name: "nodocument", status: http.StatusBadGateway, body: `<html>`, message: http.StatusText(http.StatusBadGateway)},
	}

	t.Log("Given the need to report failed calls as typed errors.")
	{
		for _, tst := range tt {
			f := func(t *testing.T) {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tst.status)
					w.Write([]byte(tst.body))
				}))
				defer srv.Close()

				_, err := client.New(srv.URL).Wallets(context.Background())

				var ae *client.ApiError
				if !errors.As(err, &ae) {
					t.Fatalf("\t%s\tTest %s:\tShould get an ApiError: %v", failed, tst.name, err)
				}

				if ae.Status != tst.status || ae.Message != tst.message {
					t.Fatalf("\t%s\tTest %s:\tShould get %d %q: got %d %q", failed, tst.name, tst.status, tst.message, ae.Status, ae.Message)
				}
				t.Logf("\t%s\tTest %s:\tShould get %d %q.", success, tst.name, tst.status, tst.message)
			}

			t.Run(tst.name, f)
		}
	}
}
