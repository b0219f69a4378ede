package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Commands(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/balance/0xabc", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"address":"0xabc","balance":"42"}`))
	})
	mux.HandleFunc("/v1/wallet/list", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["0xabc","0xdef"]`))
	})
	mux.HandleFunc("/v1/message/send", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"insufficient funds"}`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	type table struct {
		name   string
		args   []string
		output string
		fails  bool
	}

	tt := []table{
		{name: "balance", args: []string{"balance", "0xabc"}, output: "42\n"},
		{name: "list", args: []string{"account", "list"}, output: "0xabc\n0xdef\n"},
		{name: "send", args: []string{"send", "--from", "0xabc", "--to", "0xdef", "--value", "1"}, fails: true},
		{name: "badvalue", args: []string{"send", "--from", "0xabc", "--to", "0xdef", "--value", "x"}, fails: true},
	}

	t.Log("Given the need to run wallet commands against a node.")
	{
		for _, tst := range tt {
			f := func(t *testing.T) {
				var out bytes.Buffer
				rootCmd.SetOut(&out)
				rootCmd.SetErr(&bytes.Buffer{})
				rootCmd.SetArgs(append([]string{"--url", srv.URL}, tst.args...))

				err := rootCmd.Execute()
				if tst.fails {
					if err == nil {
						t.Fatalf("\t%s\tTest %s:\tShould fail.", failed, tst.name)
					}
					t.Logf("\t%s\tTest %s:\tShould fail: %v", success, tst.name, err)
					return
				}

				if err != nil {
					t.Fatalf("\t%s\tTest %s:\tShould run the command: %v", failed, tst.name, err)
				}

				if got := out.String(); !strings.EqualFold(got, tst.output) {
					t.Fatalf("\t%s\tTest %s:\tShould print %q: got %q", failed, tst.name, tst.output, got)
				}
				t.Logf("\t%s\tTest %s:\tShould print the result.", success, tst.name)
			}

			t.Run(tst.name, f)
		}
	}
}
