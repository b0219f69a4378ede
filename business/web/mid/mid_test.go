package mid_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/blockj/node/business/web/errs"
	"github.com/blockj/node/business/web/mid"
	"github.com/blockj/node/foundation/validate"
	"github.com/blockj/node/foundation/web"
	"go.uber.org/zap"
)

const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Errors(t *testing.T) {
	type table struct {
		name    string
		handler web.Handler
		status  int
		message string
		fields  bool
	}

	tt := []table{
		{
			name: "trusted",
			handler: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return errs.NewTrusted(errors.New("no such block"), http.StatusNotFound)
			},
			status:  http.StatusNotFound,
			message: "no such block",
		},
		{
			name: "fields",
			handler: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				v := struct {
					To string `json:"to" validate:"required"`
				}{}
				return validate.Check(v)
			},
			status:  http.StatusBadRequest,
			message: "data validation error",
			fields:  true,
		},
		{
			name: "untrusted",
			handler: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return errors.New("disk is on fire")
			},
			status:  http.StatusInternalServerError,
			message: http.StatusText(http.StatusInternalServerError),
		},
		{
			name: "panic",
			handler: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				panic("boom")
			},
			status:  http.StatusInternalServerError,
			message: http.StatusText(http.StatusInternalServerError),
		},
	}

	t.Log("Given the need to respond to handler errors in a uniform way.")
	{
		log := zap.NewNop().Sugar()

		for _, tst := range tt {
			f := func(t *testing.T) {
				app := web.NewApp(make(chan os.Signal, 1), mid.Logger(log), mid.Errors(log), mid.Metrics(), mid.Panics())
				app.Handle(http.MethodGet, "v1", "/test", tst.handler)

				w := httptest.NewRecorder()
				app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/test", nil))

				var er errs.Response
				if err := json.NewDecoder(w.Body).Decode(&er); err != nil {
					t.Fatalf("\t%s\tTest %s:\tShould be able to decode the response: %v", failed, tst.name, err)
				}

				if w.Code != tst.status || er.Error != tst.message {
					t.Fatalf("\t%s\tTest %s:\tShould get %d %q: got %d %q", failed, tst.name, tst.status, tst.message, w.Code, er.Error)
				}
				t.Logf("\t%s\tTest %s:\tShould get %d %q.", success, tst.name, tst.status, tst.message)

				if tst.fields && er.Fields["to"] == "" {
					t.Fatalf("\t%s\tTest %s:\tShould name the invalid field: got %v", failed, tst.name, er.Fields)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Cors(t *testing.T) {
	t.Log("Given the need to allow cross origin requests.")
	{
		app := web.NewApp(make(chan os.Signal, 1), mid.Cors("*"))
		app.Handle(http.MethodGet, "", "/ping", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		})

		w := httptest.NewRecorder()
		app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Fatalf("\t%s\tShould set the allowed origin: got %q", failed, got)
		}
		t.Logf("\t%s\tShould set the allowed origin.", success)

		app = web.NewApp(make(chan os.Signal, 1), mid.Cors("https://viewer.example"))
		app.Handle(http.MethodGet, "", "/ping", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		})

		for origin, want := range map[string]string{"https://viewer.example": "https://viewer.example", "https://other.example": ""} {
			r := httptest.NewRequest(http.MethodGet, "/ping", nil)
			r.Header.Set("Origin", origin)

			w := httptest.NewRecorder()
			app.ServeHTTP(w, r)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != want {
				t.Fatalf("\t%s\tShould only echo allowed origins: origin %q got %q", failed, origin, got)
			}
		}
		t.Logf("\t%s\tShould only echo allowed origins.", success)
	}
}
