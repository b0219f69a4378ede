// This program follows the event stream of a node and logs every block the
// node applies.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/blockj/node/foundation/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

// blockPrefix marks the events carrying an applied block.
const blockPrefix = "viewer: block: "

func main() {

	// Construct the application logger.
	log, err := logger.New("VIEWER")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	cfg := struct {
		conf.Version
		Node             string        `conf:"default:localhost:8080"`
		HandshakeTimeout time.Duration `conf:"default:5s"`
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "blockj viewer",
		},
	}

	const prefix = "VIEWER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	u := url.URL{Scheme: "ws", Host: cfg.Node, Path: "/v1/events"}
	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}

	c, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.String(), err)
	}
	defer c.Close()

	log.Infow("startup", "status", "following node", "url", u.String())

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-shutdown
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.Close()
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}

		event := string(data)
		if !strings.HasPrefix(event, blockPrefix) {
			continue
		}

		var block struct {
			Hash     string               `json:"hash"`
			Header   database.BlockHeader `json:"header"`
			Messages []database.Message   `json:"messages"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(event, blockPrefix)), &block); err != nil {
			log.Errorw("event", "ERROR", err)
			continue
		}

		log.Infow("block", "height", block.Header.Height, "hash", block.Hash, "msgs", len(block.Messages), "timestamp", block.Header.TimeStamp)
		for _, msg := range block.Messages {
			log.Infow("message", "cid", msg.Cid, "from", msg.From, "to", msg.To, "value", msg.Value, "nonce", msg.Nonce)
		}
	}
}
