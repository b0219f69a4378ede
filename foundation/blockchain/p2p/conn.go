package p2p

import (
	"sync"

	"github.com/blockj/node/foundation/blockchain/peer"
	"github.com/gorilla/websocket"
)

// sendQueue is the number of packets that can wait to be written to a
// single peer.
const sendQueue = 64

// conn represents an outbound connection bound into the group.
type conn struct {
	peer peer.Peer
	ws   *websocket.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newConn(p peer.Peer, ws *websocket.Conn) *conn {
	return &conn{
		peer: p,
		ws:   ws,
		out:  make(chan []byte, sendQueue),
		done: make(chan struct{}),
	}
}

// send queues the data for the writer and reports false when the queue is
// full or the connection is closed.
func (c *conn) send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.out <- data:
		return true
	default:
		return false
	}
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}
