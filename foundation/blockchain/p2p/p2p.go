// Package p2p maintains the connections between nodes. Outbound connections
// to known peers make up the group packets are broadcast to. Inbound sessions
// only receive, and the introduction a remote node sends on a new session is
// used to connect back to it.
package p2p

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/blockj/node/foundation/blockchain/peer"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// Default values applied to a zero Config.
const (
	DefaultRoute            = "/v1/node/p2p"
	DefaultDialTimeout      = 5 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultReconnectDelay   = 5 * time.Second
	DefaultReconnectRetries = 20
	DefaultQueueSize        = 256
)

// EventHandler defines a function that is called when events
// occur in the processing of the network.
type EventHandler func(v string, args ...any)

// Handler is called for each packet received from a peer. It's executed on
// the dispatch worker and never on the connection goroutines.
type Handler func(from peer.Peer, pkt Packet)

// Config represents the configuration required to construct the network.
type Config struct {
	Self             peer.Peer
	Route            string
	DialTimeout      time.Duration
	WriteTimeout     time.Duration
	ReconnectDelay   time.Duration
	ReconnectRetries uint64
	QueueSize        int
	OnPacket         Handler
	OnConnected      func(p peer.Peer)
	OnDisconnected   func(p peer.Peer)
	EvHandler        EventHandler
}

type job struct {
	from peer.Peer
	pkt  Packet
}

// Network manages the outbound group, the inbound sessions and the worker
// that dispatches received packets.
type Network struct {
	cfg      Config
	known    *peer.Set
	upgrader websocket.Upgrader
	work     chan job

	mu           sync.RWMutex
	closed       bool
	group        map[peer.Peer]*conn
	inbound      map[*websocket.Conn]struct{}
	reconnecting map[peer.Peer]struct{}
	connecting   map[peer.Peer]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a network. Start must be called before packets are
// dispatched.
func New(cfg Config) *Network {
	if cfg.Route == "" {
		cfg.Route = DefaultRoute
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.ReconnectRetries == 0 {
		cfg.ReconnectRetries = DefaultReconnectRetries
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	ev := cfg.EvHandler
	cfg.EvHandler = func(v string, args ...any) {
		if ev != nil {
			ev(v, args...)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Network{
		cfg:          cfg,
		known:        peer.NewSet(),
		work:         make(chan job, cfg.QueueSize),
		group:        make(map[peer.Peer]*conn),
		inbound:      make(map[*websocket.Conn]struct{}),
		reconnecting: make(map[peer.Peer]struct{}),
		connecting:   make(map[peer.Peer]struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start runs the dispatch worker.
func (n *Network) Start() {
	n.wg.Add(1)
	go n.dispatchWorker()
}

// Shutdown closes every connection and waits for the goroutines of the
// network to complete.
func (n *Network) Shutdown() {
	n.cfg.EvHandler("p2p: shutdown: started")
	defer n.cfg.EvHandler("p2p: shutdown: completed")

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.cancel()

	conns := make([]*conn, 0, len(n.group))
	for _, c := range n.group {
		conns = append(conns, c)
	}
	n.group = make(map[peer.Peer]*conn)

	sessions := make([]*websocket.Conn, 0, len(n.inbound))
	for ws := range n.inbound {
		sessions = append(sessions, ws)
	}
	n.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
	for _, ws := range sessions {
		ws.Close()
	}

	n.wg.Wait()
}

// Self returns the address this node advertises.
func (n *Network) Self() peer.Peer {
	return n.cfg.Self
}

// Peers returns the peers currently bound into the group.
func (n *Network) Peers() []peer.Peer {
	n.mu.RLock()
	defer n.mu.RUnlock()

	peers := make([]peer.Peer, 0, len(n.group))
	for p := range n.group {
		peers = append(peers, p)
	}

	return peers
}

// KnownPeers returns the peers the network will keep reconnecting to.
func (n *Network) KnownPeers() []peer.Peer {
	return n.known.Copy()
}

// IsConnected reports whether the peer is bound into the group.
func (n *Network) IsConnected(p peer.Peer) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	_, exists := n.group[p]
	return exists
}

// =============================================================================

// Connect establishes an outbound connection to the peer and binds it into
// the group. Connecting to ourselves or to a peer already in the group is a
// no-op. When the attempt fails the network keeps retrying in the background
// and a NetworkError is returned.
func (n *Network) Connect(ctx context.Context, p peer.Peer) error {
	if p == n.cfg.Self {
		n.cfg.EvHandler("p2p: Connect: peer[%s]: skipping self", p)
		return nil
	}

	if n.IsConnected(p) {
		n.cfg.EvHandler("p2p: Connect: peer[%s]: already connected", p)
		return nil
	}

	n.known.Add(p)

	if err := n.dial(ctx, p); err != nil {
		n.cfg.EvHandler("p2p: Connect: peer[%s]: ERROR: %s", p, err)
		n.reconnect(p)
		return &NetworkError{Peer: p, Err: err}
	}

	return nil
}

// Broadcast sends the packet to every peer in the group except the ones
// specified. A slow or broken peer doesn't hold up the others. The number
// of peers the packet was queued for is returned.
func (n *Network) Broadcast(pkt Packet, except ...peer.Peer) (int, error) {
	data, err := json.Marshal(pkt)
	if err != nil {
		return 0, err
	}

	n.mu.RLock()
	conns := make([]*conn, 0, len(n.group))
	for p, c := range n.group {
		if !contains(except, p) {
			conns = append(conns, c)
		}
	}
	n.mu.RUnlock()

	var sent int
	for _, c := range conns {
		if !c.send(data) {
			n.cfg.EvHandler("p2p: Broadcast: peer[%s]: WARNING: send queue full, packet dropped", c.peer)
			continue
		}
		sent++
	}

	n.cfg.EvHandler("p2p: Broadcast: type[%s]: sent[%d]", pkt.Type, sent)

	return sent, nil
}

// Send queues the packet for a single peer in the group.
func (n *Network) Send(p peer.Peer, pkt Packet) error {
	data, err := json.Marshal(pkt)
	if err != nil {
		return err
	}

	n.mu.RLock()
	c, exists := n.group[p]
	n.mu.RUnlock()

	if !exists {
		return &NetworkError{Peer: p, Err: errors.New("peer not connected")}
	}

	if !c.send(data) {
		return &NetworkError{Peer: p, Err: errors.New("send queue full")}
	}

	return nil
}

// ServeHTTP accepts an inbound session from a remote node. The first packet
// is expected to be the introduction that identifies the remote node.
func (n *Network) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.cfg.EvHandler("p2p: ServeHTTP: upgrade: ERROR: %s", err)
		return
	}

	if !n.track(ws) {
		ws.Close()
		return
	}
	defer n.untrack(ws)

	var remote *peer.Peer
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if remote != nil {
				n.cfg.EvHandler("p2p: ServeHTTP: peer[%s]: session closed", *remote)
			}
			return
		}

		var pkt Packet
		if err := json.Unmarshal(data, &pkt); err != nil {
			n.cfg.EvHandler("p2p: ServeHTTP: ERROR: malformed packet: %s", err)
			continue
		}

		if pkt.Type == PeerIntroduction {
			var p peer.Peer
			if err := pkt.Decode(&p); err != nil {
				n.cfg.EvHandler("p2p: ServeHTTP: ERROR: %s", err)
				continue
			}
			remote = &p
		}

		if remote == nil {
			n.cfg.EvHandler("p2p: ServeHTTP: WARNING: packet[%s] before introduction, dropped", pkt.Type)
			continue
		}

		n.dispatch(job{from: *remote, pkt: pkt})
	}
}

// =============================================================================

// dial performs the connection attempt, sends our introduction and binds
// the connection into the group.
func (n *Network) dial(ctx context.Context, p peer.Peer) error {
	if n.IsConnected(p) {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: n.cfg.DialTimeout}
	u := url.URL{Scheme: "ws", Host: p.Host(), Path: n.cfg.Route}

	ws, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	intro, err := NewPacket(PeerIntroduction, n.cfg.Self)
	if err != nil {
		ws.Close()
		return err
	}

	data, err := json.Marshal(intro)
	if err != nil {
		ws.Close()
		return err
	}

	ws.SetWriteDeadline(time.Now().Add(n.cfg.WriteTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		ws.Close()
		return err
	}

	c := newConn(p, ws)
	if !n.bind(c) {
		ws.Close()
		return nil
	}

	go n.writer(c)
	go n.reader(c)

	n.cfg.EvHandler("p2p: dial: peer[%s]: connected", p)
	if n.cfg.OnConnected != nil {
		n.cfg.OnConnected(p)
	}

	return nil
}

// bind adds the connection into the group. It fails when the network is
// shutting down or another connection to the peer won the race.
func (n *Network) bind(c *conn) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return false
	}

	if _, exists := n.group[c.peer]; exists {
		return false
	}

	n.group[c.peer] = c
	n.wg.Add(2)

	return true
}

// reconnect retries the connection to the peer with a fixed delay. Once the
// retries are exhausted the peer is forgotten and must be rediscovered.
func (n *Network) reconnect(p peer.Peer) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	if _, exists := n.reconnecting[p]; exists {
		n.mu.Unlock()
		return
	}
	n.reconnecting[p] = struct{}{}
	n.wg.Add(1)
	n.mu.Unlock()

	go func() {
		defer n.wg.Done()
		defer func() {
			n.mu.Lock()
			delete(n.reconnecting, p)
			n.mu.Unlock()
		}()

		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(n.cfg.ReconnectDelay), n.cfg.ReconnectRetries), n.ctx)

		op := func() error {
			return n.dial(n.ctx, p)
		}

		notify := func(err error, d time.Duration) {
			n.cfg.EvHandler("p2p: reconnect: peer[%s]: retry in %v: %s", p, d, err)
		}

		// The first attempt happens after one delay.
		select {
		case <-n.ctx.Done():
			return
		case <-time.After(n.cfg.ReconnectDelay):
		}

		if err := backoff.RetryNotify(op, policy, notify); err != nil {
			if n.ctx.Err() != nil {
				return
			}
			n.known.Remove(p)
			n.cfg.EvHandler("p2p: reconnect: peer[%s]: retries exhausted, peer forgotten: %s", p, err)
		}
	}()
}

// reader drains the outbound connection so closure is detected. Losing the
// connection removes it from the group and starts the reconnect policy.
func (n *Network) reader(c *conn) {
	defer n.wg.Done()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			break
		}

		var pkt Packet
		if err := json.Unmarshal(data, &pkt); err == nil {
			n.dispatch(job{from: c.peer, pkt: pkt})
		}
	}

	c.close()

	n.mu.Lock()
	bound := n.group[c.peer] == c
	if bound {
		delete(n.group, c.peer)
	}
	closed := n.closed
	n.mu.Unlock()

	if !bound {
		return
	}

	n.cfg.EvHandler("p2p: reader: peer[%s]: disconnected", c.peer)
	if n.cfg.OnDisconnected != nil {
		n.cfg.OnDisconnected(c.peer)
	}

	if !closed {
		n.reconnect(c.peer)
	}
}

// writer performs the writes for the connection so every peer is sent to
// independently.
func (n *Network) writer(c *conn) {
	defer n.wg.Done()

	for {
		select {
		case data := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(n.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				n.cfg.EvHandler("p2p: writer: peer[%s]: ERROR: %s", c.peer, err)
				c.close()
				return
			}

		case <-c.done:
			return
		}
	}
}

// dispatch hands the packet to the worker without blocking the caller. The
// packet is dropped when the worker is too far behind.
func (n *Network) dispatch(j job) {
	select {
	case n.work <- j:
	default:
		n.cfg.EvHandler("p2p: dispatch: peer[%s]: WARNING: queue full, packet[%s] dropped", j.from, j.pkt.Type)
	}
}

func (n *Network) dispatchWorker() {
	defer n.wg.Done()

	for {
		select {
		case <-n.ctx.Done():
			return

		case j := <-n.work:
			switch j.pkt.Type {
			case PeerIntroduction:
				var p peer.Peer
				if err := j.pkt.Decode(&p); err != nil {
					n.cfg.EvHandler("p2p: dispatch: ERROR: %s", err)
					continue
				}
				n.connectBack(p)

			default:
				if n.cfg.OnPacket != nil {
					n.cfg.OnPacket(j.from, j.pkt)
				}
			}
		}
	}
}

// connectBack dials the peer announced by an introduction on its own
// goroutine. A slow or unreachable peer must not hold up the dispatch of
// packets from the other peers.
func (n *Network) connectBack(p peer.Peer) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	if _, exists := n.connecting[p]; exists {
		n.mu.Unlock()
		return
	}
	n.connecting[p] = struct{}{}
	n.wg.Add(1)
	n.mu.Unlock()

	go func() {
		defer n.wg.Done()
		defer func() {
			n.mu.Lock()
			delete(n.connecting, p)
			n.mu.Unlock()
		}()

		if err := n.Connect(n.ctx, p); err != nil {
			n.cfg.EvHandler("p2p: connectBack: peer[%s]: WARNING: %s", p, err)
		}
	}()
}

func (n *Network) track(ws *websocket.Conn) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return false
	}

	n.inbound[ws] = struct{}{}
	n.wg.Add(1)

	return true
}

func (n *Network) untrack(ws *websocket.Conn) {
	n.mu.Lock()
	delete(n.inbound, ws)
	n.mu.Unlock()

	ws.Close()
	n.wg.Done()
}

func contains(peers []peer.Peer, p peer.Peer) bool {
	for _, e := range peers {
		if e == p {
			return true
		}
	}
	return false
}
