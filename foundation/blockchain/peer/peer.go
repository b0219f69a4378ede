// Package peer maintains the peer related information such as the set
// of known peers and their status.
package peer

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
)

// Peer represents information about a Node in the network. Two peers are
// the same node when both the ip and port match.
type Peer struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// New contructs a new peer value.
func New(ip string, port int) Peer {
	return Peer{
		IP:   ip,
		Port: port,
	}
}

// Parse constructs a peer from a host:port string.
func Parse(hostPort string) (Peer, error) {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return Peer{}, fmt.Errorf("parse peer %q: %w", hostPort, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Peer{}, fmt.Errorf("parse peer %q: invalid port", hostPort)
	}

	return New(host, port), nil
}

// Host returns the host:port form of the peer.
func (p Peer) Host() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
}

// String implements the fmt.Stringer interface for logging.
func (p Peer) String() string {
	return p.Host()
}

// =============================================================================

// PeerStatus represents information about the status
// of any given peer.
type PeerStatus struct {
	LatestBlockHash   string `json:"latest_block_hash"`
	LatestBlockHeight uint64 `json:"latest_block_height"`
	KnownPeers        []Peer `json:"known_peers"`
}

// =============================================================================

// Set represents the data representation to maintain a set of peers. The
// underlying map never leaves the protection of the lock.
type Set struct {
	mu  sync.RWMutex
	set map[Peer]struct{}
}

// NewSet constructs a new set to manage node peer information.
func NewSet() *Set {
	return &Set{
		set: make(map[Peer]struct{}),
	}
}

// Add adds a new node to the set and reports if it wasn't already present.
func (s *Set) Add(peer Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.set[peer]
	if !exists {
		s.set[peer] = struct{}{}
		return true
	}

	return false
}

// Remove removes a node from the set.
func (s *Set) Remove(peer Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.set, peer)
}

// Contains reports whether the node is in the set.
func (s *Set) Contains(peer Peer) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.set[peer]
	return exists
}

// Len returns the number of nodes in the set.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.set)
}

// Copy returns a sorted list of the peers minus the excluded ones.
func (s *Set) Copy(except ...Peer) []Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make([]Peer, 0, len(s.set))
	for peer := range s.set {
		if !contains(except, peer) {
			peers = append(peers, peer)
		}
	}

	sort.Slice(peers, func(i, j int) bool { return peers[i].Host() < peers[j].Host() })

	return peers
}

func contains(peers []Peer, peer Peer) bool {
	for _, p := range peers {
		if p == peer {
			return true
		}
	}
	return false
}
