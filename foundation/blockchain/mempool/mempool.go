// Package mempool maintains the pending messages waiting to be mined. There
// is no prioritization, messages are picked in the order they arrived.
package mempool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/blockj/node/foundation/blockchain/database"
)

type entry struct {
	seq uint64
	msg database.Message
}

// Mempool represents a cache of messages organized by from:nonce.
type Mempool struct {
	mu   sync.RWMutex
	pool map[string]entry
	seq  uint64
}

// New constructs a new mempool.
func New() *Mempool {
	return &Mempool{
		pool: make(map[string]entry),
	}
}

// Count returns the current number of messages in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds or replaces a message in the mempool. A replaced message keeps
// its place in line.
func (mp *Mempool) Upsert(msg database.Message) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	key := mapKey(msg)

	e, exists := mp.pool[key]
	if !exists {
		mp.seq++
		e.seq = mp.seq
	}
	e.msg = msg
	mp.pool[key] = e

	return len(mp.pool)
}

// Delete removes a message from the mempool.
func (mp *Mempool) Delete(msg database.Message) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.pool, mapKey(msg))
}

// Truncate clears all the messages from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]entry)
}

// PendingNonce returns the highest nonce waiting in the pool for the
// specified account, or zero when the account has nothing pending.
func (mp *Mempool) PendingNonce(from string) uint64 {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	var nonce uint64
	for _, e := range mp.pool {
		if e.msg.From == from && e.msg.Nonce > nonce {
			nonce = e.msg.Nonce
		}
	}

	return nonce
}

// Pick returns up to howMany messages in arrival order. A value of -1
// returns every message.
func (mp *Mempool) Pick(howMany int) []database.Message {
	mp.mu.RLock()
	entries := make([]entry, 0, len(mp.pool))
	for _, e := range mp.pool {
		entries = append(entries, e)
	}
	mp.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	if howMany == -1 || howMany > len(entries) {
		howMany = len(entries)
	}

	msgs := make([]database.Message, howMany)
	for i := range msgs {
		msgs[i] = entries[i].msg
	}

	return msgs
}

// =============================================================================

// mapKey is used to generate the map key.
func mapKey(msg database.Message) string {
	return fmt.Sprintf("%s:%d", msg.From, msg.Nonce)
}
