// Package memory implements the ledger storage in memory using a map. It is
// used by tests and by nodes that don't need to survive a restart.
package memory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blockj/node/foundation/blockchain/database"
)

// ErrReadOnly is returned when a write is attempted inside a view.
var ErrReadOnly = errors.New("read only transaction")

// Memory represents the map implementation of the database.Storage
// interface.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{
		data: make(map[string][]byte),
	}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// View executes the function while holding a read lock.
func (m *Memory) View(fn func(r database.Reader) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return fn(&txn{mem: m, readOnly: true})
}

// Update executes the function against a set of staged writes which are
// only copied into the map when the function returns no error.
func (m *Memory) Update(fn func(rw database.ReadWriter) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := txn{mem: m, staged: make(map[string][]byte)}
	if err := fn(&t); err != nil {
		return err
	}

	for k, v := range t.staged {
		m.data[k] = v
	}

	return nil
}

// =============================================================================

type txn struct {
	mem      *Memory
	staged   map[string][]byte
	readOnly bool
}

// Get returns a copy of the value, preferring staged writes.
func (t *txn) Get(key string) ([]byte, error) {
	if v, exists := t.staged[key]; exists {
		return clone(v), nil
	}

	v, exists := t.mem.data[key]
	if !exists {
		return nil, fmt.Errorf("%s: %w", key, database.ErrNotFound)
	}

	return clone(v), nil
}

// Set stages the value for the key.
func (t *txn) Set(key string, value []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}

	t.staged[key] = clone(value)

	return nil
}

// Iterate walks the keys with the prefix in sorted order including the
// staged writes.
func (t *txn) Iterate(prefix string, fn func(key string, value []byte) error) error {
	keys := make(map[string]struct{})
	for k := range t.mem.data {
		if strings.HasPrefix(k, prefix) {
			keys[k] = struct{}{}
		}
	}
	for k := range t.staged {
		if strings.HasPrefix(k, prefix) {
			keys[k] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, k := range sorted {
		v, err := t.Get(k)
		if err != nil {
			return err
		}

		if err := fn(k, v); err != nil {
			return err
		}
	}

	return nil
}

func clone(v []byte) []byte {
	c := make([]byte, len(v))
	copy(c, v)
	return c
}
