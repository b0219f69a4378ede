// Package disk implements the ledger storage on top of a badger key value
// store kept in the node repo directory.
package disk

import (
	"errors"
	"fmt"

	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/dgraph-io/badger/v4"
)

// Disk represents the badger implementation of the database.Storage
// interface. Reads see a consistent snapshot and every update is a single
// badger transaction.
type Disk struct {
	db *badger.DB
}

// New opens the store in the specified directory. An empty directory opens
// an in-memory store.
func New(dbPath string) (*Disk, error) {
	opts := badger.DefaultOptions(dbPath).WithLogger(nil)
	if dbPath == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Disk{db: db}, nil
}

// Close closes the badger store.
func (d *Disk) Close() error {
	return d.db.Close()
}

// View executes the function in a read only transaction.
func (d *Disk) View(fn func(r database.Reader) error) error {
	return d.db.View(func(txn *badger.Txn) error {
		return fn(txnAdapter{txn: txn})
	})
}

// Update executes the function in a read write transaction. The writes are
// committed only when the function returns no error.
func (d *Disk) Update(fn func(rw database.ReadWriter) error) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return fn(txnAdapter{txn: txn})
	})
}

// =============================================================================

type txnAdapter struct {
	txn *badger.Txn
}

// Get returns a copy of the value for the key.
func (ta txnAdapter) Get(key string) ([]byte, error) {
	item, err := ta.txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%s: %w", key, database.ErrNotFound)
		}
		return nil, err
	}

	return item.ValueCopy(nil)
}

// Set stores the value for the key inside the transaction.
func (ta txnAdapter) Set(key string, value []byte) error {
	return ta.txn.Set([]byte(key), value)
}

// Iterate walks the keys with the prefix in sorted order.
func (ta txnAdapter) Iterate(prefix string, fn func(key string, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)

	it := ta.txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()

		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		if err := fn(string(item.KeyCopy(nil)), value); err != nil {
			return err
		}
	}

	return nil
}
