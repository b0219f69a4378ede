package database

// Reader represents the read behavior of a storage transaction.
type Reader interface {
	Get(key string) ([]byte, error)
	Iterate(prefix string, fn func(key string, value []byte) error) error
}

// ReadWriter represents the behavior of a storage transaction that can
// also write. Writes are only visible to others once the transaction commits.
type ReadWriter interface {
	Reader
	Set(key string, value []byte) error
}

// Storage interface represents the behavior required to be implemented by any
// package providing support for persisting the ledger. A Get for an absent key
// must return ErrNotFound. An Update must commit everything or nothing.
type Storage interface {
	View(fn func(r Reader) error) error
	Update(fn func(rw ReadWriter) error) error
	Close() error
}
