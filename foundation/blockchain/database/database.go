// Package database handles all the lower level support for maintaining the
// ledger in a key value store. It holds blocks, the height index, messages,
// accounts, wallets and the chain head under namespaced keys.
package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Database manages the ledger on top of a storage engine.
type Database struct {
	mu        sync.Mutex
	storage   Storage
	evHandler EventHandler
}

// New constructs a database over the specified storage.
func New(storage Storage, evHandler EventHandler) *Database {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	return &Database{
		storage:   storage,
		evHandler: ev,
	}
}

// Close closes the underlying storage.
func (db *Database) Close() error {
	return db.storage.Close()
}

// =============================================================================

// Put stores the raw value under the specified key.
func (db *Database) Put(key string, value []byte) error {
	return db.storage.Update(func(rw ReadWriter) error {
		return rw.Set(key, value)
	})
}

// Get returns the raw value stored under the specified key. ErrNotFound is
// returned when the key is absent.
func (db *Database) Get(key string) ([]byte, error) {
	var value []byte
	err := db.storage.View(func(r Reader) error {
		v, err := r.Get(key)
		if err != nil {
			return err
		}
		value = v
		return nil
	})

	return value, err
}

// ChainHead returns the height of the latest applied block. ErrChainHeadNotSet
// is returned before the genesis block is applied.
func (db *Database) ChainHead() (uint64, error) {
	var height uint64
	err := db.storage.View(func(r Reader) error {
		h, err := chainHead(r)
		if err != nil {
			return err
		}
		height = h
		return nil
	})

	return height, err
}

// LatestBlock returns the block at the chain head.
func (db *Database) LatestBlock() (Block, error) {
	var block Block
	err := db.storage.View(func(r Reader) error {
		height, err := chainHead(r)
		if err != nil {
			return err
		}

		block, err = blockByHeight(r, height)
		return err
	})

	return block, err
}

// Block returns the block for the specified hash.
func (db *Database) Block(hash string) (Block, error) {
	var block Block
	err := db.storage.View(func(r Reader) error {
		return getJSON(r, blockKey(hash), &block)
	})

	return block, err
}

// HasBlock reports whether the block for the specified hash has been applied.
func (db *Database) HasBlock(hash string) (bool, error) {
	_, err := db.Get(blockKey(hash))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// BlockByHeight returns the block applied at the specified height.
func (db *Database) BlockByHeight(height uint64) (Block, error) {
	var block Block
	err := db.storage.View(func(r Reader) error {
		var err error
		block, err = blockByHeight(r, height)
		return err
	})

	return block, err
}

// ForEach walks the applied blocks in height order.
func (db *Database) ForEach(fn func(block Block) error) error {
	return db.storage.View(func(r Reader) error {
		return r.Iterate(heightPrefix, func(key string, value []byte) error {
			var block Block
			if err := getJSON(r, blockKey(string(value)), &block); err != nil {
				return err
			}
			return fn(block)
		})
	})
}

// Message returns the applied message for the specified cid.
func (db *Database) Message(cid string) (Message, error) {
	var msg Message
	err := db.storage.View(func(r Reader) error {
		return getJSON(r, messageKey(cid), &msg)
	})

	return msg, err
}

// Account returns the account for the specified address. ErrNotFound is
// returned when the account has never been part of an applied message.
func (db *Database) Account(address string) (Account, error) {
	var account Account
	err := db.storage.View(func(r Reader) error {
		return getJSON(r, accountKey(ToAddress(address)), &account)
	})

	return account, err
}

// Accounts returns every known account sorted by address.
func (db *Database) Accounts() ([]Account, error) {
	var accounts []Account
	err := db.storage.View(func(r Reader) error {
		return r.Iterate(accountPrefix, func(key string, value []byte) error {
			var account Account
			if err := json.Unmarshal(value, &account); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			accounts = append(accounts, account)
			return nil
		})
	})

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Address < accounts[j].Address })

	return accounts, err
}

// =============================================================================

// SaveWallet stores the wallet. When miner is true the wallet becomes the
// mining identity of the node.
func (db *Database) SaveWallet(w Wallet, miner bool) error {
	data, err := json.Marshal(w)
	if err != nil {
		return err
	}

	return db.storage.Update(func(rw ReadWriter) error {
		if err := rw.Set(walletKey(w.Address), data); err != nil {
			return err
		}

		if miner {
			return rw.Set(minerAddrKey, []byte(w.Address))
		}

		return nil
	})
}

// Wallet returns the wallet for the specified address.
func (db *Database) Wallet(address string) (Wallet, error) {
	var w Wallet
	err := db.storage.View(func(r Reader) error {
		return getJSON(r, walletKey(ToAddress(address)), &w)
	})

	return w, err
}

// Wallets returns every wallet kept by the node.
func (db *Database) Wallets() ([]Wallet, error) {
	var wallets []Wallet
	err := db.storage.View(func(r Reader) error {
		return r.Iterate(walletPrefix, func(key string, value []byte) error {
			var w Wallet
			if err := json.Unmarshal(value, &w); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			wallets = append(wallets, w)
			return nil
		})
	})

	return wallets, err
}

// MinerAddress returns the address of the mining identity.
func (db *Database) MinerAddress() (string, error) {
	data, err := db.Get(minerAddrKey)
	if err != nil {
		return "", fmt.Errorf("miner address: %w", err)
	}

	return string(data), nil
}

// MinerWallet returns the wallet used as the mining identity.
func (db *Database) MinerWallet() (Wallet, error) {
	address, err := db.MinerAddress()
	if err != nil {
		return Wallet{}, err
	}

	return db.Wallet(address)
}

// =============================================================================

// ApplyBlock performs the state transition for a validated block. Applying
// a block that is already known is a no-op and reports false. Every write for
// the block happens in a single storage transaction so a failure leaves the
// store unchanged.
func (db *Database) ApplyBlock(block Block) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var applied bool
	err := db.storage.Update(func(rw ReadWriter) error {
		_, err := rw.Get(blockKey(block.Header.Hash))
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, ErrNotFound):
			return err
		}

		if err := checkParent(rw, block); err != nil {
			return err
		}

		accounts := make(map[string]Account)
		for _, msg := range block.Messages {
			if err := applyMessage(rw, accounts, msg); err != nil {
				return err
			}

			if err := setJSON(rw, messageKey(msg.Cid), msg); err != nil {
				return err
			}
		}

		for _, account := range accounts {
			if err := setJSON(rw, accountKey(account.Address), account); err != nil {
				return err
			}
		}

		if err := setJSON(rw, blockKey(block.Header.Hash), block); err != nil {
			return err
		}

		if err := rw.Set(heightKey(block.Header.Height), []byte(block.Header.Hash)); err != nil {
			return err
		}

		if err := setJSON(rw, chainHeadKey, block.Header.Height); err != nil {
			return err
		}

		applied = true
		return nil
	})

	if err != nil {
		db.evHandler("database: ApplyBlock: blk[%s]: ERROR: %s", block, err)
		return false, NewChainError(block, err)
	}

	if !applied {
		db.evHandler("database: ApplyBlock: blk[%s]: already applied", block)
		return false, nil
	}

	db.evHandler("database: ApplyBlock: blk[%s]: msgs[%d]: applied", block, len(block.Messages))

	return true, nil
}

// =============================================================================

// checkParent requires the block to extend the current chain head.
func checkParent(r Reader, block Block) error {
	head, err := chainHead(r)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		if block.Header.Height != 0 || block.Header.ParentHash != "" {
			return fmt.Errorf("first block must be genesis, got height %d", block.Header.Height)
		}

		return nil
	}

	if block.Header.Height != head+1 {
		return fmt.Errorf("height mismatch, got %d, exp %d", block.Header.Height, head+1)
	}

	parentHash, err := r.Get(heightKey(head))
	if err != nil {
		return err
	}

	if block.Header.ParentHash != string(parentHash) {
		return fmt.Errorf("parent hash mismatch, got %s, exp %s", block.Header.ParentHash, parentHash)
	}

	return nil
}

// applyMessage moves the value between the accounts staged for the block.
func applyMessage(r Reader, accounts map[string]Account, msg Message) error {
	if msg.Value.IsNegative() {
		return fmt.Errorf("message %s: negative value %s", msg.Cid, msg.Value)
	}

	if !msg.IsReward() {
		from, err := stagedAccount(r, accounts, msg.From)
		if err != nil {
			return err
		}

		if from.Balance.LessThan(msg.Value) {
			return fmt.Errorf("message %s: insufficient funds, bal %s, needed %s", msg.Cid, from.Balance, msg.Value)
		}

		if msg.Nonce != from.MessageNonce+1 {
			return fmt.Errorf("message %s: invalid nonce, got %d, exp %d", msg.Cid, msg.Nonce, from.MessageNonce+1)
		}

		from.Balance = from.Balance.Sub(msg.Value)
		from.MessageNonce++
		if from.PubKey == "" {
			from.PubKey = msg.PubKey
		}
		accounts[from.Address] = from
	}

	to, err := stagedAccount(r, accounts, msg.To)
	if err != nil {
		return err
	}

	to.Balance = to.Balance.Add(msg.Value)
	accounts[to.Address] = to

	return nil
}

// stagedAccount returns the account as changed so far by the block, falling
// back to the store and then to a new account.
func stagedAccount(r Reader, accounts map[string]Account, address string) (Account, error) {
	address = ToAddress(address)

	if account, exists := accounts[address]; exists {
		return account, nil
	}

	var account Account
	err := getJSON(r, accountKey(address), &account)
	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, ErrNotFound):
		return NewAccount(address, decimal.Zero), nil
	default:
		return Account{}, err
	}
}

func chainHead(r Reader) (uint64, error) {
	var height uint64
	if err := getJSON(r, chainHeadKey, &height); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, ErrChainHeadNotSet
		}
		return 0, err
	}

	return height, nil
}

func blockByHeight(r Reader, height uint64) (Block, error) {
	hash, err := r.Get(heightKey(height))
	if err != nil {
		return Block{}, fmt.Errorf("height %d: %w", height, err)
	}

	var block Block
	if err := getJSON(r, blockKey(string(hash)), &block); err != nil {
		return Block{}, err
	}

	return block, nil
}

func getJSON(r Reader, key string, v any) error {
	data, err := r.Get(key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}

	return nil
}

func setJSON(rw ReadWriter, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	return rw.Set(key, data)
}
