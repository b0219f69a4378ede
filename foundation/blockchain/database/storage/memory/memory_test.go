package memory_test

import (
	"errors"
	"testing"

	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/blockj/node/foundation/blockchain/database/storage/memory"
)

func Test_Storage(t *testing.T) {
	m := memory.New()

	err := m.View(func(r database.Reader) error {
		_, err := r.Get("account:unknown")
		return err
	})
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("Should get not found for an absent key: %v", err)
	}

	err = m.Update(func(rw database.ReadWriter) error {
		if err := rw.Set("height:2", []byte("b")); err != nil {
			return err
		}
		return rw.Set("height:1", []byte("a"))
	})
	if err != nil {
		t.Fatalf("Should be able to update: %v", err)
	}

	rollback := errors.New("rollback")
	err = m.Update(func(rw database.ReadWriter) error {
		if err := rw.Set("height:3", []byte("c")); err != nil {
			return err
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("Should get back the update error: %v", err)
	}

	var keys []string
	err = m.View(func(r database.Reader) error {
		if rw, ok := r.(database.ReadWriter); ok {
			if err := rw.Set("height:9", nil); !errors.Is(err, memory.ErrReadOnly) {
				t.Fatalf("Should not be able to write inside a view: %v", err)
			}
		}

		return r.Iterate("height:", func(key string, value []byte) error {
			keys = append(keys, key+"="+string(value))
			return nil
		})
	})
	if err != nil {
		t.Fatalf("Should be able to iterate: %v", err)
	}

	exp := []string{"height:1=a", "height:2=b"}
	if len(keys) != len(exp) {
		t.Logf("got: %v", keys)
		t.Logf("exp: %v", exp)
		t.Fatalf("Should get back only the committed keys.")
	}
	for i := range exp {
		if keys[i] != exp[i] {
			t.Logf("got: %v", keys)
			t.Logf("exp: %v", exp)
			t.Fatalf("Should get back the keys in sorted order.")
		}
	}
}
