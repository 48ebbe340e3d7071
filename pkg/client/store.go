package client

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Keys used in the local store. They are shared by every account that signs
// in on the same machine.
const (
	KeyCart        = "cart"
	KeyUser        = "user"
	KeyToken       = "token"
	KeyCheckoutKey = "checkout_key"
)

var ErrKeyNotFound = errors.New("key not found")

// LocalStore is the shopper's machine-local key/value storage.
type LocalStore interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens the store at dir. An empty dir keeps everything in
// memory.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	return value, err
}

func (s *BadgerStore) Set(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (s *BadgerStore) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
