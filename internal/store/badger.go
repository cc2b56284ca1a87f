package store

import (
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/devaloi/parley/internal/domain"
)

// BadgerStore implements Store on top of BadgerDB, one key per record.
type BadgerStore struct {
	db *badger.DB
}

// NewBadger opens a BadgerDB at path. An empty path opens an in-memory database.
func NewBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

// Load reads both records in a single read transaction.
func (b *BadgerStore) Load() (domain.Snapshot, error) {
	var rooms, messages []byte
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		if rooms, err = valueOf(txn, KeyChatrooms); err != nil {
			return err
		}
		messages, err = valueOf(txn, KeyMessages)
		return err
	})
	if err != nil {
		return domain.Snapshot{}, &domain.StorageError{Op: "read snapshot", Err: err}
	}
	return decodeSnapshot(rooms, messages)
}

// SaveChatrooms replaces the chatrooms record.
func (b *BadgerStore) SaveChatrooms(rooms []domain.Chatroom) error {
	data, err := encodeChatrooms(rooms)
	if err != nil {
		return &domain.StorageError{Op: "encode " + KeyChatrooms, Err: err}
	}
	return b.put(KeyChatrooms, data)
}

// SaveMessages replaces the messages record.
func (b *BadgerStore) SaveMessages(messages map[string][]domain.Message) error {
	data, err := encodeMessages(messages)
	if err != nil {
		return &domain.StorageError{Op: "encode " + KeyMessages, Err: err}
	}
	return b.put(KeyMessages, data)
}

// Close closes the underlying database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func (b *BadgerStore) put(key string, data []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return &domain.StorageError{Op: "write " + key, Err: err}
	}
	return nil
}

func valueOf(txn *badger.Txn, key string) ([]byte, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}
