package store

import (
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"

	"github.com/devaloi/parley/internal/domain"
)

// SQLiteStore implements Store using SQLite as a key-value table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens or creates a SQLite database at the given path.
// Use ":memory:" for an in-memory database.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// Load reads both records and decodes them into a snapshot.
func (s *SQLiteStore) Load() (domain.Snapshot, error) {
	rooms, err := s.get(KeyChatrooms)
	if err != nil {
		return domain.Snapshot{}, &domain.StorageError{Op: "read " + KeyChatrooms, Err: err}
	}
	messages, err := s.get(KeyMessages)
	if err != nil {
		return domain.Snapshot{}, &domain.StorageError{Op: "read " + KeyMessages, Err: err}
	}
	return decodeSnapshot(rooms, messages)
}

// SaveChatrooms replaces the chatrooms record.
func (s *SQLiteStore) SaveChatrooms(rooms []domain.Chatroom) error {
	data, err := encodeChatrooms(rooms)
	if err != nil {
		return &domain.StorageError{Op: "encode " + KeyChatrooms, Err: err}
	}
	return s.put(KeyChatrooms, data)
}

// SaveMessages replaces the messages record.
func (s *SQLiteStore) SaveMessages(messages map[string][]domain.Message) error {
	data, err := encodeMessages(messages)
	if err != nil {
		return &domain.StorageError{Op: "encode " + KeyMessages, Err: err}
	}
	return s.put(KeyMessages, data)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) get(key string) ([]byte, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (s *SQLiteStore) put(key string, data []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, string(data))
	if err != nil {
		return &domain.StorageError{Op: "write " + key, Err: err}
	}
	return nil
}
