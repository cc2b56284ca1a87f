package store

import "github.com/devaloi/parley/internal/domain"

// Record keys of the durable layout.
const (
	KeyChatrooms = "chatrooms"
	KeyMessages  = "messages"
)

// Store defines the snapshot persistence interface.
type Store interface {
	// Load reads the persisted snapshot. Missing records load as empty.
	Load() (domain.Snapshot, error)
	// SaveChatrooms replaces the chatrooms record.
	SaveChatrooms(rooms []domain.Chatroom) error
	// SaveMessages replaces the messages record.
	SaveMessages(messages map[string][]domain.Message) error
	// Close releases any resources held by the store.
	Close() error
}
