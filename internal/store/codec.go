package store

import (
	"encoding/json"

	"github.com/devaloi/parley/internal/domain"
)

func encodeChatrooms(rooms []domain.Chatroom) ([]byte, error) {
	if rooms == nil {
		rooms = []domain.Chatroom{}
	}
	return json.Marshal(rooms)
}

func encodeMessages(messages map[string][]domain.Message) ([]byte, error) {
	if messages == nil {
		messages = map[string][]domain.Message{}
	}
	return json.Marshal(messages)
}

// decodeSnapshot rebuilds a snapshot from the raw records. A nil record means
// the key was never written.
func decodeSnapshot(rawRooms, rawMessages []byte) (domain.Snapshot, error) {
	snap := domain.EmptySnapshot()
	if rawRooms != nil {
		if err := json.Unmarshal(rawRooms, &snap.Chatrooms); err != nil {
			return domain.Snapshot{}, &domain.StorageError{Op: "decode " + KeyChatrooms, Err: err}
		}
		if snap.Chatrooms == nil {
			snap.Chatrooms = []domain.Chatroom{}
		}
	}
	if rawMessages != nil {
		if err := json.Unmarshal(rawMessages, &snap.Messages); err != nil {
			return domain.Snapshot{}, &domain.StorageError{Op: "decode " + KeyMessages, Err: err}
		}
		if snap.Messages == nil {
			snap.Messages = make(map[string][]domain.Message)
		}
	}
	return snap, nil
}
