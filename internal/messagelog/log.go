// Package messagelog keeps the append-only message timeline of each chatroom.
package messagelog

import (
	"log/slog"
	"slices"

	"github.com/devaloi/parley/internal/domain"
	"github.com/devaloi/parley/internal/state"
)

// Log appends and reads per-room messages in the shared state container.
type Log struct {
	state *state.Container
	log   *slog.Logger
}

// New creates a Log over the shared state container.
func New(c *state.Container, log *slog.Logger) *Log {
	return &Log{state: c, log: log}
}

// Append adds msg at the end of the room's timeline and writes the message
// store through. The ID is always allocated here; a zero Timestamp is filled
// in and Kind is derived from the image payload. The stored message is returned.
func (l *Log) Append(roomID string, msg domain.Message) (domain.Message, error) {
	err := l.state.Update(func(s *state.State) (state.Dirty, error) {
		if !s.HasRoom(roomID) {
			return state.DirtyNone, domain.RoomNotFound(roomID)
		}
		msg.ID = s.NextMessageID()
		if msg.Timestamp.IsZero() {
			msg.Timestamp = s.Now()
		}
		msg.Kind = domain.KindOf(msg.Image)
		s.Messages[roomID] = append(s.Messages[roomID], msg)
		return state.DirtyMessages, nil
	})
	if err != nil {
		return domain.Message{}, err
	}
	l.log.Debug("Message appended", "chatroom", roomID, "id", msg.ID, "sender", msg.Sender)
	return msg, nil
}

// Messages returns a copy of the room's timeline, oldest first.
func (l *Log) Messages(roomID string) ([]domain.Message, error) {
	var (
		msgs  []domain.Message
		found bool
	)
	l.state.View(func(s *state.State) {
		if found = s.HasRoom(roomID); found {
			msgs = slices.Clone(s.Messages[roomID])
		}
	})
	if !found {
		return nil, domain.RoomNotFound(roomID)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

// Tail returns at most the last n messages of the room, oldest first, along
// with the full length of the timeline. A negative n means the whole log.
func (l *Log) Tail(roomID string, n int) ([]domain.Message, int, error) {
	var (
		msgs  []domain.Message
		total int
		found bool
	)
	l.state.View(func(s *state.State) {
		if found = s.HasRoom(roomID); !found {
			return
		}
		all := s.Messages[roomID]
		total = len(all)
		if n < 0 || n >= total {
			msgs = slices.Clone(all)
			return
		}
		msgs = slices.Clone(all[total-n:])
	})
	if !found {
		return nil, 0, domain.RoomNotFound(roomID)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, total, nil
}

// Len returns the number of messages in the room.
func (l *Log) Len(roomID string) (int, error) {
	_, total, err := l.Tail(roomID, 0)
	return total, err
}
