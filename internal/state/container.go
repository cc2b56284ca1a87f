// Package state holds the process-owned conversation state shared by the
// directory and the message log. All mutations go through Update, which
// serializes them and writes the touched records through to the store.
package state

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/devaloi/parley/internal/domain"
	"github.com/devaloi/parley/internal/store"
)

// Dirty marks which persisted records a mutation touched.
type Dirty uint8

const (
	DirtyChatrooms Dirty = 1 << iota
	DirtyMessages

	DirtyNone Dirty = 0
	DirtyAll        = DirtyChatrooms | DirtyMessages
)

// State is the mutable data guarded by a Container. It is only valid inside
// Update and View callbacks.
type State struct {
	Chatrooms []domain.Chatroom
	Messages  map[string][]domain.Message

	lastMessageID int64
	now           func() time.Time
}

// NextMessageID returns a message id strictly greater than every id issued or
// loaded before. Ids follow the millisecond clock when it moves forward.
func (s *State) NextMessageID() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastMessageID {
		id = s.lastMessageID + 1
	}
	s.lastMessageID = id
	return id
}

// Now returns the container clock reading.
func (s *State) Now() time.Time {
	return s.now()
}

// RoomIndex returns the position of the chatroom with id, or -1.
func (s *State) RoomIndex(id string) int {
	for i, r := range s.Chatrooms {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// HasRoom reports whether a chatroom with id exists.
func (s *State) HasRoom(id string) bool {
	return s.RoomIndex(id) >= 0
}

// Option configures a Container.
type Option func(*Container)

// WithClock overrides the clock used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Container) { c.state.now = now }
}

// WithSink overrides the storage error sink.
func WithSink(sink ErrorSink) Option {
	return func(c *Container) { c.sink = sink }
}

// Container owns the State and its write-through to a store.
type Container struct {
	mu    sync.Mutex
	state State
	store store.Store
	sink  ErrorSink
	log   *slog.Logger
}

// New creates an empty container persisting to s.
func New(s store.Store, log *slog.Logger, opts ...Option) *Container {
	c := &Container{
		state: State{
			Chatrooms: []domain.Chatroom{},
			Messages:  make(map[string][]domain.Message),
			now:       func() time.Time { return time.Now().UTC() },
		},
		store: s,
		log:   log,
	}
	c.sink = NewLogSink(log)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load replaces the state with the persisted snapshot. On a corrupt snapshot
// the state is reset to empty, the error is reported to the sink and returned;
// callers continue with the empty state.
func (c *Container) Load() error {
	snap, err := c.store.Load()
	if err != nil {
		c.mu.Lock()
		c.restore(domain.EmptySnapshot())
		c.mu.Unlock()
		c.sink.ReportStorageError(err)
		return fmt.Errorf("load snapshot: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.restore(snap)
	c.log.Info("Snapshot loaded",
		"chatrooms", len(c.state.Chatrooms), "logs", len(c.state.Messages))
	return nil
}

// restore installs snap, dropping message logs of unknown rooms. Caller holds mu.
func (c *Container) restore(snap domain.Snapshot) {
	snap = snap.Clone()
	c.state.Chatrooms = snap.Chatrooms
	c.state.Messages = make(map[string][]domain.Message, len(snap.Messages))
	c.state.lastMessageID = 0

	for id, msgs := range snap.Messages {
		if !c.state.HasRoom(id) {
			c.log.Warn("Dropping message log of unknown chatroom", "chatroom", id, "messages", len(msgs))
			continue
		}
		c.state.Messages[id] = msgs
		for _, m := range msgs {
			c.state.lastMessageID = max(c.state.lastMessageID, m.ID)
		}
	}
}

// Update runs fn under the container lock. When fn succeeds, every record it
// marked dirty is written to the store before Update returns. Write failures
// are reported to the sink and never undo the mutation.
func (c *Container) Update(fn func(s *State) (Dirty, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dirty, err := fn(&c.state)
	if err != nil {
		return err
	}
	c.persist(dirty)
	return nil
}

// View runs fn under the container lock. fn must not mutate s.
func (c *Container) View(fn func(s *State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
}

// Snapshot returns a deep copy of the current state.
func (c *Container) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Snapshot{
		Chatrooms: c.state.Chatrooms,
		Messages:  c.state.Messages,
	}.Clone()
}

func (c *Container) persist(dirty Dirty) {
	if dirty&DirtyChatrooms != 0 {
		if err := c.store.SaveChatrooms(c.state.Chatrooms); err != nil {
			c.report("save "+store.KeyChatrooms, err)
		}
	}
	if dirty&DirtyMessages != 0 {
		if err := c.store.SaveMessages(c.state.Messages); err != nil {
			c.report("save "+store.KeyMessages, err)
		}
	}
}

func (c *Container) report(op string, err error) {
	var se *domain.StorageError
	if !errors.As(err, &se) {
		err = &domain.StorageError{Op: op, Err: err}
	}
	c.sink.ReportStorageError(err)
}
