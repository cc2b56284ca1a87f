package testutil

import (
	"errors"
	"sync"

	"github.com/devaloi/parley/internal/domain"
)

// ErrInjected is returned by MockStore when a failure is injected.
var ErrInjected = errors.New("injected failure")

// MockSubscriber implements hub.Subscriber for testing.
type MockSubscriber struct {
	mu     sync.Mutex
	events []domain.Event
}

// NewMockSubscriber creates a new MockSubscriber.
func NewMockSubscriber() *MockSubscriber {
	return &MockSubscriber{}
}

// Notify records an event published to the subscriber.
func (m *MockSubscriber) Notify(evt domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

// Events returns a copy of all events received so far.
func (m *MockSubscriber) Events() []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]domain.Event, len(m.events))
	copy(cp, m.events)
	return cp
}

// EventsOf returns the received events of the given type.
func (m *MockSubscriber) EventsOf(typ domain.EventType) []domain.Event {
	var out []domain.Event
	for _, e := range m.Events() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// MockStore implements store.Store in memory for testing.
type MockStore struct {
	mu        sync.Mutex
	snapshot  domain.Snapshot
	loadErr   error
	failSaves bool
	saves     map[string]int
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{snapshot: domain.EmptySnapshot(), saves: make(map[string]int)}
}

// NewMockStoreWith creates a MockStore preloaded with snap.
func NewMockStoreWith(snap domain.Snapshot) *MockStore {
	s := NewMockStore()
	s.snapshot = snap.Clone()
	return s
}

// FailLoad makes Load return err.
func (s *MockStore) FailLoad(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

// FailSaves toggles injected failures on every save.
func (s *MockStore) FailSaves(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSaves = fail
}

// Load returns a copy of the stored snapshot.
func (s *MockStore) Load() (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return domain.Snapshot{}, s.loadErr
	}
	return s.snapshot.Clone(), nil
}

// SaveChatrooms stores a copy of rooms.
func (s *MockStore) SaveChatrooms(rooms []domain.Chatroom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves["chatrooms"]++
	if s.failSaves {
		return ErrInjected
	}
	s.snapshot.Chatrooms = domain.Snapshot{Chatrooms: rooms}.Clone().Chatrooms
	return nil
}

// SaveMessages stores a copy of messages.
func (s *MockStore) SaveMessages(messages map[string][]domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves["messages"]++
	if s.failSaves {
		return ErrInjected
	}
	s.snapshot.Messages = domain.Snapshot{Messages: messages}.Clone().Messages
	return nil
}

// Saves returns how many times the record key was written.
func (s *MockStore) Saves(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[key]
}

// Stored returns a copy of the persisted snapshot.
func (s *MockStore) Stored() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

// Close is a no-op for the mock store.
func (s *MockStore) Close() error { return nil }

// RecordingSink implements state.ErrorSink and keeps every reported error.
type RecordingSink struct {
	mu   sync.Mutex
	errs []error
}

// ReportStorageError records err.
func (r *RecordingSink) ReportStorageError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

// Errors returns a copy of the recorded errors.
func (r *RecordingSink) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]error, len(r.errs))
	copy(cp, r.errs)
	return cp
}
