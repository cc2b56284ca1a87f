// Package pagination computes the visible slice of a room's timeline.
package pagination

import (
	"errors"
	"sync"

	"github.com/devaloi/parley/internal/domain"
)

// DefaultPageSize is the number of messages revealed per page.
const DefaultPageSize = 20

// ErrNoActiveRoom is returned when the window has no room open.
var ErrNoActiveRoom = errors.New("no active chatroom")

// Source reads the tail of a room's timeline.
type Source interface {
	Tail(roomID string, n int) ([]domain.Message, int, error)
}

// Window tracks the page counter of the room a consumer has open. The
// visible slice is always recomputed from the source.
type Window struct {
	mu       sync.Mutex
	source   Source
	pageSize int
	roomID   string
	page     int

	// OnLoadOlder is called after the page counter grows.
	OnLoadOlder func(roomID string, page int)
}

// New creates a Window reading from source. A non-positive pageSize selects
// DefaultPageSize.
func New(source Source, pageSize int) *Window {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Window{source: source, pageSize: pageSize}
}

// Activate opens roomID. Switching to a different room resets the page to 1.
func (w *Window) Activate(roomID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.roomID != roomID || w.page == 0 {
		w.roomID = roomID
		w.page = 1
	}
}

// Close leaves the active room.
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.roomID = ""
	w.page = 0
}

// Room returns the active room id, or "" when none is open.
func (w *Window) Room() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.roomID
}

// Page returns the current page counter, 0 when no room is open.
func (w *Window) Page() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.page
}

// PageSize returns the number of messages per page.
func (w *Window) PageSize() int {
	return w.pageSize
}

// LoadOlder grows the page by one when the consumer is scrolled to the oldest
// visible message and older messages exist. It reports whether it fired.
func (w *Window) LoadOlder(atOldest bool) (bool, error) {
	w.mu.Lock()
	if w.roomID == "" {
		w.mu.Unlock()
		return false, ErrNoActiveRoom
	}
	visible, total, err := w.source.Tail(w.roomID, w.page*w.pageSize)
	if err != nil {
		w.mu.Unlock()
		return false, err
	}
	if !atOldest || len(visible) >= total {
		w.mu.Unlock()
		return false, nil
	}
	w.page++
	roomID, page, hook := w.roomID, w.page, w.OnLoadOlder
	w.mu.Unlock()

	if hook != nil {
		hook(roomID, page)
	}
	return true, nil
}

// Visible returns the last page*pageSize messages of the active room.
func (w *Window) Visible() ([]domain.Message, error) {
	msgs, _, err := w.view()
	return msgs, err
}

// HasOlder reports whether messages older than the visible slice exist.
func (w *Window) HasOlder() (bool, error) {
	msgs, total, err := w.view()
	return len(msgs) < total, err
}

// Snapshot returns the visible slice together with the page and whether
// older messages exist, read consistently.
func (w *Window) Snapshot() (msgs []domain.Message, page int, hasOlder bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.roomID == "" {
		return nil, 0, false, ErrNoActiveRoom
	}
	msgs, total, err := w.source.Tail(w.roomID, w.page*w.pageSize)
	if err != nil {
		return nil, 0, false, err
	}
	return msgs, w.page, len(msgs) < total, nil
}

func (w *Window) view() ([]domain.Message, int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.roomID == "" {
		return nil, 0, ErrNoActiveRoom
	}
	return w.source.Tail(w.roomID, w.page*w.pageSize)
}
