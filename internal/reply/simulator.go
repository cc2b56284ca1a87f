// Package reply produces the counterparty's deferred synthetic replies.
package reply

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/devaloi/parley/internal/domain"
)

// Defaults for the simulated counterparty.
const (
	DefaultDelay  = 1500 * time.Millisecond
	DefaultSender = "Gemini"
)

// Token identifies one scheduled reply.
type Token uint64

// Appender receives the synthetic message when a reply is due.
type Appender interface {
	Append(roomID string, msg domain.Message) (domain.Message, error)
}

// Text derives the reply text from the message that triggered it.
func Text(trigger string) string {
	return fmt.Sprintf("You said: \"%s\" 🤖", trigger)
}

type task struct {
	roomID  string
	trigger string
	timer   *time.Timer
}

// Simulator schedules one deferred reply per call. Replies are never
// coalesced; each can be cancelled by token, by room, or all at once.
type Simulator struct {
	mu        sync.Mutex
	appender  Appender
	delay     time.Duration
	sender    string
	log       *slog.Logger
	next      Token
	tasks     map[Token]*task
	composing map[string]int
	stopped   bool
	inflight  sync.WaitGroup

	// OnComposing is called when a room's composing flag flips.
	OnComposing func(roomID string, composing bool)
}

// New creates a Simulator appending through appender after delay.
func New(appender Appender, delay time.Duration, sender string, log *slog.Logger) *Simulator {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if sender == "" {
		sender = DefaultSender
	}
	return &Simulator{
		appender:  appender,
		delay:     delay,
		sender:    sender,
		log:       log,
		tasks:     make(map[Token]*task),
		composing: make(map[string]int),
	}
}

// Sender returns the identity used for synthetic messages.
func (s *Simulator) Sender() string {
	return s.sender
}

// Schedule starts a reply to trigger in roomID. Both arguments are captured
// now; the reply lands in roomID even if the caller moves elsewhere.
func (s *Simulator) Schedule(roomID, trigger string) Token {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0
	}
	s.next++
	tok := s.next
	t := &task{roomID: roomID, trigger: trigger}
	s.tasks[tok] = t
	flipped := s.raise(roomID)
	t.timer = time.AfterFunc(s.delay, func() { s.fire(tok) })
	s.mu.Unlock()

	if flipped {
		s.notify(roomID, true)
	}
	s.log.Debug("Reply scheduled", "chatroom", roomID, "token", tok, "delay", s.delay)
	return tok
}

// Cancel drops the reply identified by tok. It reports whether the reply was
// still pending.
func (s *Simulator) Cancel(tok Token) bool {
	s.mu.Lock()
	t, ok := s.tasks[tok]
	if !ok {
		s.mu.Unlock()
		return false
	}
	flipped := s.drop(tok, t)
	s.mu.Unlock()

	if flipped {
		s.notify(t.roomID, false)
	}
	return true
}

// CancelRoom drops every pending reply for roomID and returns how many.
func (s *Simulator) CancelRoom(roomID string) int {
	s.mu.Lock()
	n := 0
	flipped := false
	for tok, t := range s.tasks {
		if t.roomID == roomID {
			flipped = s.drop(tok, t) || flipped
			n++
		}
	}
	s.mu.Unlock()

	if flipped {
		s.notify(roomID, false)
	}
	if n > 0 {
		s.log.Debug("Pending replies cancelled", "chatroom", roomID, "count", n)
	}
	return n
}

// Stop cancels every pending reply, refuses new ones and waits for replies
// already being appended. It returns the number of replies cancelled.
func (s *Simulator) Stop() int {
	s.mu.Lock()
	s.stopped = true
	cancelled := len(s.tasks)
	var rooms []string
	for tok, t := range s.tasks {
		if s.drop(tok, t) {
			rooms = append(rooms, t.roomID)
		}
	}
	s.mu.Unlock()

	for _, r := range rooms {
		s.notify(r, false)
	}
	s.inflight.Wait()
	return cancelled
}

// Composing reports whether a reply is pending in roomID.
func (s *Simulator) Composing(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.composing[roomID] > 0
}

// Pending returns the number of outstanding replies.
func (s *Simulator) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Simulator) fire(tok Token) {
	s.mu.Lock()
	t, ok := s.tasks[tok]
	if !ok {
		// Cancelled after the timer went off.
		s.mu.Unlock()
		return
	}
	delete(s.tasks, tok)
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	msg := domain.Message{Sender: s.sender, Text: Text(t.trigger), Kind: domain.KindText}
	_, err := s.appender.Append(t.roomID, msg)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.log.Debug("Reply dropped, chatroom is gone", "chatroom", t.roomID, "token", tok)
	case err != nil:
		s.log.Error("Reply append failed", "chatroom", t.roomID, "token", tok, "error", err)
	}

	s.mu.Lock()
	flipped := s.lower(t.roomID)
	s.mu.Unlock()
	if flipped {
		s.notify(t.roomID, false)
	}
}

// drop removes a pending task. Caller holds mu.
func (s *Simulator) drop(tok Token, t *task) bool {
	t.timer.Stop()
	delete(s.tasks, tok)
	return s.lower(t.roomID)
}

// raise increments the room's pending count and reports a false→true flip.
func (s *Simulator) raise(roomID string) bool {
	s.composing[roomID]++
	return s.composing[roomID] == 1
}

// lower decrements the room's pending count and reports a true→false flip.
func (s *Simulator) lower(roomID string) bool {
	s.composing[roomID]--
	if s.composing[roomID] > 0 {
		return false
	}
	delete(s.composing, roomID)
	return true
}

func (s *Simulator) notify(roomID string, composing bool) {
	if s.OnComposing != nil {
		s.OnComposing(roomID, composing)
	}
}
