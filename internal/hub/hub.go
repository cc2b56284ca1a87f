package hub

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/devaloi/parley/internal/directory"
	"github.com/devaloi/parley/internal/domain"
	"github.com/devaloi/parley/internal/messagelog"
	"github.com/devaloi/parley/internal/pagination"
	"github.com/devaloi/parley/internal/reply"
	"github.com/devaloi/parley/internal/state"
)

// Subscriber is the interface the hub expects from a view session.
// Notify must not block.
type Subscriber interface {
	Notify(evt domain.Event)
}

// Options tunes the hub components.
type Options struct {
	PageSize    int
	ReplyDelay  time.Duration
	ReplySender string
}

// Hub wires the directory, the message log and the reply simulator over one
// state container, and fans out every change to its subscribers.
type Hub struct {
	directory *directory.Directory
	messages  *messagelog.Log
	replies   *reply.Simulator
	pageSize  int
	log       *slog.Logger

	subscribers map[Subscriber]struct{}
	register    chan Subscriber
	unregister  chan Subscriber
	events      chan domain.Event
	quit        chan struct{}
	stopOnce    sync.Once
	cancelled   int
}

// New creates a Hub over c.
func New(c *state.Container, log *slog.Logger, opts Options) *Hub {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	h := &Hub{
		directory:   directory.New(c, log),
		messages:    messagelog.New(c, log),
		pageSize:    pageSize,
		log:         log,
		subscribers: make(map[Subscriber]struct{}),
		register:    make(chan Subscriber),
		unregister:  make(chan Subscriber),
		events:      make(chan domain.Event, 256),
		quit:        make(chan struct{}),
	}
	h.replies = reply.New(replyAppender{h}, opts.ReplyDelay, opts.ReplySender, log)
	h.replies.OnComposing = func(roomID string, composing bool) {
		h.publish(domain.Event{Type: domain.EventComposing, Room: roomID, Composing: composing})
	}
	return h
}

// Run starts the hub's event loop. Should be called as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case s := <-h.register:
			h.subscribers[s] = struct{}{}
		case s := <-h.unregister:
			delete(h.subscribers, s)
		case evt := <-h.events:
			for s := range h.subscribers {
				s.Notify(evt)
			}
		case <-h.quit:
			return
		}
	}
}

// Stop cancels pending replies and signals the event loop to exit.
func (h *Hub) Stop() {
	h.Shutdown()
}

// Shutdown stops the hub and returns how many pending replies it cancelled.
// Replies already being appended finish before it returns, so no write
// reaches the store afterwards. Later calls return the same count.
func (h *Hub) Shutdown() int {
	h.stopOnce.Do(func() {
		close(h.quit)
		h.cancelled = h.replies.Stop()
	})
	return h.cancelled
}

// Subscribe adds s once the event loop accepts it; every event published
// after Subscribe returns reaches s.
func (h *Hub) Subscribe(s Subscriber) {
	select {
	case h.register <- s:
	case <-h.quit:
	}
}

// Unsubscribe queues the removal of s.
func (h *Hub) Unsubscribe(s Subscriber) {
	select {
	case h.unregister <- s:
	case <-h.quit:
	}
}

// CreateRoom adds a chatroom.
func (h *Hub) CreateRoom(title string) (domain.Chatroom, error) {
	room, err := h.directory.Create(title)
	if err != nil {
		return domain.Chatroom{}, err
	}
	h.log.Info("Chatroom created", "chatroom", room.ID, "title", room.Title)
	h.publish(domain.Event{Type: domain.EventRoomCreated, Room: room.ID, Chatroom: room})
	return room, nil
}

// ListRooms returns the chatrooms whose title contains filter.
func (h *Hub) ListRooms(filter string) []domain.Chatroom {
	return h.directory.List(filter)
}

// Room returns one chatroom.
func (h *Hub) Room(id string) (domain.Chatroom, error) {
	return h.directory.Get(id)
}

// DeleteRoom removes a chatroom with its messages and cancels its pending replies.
func (h *Hub) DeleteRoom(id string) error {
	room, err := h.directory.Get(id)
	if err != nil {
		return err
	}
	if err := h.directory.Delete(id); err != nil {
		return err
	}
	cancelled := h.replies.CancelRoom(id)
	h.log.Info("Chatroom deleted", "chatroom", id, "cancelled_replies", cancelled)
	h.publish(domain.Event{Type: domain.EventRoomDeleted, Room: id, Chatroom: room})
	return nil
}

// Send appends a user message to roomID and schedules the counterparty reply.
// A draft without text and without image is rejected.
func (h *Hub) Send(sender, roomID, text, image string) (domain.Message, error) {
	text = strings.TrimSpace(text)
	if sender == "" {
		return domain.Message{}, &domain.ValidationError{Field: "sender", Reason: "must not be empty"}
	}
	if text == "" && image == "" {
		return domain.Message{}, &domain.ValidationError{Field: "message", Reason: "text or image required"}
	}

	msg, err := h.append(roomID, domain.Message{Sender: sender, Text: text, Image: image})
	if err != nil {
		return domain.Message{}, err
	}
	h.replies.Schedule(roomID, text)
	return msg, nil
}

// Messages returns the full timeline of roomID.
func (h *Hub) Messages(roomID string) ([]domain.Message, error) {
	return h.messages.Messages(roomID)
}

// Page returns the visible slice of roomID at the given page and whether
// older messages remain. Pages past the oldest message are clamped to the
// last page; the page actually served is returned.
func (h *Hub) Page(roomID string, page int) ([]domain.Message, int, bool, error) {
	msgs, total, err := h.messages.Tail(roomID, -1)
	if err != nil {
		return nil, 0, false, err
	}
	lastPage := max(1, (total+h.pageSize-1)/h.pageSize)
	page = min(max(page, 1), lastPage)
	if n := page * h.pageSize; n < total {
		return msgs[total-n:], page, true, nil
	}
	return msgs, page, false, nil
}

// Composing reports whether the counterparty is composing in roomID.
func (h *Hub) Composing(roomID string) bool {
	return h.replies.Composing(roomID)
}

// PendingReplies returns the number of replies not yet delivered.
func (h *Hub) PendingReplies() int {
	return h.replies.Pending()
}

// NewWindow creates a pagination window over the hub's message log.
func (h *Hub) NewWindow() *pagination.Window {
	return pagination.New(h.messages, h.pageSize)
}

// ReplySender returns the identity of the simulated counterparty.
func (h *Hub) ReplySender() string {
	return h.replies.Sender()
}

func (h *Hub) append(roomID string, msg domain.Message) (domain.Message, error) {
	stored, err := h.messages.Append(roomID, msg)
	if err != nil {
		return domain.Message{}, err
	}
	h.publish(domain.Event{Type: domain.EventMessage, Room: roomID, Message: stored})
	return stored, nil
}

func (h *Hub) publish(evt domain.Event) {
	select {
	case h.events <- evt:
	case <-h.quit:
	}
}

// replyAppender routes synthetic replies through the hub so they are published.
type replyAppender struct {
	h *Hub
}

func (a replyAppender) Append(roomID string, msg domain.Message) (domain.Message, error) {
	return a.h.append(roomID, msg)
}
