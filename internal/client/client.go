package client

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devaloi/parley/internal/domain"
	"github.com/devaloi/parley/internal/hub"
	"github.com/devaloi/parley/internal/pagination"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Image payloads travel inline.
	maxMessageSize = 1 << 20
)

// Client is a WebSocket view session. It owns one pagination window over the
// room the user has open.
type Client struct {
	hub      *hub.Hub
	conn     *websocket.Conn
	send     chan []byte
	username string
	window   *pagination.Window
	log      *slog.Logger
}

// New creates a new Client.
func New(h *hub.Hub, conn *websocket.Conn, username string, log *slog.Logger) *Client {
	c := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		username: username,
		window:   h.NewWindow(),
		log:      log.With("user", username),
	}
	c.window.OnLoadOlder = func(roomID string, page int) {
		c.log.Debug("Loading older messages", "chatroom", roomID, "page", page)
	}
	return c
}

// Username returns the client's username.
func (c *Client) Username() string {
	return c.username
}

// Send queues a message to be sent to the WebSocket client.
func (c *Client) Send(data []byte) {
	select {
	case c.send <- data:
	default:
		// Client send buffer full, drop message.
		c.log.Warn("Send buffer full, dropping frame")
	}
}

// Notify forwards hub events relevant to this session.
func (c *Client) Notify(evt domain.Event) {
	switch evt.Type {
	case domain.EventRoomCreated:
		c.encode(domain.RoomFrame{Type: domain.FrameRoomCreated, Chatroom: evt.Chatroom})
	case domain.EventRoomDeleted:
		if c.window.Room() == evt.Room {
			c.window.Close()
		}
		c.encode(domain.RoomFrame{Type: domain.FrameRoomDeleted, Chatroom: evt.Chatroom})
	case domain.EventMessage:
		if c.window.Room() == evt.Room {
			c.encode(domain.MessageFrame{Type: domain.FrameMessage, Room: evt.Room, Message: evt.Message})
		}
	case domain.EventComposing:
		if c.window.Room() == evt.Room {
			c.encode(domain.ComposingFrame{Type: domain.FrameComposing, Room: evt.Room, Composing: evt.Composing})
		}
	}
}

// ReadPump reads frames from the WebSocket connection and applies them.
func (c *Client) ReadPump() {
	c.hub.Subscribe(c)
	defer func() {
		c.hub.Unsubscribe(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Read error", "error", err)
			}
			return
		}
		c.handleFrame(data)
	}
}

// WritePump writes messages from the send channel to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleFrame(data []byte) {
	f, err := domain.DecodeFrame(data)
	if err != nil {
		c.sendError("invalid JSON")
		return
	}

	switch f.Type {
	case domain.FrameList:
		c.encode(domain.RoomsFrame{Type: domain.FrameRooms, Rooms: c.hub.ListRooms(f.Filter)})

	case domain.FrameCreate:
		if _, err := c.hub.CreateRoom(f.Title); err != nil {
			c.sendErr(err)
		}

	case domain.FrameDelete:
		if f.Room == "" {
			c.sendError("room required")
			return
		}
		if err := c.hub.DeleteRoom(f.Room); err != nil {
			c.sendErr(err)
		}

	case domain.FrameOpen:
		if f.Room == "" {
			c.sendError("room required")
			return
		}
		if _, err := c.hub.Room(f.Room); err != nil {
			c.sendErr(err)
			return
		}
		c.window.Activate(f.Room)
		c.sendHistory()
		if c.hub.Composing(f.Room) {
			c.encode(domain.ComposingFrame{Type: domain.FrameComposing, Room: f.Room, Composing: true})
		}

	case domain.FrameOlder:
		fired, err := c.window.LoadOlder(true)
		if err != nil {
			c.sendErr(err)
			return
		}
		if fired {
			c.sendHistory()
		}

	case domain.FrameSend:
		room := c.window.Room()
		if room == "" {
			c.sendErr(pagination.ErrNoActiveRoom)
			return
		}
		if _, err := c.hub.Send(c.username, room, f.Text, f.Image); err != nil {
			c.sendErr(err)
		}

	default:
		c.sendError("unknown frame type: " + f.Type)
	}
}

func (c *Client) sendHistory() {
	msgs, page, hasOlder, err := c.window.Snapshot()
	if err != nil {
		c.sendErr(err)
		return
	}
	c.encode(domain.HistoryFrame{
		Type:     domain.FrameHistory,
		Room:     c.window.Room(),
		Page:     page,
		HasOlder: hasOlder,
		Messages: msgs,
	})
}

func (c *Client) sendErr(err error) {
	var (
		ve *domain.ValidationError
		nf *domain.NotFoundError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &nf), errors.Is(err, pagination.ErrNoActiveRoom):
		c.sendError(err.Error())
	default:
		c.log.Error("Request failed", "error", err)
		c.sendError("internal error")
	}
}

func (c *Client) sendError(message string) {
	c.encode(domain.ErrorFrame{Type: domain.FrameError, Message: message})
}

func (c *Client) encode(v any) {
	data, err := domain.Encode(v)
	if err != nil {
		c.log.Error("Encode frame failed", "error", err)
		return
	}
	c.Send(data)
}
