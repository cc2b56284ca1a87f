package domain

import "encoding/json"

// Frame types exchanged with a WebSocket view session.
const (
	// Inbound.
	FrameOpen   = "open"
	FrameOlder  = "older"
	FrameSend   = "send"
	FrameCreate = "create"
	FrameDelete = "delete"
	FrameList   = "list"

	// Outbound.
	FrameHistory     = "history"
	FrameMessage     = "message"
	FrameRooms       = "rooms"
	FrameRoomCreated = "room_created"
	FrameRoomDeleted = "room_deleted"
	FrameComposing   = "composing"
	FrameError       = "error"
)

// Frame is an inbound request from a view session.
type Frame struct {
	Type   string `json:"type"`
	Room   string `json:"room,omitempty"`
	Title  string `json:"title,omitempty"`
	Filter string `json:"filter,omitempty"`
	Text   string `json:"text,omitempty"`
	Image  string `json:"image,omitempty"`
}

// HistoryFrame carries the visible slice of the open room.
type HistoryFrame struct {
	Type     string    `json:"type"`
	Room     string    `json:"room"`
	Page     int       `json:"page"`
	HasOlder bool      `json:"has_older"`
	Messages []Message `json:"messages"`
}

// MessageFrame pushes one appended message.
type MessageFrame struct {
	Type    string  `json:"type"`
	Room    string  `json:"room"`
	Message Message `json:"message"`
}

// RoomsFrame lists chatrooms.
type RoomsFrame struct {
	Type  string     `json:"type"`
	Rooms []Chatroom `json:"rooms"`
}

// RoomFrame announces a created or deleted chatroom.
type RoomFrame struct {
	Type     string   `json:"type"`
	Chatroom Chatroom `json:"chatroom"`
}

// ComposingFrame reports whether the counterparty is composing in a room.
type ComposingFrame struct {
	Type      string `json:"type"`
	Room      string `json:"room"`
	Composing bool   `json:"composing"`
}

// ErrorFrame reports an error to the client.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Encode serializes a value to JSON bytes.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodeFrame deserializes JSON bytes into a Frame.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return f, err
}
