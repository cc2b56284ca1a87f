package domain

// EventType names a change published by the hub.
type EventType string

// Event types.
const (
	EventRoomCreated EventType = "room_created"
	EventRoomDeleted EventType = "room_deleted"
	EventMessage     EventType = "message"
	EventComposing   EventType = "composing"
)

// Event describes one state change. Only the fields relevant to Type are set.
type Event struct {
	Type      EventType
	Room      string
	Chatroom  Chatroom
	Message   Message
	Composing bool
}
