package domain

import "slices"

// Snapshot is the persisted form of the whole conversation state.
type Snapshot struct {
	Chatrooms []Chatroom           `json:"chatrooms"`
	Messages  map[string][]Message `json:"messages"`
}

// EmptySnapshot returns a snapshot with no rooms and an initialized message map.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Chatrooms: []Chatroom{},
		Messages:  make(map[string][]Message),
	}
}

// Clone returns a deep copy. Messages are values, so copying the slices is enough.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Chatrooms: slices.Clone(s.Chatrooms),
		Messages:  make(map[string][]Message, len(s.Messages)),
	}
	if out.Chatrooms == nil {
		out.Chatrooms = []Chatroom{}
	}
	for id, msgs := range s.Messages {
		out.Messages[id] = slices.Clone(msgs)
	}
	return out
}
