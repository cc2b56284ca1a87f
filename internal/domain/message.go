package domain

import "time"

// Kind classifies the content of a message.
type Kind string

// Message kinds.
const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Message is one immutable entry of a room's timeline.
type Message struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Image     string    `json:"image,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
}

// KindOf returns the kind a message carrying the given image payload must have.
func KindOf(image string) Kind {
	if image != "" {
		return KindImage
	}
	return KindText
}
