package domain

// Chatroom is a named conversation container.
type Chatroom struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
