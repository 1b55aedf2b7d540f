package chat

import "time"

// Kind classifies a stored room message.
type Kind string

const KindChat Kind = "chat"

// Attachment references an uploaded file shared in a message.
type Attachment struct {
	URL  string `json:"fileUrl"`
	Name string `json:"fileName"`
	Type string `json:"fileType"`
	Size int64  `json:"fileSize"`
}

// Message is an immutable chat message addressed to a room.
type Message struct {
	ID         string      `json:"id"`
	Room       string      `json:"room"`
	SenderID   string      `json:"senderId"`
	SenderName string      `json:"from"`
	Kind       Kind        `json:"kind"`
	Body       string      `json:"content"`
	Time       string      `json:"time"`
	Date       string      `json:"date"`
	Timestamp  time.Time   `json:"timestamp"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// DateGroup is one day of room history as delivered in room-messages.
type DateGroup struct {
	Date     string    `json:"_id"`
	Messages []Message `json:"messagesByDate"`
}
