package models

import "time"

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// MaxGroupMessageLen bounds group message content, enforced at the boundary.
const MaxGroupMessageLen = 1000

func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile:
		return true
	}
	return false
}

type Message struct {
	ID          int64     `json:"id"`
	SenderID    int64     `json:"sender_id"`
	ReceiverID  int64     `json:"receiver_id"`
	Content     string    `json:"content"`
	MessageType string    `json:"message_type"` // text, image, file
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

type GroupMessage struct {
	ID          int64     `json:"id"`
	GroupID     int64     `json:"group_id"`
	SenderID    int64     `json:"sender_id"`
	Content     string    `json:"content"`
	MessageType string    `json:"message_type"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}
