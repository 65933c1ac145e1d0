package domain

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID          uuid.UUID          `json:"id"`
	RoomID      uuid.UUID          `json:"room_id"`
	SenderID    *uuid.UUID         `json:"sender_id,omitempty"`
	MessageType string             `json:"message_type"`
	Content     string             `json:"content"`
	Attachment  *Attachment        `json:"attachment,omitempty"`
	ReplyToID   *uuid.UUID         `json:"reply_to_id,omitempty"`
	ReplyTo     *MessagePreview    `json:"reply_to,omitempty"`
	IsEdited    bool               `json:"is_edited"`
	IsDeleted   bool               `json:"is_deleted"`
	Mentions    []uuid.UUID        `json:"mentions,omitempty"`
	Reactions   []*MessageReaction `json:"reactions,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

type Attachment struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

type MessageReaction struct {
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageCursor addresses a page boundary for backward pagination:
// strictly older than (CreatedAt, ID).
type MessageCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

func (m *Message) Preview(sender string) *MessagePreview {
	content := m.Content
	// Truncate on a rune boundary; a byte slice could cut a multi-byte
	// character in half and put invalid UTF-8 on the wire.
	if runes := []rune(content); len(runes) > 100 {
		content = string(runes[:100])
	}
	return &MessagePreview{
		ID:          m.ID,
		Content:     content,
		Sender:      sender,
		MessageType: m.MessageType,
		CreatedAt:   m.CreatedAt,
	}
}
