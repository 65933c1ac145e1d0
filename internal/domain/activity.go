package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActivityEntry logs notable room events for the recent-activity feed.
type ActivityEntry struct {
	ID        int64                  `json:"id"`
	EventType string                 `json:"event_type"`
	RoomID    uuid.UUID              `json:"room_id"`
	UserID    *uuid.UUID             `json:"user_id,omitempty"`
	MessageID *uuid.UUID             `json:"message_id,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

const (
	ActivityUserJoined     = "user_joined"
	ActivityUserLeft       = "user_left"
	ActivityMessageSent    = "message_sent"
	ActivityMessageEdited  = "message_edited"
	ActivityMessageDeleted = "message_deleted"
	ActivityRoomCreated    = "room_created"
	ActivityRoomUpdated    = "room_updated"
)
