package domain

import (
	"time"

	"github.com/google/uuid"
)

type Room struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	RoomType     string     `json:"room_type"`
	Description  string     `json:"description"`
	CreatorID    *uuid.UUID `json:"creator_id,omitempty"`
	LinkedRef    *string    `json:"linked_ref,omitempty"`
	IsActive     bool       `json:"is_active"`
	MessageCount int64      `json:"message_count"`
	LastActivity time.Time  `json:"last_activity"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Membership struct {
	RoomID     uuid.UUID  `json:"room_id"`
	UserID     uuid.UUID  `json:"user_id"`
	Role       string     `json:"role"`
	IsMuted    bool       `json:"is_muted"`
	IsPinned   bool       `json:"is_pinned"`
	LastReadAt *time.Time `json:"last_read_at,omitempty"`
	JoinedAt   time.Time  `json:"joined_at"`
}

// RoomSummary is the per-user room-list row: membership state joined
// with live counts and the latest message preview.
type RoomSummary struct {
	Room        *Room           `json:"room"`
	Role        string          `json:"role"`
	IsMuted     bool            `json:"is_muted"`
	IsPinned    bool            `json:"is_pinned"`
	MemberCount int             `json:"member_count"`
	OnlineCount int             `json:"online_count"`
	UnreadCount int             `json:"unread_count"`
	LastMessage *MessagePreview `json:"last_message,omitempty"`
	OtherUser   *User           `json:"other_user,omitempty"`
}

type MessagePreview struct {
	ID          uuid.UUID `json:"id"`
	Content     string    `json:"content"`
	Sender      string    `json:"sender"`
	MessageType string    `json:"message_type"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	RoomTypeDirect = "direct"
	RoomTypeGroup  = "group"
	RoomTypeEvent  = "event"
	RoomTypeForum  = "forum"
)

const (
	MemberRoleAdmin     = "admin"
	MemberRoleModerator = "moderator"
	MemberRoleMember    = "member"
)

func ValidRoomType(t string) bool {
	switch t {
	case RoomTypeDirect, RoomTypeGroup, RoomTypeEvent, RoomTypeForum:
		return true
	}
	return false
}

// CanModerate reports whether a membership role may change room metadata.
func CanModerate(role string) bool {
	return role == MemberRoleAdmin || role == MemberRoleModerator
}
