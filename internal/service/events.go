package service

import (
	"github.com/google/uuid"

	"community_chat/internal/domain"
)

// EventPublisher decouples services from the websocket hub. Publish is
// fire-and-forget; services never block on fan-out.
type EventPublisher interface {
	Publish(topic string, event domain.Event)
}

// MentionNotifier hands mentions to the external notification system.
// The call accepts no reply; a lost notification never fails the send.
type MentionNotifier interface {
	NotifyMention(roomID, messageID, mentionedID, senderID uuid.UUID)
}

// NoopMentionNotifier is the default when no notification system is
// attached.
type NoopMentionNotifier struct{}

func (NoopMentionNotifier) NotifyMention(roomID, messageID, mentionedID, senderID uuid.UUID) {}

// TopicRoomList carries room-list snapshots and cross-room notifications
// for every connected room-list consumer.
const TopicRoomList = "room-list-updates"

func RoomTopic(roomID uuid.UUID) string {
	return "room:" + roomID.String()
}

func UserTopic(userID uuid.UUID) string {
	return "user:" + userID.String()
}

func userRef(u *domain.User) *domain.UserRef {
	if u == nil {
		return nil
	}
	return &domain.UserRef{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayOrUsername(),
	}
}
