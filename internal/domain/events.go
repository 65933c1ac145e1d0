package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is the closed set of outbound broadcast payloads. Every variant
// carries its wire discriminator in the Type field so a marshalled event
// is a complete tagged frame.
type Event interface {
	EventType() string
}

const (
	EventChatMessage            = "chat_message"
	EventTypingIndicator        = "typing_indicator"
	EventMessageReaction        = "message_reaction"
	EventMessageEdited          = "message_edited"
	EventMessageDeleted         = "message_deleted"
	EventRoomListUpdate         = "room_list_update"
	EventRoomMemberUpdate       = "room_member_update"
	EventRoomUpdate             = "room_update"
	EventRoomData               = "room_data"
	EventNewMessageNotification = "new_message_notification"
	EventReadStatusUpdate       = "read_status_update"
	EventError                  = "error"
)

type UserRef struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
}

type ChatMessageEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
	Sender  *UserRef `json:"sender,omitempty"`
}

func (e ChatMessageEvent) EventType() string { return EventChatMessage }

func NewChatMessageEvent(msg *Message, sender *UserRef) ChatMessageEvent {
	return ChatMessageEvent{Type: EventChatMessage, Message: msg, Sender: sender}
}

type TypingIndicatorEvent struct {
	Type     string    `json:"type"`
	RoomID   uuid.UUID `json:"room_id"`
	User     UserRef   `json:"user"`
	IsTyping bool      `json:"is_typing"`
}

func (e TypingIndicatorEvent) EventType() string { return EventTypingIndicator }

func NewTypingIndicatorEvent(roomID uuid.UUID, user UserRef, isTyping bool) TypingIndicatorEvent {
	return TypingIndicatorEvent{Type: EventTypingIndicator, RoomID: roomID, User: user, IsTyping: isTyping}
}

type MessageReactionEvent struct {
	Type      string    `json:"type"`
	RoomID    uuid.UUID `json:"room_id"`
	MessageID uuid.UUID `json:"message_id"`
	User      UserRef   `json:"user"`
	Emoji     string    `json:"emoji"`
	Added     bool      `json:"added"`
}

func (e MessageReactionEvent) EventType() string { return EventMessageReaction }

func NewMessageReactionEvent(roomID, messageID uuid.UUID, user UserRef, emoji string, added bool) MessageReactionEvent {
	return MessageReactionEvent{
		Type:      EventMessageReaction,
		RoomID:    roomID,
		MessageID: messageID,
		User:      user,
		Emoji:     emoji,
		Added:     added,
	}
}

type MessageEditedEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
}

func (e MessageEditedEvent) EventType() string { return EventMessageEdited }

func NewMessageEditedEvent(msg *Message) MessageEditedEvent {
	return MessageEditedEvent{Type: EventMessageEdited, Message: msg}
}

type MessageDeletedEvent struct {
	Type      string    `json:"type"`
	RoomID    uuid.UUID `json:"room_id"`
	MessageID uuid.UUID `json:"message_id"`
}

func (e MessageDeletedEvent) EventType() string { return EventMessageDeleted }

func NewMessageDeletedEvent(roomID, messageID uuid.UUID) MessageDeletedEvent {
	return MessageDeletedEvent{Type: EventMessageDeleted, RoomID: roomID, MessageID: messageID}
}

// RoomListUpdateEvent is the full room-list snapshot a client re-hydrates
// from on connect or on request.
type RoomListUpdateEvent struct {
	Type             string           `json:"type"`
	Rooms            []*RoomSummary   `json:"rooms"`
	OnlineUsers      []*UserRef       `json:"online_users"`
	RecentActivities []*ActivityEntry `json:"recent_activities"`
}

func (e RoomListUpdateEvent) EventType() string { return EventRoomListUpdate }

func NewRoomListUpdateEvent(rooms []*RoomSummary, online []*UserRef, activities []*ActivityEntry) RoomListUpdateEvent {
	return RoomListUpdateEvent{
		Type:             EventRoomListUpdate,
		Rooms:            rooms,
		OnlineUsers:      online,
		RecentActivities: activities,
	}
}

type RoomMemberUpdateEvent struct {
	Type        string    `json:"type"`
	RoomID      uuid.UUID `json:"room_id"`
	Action      string    `json:"action"`
	User        UserRef   `json:"user"`
	MemberCount int       `json:"member_count"`
	OnlineCount int       `json:"online_count"`
}

func (e RoomMemberUpdateEvent) EventType() string { return EventRoomMemberUpdate }

func NewRoomMemberUpdateEvent(roomID uuid.UUID, action string, user UserRef, memberCount, onlineCount int) RoomMemberUpdateEvent {
	return RoomMemberUpdateEvent{
		Type:        EventRoomMemberUpdate,
		RoomID:      roomID,
		Action:      action,
		User:        user,
		MemberCount: memberCount,
		OnlineCount: onlineCount,
	}
}

// RoomUpdateEvent announces a created or renamed room so room-list
// clients know to refresh.
type RoomUpdateEvent struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Room   *Room  `json:"room"`
}

func (e RoomUpdateEvent) EventType() string { return EventRoomUpdate }

func NewRoomUpdateEvent(action string, room *Room) RoomUpdateEvent {
	return RoomUpdateEvent{Type: EventRoomUpdate, Action: action, Room: room}
}

// RoomDataEvent answers a request_room_data frame on a room channel.
type RoomDataEvent struct {
	Type    string       `json:"type"`
	Room    *RoomSummary `json:"room"`
	Members []*UserRef   `json:"members"`
}

func (e RoomDataEvent) EventType() string { return EventRoomData }

func NewRoomDataEvent(room *RoomSummary, members []*UserRef) RoomDataEvent {
	return RoomDataEvent{Type: EventRoomData, Room: room, Members: members}
}

type NewMessageNotificationEvent struct {
	Type        string          `json:"type"`
	RoomID      uuid.UUID       `json:"room_id"`
	Message     *MessagePreview `json:"message"`
	Sender      UserRef         `json:"sender"`
	UnreadCount int             `json:"unread_count"`
	Timestamp   time.Time       `json:"timestamp"`
}

func (e NewMessageNotificationEvent) EventType() string { return EventNewMessageNotification }

func NewMessageNotification(roomID uuid.UUID, preview *MessagePreview, sender UserRef, unread int) NewMessageNotificationEvent {
	return NewMessageNotificationEvent{
		Type:        EventNewMessageNotification,
		RoomID:      roomID,
		Message:     preview,
		Sender:      sender,
		UnreadCount: unread,
		Timestamp:   preview.CreatedAt,
	}
}

type ReadStatusUpdateEvent struct {
	Type        string    `json:"type"`
	RoomID      uuid.UUID `json:"room_id"`
	UnreadCount int       `json:"unread_count"`
}

func (e ReadStatusUpdateEvent) EventType() string { return EventReadStatusUpdate }

func NewReadStatusUpdateEvent(roomID uuid.UUID, unread int) ReadStatusUpdateEvent {
	return ReadStatusUpdateEvent{Type: EventReadStatusUpdate, RoomID: roomID, UnreadCount: unread}
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e ErrorEvent) EventType() string { return EventError }

func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: EventError, Message: message}
}

const (
	MemberActionJoined = "joined"
	MemberActionLeft   = "left"
)

const (
	RoomActionCreated = "created"
	RoomActionUpdated = "updated"
)
