package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	apperrors "community_chat/pkg/errors"
)

// Inbound frame discriminators.
const (
	FrameChatMessage     = "chat_message"
	FrameTyping          = "typing"
	FrameMarkRead        = "mark_read"
	FrameReaction        = "reaction"
	FrameRequestRoomData = "request_room_data"
	FrameCreateRoom      = "create_room"
)

// Frame is the tagged union of everything a client may send. Only the
// fields belonging to the Type are consulted.
type Frame struct {
	Type string `json:"type"`

	// chat_message
	Content   string     `json:"content,omitempty"`
	ReplyToID *uuid.UUID `json:"reply_to_id,omitempty"`

	// typing
	IsTyping bool `json:"is_typing,omitempty"`

	// mark_read on the room-list channel, where no room is implied
	RoomID *uuid.UUID `json:"room_id,omitempty"`

	// reaction
	MessageID *uuid.UUID `json:"message_id,omitempty"`
	Emoji     string     `json:"emoji,omitempty"`

	// create_room
	Name        string      `json:"name,omitempty"`
	RoomType    string      `json:"room_type,omitempty"`
	Description string      `json:"description,omitempty"`
	MemberIDs   []uuid.UUID `json:"member_ids,omitempty"`
}

// ParseFrame decodes a raw websocket payload. Unknown or missing types
// are rejected so a malformed frame never reaches a handler.
func ParseFrame(raw []byte) (*Frame, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: malformed frame", apperrors.ErrValidation)
	}

	switch frame.Type {
	case FrameChatMessage, FrameTyping, FrameMarkRead, FrameReaction, FrameRequestRoomData, FrameCreateRoom:
		return &frame, nil
	case "":
		return nil, fmt.Errorf("%w: frame type is required", apperrors.ErrValidation)
	default:
		return nil, fmt.Errorf("%w: unknown frame type %q", apperrors.ErrValidation, frame.Type)
	}
}
