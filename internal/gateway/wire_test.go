package gateway

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "community_chat/pkg/errors"
)

func TestParseFrame(t *testing.T) {
	t.Run("chat message", func(t *testing.T) {
		replyTo := uuid.New()
		raw := []byte(`{"type":"chat_message","content":"hello","reply_to_id":"` + replyTo.String() + `"}`)

		frame, err := ParseFrame(raw)
		require.NoError(t, err)
		assert.Equal(t, FrameChatMessage, frame.Type)
		assert.Equal(t, "hello", frame.Content)
		require.NotNil(t, frame.ReplyToID)
		assert.Equal(t, replyTo, *frame.ReplyToID)
	})

	t.Run("typing", func(t *testing.T) {
		frame, err := ParseFrame([]byte(`{"type":"typing","is_typing":true}`))
		require.NoError(t, err)
		assert.Equal(t, FrameTyping, frame.Type)
		assert.True(t, frame.IsTyping)
	})

	t.Run("reaction", func(t *testing.T) {
		messageID := uuid.New()
		raw := []byte(`{"type":"reaction","message_id":"` + messageID.String() + `","emoji":"👍"}`)

		frame, err := ParseFrame(raw)
		require.NoError(t, err)
		require.NotNil(t, frame.MessageID)
		assert.Equal(t, messageID, *frame.MessageID)
		assert.Equal(t, "👍", frame.Emoji)
	})

	t.Run("create room", func(t *testing.T) {
		member := uuid.New()
		raw := []byte(`{"type":"create_room","name":"general","room_type":"group","member_ids":["` + member.String() + `"]}`)

		frame, err := ParseFrame(raw)
		require.NoError(t, err)
		assert.Equal(t, "general", frame.Name)
		assert.Equal(t, "group", frame.RoomType)
		assert.Equal(t, []uuid.UUID{member}, frame.MemberIDs)
	})

	t.Run("mark read and room data carry no payload", func(t *testing.T) {
		for _, raw := range []string{`{"type":"mark_read"}`, `{"type":"request_room_data"}`} {
			_, err := ParseFrame([]byte(raw))
			assert.NoError(t, err)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := ParseFrame([]byte(`{"type":`))
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("missing type", func(t *testing.T) {
		_, err := ParseFrame([]byte(`{"content":"hi"}`))
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := ParseFrame([]byte(`{"type":"bogus"}`))
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}
