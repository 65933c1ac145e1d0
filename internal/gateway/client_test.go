package gateway

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community_chat/internal/domain"
	"community_chat/pkg/logger"
)

func newTestClient(queueSize int) *Client {
	return &Client{
		send: make(chan []byte, queueSize),
		user: &domain.User{ID: uuid.New(), Username: "alice"},
		log:  logger.New("error"),
	}
}

func marshalEvent(t *testing.T, event domain.Event) []byte {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload
}

func TestClient_Deliver(t *testing.T) {
	t.Run("queues payloads", func(t *testing.T) {
		client := newTestClient(2)
		payload := marshalEvent(t, domain.NewErrorEvent("boom"))

		assert.True(t, client.Deliver(payload))
		assert.Len(t, client.send, 1)
	})

	t.Run("reports full queue", func(t *testing.T) {
		client := newTestClient(1)
		payload := marshalEvent(t, domain.NewErrorEvent("boom"))

		assert.True(t, client.Deliver(payload))
		assert.False(t, client.Deliver(payload))
	})

	t.Run("filters own typing echo", func(t *testing.T) {
		client := newTestClient(2)
		roomID := uuid.New()

		own := domain.NewTypingIndicatorEvent(roomID, domain.UserRef{ID: client.user.ID, Username: "alice"}, true)
		assert.True(t, client.Deliver(marshalEvent(t, own)))
		assert.Len(t, client.send, 0)

		other := domain.NewTypingIndicatorEvent(roomID, domain.UserRef{ID: uuid.New(), Username: "bob"}, true)
		assert.True(t, client.Deliver(marshalEvent(t, other)))
		assert.Len(t, client.send, 1)
	})

	t.Run("discards after close", func(t *testing.T) {
		client := newTestClient(2)
		client.Close()
		client.Close()

		payload := marshalEvent(t, domain.NewErrorEvent("boom"))
		assert.True(t, client.Deliver(payload))
	})
}
