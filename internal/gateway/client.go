package gateway

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"community_chat/internal/domain"
	"community_chat/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

// frameHandler processes one parsed inbound frame.
type frameHandler func(frame *Frame)

// Client owns one websocket connection. It satisfies hub.Subscriber so
// the hub can push marshalled events straight into its send queue.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	user *domain.User
	log  logger.Logger

	handleFrame  frameHandler
	onDisconnect func()

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, user *domain.User, queueSize int, log logger.Logger) *Client {
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		conn: conn,
		send: make(chan []byte, queueSize),
		user: user,
		log:  log,
	}
}

// typingEventPrefix relies on Type being the first marshalled field of
// every event.
var typingEventPrefix = []byte(`{"type":"` + domain.EventTypingIndicator + `"`)

// Deliver enqueues a payload without blocking. The client's own typing
// echo is filtered here so a user never sees themselves typing. A hub
// publish that snapshotted its targets before an unsubscribe can still
// land here after Close; those payloads are silently discarded.
func (c *Client) Deliver(payload []byte) bool {
	if c.isOwnTypingEcho(payload) {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close is called by the hub when the client is dropped or the hub is
// shutting down. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) isOwnTypingEcho(payload []byte) bool {
	if !bytes.HasPrefix(payload, typingEventPrefix) {
		return false
	}

	var envelope struct {
		User struct {
			ID uuid.UUID `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return false
	}
	return envelope.User.ID == c.user.ID
}

// sendEvent marshals and enqueues an event directly, bypassing the hub.
// Used for initial snapshots and per-connection error frames.
func (c *Client) sendEvent(event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		c.log.Error("Failed to marshal direct event", "error", err, "event_type", event.EventType())
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.send <- payload:
	default:
		c.log.Warn("Dropping direct event, client queue full", "user_id", c.user.ID)
	}
}

func (c *Client) readPump() {
	defer func() {
		if c.onDisconnect != nil {
			c.onDisconnect()
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("Unexpected websocket close", "error", err, "user_id", c.user.ID)
			}
			break
		}

		frame, err := ParseFrame(raw)
		if err != nil {
			c.sendEvent(domain.NewErrorEvent(err.Error()))
			continue
		}

		c.handleFrame(frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
