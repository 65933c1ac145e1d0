// Package gateway bridges authenticated websocket connections to the
// service layer: one endpoint per room and one room-list endpoint per
// user.
package gateway

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"community_chat/internal/config"
	"community_chat/internal/domain"
	"community_chat/internal/hub"
	"community_chat/internal/service"
	apperrors "community_chat/pkg/errors"
	"community_chat/pkg/logger"
)

type Gateway struct {
	hub      *hub.Hub
	services *service.Services
	upgrader websocket.Upgrader
	cfg      config.ChatConfig
	log      logger.Logger
}

func New(h *hub.Hub, services *service.Services, cfg config.ChatConfig, log logger.Logger) *Gateway {
	return &Gateway{
		hub:      h,
		services: services,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		cfg: cfg,
		log: log,
	}
}

// RoomSocket serves GET /ws/chat/:roomID. Membership is checked before
// the upgrade so outsiders never hold a connection.
func (g *Gateway) RoomSocket(c *gin.Context) {
	user, ok := g.authedUser(c)
	if !ok {
		return
	}

	roomID, err := uuid.Parse(c.Param("roomID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid room id"})
		return
	}

	ctx := c.Request.Context()
	if _, err := g.services.Room.Membership(ctx, roomID, user.ID); err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"success": false, "error": "not a member of this room"})
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Warn("Websocket upgrade failed", "error", err, "user_id", user.ID)
		return
	}

	client := newClient(conn, user, g.cfg.ClientQueueSize, g.log)
	client.handleFrame = func(frame *Frame) {
		g.handleRoomFrame(client, roomID, frame)
	}
	client.onDisconnect = func() {
		g.hub.UnsubscribeAll(client)
		client.Close()

		// Release the typing lease and stamp a final activity so the
		// presence window starts counting down from the disconnect.
		ctx := context.Background()
		if err := g.services.Typing.SetTyping(ctx, roomID, user, false); err != nil {
			g.log.Warn("Failed to clear typing on disconnect", "error", err, "user_id", user.ID)
		}
		g.recordPresence(ctx, user.ID, &roomID)
	}

	g.hub.Subscribe(service.RoomTopic(roomID), client)
	g.hub.Subscribe(service.UserTopic(user.ID), client)
	g.recordPresence(c.Request.Context(), user.ID, &roomID)

	go client.writePump()
	go client.readPump()
}

// RoomListSocket serves GET /ws/rooms. The client gets a full snapshot
// on connect and again whenever it asks.
func (g *Gateway) RoomListSocket(c *gin.Context) {
	user, ok := g.authedUser(c)
	if !ok {
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Warn("Websocket upgrade failed", "error", err, "user_id", user.ID)
		return
	}

	client := newClient(conn, user, g.cfg.ClientQueueSize, g.log)
	client.handleFrame = func(frame *Frame) {
		g.handleRoomListFrame(client, frame)
	}
	client.onDisconnect = func() {
		g.hub.UnsubscribeAll(client)
		client.Close()
		g.recordPresence(context.Background(), user.ID, nil)
	}

	g.hub.Subscribe(service.TopicRoomList, client)
	g.hub.Subscribe(service.UserTopic(user.ID), client)
	g.recordPresence(c.Request.Context(), user.ID, nil)

	go client.writePump()
	go client.readPump()

	g.sendSnapshot(context.Background(), client)
}

func (g *Gateway) handleRoomFrame(client *Client, roomID uuid.UUID, frame *Frame) {
	ctx := context.Background()
	user := client.user
	g.recordPresence(ctx, user.ID, &roomID)

	switch frame.Type {
	case FrameChatMessage:
		input := service.SendMessageInput{
			Content:   frame.Content,
			ReplyToID: frame.ReplyToID,
		}
		if _, err := g.services.Message.Send(ctx, roomID, user.ID, input); err != nil {
			client.sendEvent(domain.NewErrorEvent(errorMessage(err, "failed to send message")))
		}

	case FrameTyping:
		if err := g.services.Typing.SetTyping(ctx, roomID, user, frame.IsTyping); err != nil {
			g.log.Warn("Failed to update typing state", "error", err, "user_id", user.ID)
		}

	case FrameMarkRead:
		if err := g.services.Room.MarkRead(ctx, roomID, user.ID); err != nil {
			client.sendEvent(domain.NewErrorEvent(errorMessage(err, "failed to mark as read")))
		}

	case FrameReaction:
		if frame.MessageID == nil {
			client.sendEvent(domain.NewErrorEvent("message_id is required"))
			return
		}
		if _, err := g.services.Message.ToggleReaction(ctx, *frame.MessageID, user.ID, frame.Emoji); err != nil {
			client.sendEvent(domain.NewErrorEvent(errorMessage(err, "failed to toggle reaction")))
		}

	case FrameRequestRoomData:
		data, err := g.services.Room.RoomData(ctx, roomID, user.ID)
		if err != nil {
			client.sendEvent(domain.NewErrorEvent(errorMessage(err, "failed to load room data")))
			return
		}
		client.sendEvent(*data)

	default:
		client.sendEvent(domain.NewErrorEvent("frame not supported on this channel"))
	}
}

func (g *Gateway) handleRoomListFrame(client *Client, frame *Frame) {
	ctx := context.Background()
	user := client.user
	g.recordPresence(ctx, user.ID, nil)

	switch frame.Type {
	case FrameRequestRoomData:
		g.sendSnapshot(ctx, client)

	case FrameCreateRoom:
		input := service.CreateRoomInput{
			Name:        frame.Name,
			RoomType:    frame.RoomType,
			Description: frame.Description,
			MemberIDs:   frame.MemberIDs,
		}
		if _, err := g.services.Room.CreateRoom(ctx, user.ID, input); err != nil {
			client.sendEvent(domain.NewErrorEvent(errorMessage(err, "failed to create room")))
			return
		}
		g.sendSnapshot(ctx, client)

	case FrameMarkRead:
		if frame.RoomID == nil {
			client.sendEvent(domain.NewErrorEvent("room_id is required"))
			return
		}
		if err := g.services.Room.MarkRead(ctx, *frame.RoomID, user.ID); err != nil {
			client.sendEvent(domain.NewErrorEvent(errorMessage(err, "failed to mark as read")))
		}

	case FrameTyping:
		// no-op on the list channel

	default:
		client.sendEvent(domain.NewErrorEvent("frame not supported on this channel"))
	}
}

func (g *Gateway) sendSnapshot(ctx context.Context, client *Client) {
	snapshot, err := g.services.Room.RoomListSnapshot(ctx, client.user.ID)
	if err != nil {
		g.log.Error("Failed to build room list snapshot", "error", err, "user_id", client.user.ID)
		client.sendEvent(domain.NewErrorEvent("failed to load room list"))
		return
	}
	client.sendEvent(*snapshot)
}

func (g *Gateway) recordPresence(ctx context.Context, userID uuid.UUID, roomID *uuid.UUID) {
	if err := g.services.Presence.RecordActivity(ctx, userID, roomID); err != nil {
		g.log.Warn("Failed to record presence", "error", err, "user_id", userID)
	}
}

// authedUser pulls the user the auth middleware stored on the context.
func (g *Gateway) authedUser(c *gin.Context) (*domain.User, bool) {
	value, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
		return nil, false
	}
	user, ok := value.(*domain.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
		return nil, false
	}
	return user, true
}

// errorMessage keeps internal failures vague on the wire while letting
// domain errors through verbatim.
func errorMessage(err error, fallback string) string {
	if apperrors.HTTPStatusFromError(err) == http.StatusInternalServerError {
		return fallback
	}
	return err.Error()
}
