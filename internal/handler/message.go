package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"community_chat/internal/domain"
	"community_chat/internal/service"
	"community_chat/pkg/logger"
)

type MessageHandler struct {
	messageService service.MessageService
	log            logger.Logger
}

func NewMessageHandler(messageService service.MessageService, log logger.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		log:            log,
	}
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

func (h *MessageHandler) Send(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "roomID")
	if !ok {
		return
	}

	var input service.SendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	message, err := h.messageService.Send(c.Request.Context(), roomID, user.ID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, message)
}

// List pages backwards through history. The cursor is the created_at
// and id of the oldest message the client already has.
func (h *MessageHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "roomID")
	if !ok {
		return
	}

	cursor, ok := parseCursor(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	messages, err := h.messageService.List(c.Request.Context(), roomID, user.ID, cursor, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, messages)
}

func (h *MessageHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageID")
	if !ok {
		return
	}

	message, err := h.messageService.Get(c.Request.Context(), messageID, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, message)
}

func (h *MessageHandler) Edit(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageID")
	if !ok {
		return
	}

	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	message, err := h.messageService.Edit(c.Request.Context(), messageID, user.ID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, message)
}

func (h *MessageHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageID")
	if !ok {
		return
	}

	if err := h.messageService.Delete(c.Request.Context(), messageID, user.ID); err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *MessageHandler) React(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageID")
	if !ok {
		return
	}

	var req ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	added, err := h.messageService.ToggleReaction(c.Request.Context(), messageID, user.ID, req.Emoji)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"added": added})
}

func (h *MessageHandler) Search(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "roomID")
	if !ok {
		return
	}

	messages, err := h.messageService.Search(c.Request.Context(), roomID, user.ID, c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, messages)
}

func (h *MessageHandler) Unread(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "roomID")
	if !ok {
		return
	}

	count, err := h.messageService.UnreadCount(c.Request.Context(), roomID, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"unread_count": count})
}

func parseCursor(c *gin.Context) (*domain.MessageCursor, bool) {
	beforeAt := c.Query("before_at")
	beforeID := c.Query("before_id")
	if beforeAt == "" && beforeID == "" {
		return nil, true
	}
	if beforeAt == "" || beforeID == "" {
		respondBadRequest(c, "before_at and before_id must be supplied together")
		return nil, false
	}

	at, err := time.Parse(time.RFC3339Nano, beforeAt)
	if err != nil {
		respondBadRequest(c, "invalid before_at")
		return nil, false
	}
	id, err := uuid.Parse(beforeID)
	if err != nil {
		respondBadRequest(c, "invalid before_id")
		return nil, false
	}

	return &domain.MessageCursor{CreatedAt: at, ID: id}, true
}
