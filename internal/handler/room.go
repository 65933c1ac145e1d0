package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"community_chat/internal/service"
	"community_chat/pkg/logger"
)

type RoomHandler struct {
	roomService service.RoomService
	log         logger.Logger
}

func NewRoomHandler(roomService service.RoomService, log logger.Logger) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
		log:         log,
	}
}

type UpdateRoomRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type FlagRequest struct {
	Value bool `json:"value"`
}

func (h *RoomHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var input service.CreateRoomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), user.ID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	h.log.Info("Room created", "room_id", room.ID, "room_type", room.RoomType, "creator_id", user.ID)
	respond(c, http.StatusCreated, room)
}

func (h *RoomHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	summaries, err := h.roomService.RoomList(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, summaries)
}

func (h *RoomHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "roomID")
	if !ok {
		return
	}

	summary, err := h.roomService.GetRoom(c.Request.Context(), roomID, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, summary)
}

func (h *RoomHandler) Join(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "roomID")
	if !ok {
		return
	}

	if err := h.roomService.JoinRoom(c.Request.Context(), roomID, user.ID); err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"joined": true})
}

func (h *RoomHandler) Leave(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "roomID")
	if !ok {
		return
	}

	if err := h.roomService.LeaveRoom(c.Request.Context(), roomID, user.ID); err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"left": true})
}

func (h *RoomHandler) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "roomID")
	if !ok {
		return
	}

	var req UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	room, err := h.roomService.UpdateRoom(c.Request.Context(), roomID, user.ID, req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, room)
}

func (h *RoomHandler) Members(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "roomID")
	if !ok {
		return
	}

	members, err := h.roomService.ListMembers(c.Request.Context(), roomID, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, members)
}

func (h *RoomHandler) SetMuted(c *gin.Context) {
	h.setFlag(c, h.roomService.SetMuted)
}

func (h *RoomHandler) SetPinned(c *gin.Context) {
	h.setFlag(c, h.roomService.SetPinned)
}

func (h *RoomHandler) setFlag(c *gin.Context, set func(ctx context.Context, roomID, userID uuid.UUID, value bool) error) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "roomID")
	if !ok {
		return
	}

	var req FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	if err := set(c.Request.Context(), roomID, user.ID, req.Value); err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"value": req.Value})
}

func (h *RoomHandler) MarkRead(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "roomID")
	if !ok {
		return
	}

	if err := h.roomService.MarkRead(c.Request.Context(), roomID, user.ID); err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"read": true})
}
