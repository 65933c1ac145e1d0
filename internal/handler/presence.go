package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"community_chat/internal/service"
	"community_chat/pkg/logger"
)

type PresenceHandler struct {
	presenceService service.PresenceService
	activityService service.ActivityService
	log             logger.Logger
}

func NewPresenceHandler(presenceService service.PresenceService, activityService service.ActivityService, log logger.Logger) *PresenceHandler {
	return &PresenceHandler{
		presenceService: presenceService,
		activityService: activityService,
		log:             log,
	}
}

func (h *PresenceHandler) OnlineUsers(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	users, err := h.presenceService.OnlineUsers(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, users)
}

func (h *PresenceHandler) UserStatus(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	userID, ok := pathUUID(c, "userID")
	if !ok {
		return
	}

	online, err := h.presenceService.IsOnline(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"user_id": userID, "online": online})
}

func (h *PresenceHandler) RecentActivity(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	entries, err := h.activityService.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, entries)
}

func (h *PresenceHandler) RoomActivity(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	roomID, ok := pathUUID(c, "roomID")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	entries, err := h.activityService.ForRoom(c.Request.Context(), roomID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, entries)
}
