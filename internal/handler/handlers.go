package handler

import (
	"community_chat/internal/config"
	"community_chat/internal/service"
	"community_chat/pkg/logger"
)

type Handlers struct {
	Health   *HealthHandler
	Auth     *AuthHandler
	User     *UserHandler
	Room     *RoomHandler
	Message  *MessageHandler
	Presence *PresenceHandler
}

func NewHandlers(services *service.Services, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(cfg),
		Auth:     NewAuthHandler(services.Auth, log),
		User:     NewUserHandler(services.User, log),
		Room:     NewRoomHandler(services.Room, log),
		Message:  NewMessageHandler(services.Message, log),
		Presence: NewPresenceHandler(services.Presence, services.Activity, log),
	}
}
