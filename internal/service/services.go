package service

import (
	"community_chat/internal/config"
	"community_chat/internal/repository"
	"community_chat/pkg/logger"
)

type Services struct {
	Auth      AuthService
	User      UserService
	Room      RoomService
	Message   MessageService
	Presence  PresenceService
	Typing    TypingService
	Activity  ActivityService
	RateLimit RateLimitService
}

func NewServices(repos *repository.Repositories, publisher EventPublisher, cfg *config.Config, log logger.Logger) *Services {
	presence := NewPresenceService(repos.Presence, repos.User, cfg.Chat, log)

	return &Services{
		Auth:      NewAuthService(repos.User, cfg.JWT, log),
		User:      NewUserService(repos.User, log),
		Room:      NewRoomService(repos.Room, repos.User, repos.Message, repos.Activity, presence, publisher, cfg.Chat, log),
		Message:   NewMessageService(repos.Message, repos.Room, repos.User, repos.Activity, publisher, nil, cfg.Chat, log),
		Presence:  presence,
		Typing:    NewTypingService(repos.Typing, repos.User, publisher, cfg.Chat, log),
		Activity:  NewActivityService(repos.Activity, log),
		RateLimit: NewRateLimitService(repos.RateLimit, log),
	}
}
