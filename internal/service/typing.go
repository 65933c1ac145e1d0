package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"community_chat/internal/config"
	"community_chat/internal/domain"
	"community_chat/internal/repository"
	"community_chat/pkg/logger"
)

// TypingService manages short-lived typing leases. A lease is refreshed
// on every typing frame and expires silently unless the sweep reaps it
// first and broadcasts the stop.
type TypingService interface {
	SetTyping(ctx context.Context, roomID uuid.UUID, user *domain.User, isTyping bool) error
	ActiveTypers(ctx context.Context, roomID uuid.UUID) ([]*domain.TypingIndicator, error)
	RunSweeper(ctx context.Context)
}

type typingService struct {
	typingRepo repository.TypingRepository
	userRepo   repository.UserRepository
	publisher  EventPublisher
	cfg        config.ChatConfig
	log        logger.Logger
}

func NewTypingService(
	typingRepo repository.TypingRepository,
	userRepo repository.UserRepository,
	publisher EventPublisher,
	cfg config.ChatConfig,
	log logger.Logger,
) TypingService {
	return &typingService{
		typingRepo: typingRepo,
		userRepo:   userRepo,
		publisher:  publisher,
		cfg:        cfg,
		log:        log,
	}
}

func (s *typingService) SetTyping(ctx context.Context, roomID uuid.UUID, user *domain.User, isTyping bool) error {
	if isTyping {
		if err := s.typingRepo.Set(ctx, roomID, user.ID, time.Now()); err != nil {
			return err
		}
		s.publisher.Publish(RoomTopic(roomID), domain.NewTypingIndicatorEvent(roomID, *userRef(user), true))
		return nil
	}

	cleared, err := s.typingRepo.Clear(ctx, roomID, user.ID)
	if err != nil {
		return err
	}
	if cleared {
		s.publisher.Publish(RoomTopic(roomID), domain.NewTypingIndicatorEvent(roomID, *userRef(user), false))
	}
	return nil
}

func (s *typingService) ActiveTypers(ctx context.Context, roomID uuid.UUID) ([]*domain.TypingIndicator, error) {
	return s.typingRepo.Active(ctx, roomID, s.cfg.TypingTTL)
}

// RunSweeper reaps stale leases on a ticker until the context is
// cancelled. Run it in its own goroutine.
func (s *typingService) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TypingSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *typingService) sweep(ctx context.Context) {
	expired, err := s.typingRepo.SweepExpired(ctx, s.cfg.TypingTTL)
	if err != nil {
		s.log.Warn("Typing sweep failed", "error", err)
	}

	for _, indicator := range expired {
		user, err := s.userRepo.GetByID(ctx, indicator.UserID)
		if err != nil {
			continue
		}
		s.publisher.Publish(RoomTopic(indicator.RoomID), domain.NewTypingIndicatorEvent(indicator.RoomID, *userRef(user), false))
	}
}
