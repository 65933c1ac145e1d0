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

// PresenceService answers "who is online" questions. A user counts as
// online when their last recorded activity falls inside the configured
// threshold; there is no explicit connect/disconnect state.
type PresenceService interface {
	RecordActivity(ctx context.Context, userID uuid.UUID, roomID *uuid.UUID) error
	IsOnline(ctx context.Context, userID uuid.UUID) (bool, error)
	OnlineUsers(ctx context.Context, limit int) ([]*domain.User, error)
	OnlineAmong(ctx context.Context, userIDs []uuid.UUID) ([]uuid.UUID, error)
	OnlineCountAmong(ctx context.Context, userIDs []uuid.UUID) (int, error)
}

type presenceService struct {
	presenceRepo repository.PresenceRepository
	userRepo     repository.UserRepository
	threshold    time.Duration
	log          logger.Logger
}

func NewPresenceService(presenceRepo repository.PresenceRepository, userRepo repository.UserRepository, cfg config.ChatConfig, log logger.Logger) PresenceService {
	return &presenceService{
		presenceRepo: presenceRepo,
		userRepo:     userRepo,
		threshold:    cfg.OnlineThreshold,
		log:          log,
	}
}

func (s *presenceService) RecordActivity(ctx context.Context, userID uuid.UUID, roomID *uuid.UUID) error {
	return s.presenceRepo.RecordActivity(ctx, userID, roomID, time.Now())
}

func (s *presenceService) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	record, err := s.presenceRepo.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}

	return record.Online(time.Now(), s.threshold), nil
}

func (s *presenceService) OnlineUsers(ctx context.Context, limit int) ([]*domain.User, error) {
	ids, err := s.presenceRepo.ActiveSince(ctx, time.Now().Add(-s.threshold), limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	users := make([]*domain.User, 0, len(ids))
	for _, id := range ids {
		user, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			s.log.Warn("Failed to load online user", "error", err, "user_id", id)
			continue
		}
		user.PasswordHash = ""
		users = append(users, user)
	}

	return users, nil
}

func (s *presenceService) OnlineAmong(ctx context.Context, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	seen, err := s.presenceRepo.GetMany(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	threshold := time.Now().Add(-s.threshold)
	var online []uuid.UUID
	for _, id := range userIDs {
		if last, ok := seen[id]; ok && last.After(threshold) {
			online = append(online, id)
		}
	}

	return online, nil
}

func (s *presenceService) OnlineCountAmong(ctx context.Context, userIDs []uuid.UUID) (int, error) {
	online, err := s.OnlineAmong(ctx, userIDs)
	if err != nil {
		return 0, err
	}
	return len(online), nil
}
