package service

import (
	"context"

	"github.com/google/uuid"

	"community_chat/internal/domain"
	"community_chat/internal/repository"
	"community_chat/pkg/logger"
)

type ActivityService interface {
	Recent(ctx context.Context, limit int) ([]*domain.ActivityEntry, error)
	ForRoom(ctx context.Context, roomID uuid.UUID, limit int) ([]*domain.ActivityEntry, error)
}

type activityService struct {
	activityRepo repository.ActivityRepository
	log          logger.Logger
}

func NewActivityService(activityRepo repository.ActivityRepository, log logger.Logger) ActivityService {
	return &activityService{activityRepo: activityRepo, log: log}
}

func (s *activityService) Recent(ctx context.Context, limit int) ([]*domain.ActivityEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.activityRepo.ListRecent(ctx, limit)
}

func (s *activityService) ForRoom(ctx context.Context, roomID uuid.UUID, limit int) ([]*domain.ActivityEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.activityRepo.ListForRoom(ctx, roomID, limit)
}
