package service

import (
	"context"
	"time"

	"community_chat/internal/repository"
	"community_chat/pkg/logger"
)

type RateLimitService interface {
	// Allow records a hit for the key and reports whether the request
	// is still inside the limit, along with how many requests remain
	// in the current window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error)
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		log:           log,
	}
}

func (s *rateLimitService) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	count, err := s.rateLimitRepo.Hit(ctx, key, window)
	if err != nil {
		return false, 0, err
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return count <= int64(limit), remaining, nil
}
