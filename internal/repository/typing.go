package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"community_chat/internal/domain"
	"community_chat/pkg/logger"
)

// TypingRepository holds ephemeral typing leases in a per-room redis
// hash keyed by user. Leases are refreshed on keystrokes and reaped by
// the periodic sweep; the key's own TTL cleans up rooms that go idle.
type TypingRepository interface {
	Set(ctx context.Context, roomID, userID uuid.UUID, at time.Time) error
	Clear(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	Active(ctx context.Context, roomID uuid.UUID, ttl time.Duration) ([]*domain.TypingIndicator, error)
	SweepExpired(ctx context.Context, ttl time.Duration) ([]*domain.TypingIndicator, error)
}

type typingRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewTypingRepository(redis *redis.Client, log logger.Logger) TypingRepository {
	return &typingRepository{redis: redis, log: log}
}

const (
	typingKeyPrefix = "typing:"
	typingKeyTTL    = 10 * time.Minute
)

func typingKey(roomID uuid.UUID) string {
	return typingKeyPrefix + roomID.String()
}

func (r *typingRepository) Set(ctx context.Context, roomID, userID uuid.UUID, at time.Time) error {
	key := typingKey(roomID)

	pipe := r.redis.Pipeline()
	pipe.HSet(ctx, key, userID.String(), strconv.FormatInt(at.UnixMilli(), 10))
	pipe.Expire(ctx, key, typingKeyTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Error("Failed to set typing indicator", "error", err, "room_id", roomID)
		return err
	}

	return nil
}

func (r *typingRepository) Clear(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	removed, err := r.redis.HDel(ctx, typingKey(roomID), userID.String()).Result()
	if err != nil {
		r.log.Error("Failed to clear typing indicator", "error", err, "room_id", roomID)
		return false, err
	}

	return removed > 0, nil
}

func (r *typingRepository) Active(ctx context.Context, roomID uuid.UUID, ttl time.Duration) ([]*domain.TypingIndicator, error) {
	values, err := r.redis.HGetAll(ctx, typingKey(roomID)).Result()
	if err != nil {
		r.log.Error("Failed to read typing indicators", "error", err, "room_id", roomID)
		return nil, err
	}

	threshold := time.Now().Add(-ttl)
	var indicators []*domain.TypingIndicator
	for rawUser, rawTS := range values {
		userID, err := uuid.Parse(rawUser)
		if err != nil {
			continue
		}
		millis, err := strconv.ParseInt(rawTS, 10, 64)
		if err != nil {
			continue
		}
		refreshed := time.UnixMilli(millis)
		if refreshed.Before(threshold) {
			continue
		}
		indicators = append(indicators, &domain.TypingIndicator{
			RoomID:      roomID,
			UserID:      userID,
			RefreshedAt: refreshed,
		})
	}

	return indicators, nil
}

// SweepExpired scans all typing hashes, deletes entries older than the
// TTL and returns them so callers can broadcast stop-typing.
func (r *typingRepository) SweepExpired(ctx context.Context, ttl time.Duration) ([]*domain.TypingIndicator, error) {
	threshold := time.Now().Add(-ttl)
	var expired []*domain.TypingIndicator

	iter := r.redis.Scan(ctx, 0, typingKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		roomID, err := uuid.Parse(key[len(typingKeyPrefix):])
		if err != nil {
			continue
		}

		values, err := r.redis.HGetAll(ctx, key).Result()
		if err != nil {
			r.log.Error("Failed to read typing hash during sweep", "error", err, "key", key)
			continue
		}

		for rawUser, rawTS := range values {
			userID, err := uuid.Parse(rawUser)
			if err != nil {
				continue
			}
			millis, err := strconv.ParseInt(rawTS, 10, 64)
			if err != nil || time.UnixMilli(millis).Before(threshold) {
				if _, err := r.redis.HDel(ctx, key, rawUser).Result(); err != nil {
					r.log.Error("Failed to reap typing entry", "error", err, "key", key)
					continue
				}
				expired = append(expired, &domain.TypingIndicator{
					RoomID:      roomID,
					UserID:      userID,
					RefreshedAt: time.UnixMilli(millis),
				})
			}
		}
	}

	if err := iter.Err(); err != nil {
		r.log.Error("Typing sweep scan failed", "error", err)
		return expired, err
	}

	return expired, nil
}
