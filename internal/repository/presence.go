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

type PresenceRepository interface {
	RecordActivity(ctx context.Context, userID uuid.UUID, roomID *uuid.UUID, at time.Time) error
	Get(ctx context.Context, userID uuid.UUID) (*domain.PresenceRecord, error)
	GetMany(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]time.Time, error)
	ActiveSince(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error)
}

type presenceRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewPresenceRepository(redis *redis.Client, log logger.Logger) PresenceRepository {
	return &presenceRepository{redis: redis, log: log}
}

const (
	presenceKeyPrefix = "presence:"
	presenceIndexKey  = "presence:index"
	// Records are kept a day past the last activity; after that the user
	// is offline regardless and the key is dead weight.
	presenceRetention = 24 * time.Hour
)

// RecordActivity is a single upsert write. It is called on every inbound
// message and heartbeat, so there is no read-then-write cycle here.
func (r *presenceRepository) RecordActivity(ctx context.Context, userID uuid.UUID, roomID *uuid.UUID, at time.Time) error {
	key := presenceKeyPrefix + userID.String()

	fields := map[string]interface{}{
		"last_activity": at.UTC().Format(time.RFC3339Nano),
	}
	if roomID != nil {
		fields["current_room"] = roomID.String()
	}

	pipe := r.redis.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, presenceRetention)
	pipe.ZAdd(ctx, presenceIndexKey, redis.Z{Score: float64(at.UnixMilli()), Member: userID.String()})

	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Error("Failed to record activity", "error", err, "user_id", userID)
		return err
	}

	return nil
}

func (r *presenceRepository) Get(ctx context.Context, userID uuid.UUID) (*domain.PresenceRecord, error) {
	key := presenceKeyPrefix + userID.String()

	values, err := r.redis.HGetAll(ctx, key).Result()
	if err != nil {
		r.log.Error("Failed to get presence record", "error", err, "user_id", userID)
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}

	record := &domain.PresenceRecord{UserID: userID}
	if raw, ok := values["last_activity"]; ok {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, err
		}
		record.LastActivity = ts
	}
	if raw, ok := values["current_room"]; ok {
		if roomID, err := uuid.Parse(raw); err == nil {
			record.CurrentRoomID = &roomID
		}
	}

	return record, nil
}

// GetMany fetches last-activity timestamps for a set of users in one
// round trip; missing users are absent from the result map.
func (r *presenceRepository) GetMany(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]time.Time, error) {
	if len(userIDs) == 0 {
		return map[uuid.UUID]time.Time{}, nil
	}

	pipe := r.redis.Pipeline()
	cmds := make(map[uuid.UUID]*redis.StringCmd, len(userIDs))
	for _, id := range userIDs {
		cmds[id] = pipe.HGet(ctx, presenceKeyPrefix+id.String(), "last_activity")
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		r.log.Error("Failed to get presence records", "error", err)
		return nil, err
	}

	result := make(map[uuid.UUID]time.Time, len(userIDs))
	for id, cmd := range cmds {
		raw, err := cmd.Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			continue
		}
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			result[id] = ts
		}
	}

	return result, nil
}

// ActiveSince returns users whose last activity falls inside the online
// window, most recent first.
func (r *presenceRepository) ActiveSince(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error) {
	members, err := r.redis.ZRevRangeByScore(ctx, presenceIndexKey, &redis.ZRangeBy{
		Min:   strconv.FormatInt(since.UnixMilli(), 10),
		Max:   "+inf",
		Count: int64(limit),
	}).Result()

	if err != nil {
		r.log.Error("Failed to list active users", "error", err)
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		if id, err := uuid.Parse(member); err == nil {
			ids = append(ids, id)
		}
	}

	return ids, nil
}
