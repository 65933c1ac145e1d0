package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"community_chat/internal/domain"
	"community_chat/pkg/logger"
)

type ActivityRepository interface {
	Record(ctx context.Context, entry *domain.ActivityEntry) error
	ListRecent(ctx context.Context, limit int) ([]*domain.ActivityEntry, error)
	ListForRoom(ctx context.Context, roomID uuid.UUID, limit int) ([]*domain.ActivityEntry, error)
}

type activityRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewActivityRepository(db *pgxpool.Pool, log logger.Logger) ActivityRepository {
	return &activityRepository{db: db, log: log}
}

func (r *activityRepository) Record(ctx context.Context, entry *domain.ActivityEntry) error {
	var payload []byte
	if entry.Payload != nil {
		var err error
		payload, err = json.Marshal(entry.Payload)
		if err != nil {
			r.log.Error("Failed to marshal activity payload", "error", err)
			return err
		}
	}

	query := `
		INSERT INTO activity_log (event_type, room_id, user_id, message_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	err := r.db.QueryRow(ctx, query,
		entry.EventType,
		entry.RoomID,
		entry.UserID,
		entry.MessageID,
		payload,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		r.log.Error("Failed to record activity", "error", err, "event_type", entry.EventType)
		return err
	}

	return nil
}

func (r *activityRepository) ListRecent(ctx context.Context, limit int) ([]*domain.ActivityEntry, error) {
	query := `
		SELECT id, event_type, room_id, user_id, message_id, payload, created_at
		FROM activity_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		r.log.Error("Failed to list recent activity", "error", err)
		return nil, err
	}
	defer rows.Close()

	return scanActivityRows(rows)
}

func (r *activityRepository) ListForRoom(ctx context.Context, roomID uuid.UUID, limit int) ([]*domain.ActivityEntry, error) {
	query := `
		SELECT id, event_type, room_id, user_id, message_id, payload, created_at
		FROM activity_log
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, roomID, limit)
	if err != nil {
		r.log.Error("Failed to list room activity", "error", err, "room_id", roomID)
		return nil, err
	}
	defer rows.Close()

	return scanActivityRows(rows)
}

func scanActivityRows(rows pgx.Rows) ([]*domain.ActivityEntry, error) {
	var entries []*domain.ActivityEntry
	for rows.Next() {
		entry := &domain.ActivityEntry{}
		var payload []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.EventType,
			&entry.RoomID,
			&entry.UserID,
			&entry.MessageID,
			&payload,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &entry.Payload); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
