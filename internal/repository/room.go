package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"community_chat/internal/domain"
	apperrors "community_chat/pkg/errors"
	"community_chat/pkg/logger"
)

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room, memberships []*domain.Membership) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error)
	FindDirectRoom(ctx context.Context, userA, userB uuid.UUID) (*domain.Room, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Room, error)
	Update(ctx context.Context, room *domain.Room) error
	SetLinkedRef(ctx context.Context, roomID uuid.UUID, linkedRef *string) error
	TouchActivity(ctx context.Context, roomID uuid.UUID) error

	AddMember(ctx context.Context, membership *domain.Membership) error
	GetMembership(ctx context.Context, roomID, userID uuid.UUID) (*domain.Membership, error)
	RemoveMember(ctx context.Context, roomID, userID uuid.UUID) error
	ListMembers(ctx context.Context, roomID uuid.UUID) ([]*domain.Membership, error)
	MemberCount(ctx context.Context, roomID uuid.UUID) (int, error)
	MemberIDs(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error)
	SetMuted(ctx context.Context, roomID, userID uuid.UUID, muted bool) error
	SetPinned(ctx context.Context, roomID, userID uuid.UUID, pinned bool) error
	SetLastRead(ctx context.Context, roomID, userID uuid.UUID, at time.Time) error
}

type roomRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewRoomRepository(db *pgxpool.Pool, log logger.Logger) RoomRepository {
	return &roomRepository{db: db, log: log}
}

const roomColumns = `id, name, room_type, description, creator_id, linked_ref, is_active, message_count, last_activity, created_at, updated_at`

// Create inserts the room together with its initial memberships in one
// transaction. A room is never visible without its creator membership.
func (r *roomRepository) Create(ctx context.Context, room *domain.Room, memberships []*domain.Membership) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin room transaction", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO rooms (id, name, room_type, description, creator_id, linked_ref, is_active, last_activity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err = tx.QueryRow(ctx, query,
		room.ID, room.Name, room.RoomType, room.Description, room.CreatorID,
		room.LinkedRef, room.IsActive, room.LastActivity, room.CreatedAt, room.UpdatedAt,
	).Scan(&room.CreatedAt, &room.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		r.log.Error("Failed to create room", "error", err)
		return err
	}

	memberQuery := `
		INSERT INTO room_memberships (room_id, user_id, role, is_muted, is_pinned, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, m := range memberships {
		_, err := tx.Exec(ctx, memberQuery, m.RoomID, m.UserID, m.Role, m.IsMuted, m.IsPinned, m.JoinedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.ErrConflict
			}
			r.log.Error("Failed to create membership", "error", err, "user_id", m.UserID)
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *roomRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`

	room := &domain.Room{}
	err := retryRead(ctx, func(ctx context.Context) error {
		return r.db.QueryRow(ctx, query, id).Scan(
			&room.ID, &room.Name, &room.RoomType, &room.Description, &room.CreatorID,
			&room.LinkedRef, &room.IsActive, &room.MessageCount, &room.LastActivity,
			&room.CreatedAt, &room.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRoomNotFound
		}
		r.log.Error("Failed to get room by ID", "error", err)
		return nil, err
	}

	return room, nil
}

// FindDirectRoom looks up the direct room between an unordered pair of
// users. Backs the idempotent direct-room creation path.
func (r *roomRepository) FindDirectRoom(ctx context.Context, userA, userB uuid.UUID) (*domain.Room, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM rooms
		WHERE room_type = 'direct'
		  AND id IN (SELECT room_id FROM room_memberships WHERE user_id = $1)
		  AND id IN (SELECT room_id FROM room_memberships WHERE user_id = $2)
		LIMIT 1
	`

	room := &domain.Room{}
	err := r.db.QueryRow(ctx, query, userA, userB).Scan(
		&room.ID, &room.Name, &room.RoomType, &room.Description, &room.CreatorID,
		&room.LinkedRef, &room.IsActive, &room.MessageCount, &room.LastActivity,
		&room.CreatedAt, &room.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRoomNotFound
		}
		r.log.Error("Failed to find direct room", "error", err)
		return nil, err
	}

	return room, nil
}

func (r *roomRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Room, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM rooms
		JOIN room_memberships m ON m.room_id = rooms.id AND m.user_id = $1
		WHERE is_active = TRUE
		ORDER BY m.is_pinned DESC, last_activity DESC
		LIMIT $2
	`

	var rooms []*domain.Room
	err := retryRead(ctx, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, userID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		rooms = rooms[:0]
		for rows.Next() {
			room := &domain.Room{}
			err := rows.Scan(
				&room.ID, &room.Name, &room.RoomType, &room.Description, &room.CreatorID,
				&room.LinkedRef, &room.IsActive, &room.MessageCount, &room.LastActivity,
				&room.CreatedAt, &room.UpdatedAt,
			)
			if err != nil {
				return err
			}
			rooms = append(rooms, room)
		}
		return rows.Err()
	})

	if err != nil {
		r.log.Error("Failed to list rooms for user", "error", err)
		return nil, err
	}

	return rooms, nil
}

// Update mutates name and description only; room type and creator are
// immutable after creation.
func (r *roomRepository) Update(ctx context.Context, room *domain.Room) error {
	query := `
		UPDATE rooms
		SET name = $2, description = $3, updated_at = $4
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query, room.ID, room.Name, room.Description, time.Now()).Scan(&room.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrRoomNotFound
		}
		r.log.Error("Failed to update room", "error", err)
		return err
	}

	return nil
}

func (r *roomRepository) SetLinkedRef(ctx context.Context, roomID uuid.UUID, linkedRef *string) error {
	query := `UPDATE rooms SET linked_ref = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, roomID, linkedRef)
	if err != nil {
		r.log.Error("Failed to set linked ref", "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrRoomNotFound
	}

	return nil
}

func (r *roomRepository) TouchActivity(ctx context.Context, roomID uuid.UUID) error {
	query := `UPDATE rooms SET last_activity = NOW(), updated_at = NOW() WHERE id = $1`

	_, err := r.db.Exec(ctx, query, roomID)
	if err != nil {
		r.log.Error("Failed to touch room activity", "error", err)
		return err
	}

	return nil
}

func (r *roomRepository) AddMember(ctx context.Context, m *domain.Membership) error {
	query := `
		INSERT INTO room_memberships (room_id, user_id, role, is_muted, is_pinned, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query, m.RoomID, m.UserID, m.Role, m.IsMuted, m.IsPinned, m.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadyMember
		}
		if isForeignKeyViolation(err) {
			return apperrors.ErrNotFound
		}
		r.log.Error("Failed to add member", "error", err)
		return err
	}

	return nil
}

func (r *roomRepository) GetMembership(ctx context.Context, roomID, userID uuid.UUID) (*domain.Membership, error) {
	query := `
		SELECT room_id, user_id, role, is_muted, is_pinned, last_read_at, joined_at
		FROM room_memberships
		WHERE room_id = $1 AND user_id = $2
	`

	m := &domain.Membership{}
	err := retryRead(ctx, func(ctx context.Context) error {
		return r.db.QueryRow(ctx, query, roomID, userID).Scan(
			&m.RoomID, &m.UserID, &m.Role, &m.IsMuted, &m.IsPinned, &m.LastReadAt, &m.JoinedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotAMember
		}
		r.log.Error("Failed to get membership", "error", err)
		return nil, err
	}

	return m, nil
}

func (r *roomRepository) RemoveMember(ctx context.Context, roomID, userID uuid.UUID) error {
	query := `DELETE FROM room_memberships WHERE room_id = $1 AND user_id = $2`

	tag, err := r.db.Exec(ctx, query, roomID, userID)
	if err != nil {
		r.log.Error("Failed to remove member", "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotAMember
	}

	return nil
}

func (r *roomRepository) ListMembers(ctx context.Context, roomID uuid.UUID) ([]*domain.Membership, error) {
	query := `
		SELECT room_id, user_id, role, is_muted, is_pinned, last_read_at, joined_at
		FROM room_memberships
		WHERE room_id = $1
		ORDER BY joined_at ASC
	`

	rows, err := r.db.Query(ctx, query, roomID)
	if err != nil {
		r.log.Error("Failed to list members", "error", err)
		return nil, err
	}
	defer rows.Close()

	var members []*domain.Membership
	for rows.Next() {
		m := &domain.Membership{}
		err := rows.Scan(&m.RoomID, &m.UserID, &m.Role, &m.IsMuted, &m.IsPinned, &m.LastReadAt, &m.JoinedAt)
		if err != nil {
			r.log.Error("Failed to scan membership", "error", err)
			return nil, err
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

func (r *roomRepository) MemberCount(ctx context.Context, roomID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM room_memberships WHERE room_id = $1`

	var count int
	if err := r.db.QueryRow(ctx, query, roomID).Scan(&count); err != nil {
		r.log.Error("Failed to count members", "error", err)
		return 0, err
	}

	return count, nil
}

func (r *roomRepository) MemberIDs(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT user_id FROM room_memberships WHERE room_id = $1`

	rows, err := r.db.Query(ctx, query, roomID)
	if err != nil {
		r.log.Error("Failed to list member IDs", "error", err)
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *roomRepository) SetMuted(ctx context.Context, roomID, userID uuid.UUID, muted bool) error {
	return r.setFlag(ctx, `UPDATE room_memberships SET is_muted = $3 WHERE room_id = $1 AND user_id = $2`, roomID, userID, muted)
}

func (r *roomRepository) SetPinned(ctx context.Context, roomID, userID uuid.UUID, pinned bool) error {
	return r.setFlag(ctx, `UPDATE room_memberships SET is_pinned = $3 WHERE room_id = $1 AND user_id = $2`, roomID, userID, pinned)
}

func (r *roomRepository) setFlag(ctx context.Context, query string, roomID, userID uuid.UUID, value bool) error {
	tag, err := r.db.Exec(ctx, query, roomID, userID, value)
	if err != nil {
		r.log.Error("Failed to set membership flag", "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotAMember
	}

	return nil
}

func (r *roomRepository) SetLastRead(ctx context.Context, roomID, userID uuid.UUID, at time.Time) error {
	query := `UPDATE room_memberships SET last_read_at = $3 WHERE room_id = $1 AND user_id = $2`

	tag, err := r.db.Exec(ctx, query, roomID, userID, at)
	if err != nil {
		r.log.Error("Failed to set last read", "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotAMember
	}

	return nil
}
