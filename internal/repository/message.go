package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"community_chat/internal/domain"
	apperrors "community_chat/pkg/errors"
	"community_chat/pkg/logger"
)

type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	List(ctx context.Context, roomID uuid.UUID, before *domain.MessageCursor, limit int) ([]*domain.Message, error)
	Update(ctx context.Context, message *domain.Message) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, roomID uuid.UUID, query string, limit int) ([]*domain.Message, error)
	UnreadCount(ctx context.Context, roomID, userID uuid.UUID, since *time.Time) (int, error)
	LatestInRoom(ctx context.Context, roomID uuid.UUID) (*domain.Message, error)

	AddMentions(ctx context.Context, messageID uuid.UUID, userIDs []uuid.UUID) error
	ListMentions(ctx context.Context, messageID uuid.UUID) ([]uuid.UUID, error)

	AddReaction(ctx context.Context, reaction *domain.MessageReaction) error
	RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error)
	HasReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error)
	ListReactions(ctx context.Context, messageID uuid.UUID) ([]*domain.MessageReaction, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

const messageColumns = `id, room_id, sender_id, message_type, content, attachment_name, attachment_size, attachment_url, reply_to_id, is_edited, is_deleted, created_at, updated_at`

func scanMessage(row pgx.Row) (*domain.Message, error) {
	m := &domain.Message{}
	var attName, attURL *string
	var attSize *int64

	err := row.Scan(
		&m.ID, &m.RoomID, &m.SenderID, &m.MessageType, &m.Content,
		&attName, &attSize, &attURL, &m.ReplyToID,
		&m.IsEdited, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if attName != nil && attURL != nil {
		size := int64(0)
		if attSize != nil {
			size = *attSize
		}
		m.Attachment = &domain.Attachment{Name: *attName, Size: size, URL: *attURL}
	}

	return m, nil
}

// Create inserts the message and bumps the parent room's activity and
// message count in the same transaction, so a message is never visible
// in a room that still sorts as idle.
func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin message transaction", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO messages (id, room_id, sender_id, message_type, content, attachment_name, attachment_size, attachment_url, reply_to_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	var attName, attURL *string
	var attSize *int64
	if message.Attachment != nil {
		attName = &message.Attachment.Name
		attSize = &message.Attachment.Size
		attURL = &message.Attachment.URL
	}

	err = tx.QueryRow(ctx, query,
		message.ID, message.RoomID, message.SenderID, message.MessageType, message.Content,
		attName, attSize, attURL, message.ReplyToID, message.CreatedAt, message.UpdatedAt,
	).Scan(&message.CreatedAt, &message.UpdatedAt)

	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.ErrNotFound
		}
		r.log.Error("Failed to create message", "error", err)
		return err
	}

	bump := `UPDATE rooms SET message_count = message_count + 1, last_activity = $2, updated_at = $2 WHERE id = $1`
	if _, err := tx.Exec(ctx, bump, message.RoomID, message.CreatedAt); err != nil {
		r.log.Error("Failed to bump room activity", "error", err)
		return err
	}

	return tx.Commit(ctx)
}

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	var message *domain.Message
	err := retryRead(ctx, func(ctx context.Context) error {
		var scanErr error
		message, scanErr = scanMessage(r.db.QueryRow(ctx, query, id))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMessageNotFound
		}
		r.log.Error("Failed to get message", "error", err)
		return nil, err
	}

	return message, nil
}

// List pages backward through a room, newest first, excluding
// soft-deleted rows. The cursor is an exclusive upper bound on
// (created_at, id).
func (r *messageRepository) List(ctx context.Context, roomID uuid.UUID, before *domain.MessageCursor, limit int) ([]*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE room_id = $1 AND is_deleted = FALSE`
	args := []interface{}{roomID}

	if before != nil {
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, before.CreatedAt, before.ID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	var messages []*domain.Message
	err := retryRead(ctx, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		messages = messages[:0]
		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return rows.Err()
	})

	if err != nil {
		r.log.Error("Failed to list messages", "error", err)
		return nil, err
	}

	return messages, nil
}

func (r *messageRepository) Update(ctx context.Context, message *domain.Message) error {
	query := `
		UPDATE messages
		SET content = $2, is_edited = TRUE, updated_at = $3
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query, message.ID, message.Content, time.Now()).Scan(&message.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrMessageNotFound
		}
		r.log.Error("Failed to update message", "error", err)
		return err
	}

	message.IsEdited = true
	return nil
}

func (r *messageRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE messages SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to soft delete message", "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrMessageNotFound
	}

	return nil
}

// likeEscaper quotes the ILIKE metacharacters so a search query
// matches its text literally. Without it "50%" matches every message.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLikePattern(s string) string {
	return likeEscaper.Replace(s)
}

func (r *messageRepository) Search(ctx context.Context, roomID uuid.UUID, query string, limit int) ([]*domain.Message, error) {
	sql := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room_id = $1 AND is_deleted = FALSE AND content ILIKE '%' || $2 || '%' ESCAPE '\'
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	var messages []*domain.Message
	err := retryRead(ctx, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, sql, roomID, escapeLikePattern(query), limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		messages = messages[:0]
		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return rows.Err()
	})

	if err != nil {
		r.log.Error("Failed to search messages", "error", err)
		return nil, err
	}

	return messages, nil
}

// UnreadCount counts messages created after the reference point,
// excluding the user's own messages and tombstones. A nil since means
// the user has never read the room and everything counts.
func (r *messageRepository) UnreadCount(ctx context.Context, roomID, userID uuid.UUID, since *time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE room_id = $1
		  AND is_deleted = FALSE
		  AND (sender_id IS NULL OR sender_id != $2)
	`
	args := []interface{}{roomID, userID}

	if since != nil {
		query += ` AND created_at > $3`
		args = append(args, *since)
	}

	var count int
	err := retryRead(ctx, func(ctx context.Context) error {
		return r.db.QueryRow(ctx, query, args...).Scan(&count)
	})

	if err != nil {
		r.log.Error("Failed to count unread messages", "error", err)
		return 0, err
	}

	return count, nil
}

func (r *messageRepository) LatestInRoom(ctx context.Context, roomID uuid.UUID) (*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	message, err := scanMessage(r.db.QueryRow(ctx, query, roomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMessageNotFound
		}
		r.log.Error("Failed to get latest message", "error", err)
		return nil, err
	}

	return message, nil
}

func (r *messageRepository) AddMentions(ctx context.Context, messageID uuid.UUID, userIDs []uuid.UUID) error {
	query := `
		INSERT INTO message_mentions (message_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (message_id, user_id) DO NOTHING
	`

	for _, userID := range userIDs {
		if _, err := r.db.Exec(ctx, query, messageID, userID); err != nil {
			r.log.Error("Failed to add mention", "error", err, "user_id", userID)
			return err
		}
	}

	return nil
}

func (r *messageRepository) ListMentions(ctx context.Context, messageID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT user_id FROM message_mentions WHERE message_id = $1`

	rows, err := r.db.Query(ctx, query, messageID)
	if err != nil {
		r.log.Error("Failed to list mentions", "error", err)
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

func (r *messageRepository) AddReaction(ctx context.Context, reaction *domain.MessageReaction) error {
	query := `
		INSERT INTO message_reactions (message_id, user_id, emoji, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.Exec(ctx, query, reaction.MessageID, reaction.UserID, reaction.Emoji, reaction.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return apperrors.ErrMessageNotFound
		}
		r.log.Error("Failed to add reaction", "error", err)
		return err
	}

	return nil
}

func (r *messageRepository) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error) {
	query := `DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3`

	tag, err := r.db.Exec(ctx, query, messageID, userID, emoji)
	if err != nil {
		r.log.Error("Failed to remove reaction", "error", err)
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

func (r *messageRepository) HasReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM message_reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, messageID, userID, emoji).Scan(&exists); err != nil {
		r.log.Error("Failed to check reaction", "error", err)
		return false, err
	}

	return exists, nil
}

func (r *messageRepository) ListReactions(ctx context.Context, messageID uuid.UUID) ([]*domain.MessageReaction, error) {
	query := `
		SELECT message_id, user_id, emoji, created_at
		FROM message_reactions
		WHERE message_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, messageID)
	if err != nil {
		r.log.Error("Failed to list reactions", "error", err)
		return nil, err
	}
	defer rows.Close()

	var reactions []*domain.MessageReaction
	for rows.Next() {
		reaction := &domain.MessageReaction{}
		if err := rows.Scan(&reaction.MessageID, &reaction.UserID, &reaction.Emoji, &reaction.CreatedAt); err != nil {
			return nil, err
		}
		reactions = append(reactions, reaction)
	}

	return reactions, rows.Err()
}
