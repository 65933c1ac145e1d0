package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	apperrors "community_chat/pkg/errors"
	"community_chat/pkg/logger"
)

type Repositories struct {
	User      UserRepository
	Room      RoomRepository
	Message   MessageRepository
	Activity  ActivityRepository
	Presence  PresenceRepository
	Typing    TypingRepository
	RateLimit RateLimitRepository
}

func NewRepositories(db *pgxpool.Pool, rdb *redis.Client, log logger.Logger) *Repositories {
	return &Repositories{
		User:      NewUserRepository(db, log),
		Room:      NewRoomRepository(db, log),
		Message:   NewMessageRepository(db, log),
		Activity:  NewActivityRepository(db, log),
		Presence:  NewPresenceRepository(rdb, log),
		Typing:    NewTypingRepository(rdb, log),
		RateLimit: NewRateLimitRepository(rdb, log),
	}
}

// isUniqueViolation reports a duplicate-key insert so callers can map it
// to conflict or idempotent-success semantics.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// retryRead runs a read query and retries it once on transient storage
// errors. Domain errors pass through untouched; writes are never routed
// through here to avoid duplicating side effects.
func retryRead(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || isDomainError(err) || ctx.Err() != nil {
		return err
	}
	return fn(ctx)
}

func isDomainError(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrRoomNotFound) ||
		errors.Is(err, apperrors.ErrMessageNotFound) ||
		errors.Is(err, apperrors.ErrUserNotFound) ||
		errors.Is(err, apperrors.ErrConflict)
}
