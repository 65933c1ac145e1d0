package domain

import (
	"time"

	"github.com/google/uuid"
)

type PresenceRecord struct {
	UserID        uuid.UUID  `json:"user_id"`
	LastActivity  time.Time  `json:"last_activity"`
	CurrentRoomID *uuid.UUID `json:"current_room_id,omitempty"`
}

// Online derives the status from activity recency against the canonical
// threshold; presence is never stored as a boolean.
func (p *PresenceRecord) Online(now time.Time, threshold time.Duration) bool {
	return now.Sub(p.LastActivity) < threshold
}

type TypingIndicator struct {
	RoomID      uuid.UUID `json:"room_id"`
	UserID      uuid.UUID `json:"user_id"`
	RefreshedAt time.Time `json:"refreshed_at"`
}
