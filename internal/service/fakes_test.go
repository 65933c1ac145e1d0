package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"community_chat/internal/domain"
	apperrors "community_chat/pkg/errors"
)

// In-memory doubles for the repository interfaces. They implement just
// enough semantics for the service tests to exercise real flows.

type publishedEvent struct {
	topic string
	event domain.Event
}

type fakePublisher struct {
	mu        sync.Mutex
	published []publishedEvent
}

func (p *fakePublisher) Publish(topic string, event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, publishedEvent{topic: topic, event: event})
}

func (p *fakePublisher) byType(eventType string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, pe := range p.published {
		if pe.event.EventType() == eventType {
			out = append(out, pe)
		}
	}
	return out
}

type mentionNotice struct {
	roomID      uuid.UUID
	messageID   uuid.UUID
	mentionedID uuid.UUID
	senderID    uuid.UUID
}

type fakeMentionNotifier struct {
	mu      sync.Mutex
	notices []mentionNotice
}

func (n *fakeMentionNotifier) NotifyMention(roomID, messageID, mentionedID, senderID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, mentionNotice{
		roomID:      roomID,
		messageID:   messageID,
		mentionedID: mentionedID,
		senderID:    senderID,
	})
}

type fakeUserRepo struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*domain.User
	sessions map[string]*domain.UserSession
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:    make(map[uuid.UUID]*domain.User),
		sessions: make(map[string]*domain.UserSession),
	}
}

func (r *fakeUserRepo) add(username string) *domain.User {
	user := &domain.User{
		ID:       uuid.New(),
		Username: username,
		Email:    username + "@example.com",
		IsActive: true,
	}
	r.mu.Lock()
	r.users[user.ID] = user
	r.mu.Unlock()
	return user
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return apperrors.ErrConflict
		}
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *fakeUserRepo) GetByUsernames(ctx context.Context, usernames []string) ([]*domain.User, error) {
	var out []*domain.User
	for _, name := range usernames {
		if user, err := r.GetByUsername(ctx, name); err == nil {
			out = append(out, user)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return apperrors.ErrUserNotFound
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) CreateSession(ctx context.Context, session *domain.UserSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.RefreshTokenHash] = session
	return nil
}

func (r *fakeUserRepo) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.UserSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[tokenHash]
	if !ok || session.RevokedAt != nil || time.Now().After(session.ExpiresAt) {
		return nil, apperrors.ErrNotFound
	}
	return session, nil
}

func (r *fakeUserRepo) RevokeSession(ctx context.Context, sessionID uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.ID == sessionID {
			now := time.Now()
			session.RevokedAt = &now
			session.RevokedReason = &reason
			return nil
		}
	}
	return apperrors.ErrNotFound
}

type fakeRoomRepo struct {
	mu          sync.Mutex
	rooms       map[uuid.UUID]*domain.Room
	memberships map[uuid.UUID]map[uuid.UUID]*domain.Membership
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{
		rooms:       make(map[uuid.UUID]*domain.Room),
		memberships: make(map[uuid.UUID]map[uuid.UUID]*domain.Membership),
	}
}

func (r *fakeRoomRepo) Create(ctx context.Context, room *domain.Room, memberships []*domain.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rooms {
		if existing.RoomType == domain.RoomTypeDirect && existing.Name == room.Name {
			return apperrors.ErrConflict
		}
	}
	r.rooms[room.ID] = room
	r.memberships[room.ID] = make(map[uuid.UUID]*domain.Membership)
	for _, m := range memberships {
		r.memberships[room.ID][m.UserID] = m
	}
	return nil
}

func (r *fakeRoomRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, apperrors.ErrRoomNotFound
	}
	return room, nil
}

func (r *fakeRoomRepo) FindDirectRoom(ctx context.Context, userA, userB uuid.UUID) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, room := range r.rooms {
		if room.RoomType != domain.RoomTypeDirect {
			continue
		}
		members := r.memberships[id]
		if _, okA := members[userA]; !okA {
			continue
		}
		if _, okB := members[userB]; okB {
			return room, nil
		}
	}
	return nil, apperrors.ErrRoomNotFound
}

func (r *fakeRoomRepo) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Room
	for id, room := range r.rooms {
		if !room.IsActive {
			continue
		}
		if _, ok := r.memberships[id][userID]; ok {
			out = append(out, room)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi := r.memberships[out[i].ID][userID].IsPinned
		pj := r.memberships[out[j].ID][userID].IsPinned
		if pi != pj {
			return pi
		}
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRoomRepo) Update(ctx context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room.ID]; !ok {
		return apperrors.ErrRoomNotFound
	}
	r.rooms[room.ID] = room
	return nil
}

func (r *fakeRoomRepo) SetLinkedRef(ctx context.Context, roomID uuid.UUID, linkedRef *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return apperrors.ErrRoomNotFound
	}
	room.LinkedRef = linkedRef
	return nil
}

func (r *fakeRoomRepo) TouchActivity(ctx context.Context, roomID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomID]; ok {
		room.LastActivity = time.Now()
	}
	return nil
}

func (r *fakeRoomRepo) AddMember(ctx context.Context, membership *domain.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.memberships[membership.RoomID]
	if !ok {
		return apperrors.ErrRoomNotFound
	}
	if _, exists := members[membership.UserID]; exists {
		return apperrors.ErrAlreadyMember
	}
	members[membership.UserID] = membership
	return nil
}

func (r *fakeRoomRepo) GetMembership(ctx context.Context, roomID, userID uuid.UUID) (*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	membership, ok := r.memberships[roomID][userID]
	if !ok {
		return nil, apperrors.ErrNotAMember
	}
	clone := *membership
	return &clone, nil
}

func (r *fakeRoomRepo) RemoveMember(ctx context.Context, roomID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.memberships[roomID][userID]; !ok {
		return apperrors.ErrNotAMember
	}
	delete(r.memberships[roomID], userID)
	return nil
}

func (r *fakeRoomRepo) ListMembers(ctx context.Context, roomID uuid.UUID) ([]*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Membership
	for _, m := range r.memberships[roomID] {
		clone := *m
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeRoomRepo) MemberCount(ctx context.Context, roomID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.memberships[roomID]), nil
}

func (r *fakeRoomRepo) MemberIDs(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uuid.UUID
	for id := range r.memberships[roomID] {
		out = append(out, id)
	}
	return out, nil
}

func (r *fakeRoomRepo) SetMuted(ctx context.Context, roomID, userID uuid.UUID, muted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	membership, ok := r.memberships[roomID][userID]
	if !ok {
		return apperrors.ErrNotAMember
	}
	membership.IsMuted = muted
	return nil
}

func (r *fakeRoomRepo) SetPinned(ctx context.Context, roomID, userID uuid.UUID, pinned bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	membership, ok := r.memberships[roomID][userID]
	if !ok {
		return apperrors.ErrNotAMember
	}
	membership.IsPinned = pinned
	return nil
}

func (r *fakeRoomRepo) SetLastRead(ctx context.Context, roomID, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	membership, ok := r.memberships[roomID][userID]
	if !ok {
		return apperrors.ErrNotAMember
	}
	membership.LastReadAt = &at
	return nil
}

type reactionKey struct {
	messageID uuid.UUID
	userID    uuid.UUID
	emoji     string
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  map[uuid.UUID]*domain.Message
	order     []uuid.UUID
	mentions  map[uuid.UUID][]uuid.UUID
	reactions map[reactionKey]*domain.MessageReaction
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		messages:  make(map[uuid.UUID]*domain.Message),
		mentions:  make(map[uuid.UUID][]uuid.UUID),
		reactions: make(map[reactionKey]*domain.MessageReaction),
	}
}

func (r *fakeMessageRepo) Create(ctx context.Context, message *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *message
	r.messages[message.ID] = &clone
	r.order = append(r.order, message.ID)
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	message, ok := r.messages[id]
	if !ok {
		return nil, apperrors.ErrMessageNotFound
	}
	clone := *message
	return &clone, nil
}

func (r *fakeMessageRepo) List(ctx context.Context, roomID uuid.UUID, before *domain.MessageCursor, limit int) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		m := r.messages[r.order[i]]
		if m.RoomID != roomID || m.IsDeleted {
			continue
		}
		if before != nil && !m.CreatedAt.Before(before.CreatedAt) {
			continue
		}
		clone := *m
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeMessageRepo) Update(ctx context.Context, message *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[message.ID]; !ok {
		return apperrors.ErrMessageNotFound
	}
	clone := *message
	r.messages[message.ID] = &clone
	return nil
}

func (r *fakeMessageRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	message, ok := r.messages[id]
	if !ok {
		return apperrors.ErrMessageNotFound
	}
	message.IsDeleted = true
	return nil
}

func (r *fakeMessageRepo) Search(ctx context.Context, roomID uuid.UUID, query string, limit int) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for _, id := range r.order {
		m := r.messages[id]
		if m.RoomID != roomID || m.IsDeleted {
			continue
		}
		if strings.Contains(strings.ToLower(m.Content), strings.ToLower(query)) {
			clone := *m
			out = append(out, &clone)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) UnreadCount(ctx context.Context, roomID, userID uuid.UUID, since *time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.messages {
		if m.RoomID != roomID || m.IsDeleted {
			continue
		}
		if m.SenderID != nil && *m.SenderID == userID {
			continue
		}
		if since != nil && !m.CreatedAt.After(*since) {
			continue
		}
		count++
	}
	return count, nil
}

func (r *fakeMessageRepo) LatestInRoom(ctx context.Context, roomID uuid.UUID) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		m := r.messages[r.order[i]]
		if m.RoomID == roomID && !m.IsDeleted {
			clone := *m
			return &clone, nil
		}
	}
	return nil, apperrors.ErrMessageNotFound
}

func (r *fakeMessageRepo) AddMentions(ctx context.Context, messageID uuid.UUID, userIDs []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mentions[messageID] = append(r.mentions[messageID], userIDs...)
	return nil
}

func (r *fakeMessageRepo) ListMentions(ctx context.Context, messageID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.mentions[messageID]...), nil
}

func (r *fakeMessageRepo) AddReaction(ctx context.Context, reaction *domain.MessageReaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := reactionKey{reaction.MessageID, reaction.UserID, reaction.Emoji}
	if _, exists := r.reactions[key]; exists {
		return apperrors.ErrConflict
	}
	r.reactions[key] = reaction
	return nil
}

func (r *fakeMessageRepo) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := reactionKey{messageID, userID, emoji}
	if _, exists := r.reactions[key]; !exists {
		return false, nil
	}
	delete(r.reactions, key)
	return true, nil
}

func (r *fakeMessageRepo) HasReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.reactions[reactionKey{messageID, userID, emoji}]
	return exists, nil
}

func (r *fakeMessageRepo) ListReactions(ctx context.Context, messageID uuid.UUID) ([]*domain.MessageReaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.MessageReaction
	for key, reaction := range r.reactions {
		if key.messageID == messageID {
			out = append(out, reaction)
		}
	}
	return out, nil
}

type fakeActivityRepo struct {
	mu      sync.Mutex
	entries []*domain.ActivityEntry
	nextID  int64
}

func (r *fakeActivityRepo) Record(ctx context.Context, entry *domain.ActivityEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entry.ID = r.nextID
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeActivityRepo) ListRecent(ctx context.Context, limit int) ([]*domain.ActivityEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]*domain.ActivityEntry(nil), r.entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeActivityRepo) ListForRoom(ctx context.Context, roomID uuid.UUID, limit int) ([]*domain.ActivityEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ActivityEntry
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].RoomID == roomID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

type fakePresenceRepo struct {
	mu   sync.Mutex
	seen map[uuid.UUID]time.Time
}

func newFakePresenceRepo() *fakePresenceRepo {
	return &fakePresenceRepo{seen: make(map[uuid.UUID]time.Time)}
}

func (r *fakePresenceRepo) RecordActivity(ctx context.Context, userID uuid.UUID, roomID *uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[userID] = at
	return nil
}

func (r *fakePresenceRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.PresenceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.seen[userID]
	if !ok {
		return nil, nil
	}
	return &domain.PresenceRecord{UserID: userID, LastActivity: at}, nil
}

func (r *fakePresenceRepo) GetMany(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]time.Time)
	for _, id := range userIDs {
		if at, ok := r.seen[id]; ok {
			out[id] = at
		}
	}
	return out, nil
}

func (r *fakePresenceRepo) ActiveSince(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uuid.UUID
	for id, at := range r.seen {
		if at.After(since) {
			out = append(out, id)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeTypingRepo struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]map[uuid.UUID]time.Time
}

func newFakeTypingRepo() *fakeTypingRepo {
	return &fakeTypingRepo{rooms: make(map[uuid.UUID]map[uuid.UUID]time.Time)}
}

func (r *fakeTypingRepo) Set(ctx context.Context, roomID, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[uuid.UUID]time.Time)
	}
	r.rooms[roomID][userID] = at
	return nil
}

func (r *fakeTypingRepo) Clear(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID][userID]; !ok {
		return false, nil
	}
	delete(r.rooms[roomID], userID)
	return true, nil
}

func (r *fakeTypingRepo) Active(ctx context.Context, roomID uuid.UUID, ttl time.Duration) ([]*domain.TypingIndicator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	threshold := time.Now().Add(-ttl)
	var out []*domain.TypingIndicator
	for userID, at := range r.rooms[roomID] {
		if at.After(threshold) {
			out = append(out, &domain.TypingIndicator{RoomID: roomID, UserID: userID, RefreshedAt: at})
		}
	}
	return out, nil
}

func (r *fakeTypingRepo) SweepExpired(ctx context.Context, ttl time.Duration) ([]*domain.TypingIndicator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	threshold := time.Now().Add(-ttl)
	var out []*domain.TypingIndicator
	for roomID, users := range r.rooms {
		for userID, at := range users {
			if at.Before(threshold) {
				delete(users, userID)
				out = append(out, &domain.TypingIndicator{RoomID: roomID, UserID: userID, RefreshedAt: at})
			}
		}
	}
	return out, nil
}
