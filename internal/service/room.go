package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"community_chat/internal/config"
	"community_chat/internal/domain"
	"community_chat/internal/repository"
	apperrors "community_chat/pkg/errors"
	"community_chat/pkg/logger"
)

type RoomService interface {
	CreateRoom(ctx context.Context, creatorID uuid.UUID, input CreateRoomInput) (*domain.Room, error)
	GetRoom(ctx context.Context, roomID, userID uuid.UUID) (*domain.RoomSummary, error)
	JoinRoom(ctx context.Context, roomID, userID uuid.UUID) error
	LeaveRoom(ctx context.Context, roomID, userID uuid.UUID) error
	UpdateRoom(ctx context.Context, roomID, userID uuid.UUID, name, description *string) (*domain.Room, error)
	SetLinkedRef(ctx context.Context, roomID uuid.UUID, linkedRef *string) error
	RoomData(ctx context.Context, roomID, userID uuid.UUID) (*domain.RoomDataEvent, error)

	Membership(ctx context.Context, roomID, userID uuid.UUID) (*domain.Membership, error)
	ListMembers(ctx context.Context, roomID, userID uuid.UUID) ([]*domain.Membership, error)
	SetMuted(ctx context.Context, roomID, userID uuid.UUID, muted bool) error
	SetPinned(ctx context.Context, roomID, userID uuid.UUID, pinned bool) error
	MarkRead(ctx context.Context, roomID, userID uuid.UUID) error

	RoomList(ctx context.Context, userID uuid.UUID) ([]*domain.RoomSummary, error)
	RoomListSnapshot(ctx context.Context, userID uuid.UUID) (*domain.RoomListUpdateEvent, error)
}

type CreateRoomInput struct {
	Name        string      `json:"name"`
	RoomType    string      `json:"room_type"`
	Description string      `json:"description"`
	MemberIDs   []uuid.UUID `json:"member_ids"`
}

type roomService struct {
	roomRepo     repository.RoomRepository
	userRepo     repository.UserRepository
	messageRepo  repository.MessageRepository
	activityRepo repository.ActivityRepository
	presence     PresenceService
	publisher    EventPublisher
	cfg          config.ChatConfig
	log          logger.Logger
}

func NewRoomService(
	roomRepo repository.RoomRepository,
	userRepo repository.UserRepository,
	messageRepo repository.MessageRepository,
	activityRepo repository.ActivityRepository,
	presence PresenceService,
	publisher EventPublisher,
	cfg config.ChatConfig,
	log logger.Logger,
) RoomService {
	return &roomService{
		roomRepo:     roomRepo,
		userRepo:     userRepo,
		messageRepo:  messageRepo,
		activityRepo: activityRepo,
		presence:     presence,
		publisher:    publisher,
		cfg:          cfg,
		log:          log,
	}
}

func (s *roomService) CreateRoom(ctx context.Context, creatorID uuid.UUID, input CreateRoomInput) (*domain.Room, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)

	if !domain.ValidRoomType(input.RoomType) {
		return nil, apperrors.ErrInvalidRoomType
	}

	if input.RoomType == domain.RoomTypeDirect {
		return s.createDirectRoom(ctx, creatorID, input)
	}

	if input.Name == "" {
		return nil, fmt.Errorf("%w: room name is required", apperrors.ErrValidation)
	}
	if len(input.Name) > 200 {
		return nil, fmt.Errorf("%w: room name is too long", apperrors.ErrValidation)
	}

	now := time.Now()
	room := &domain.Room{
		ID:           uuid.New(),
		Name:         input.Name,
		RoomType:     input.RoomType,
		Description:  input.Description,
		CreatorID:    &creatorID,
		IsActive:     true,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	memberships := []*domain.Membership{{
		RoomID:   room.ID,
		UserID:   creatorID,
		Role:     domain.MemberRoleAdmin,
		JoinedAt: now,
	}}
	for _, memberID := range input.MemberIDs {
		if memberID == creatorID {
			continue
		}
		memberships = append(memberships, &domain.Membership{
			RoomID:   room.ID,
			UserID:   memberID,
			Role:     domain.MemberRoleMember,
			JoinedAt: now,
		})
	}

	if err := s.roomRepo.Create(ctx, room, memberships); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, domain.ActivityRoomCreated, room.ID, &creatorID, nil)
	s.publisher.Publish(TopicRoomList, domain.NewRoomUpdateEvent(domain.RoomActionCreated, room))
	return room, nil
}

// createDirectRoom returns the existing conversation when the pair
// already has one, so repeated creates converge on a single room.
func (s *roomService) createDirectRoom(ctx context.Context, creatorID uuid.UUID, input CreateRoomInput) (*domain.Room, error) {
	var otherID uuid.UUID
	for _, memberID := range input.MemberIDs {
		if memberID == creatorID || memberID == otherID {
			continue
		}
		if otherID != uuid.Nil {
			return nil, fmt.Errorf("%w: direct room requires exactly one other member", apperrors.ErrValidation)
		}
		otherID = memberID
	}
	if otherID == uuid.Nil {
		return nil, fmt.Errorf("%w: direct room requires exactly one other member", apperrors.ErrValidation)
	}

	existing, err := s.roomRepo.FindDirectRoom(ctx, creatorID, otherID)
	if err != nil && !errors.Is(err, apperrors.ErrRoomNotFound) {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	other, err := s.userRepo.GetByID(ctx, otherID)
	if err != nil {
		return nil, apperrors.ErrUserNotFound
	}

	now := time.Now()
	room := &domain.Room{
		ID:           uuid.New(),
		Name:         directRoomName(creatorID, other.ID),
		RoomType:     domain.RoomTypeDirect,
		CreatorID:    &creatorID,
		IsActive:     true,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	memberships := []*domain.Membership{
		{RoomID: room.ID, UserID: creatorID, Role: domain.MemberRoleMember, JoinedAt: now},
		{RoomID: room.ID, UserID: other.ID, Role: domain.MemberRoleMember, JoinedAt: now},
	}

	if err := s.roomRepo.Create(ctx, room, memberships); err != nil {
		// Lost the race against a concurrent create for the same pair.
		if errors.Is(err, apperrors.ErrConflict) {
			if existing, findErr := s.roomRepo.FindDirectRoom(ctx, creatorID, otherID); findErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}

	s.recordActivity(ctx, domain.ActivityRoomCreated, room.ID, &creatorID, nil)
	s.publisher.Publish(TopicRoomList, domain.NewRoomUpdateEvent(domain.RoomActionCreated, room))
	return room, nil
}

// directRoomName orders the pair so both directions produce the same
// name; the schema's unique index on direct names relies on it.
func directRoomName(a, b uuid.UUID) string {
	lo, hi := a.String(), b.String()
	if lo > hi {
		lo, hi = hi, lo
	}
	return "direct:" + lo + ":" + hi
}

func (s *roomService) GetRoom(ctx context.Context, roomID, userID uuid.UUID) (*domain.RoomSummary, error) {
	membership, err := s.roomRepo.GetMembership(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}

	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	return s.buildSummary(ctx, room, membership, userID)
}

func (s *roomService) JoinRoom(ctx context.Context, roomID, userID uuid.UUID) error {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsActive {
		return apperrors.ErrRoomNotFound
	}
	if room.RoomType == domain.RoomTypeDirect {
		return apperrors.ErrForbidden
	}

	membership := &domain.Membership{
		RoomID:   roomID,
		UserID:   userID,
		Role:     domain.MemberRoleMember,
		JoinedAt: time.Now(),
	}
	if err := s.roomRepo.AddMember(ctx, membership); err != nil {
		return err
	}

	s.recordActivity(ctx, domain.ActivityUserJoined, roomID, &userID, nil)
	s.postSystemMessage(ctx, roomID, s.senderName(ctx, &userID)+" joined the room")
	s.broadcastMemberUpdate(ctx, roomID, domain.MemberActionJoined, userID)
	return nil
}

func (s *roomService) LeaveRoom(ctx context.Context, roomID, userID uuid.UUID) error {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.RoomType == domain.RoomTypeDirect {
		return apperrors.ErrForbidden
	}

	if err := s.roomRepo.RemoveMember(ctx, roomID, userID); err != nil {
		return err
	}

	s.recordActivity(ctx, domain.ActivityUserLeft, roomID, &userID, nil)
	s.postSystemMessage(ctx, roomID, s.senderName(ctx, &userID)+" left the room")
	s.broadcastMemberUpdate(ctx, roomID, domain.MemberActionLeft, userID)
	return nil
}

func (s *roomService) UpdateRoom(ctx context.Context, roomID, userID uuid.UUID, name, description *string) (*domain.Room, error) {
	membership, err := s.roomRepo.GetMembership(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !domain.CanModerate(membership.Role) {
		return nil, apperrors.ErrForbidden
	}

	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.RoomType == domain.RoomTypeDirect {
		return nil, apperrors.ErrForbidden
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: room name is required", apperrors.ErrValidation)
		}
		room.Name = trimmed
	}
	if description != nil {
		room.Description = strings.TrimSpace(*description)
	}
	room.UpdatedAt = time.Now()

	if err := s.roomRepo.Update(ctx, room); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, domain.ActivityRoomUpdated, roomID, &userID, nil)
	event := domain.NewRoomUpdateEvent(domain.RoomActionUpdated, room)
	s.publisher.Publish(RoomTopic(roomID), event)
	s.publisher.Publish(TopicRoomList, event)
	return room, nil
}

// SetLinkedRef is called when the external object a room is attached to
// changes. It never touches memberships or history.
func (s *roomService) SetLinkedRef(ctx context.Context, roomID uuid.UUID, linkedRef *string) error {
	if _, err := s.roomRepo.GetByID(ctx, roomID); err != nil {
		return err
	}
	return s.roomRepo.SetLinkedRef(ctx, roomID, linkedRef)
}

// RoomData bundles the summary and member roster a room channel client
// re-hydrates from.
func (s *roomService) RoomData(ctx context.Context, roomID, userID uuid.UUID) (*domain.RoomDataEvent, error) {
	summary, err := s.GetRoom(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}

	memberIDs, err := s.roomRepo.MemberIDs(ctx, roomID)
	if err != nil {
		return nil, err
	}
	members := make([]*domain.UserRef, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		user, err := s.userRepo.GetByID(ctx, memberID)
		if err != nil {
			continue
		}
		members = append(members, userRef(user))
	}

	event := domain.NewRoomDataEvent(summary, members)
	return &event, nil
}

func (s *roomService) Membership(ctx context.Context, roomID, userID uuid.UUID) (*domain.Membership, error) {
	return s.roomRepo.GetMembership(ctx, roomID, userID)
}

func (s *roomService) ListMembers(ctx context.Context, roomID, userID uuid.UUID) ([]*domain.Membership, error) {
	if _, err := s.roomRepo.GetMembership(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.roomRepo.ListMembers(ctx, roomID)
}

func (s *roomService) SetMuted(ctx context.Context, roomID, userID uuid.UUID, muted bool) error {
	return s.roomRepo.SetMuted(ctx, roomID, userID, muted)
}

func (s *roomService) SetPinned(ctx context.Context, roomID, userID uuid.UUID, pinned bool) error {
	return s.roomRepo.SetPinned(ctx, roomID, userID, pinned)
}

func (s *roomService) MarkRead(ctx context.Context, roomID, userID uuid.UUID) error {
	if _, err := s.roomRepo.GetMembership(ctx, roomID, userID); err != nil {
		return err
	}
	if err := s.roomRepo.SetLastRead(ctx, roomID, userID, time.Now()); err != nil {
		return err
	}

	s.publisher.Publish(UserTopic(userID), domain.NewReadStatusUpdateEvent(roomID, 0))
	return nil
}

func (s *roomService) RoomList(ctx context.Context, userID uuid.UUID) ([]*domain.RoomSummary, error) {
	rooms, err := s.roomRepo.ListForUser(ctx, userID, s.cfg.RoomListLimit)
	if err != nil {
		return nil, err
	}

	summaries := make([]*domain.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		membership, err := s.roomRepo.GetMembership(ctx, room.ID, userID)
		if err != nil {
			s.log.Warn("Membership missing for listed room", "error", err, "room_id", room.ID, "user_id", userID)
			continue
		}
		summary, err := s.buildSummary(ctx, room, membership, userID)
		if err != nil {
			s.log.Warn("Failed to build room summary", "error", err, "room_id", room.ID)
			continue
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

func (s *roomService) RoomListSnapshot(ctx context.Context, userID uuid.UUID) (*domain.RoomListUpdateEvent, error) {
	summaries, err := s.RoomList(ctx, userID)
	if err != nil {
		return nil, err
	}

	onlineUsers, err := s.presence.OnlineUsers(ctx, s.cfg.OnlineUsersLimit)
	if err != nil {
		s.log.Warn("Failed to load online users for snapshot", "error", err)
	}
	online := make([]*domain.UserRef, 0, len(onlineUsers))
	for _, u := range onlineUsers {
		online = append(online, userRef(u))
	}

	activities, err := s.activityRepo.ListRecent(ctx, s.cfg.RecentActivityLimit)
	if err != nil {
		s.log.Warn("Failed to load recent activities for snapshot", "error", err)
	}

	event := domain.NewRoomListUpdateEvent(summaries, online, activities)
	return &event, nil
}

func (s *roomService) buildSummary(ctx context.Context, room *domain.Room, membership *domain.Membership, userID uuid.UUID) (*domain.RoomSummary, error) {
	memberIDs, err := s.roomRepo.MemberIDs(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	onlineCount, err := s.presence.OnlineCountAmong(ctx, memberIDs)
	if err != nil {
		s.log.Warn("Failed to count online members", "error", err, "room_id", room.ID)
	}

	unread, err := s.messageRepo.UnreadCount(ctx, room.ID, userID, membership.LastReadAt)
	if err != nil {
		s.log.Warn("Failed to count unread messages", "error", err, "room_id", room.ID)
	}

	summary := &domain.RoomSummary{
		Room:        room,
		Role:        membership.Role,
		IsMuted:     membership.IsMuted,
		IsPinned:    membership.IsPinned,
		MemberCount: len(memberIDs),
		OnlineCount: onlineCount,
		UnreadCount: unread,
	}

	if latest, err := s.messageRepo.LatestInRoom(ctx, room.ID); err == nil && latest != nil {
		summary.LastMessage = latest.Preview(s.senderName(ctx, latest.SenderID))
	}

	if room.RoomType == domain.RoomTypeDirect {
		for _, memberID := range memberIDs {
			if memberID == userID {
				continue
			}
			if other, err := s.userRepo.GetByID(ctx, memberID); err == nil {
				other.PasswordHash = ""
				summary.OtherUser = other
			}
			break
		}
	}

	return summary, nil
}

func (s *roomService) senderName(ctx context.Context, senderID *uuid.UUID) string {
	if senderID == nil {
		return "system"
	}
	user, err := s.userRepo.GetByID(ctx, *senderID)
	if err != nil {
		return "unknown"
	}
	return user.DisplayOrUsername()
}

func (s *roomService) broadcastMemberUpdate(ctx context.Context, roomID uuid.UUID, action string, userID uuid.UUID) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.log.Warn("Failed to load user for member update", "error", err, "user_id", userID)
		return
	}

	memberIDs, err := s.roomRepo.MemberIDs(ctx, roomID)
	if err != nil {
		s.log.Warn("Failed to count members for member update", "error", err, "room_id", roomID)
		return
	}
	onlineCount, _ := s.presence.OnlineCountAmong(ctx, memberIDs)

	event := domain.NewRoomMemberUpdateEvent(roomID, action, *userRef(user), len(memberIDs), onlineCount)
	s.publisher.Publish(RoomTopic(roomID), event)
	s.publisher.Publish(TopicRoomList, event)
}

// postSystemMessage drops a sender-less system line into the room feed.
// Failures are logged and swallowed since the membership change itself
// already succeeded.
func (s *roomService) postSystemMessage(ctx context.Context, roomID uuid.UUID, content string) {
	now := time.Now()
	msg := &domain.Message{
		ID:          uuid.New(),
		RoomID:      roomID,
		MessageType: domain.MessageTypeSystem,
		Content:     content,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		s.log.Warn("Failed to post system message", "error", err, "room_id", roomID)
		return
	}
	s.publisher.Publish(RoomTopic(roomID), domain.NewChatMessageEvent(msg, nil))
}

func (s *roomService) recordActivity(ctx context.Context, eventType string, roomID uuid.UUID, userID *uuid.UUID, messageID *uuid.UUID) {
	entry := &domain.ActivityEntry{
		EventType: eventType,
		RoomID:    roomID,
		UserID:    userID,
		MessageID: messageID,
		CreatedAt: time.Now(),
	}
	if err := s.activityRepo.Record(ctx, entry); err != nil {
		s.log.Warn("Failed to record activity", "error", err, "event_type", eventType)
	}
}
