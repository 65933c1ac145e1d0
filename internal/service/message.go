package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"community_chat/internal/config"
	"community_chat/internal/domain"
	"community_chat/internal/repository"
	apperrors "community_chat/pkg/errors"
	"community_chat/pkg/logger"
)

type MessageService interface {
	Send(ctx context.Context, roomID, senderID uuid.UUID, input SendMessageInput) (*domain.Message, error)
	Get(ctx context.Context, messageID, userID uuid.UUID) (*domain.Message, error)
	List(ctx context.Context, roomID, userID uuid.UUID, before *domain.MessageCursor, limit int) ([]*domain.Message, error)
	Edit(ctx context.Context, messageID, userID uuid.UUID, content string) (*domain.Message, error)
	Delete(ctx context.Context, messageID, userID uuid.UUID) error
	ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error)
	Search(ctx context.Context, roomID, userID uuid.UUID, query string) ([]*domain.Message, error)
	UnreadCount(ctx context.Context, roomID, userID uuid.UUID) (int, error)
}

type SendMessageInput struct {
	Content     string             `json:"content"`
	MessageType string             `json:"message_type"`
	ReplyToID   *uuid.UUID         `json:"reply_to_id,omitempty"`
	Attachment  *domain.Attachment `json:"attachment,omitempty"`
}

// mentionPattern matches @username tokens inside message bodies.
var mentionPattern = regexp.MustCompile(`@(\w+)`)

type messageService struct {
	messageRepo  repository.MessageRepository
	roomRepo     repository.RoomRepository
	userRepo     repository.UserRepository
	activityRepo repository.ActivityRepository
	publisher    EventPublisher
	notifier     MentionNotifier
	cfg          config.ChatConfig
	log          logger.Logger
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	roomRepo repository.RoomRepository,
	userRepo repository.UserRepository,
	activityRepo repository.ActivityRepository,
	publisher EventPublisher,
	notifier MentionNotifier,
	cfg config.ChatConfig,
	log logger.Logger,
) MessageService {
	if notifier == nil {
		notifier = NoopMentionNotifier{}
	}
	return &messageService{
		messageRepo:  messageRepo,
		roomRepo:     roomRepo,
		userRepo:     userRepo,
		activityRepo: activityRepo,
		publisher:    publisher,
		notifier:     notifier,
		cfg:          cfg,
		log:          log,
	}
}

func (s *messageService) Send(ctx context.Context, roomID, senderID uuid.UUID, input SendMessageInput) (*domain.Message, error) {
	if _, err := s.roomRepo.GetMembership(ctx, roomID, senderID); err != nil {
		return nil, err
	}

	content := strings.TrimSpace(input.Content)
	if content == "" && input.Attachment == nil {
		return nil, apperrors.ErrEmptyContent
	}
	if len(content) > s.cfg.MaxContentLength {
		return nil, fmt.Errorf("%w: message is too long", apperrors.ErrValidation)
	}

	messageType := input.MessageType
	if messageType == "" {
		messageType = domain.MessageTypeText
	}

	sender, err := s.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, apperrors.ErrUserNotFound
	}

	if input.ReplyToID != nil {
		parent, err := s.messageRepo.GetByID(ctx, *input.ReplyToID)
		if err != nil {
			return nil, apperrors.ErrMessageNotFound
		}
		if parent.RoomID != roomID {
			return nil, fmt.Errorf("%w: reply target is in another room", apperrors.ErrValidation)
		}
	}

	now := time.Now()
	message := &domain.Message{
		ID:          uuid.New(),
		RoomID:      roomID,
		SenderID:    &senderID,
		MessageType: messageType,
		Content:     content,
		Attachment:  input.Attachment,
		ReplyToID:   input.ReplyToID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	mentioned := s.resolveMentions(ctx, roomID, content)
	if len(mentioned) > 0 {
		ids := make([]uuid.UUID, 0, len(mentioned))
		for id := range mentioned {
			ids = append(ids, id)
		}
		if err := s.messageRepo.AddMentions(ctx, message.ID, ids); err != nil {
			s.log.Warn("Failed to store mentions", "error", err, "message_id", message.ID)
		} else {
			message.Mentions = ids
		}
		for _, id := range ids {
			if id != senderID {
				s.notifier.NotifyMention(roomID, message.ID, id, senderID)
			}
		}
	}

	s.hydrateReply(ctx, message)
	s.recordActivity(ctx, domain.ActivityMessageSent, roomID, &senderID, &message.ID)

	ref := userRef(sender)
	s.publisher.Publish(RoomTopic(roomID), domain.NewChatMessageEvent(message, ref))
	s.notifyMembers(ctx, message, sender, mentioned)

	return message, nil
}

// resolveMentions maps @tokens to room members. Tokens naming users
// outside the room resolve to nothing.
func (s *messageService) resolveMentions(ctx context.Context, roomID uuid.UUID, content string) map[uuid.UUID]struct{} {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	usernames := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, match := range matches {
		name := strings.ToLower(match[1])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		usernames = append(usernames, name)
	}

	users, err := s.userRepo.GetByUsernames(ctx, usernames)
	if err != nil {
		s.log.Warn("Failed to resolve mention usernames", "error", err)
		return nil
	}

	mentioned := make(map[uuid.UUID]struct{})
	for _, user := range users {
		if _, err := s.roomRepo.GetMembership(ctx, roomID, user.ID); err != nil {
			continue
		}
		mentioned[user.ID] = struct{}{}
	}

	return mentioned
}

// notifyMembers pushes per-user notifications to everyone else in the
// room. Muted memberships are skipped unless the user was mentioned.
func (s *messageService) notifyMembers(ctx context.Context, message *domain.Message, sender *domain.User, mentioned map[uuid.UUID]struct{}) {
	members, err := s.roomRepo.ListMembers(ctx, message.RoomID)
	if err != nil {
		s.log.Warn("Failed to list members for notification", "error", err, "room_id", message.RoomID)
		return
	}

	preview := message.Preview(sender.DisplayOrUsername())
	ref := *userRef(sender)

	for _, member := range members {
		if member.UserID == sender.ID {
			continue
		}
		_, isMentioned := mentioned[member.UserID]
		if member.IsMuted && !isMentioned {
			continue
		}

		unread, err := s.messageRepo.UnreadCount(ctx, message.RoomID, member.UserID, member.LastReadAt)
		if err != nil {
			s.log.Warn("Failed to count unread for notification", "error", err, "user_id", member.UserID)
		}

		s.publisher.Publish(UserTopic(member.UserID), domain.NewMessageNotification(message.RoomID, preview, ref, unread))
	}
}

// Get returns the message even when soft-deleted; callers see the
// deleted flag instead of a hole in the thread.
func (s *messageService) Get(ctx context.Context, messageID, userID uuid.UUID) (*domain.Message, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.roomRepo.GetMembership(ctx, message.RoomID, userID); err != nil {
		return nil, err
	}

	s.hydrateReply(ctx, message)
	s.hydrateReactions(ctx, message)
	return message, nil
}

func (s *messageService) List(ctx context.Context, roomID, userID uuid.UUID, before *domain.MessageCursor, limit int) ([]*domain.Message, error) {
	if _, err := s.roomRepo.GetMembership(ctx, roomID, userID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > s.cfg.MessagePageSize {
		limit = s.cfg.MessagePageSize
	}

	messages, err := s.messageRepo.List(ctx, roomID, before, limit)
	if err != nil {
		return nil, err
	}

	for _, message := range messages {
		s.hydrateReply(ctx, message)
		s.hydrateReactions(ctx, message)
	}

	return messages, nil
}

func (s *messageService) Edit(ctx context.Context, messageID, userID uuid.UUID, content string) (*domain.Message, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID == nil || *message.SenderID != userID {
		return nil, apperrors.ErrForbidden
	}
	if message.IsDeleted {
		return nil, apperrors.ErrMessageNotFound
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.ErrEmptyContent
	}
	if len(content) > s.cfg.MaxContentLength {
		return nil, fmt.Errorf("%w: message is too long", apperrors.ErrValidation)
	}

	message.Content = content
	message.IsEdited = true
	message.UpdatedAt = time.Now()

	if err := s.messageRepo.Update(ctx, message); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, domain.ActivityMessageEdited, message.RoomID, &userID, &message.ID)
	s.hydrateReply(ctx, message)
	s.publisher.Publish(RoomTopic(message.RoomID), domain.NewMessageEditedEvent(message))

	return message, nil
}

func (s *messageService) Delete(ctx context.Context, messageID, userID uuid.UUID) error {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if message.SenderID == nil || *message.SenderID != userID {
		return apperrors.ErrForbidden
	}
	if message.IsDeleted {
		return nil
	}

	if err := s.messageRepo.SoftDelete(ctx, messageID); err != nil {
		return err
	}

	s.recordActivity(ctx, domain.ActivityMessageDeleted, message.RoomID, &userID, &message.ID)
	s.publisher.Publish(RoomTopic(message.RoomID), domain.NewMessageDeletedEvent(message.RoomID, messageID))
	return nil
}

// ToggleReaction adds the reaction when absent and removes it when
// present. Returns whether the reaction is now set.
func (s *messageService) ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return false, fmt.Errorf("%w: emoji is required", apperrors.ErrValidation)
	}

	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return false, err
	}
	if message.IsDeleted {
		return false, apperrors.ErrMessageNotFound
	}
	if _, err := s.roomRepo.GetMembership(ctx, message.RoomID, userID); err != nil {
		return false, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, apperrors.ErrUserNotFound
	}

	exists, err := s.messageRepo.HasReaction(ctx, messageID, userID, emoji)
	if err != nil {
		return false, err
	}

	added := !exists
	if exists {
		if _, err := s.messageRepo.RemoveReaction(ctx, messageID, userID, emoji); err != nil {
			return false, err
		}
	} else {
		reaction := &domain.MessageReaction{
			MessageID: messageID,
			UserID:    userID,
			Emoji:     emoji,
			CreatedAt: time.Now(),
		}
		if err := s.messageRepo.AddReaction(ctx, reaction); err != nil {
			// Concurrent add of the same reaction; treat as already set.
			if errors.Is(err, apperrors.ErrConflict) {
				return true, nil
			}
			return false, err
		}
	}

	event := domain.NewMessageReactionEvent(message.RoomID, messageID, *userRef(user), emoji, added)
	s.publisher.Publish(RoomTopic(message.RoomID), event)
	return added, nil
}

func (s *messageService) Search(ctx context.Context, roomID, userID uuid.UUID, query string) ([]*domain.Message, error) {
	if _, err := s.roomRepo.GetMembership(ctx, roomID, userID); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < 2 {
		return nil, apperrors.ErrInvalidQuery
	}

	return s.messageRepo.Search(ctx, roomID, query, s.cfg.SearchLimit)
}

func (s *messageService) UnreadCount(ctx context.Context, roomID, userID uuid.UUID) (int, error) {
	membership, err := s.roomRepo.GetMembership(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}
	return s.messageRepo.UnreadCount(ctx, roomID, userID, membership.LastReadAt)
}

func (s *messageService) hydrateReply(ctx context.Context, message *domain.Message) {
	if message.ReplyToID == nil || message.ReplyTo != nil {
		return
	}
	parent, err := s.messageRepo.GetByID(ctx, *message.ReplyToID)
	if err != nil {
		return
	}

	senderName := "system"
	if parent.SenderID != nil {
		if sender, err := s.userRepo.GetByID(ctx, *parent.SenderID); err == nil {
			senderName = sender.DisplayOrUsername()
		}
	}
	message.ReplyTo = parent.Preview(senderName)
}

func (s *messageService) hydrateReactions(ctx context.Context, message *domain.Message) {
	reactions, err := s.messageRepo.ListReactions(ctx, message.ID)
	if err != nil {
		s.log.Warn("Failed to load reactions", "error", err, "message_id", message.ID)
		return
	}
	message.Reactions = reactions
}

func (s *messageService) recordActivity(ctx context.Context, eventType string, roomID uuid.UUID, userID *uuid.UUID, messageID *uuid.UUID) {
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
