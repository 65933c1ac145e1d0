package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community_chat/internal/domain"
	apperrors "community_chat/pkg/errors"
)

func TestRoomService_CreateRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("group room with members", func(t *testing.T) {
		env := newTestEnv()
		creator := env.users.add("alice")
		other := env.users.add("bob")

		room, err := env.Room.CreateRoom(ctx, creator.ID, CreateRoomInput{
			Name:      "general",
			RoomType:  domain.RoomTypeGroup,
			MemberIDs: []uuid.UUID{other.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, "general", room.Name)

		membership, err := env.Room.Membership(ctx, room.ID, creator.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.MemberRoleAdmin, membership.Role)

		membership, err = env.Room.Membership(ctx, room.ID, other.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.MemberRoleMember, membership.Role)
	})

	t.Run("invalid room type", func(t *testing.T) {
		env := newTestEnv()
		creator := env.users.add("alice")

		_, err := env.Room.CreateRoom(ctx, creator.ID, CreateRoomInput{Name: "x", RoomType: "broadcast"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidRoomType)
	})

	t.Run("group room requires a name", func(t *testing.T) {
		env := newTestEnv()
		creator := env.users.add("alice")

		_, err := env.Room.CreateRoom(ctx, creator.ID, CreateRoomInput{Name: "  ", RoomType: domain.RoomTypeGroup})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestRoomService_DirectRoomIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	alice := env.users.add("alice")
	bob := env.users.add("bob")

	first, err := env.Room.CreateRoom(ctx, alice.ID, CreateRoomInput{
		RoomType:  domain.RoomTypeDirect,
		MemberIDs: []uuid.UUID{bob.ID},
	})
	require.NoError(t, err)

	// Same pair from either side converges on one conversation.
	again, err := env.Room.CreateRoom(ctx, alice.ID, CreateRoomInput{
		RoomType:  domain.RoomTypeDirect,
		MemberIDs: []uuid.UUID{bob.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	reversed, err := env.Room.CreateRoom(ctx, bob.ID, CreateRoomInput{
		RoomType:  domain.RoomTypeDirect,
		MemberIDs: []uuid.UUID{alice.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, reversed.ID)

	// A direct room is strictly a pair; a third distinct member is
	// rejected rather than silently dropped.
	carol := env.users.add("carol")
	_, err = env.Room.CreateRoom(ctx, alice.ID, CreateRoomInput{
		RoomType:  domain.RoomTypeDirect,
		MemberIDs: []uuid.UUID{bob.ID, carol.ID},
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// Duplicates of the same counterpart are fine.
	dup, err := env.Room.CreateRoom(ctx, alice.ID, CreateRoomInput{
		RoomType:  domain.RoomTypeDirect,
		MemberIDs: []uuid.UUID{bob.ID, bob.ID, alice.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, dup.ID)
}

func TestRoomService_JoinAndLeave(t *testing.T) {
	ctx := context.Background()

	t.Run("join then leave a group room", func(t *testing.T) {
		env := newTestEnv()
		creator := env.users.add("alice")
		joiner := env.users.add("bob")

		room, err := env.Room.CreateRoom(ctx, creator.ID, CreateRoomInput{Name: "general", RoomType: domain.RoomTypeGroup})
		require.NoError(t, err)

		require.NoError(t, env.Room.JoinRoom(ctx, room.ID, joiner.ID))

		err = env.Room.JoinRoom(ctx, room.ID, joiner.ID)
		assert.ErrorIs(t, err, apperrors.ErrAlreadyMember)

		updates := env.publisher.byType(domain.EventRoomMemberUpdate)
		require.NotEmpty(t, updates)
		joined := updates[0].event.(domain.RoomMemberUpdateEvent)
		assert.Equal(t, domain.MemberActionJoined, joined.Action)
		assert.Equal(t, joiner.ID, joined.User.ID)
		assert.Equal(t, 2, joined.MemberCount)

		// The join also drops a system line into the room feed.
		system := env.publisher.byType(domain.EventChatMessage)
		require.NotEmpty(t, system)
		line := system[0].event.(domain.ChatMessageEvent)
		assert.Equal(t, domain.MessageTypeSystem, line.Message.MessageType)
		assert.Contains(t, line.Message.Content, "joined the room")
		assert.Nil(t, line.Message.SenderID)

		require.NoError(t, env.Room.LeaveRoom(ctx, room.ID, joiner.ID))
		_, err = env.Room.Membership(ctx, room.ID, joiner.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotAMember)
	})

	t.Run("direct rooms cannot be joined or left", func(t *testing.T) {
		env := newTestEnv()
		alice := env.users.add("alice")
		bob := env.users.add("bob")
		outsider := env.users.add("carol")

		room, err := env.Room.CreateRoom(ctx, alice.ID, CreateRoomInput{
			RoomType:  domain.RoomTypeDirect,
			MemberIDs: []uuid.UUID{bob.ID},
		})
		require.NoError(t, err)

		assert.ErrorIs(t, env.Room.JoinRoom(ctx, room.ID, outsider.ID), apperrors.ErrForbidden)
		assert.ErrorIs(t, env.Room.LeaveRoom(ctx, room.ID, bob.ID), apperrors.ErrForbidden)
	})

	t.Run("leaving a room you are not in", func(t *testing.T) {
		env := newTestEnv()
		creator := env.users.add("alice")
		outsider := env.users.add("bob")

		room, err := env.Room.CreateRoom(ctx, creator.ID, CreateRoomInput{Name: "general", RoomType: domain.RoomTypeGroup})
		require.NoError(t, err)

		assert.ErrorIs(t, env.Room.LeaveRoom(ctx, room.ID, outsider.ID), apperrors.ErrNotAMember)
	})
}

func TestRoomService_UpdateRoom(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	creator := env.users.add("alice")
	member := env.users.add("bob")

	room, err := env.Room.CreateRoom(ctx, creator.ID, CreateRoomInput{
		Name:      "general",
		RoomType:  domain.RoomTypeGroup,
		MemberIDs: []uuid.UUID{member.ID},
	})
	require.NoError(t, err)

	name := "announcements"
	_, err = env.Room.UpdateRoom(ctx, room.ID, member.ID, &name, nil)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	updated, err := env.Room.UpdateRoom(ctx, room.ID, creator.ID, &name, nil)
	require.NoError(t, err)
	assert.Equal(t, "announcements", updated.Name)

	events := env.publisher.byType(domain.EventRoomUpdate)
	require.NotEmpty(t, events)
	last := events[len(events)-1].event.(domain.RoomUpdateEvent)
	assert.Equal(t, domain.RoomActionUpdated, last.Action)
	assert.Equal(t, "announcements", last.Room.Name)
}

func TestRoomService_MarkRead(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	alice := env.users.add("alice")
	bob := env.users.add("bob")

	room, err := env.Room.CreateRoom(ctx, alice.ID, CreateRoomInput{
		Name:      "general",
		RoomType:  domain.RoomTypeGroup,
		MemberIDs: []uuid.UUID{bob.ID},
	})
	require.NoError(t, err)

	_, err = env.Message.Send(ctx, room.ID, alice.ID, SendMessageInput{Content: "hello"})
	require.NoError(t, err)

	unread, err := env.Message.UnreadCount(ctx, room.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	require.NoError(t, env.Room.MarkRead(ctx, room.ID, bob.ID))

	unread, err = env.Message.UnreadCount(ctx, room.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	reads := env.publisher.byType(domain.EventReadStatusUpdate)
	require.NotEmpty(t, reads)
	assert.Equal(t, UserTopic(bob.ID), reads[0].topic)
}

func TestRoomService_RoomList(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	alice := env.users.add("alice")
	bob := env.users.add("bob")

	group, err := env.Room.CreateRoom(ctx, alice.ID, CreateRoomInput{
		Name:      "general",
		RoomType:  domain.RoomTypeGroup,
		MemberIDs: []uuid.UUID{bob.ID},
	})
	require.NoError(t, err)

	direct, err := env.Room.CreateRoom(ctx, alice.ID, CreateRoomInput{
		RoomType:  domain.RoomTypeDirect,
		MemberIDs: []uuid.UUID{bob.ID},
	})
	require.NoError(t, err)

	_, err = env.Message.Send(ctx, group.ID, alice.ID, SendMessageInput{Content: "morning"})
	require.NoError(t, err)

	summaries, err := env.Room.RoomList(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	byID := make(map[uuid.UUID]*domain.RoomSummary)
	for _, s := range summaries {
		byID[s.Room.ID] = s
	}

	groupSummary := byID[group.ID]
	require.NotNil(t, groupSummary)
	assert.Equal(t, 2, groupSummary.MemberCount)
	assert.Equal(t, 1, groupSummary.UnreadCount)
	require.NotNil(t, groupSummary.LastMessage)
	assert.Equal(t, "morning", groupSummary.LastMessage.Content)

	directSummary := byID[direct.ID]
	require.NotNil(t, directSummary)
	require.NotNil(t, directSummary.OtherUser)
	assert.Equal(t, alice.ID, directSummary.OtherUser.ID)

	// Pinned rooms sort ahead of everything else.
	require.NoError(t, env.Room.SetPinned(ctx, group.ID, bob.ID, true))
	summaries, err = env.Room.RoomList(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, group.ID, summaries[0].Room.ID)
	assert.True(t, summaries[0].IsPinned)
}

func TestRoomService_RoomData(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	alice := env.users.add("alice")
	bob := env.users.add("bob")

	room, err := env.Room.CreateRoom(ctx, alice.ID, CreateRoomInput{
		Name:      "general",
		RoomType:  domain.RoomTypeGroup,
		MemberIDs: []uuid.UUID{bob.ID},
	})
	require.NoError(t, err)

	data, err := env.Room.RoomData(ctx, room.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, data.Room.Room.ID)
	assert.Len(t, data.Members, 2)

	outsider := env.users.add("carol")
	_, err = env.Room.RoomData(ctx, room.ID, outsider.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotAMember)
}
