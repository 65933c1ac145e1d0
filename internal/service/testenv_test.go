package service

import (
	"time"

	"community_chat/internal/config"
	"community_chat/pkg/logger"
)

type testEnv struct {
	users     *fakeUserRepo
	rooms     *fakeRoomRepo
	messages  *fakeMessageRepo
	activity  *fakeActivityRepo
	presence  *fakePresenceRepo
	typing    *fakeTypingRepo
	publisher *fakePublisher
	notifier  *fakeMentionNotifier

	Presence PresenceService
	Room     RoomService
	Message  MessageService
	Typing   TypingService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		users:     newFakeUserRepo(),
		rooms:     newFakeRoomRepo(),
		messages:  newFakeMessageRepo(),
		activity:  &fakeActivityRepo{},
		presence:  newFakePresenceRepo(),
		typing:    newFakeTypingRepo(),
		publisher: &fakePublisher{},
		notifier:  &fakeMentionNotifier{},
	}

	cfg := config.ChatConfig{
		OnlineThreshold:     10 * time.Minute,
		TypingTTL:           2 * time.Minute,
		TypingSweepInterval: time.Second,
		ClientQueueSize:     8,
		MessagePageSize:     50,
		SearchLimit:         50,
		MaxContentLength:    4000,
		RoomListLimit:       100,
		OnlineUsersLimit:    50,
		RecentActivityLimit: 20,
	}
	log := logger.New("error")

	env.Presence = NewPresenceService(env.presence, env.users, cfg, log)
	env.Room = NewRoomService(env.rooms, env.users, env.messages, env.activity, env.Presence, env.publisher, cfg, log)
	env.Message = NewMessageService(env.messages, env.rooms, env.users, env.activity, env.publisher, env.notifier, cfg, log)
	env.Typing = NewTypingService(env.typing, env.users, env.publisher, cfg, log)

	return env
}
