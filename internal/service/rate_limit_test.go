package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community_chat/pkg/logger"
)

type fakeRateLimitRepo struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (f *fakeRateLimitRepo) Hit(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if f.counts == nil {
		f.counts = make(map[string]int64)
	}
	f.counts[key]++
	return f.counts[key], nil
}

func TestRateLimitService_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("counts down then blocks", func(t *testing.T) {
		svc := NewRateLimitService(&fakeRateLimitRepo{}, logger.New("error"))

		for i := 0; i < 3; i++ {
			allowed, remaining, err := svc.Allow(ctx, "ip:1", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
			assert.Equal(t, 2-i, remaining)
		}

		allowed, remaining, err := svc.Allow(ctx, "ip:1", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, 0, remaining)
	})

	t.Run("keys are independent", func(t *testing.T) {
		svc := NewRateLimitService(&fakeRateLimitRepo{}, logger.New("error"))

		_, _, err := svc.Allow(ctx, "ip:1", 1, time.Minute)
		require.NoError(t, err)

		allowed, _, err := svc.Allow(ctx, "ip:2", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("backend error surfaces", func(t *testing.T) {
		boom := errors.New("redis down")
		svc := NewRateLimitService(&fakeRateLimitRepo{err: boom}, logger.New("error"))

		_, _, err := svc.Allow(ctx, "ip:1", 3, time.Minute)
		assert.ErrorIs(t, err, boom)
	})
}
