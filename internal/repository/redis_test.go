package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisEventStore(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	store := NewRedisEventStore(client, time.Hour)
	ctx := context.Background()

	t.Run("FirstSeen", func(t *testing.T) {
		seen, err := store.MarkEventProcessed(ctx, "evt_1")
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("Duplicate", func(t *testing.T) {
		seen, err := store.MarkEventProcessed(ctx, "evt_1")
		require.NoError(t, err)
		assert.True(t, seen)
	})

	t.Run("ExpiryResets", func(t *testing.T) {
		seen, err := store.MarkEventProcessed(ctx, "evt_2")
		require.NoError(t, err)
		assert.False(t, seen)

		s.FastForward(time.Hour + time.Second)

		seen, err = store.MarkEventProcessed(ctx, "evt_2")
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("UnmarkReleases", func(t *testing.T) {
		seen, err := store.MarkEventProcessed(ctx, "evt_4")
		require.NoError(t, err)
		assert.False(t, seen)

		require.NoError(t, store.UnmarkEvent(ctx, "evt_4"))

		seen, err = store.MarkEventProcessed(ctx, "evt_4")
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("NilClient", func(t *testing.T) {
		store := NewRedisEventStore(nil, time.Hour)
		_, err := store.MarkEventProcessed(ctx, "evt_3")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "redis client is nil")
		assert.Error(t, store.UnmarkEvent(ctx, "evt_3"))
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("Close", func(t *testing.T) {
		assert.NoError(t, Close(client))
	})
}
