package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEventStore(t *testing.T) {
	store := NewMemoryEventStore(time.Hour)
	ctx := context.Background()

	seen, err := store.MarkEventProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = store.MarkEventProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = store.MarkEventProcessed(ctx, "evt_other")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryEventStoreUnmark(t *testing.T) {
	store := NewMemoryEventStore(time.Hour)
	ctx := context.Background()

	seen, err := store.MarkEventProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.UnmarkEvent(ctx, "evt_1"))

	// A released id is processable again.
	seen, err = store.MarkEventProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryEventStoreExpiry(t *testing.T) {
	store := NewMemoryEventStore(time.Millisecond)
	ctx := context.Background()

	seen, err := store.MarkEventProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	time.Sleep(5 * time.Millisecond)

	// An expired entry counts as unseen again.
	seen, err = store.MarkEventProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}
