package repository

import (
	"context"
	"sync"
	"time"
)

type MemoryEventStore struct {
	events sync.Map
	ttl    time.Duration
}

func NewMemoryEventStore(ttl time.Duration) *MemoryEventStore {
	return &MemoryEventStore{
		ttl: ttl,
	}
}

func (r *MemoryEventStore) MarkEventProcessed(ctx context.Context, eventID string) (bool, error) {
	now := time.Now()
	val, loaded := r.events.LoadOrStore(eventID, now.Add(r.ttl))
	if !loaded {
		return false, nil
	}

	expiresAt := val.(time.Time)
	if now.After(expiresAt) {
		r.events.Store(eventID, now.Add(r.ttl))
		return false, nil
	}
	return true, nil
}

func (r *MemoryEventStore) UnmarkEvent(ctx context.Context, eventID string) error {
	r.events.Delete(eventID)
	return nil
}
