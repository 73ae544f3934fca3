package repository

import (
	"context"
	"sync/atomic"
	"time"

	"washhub/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverEventStore prefers the redis store and drops down to the
// in-memory one when redis is unreachable. Deduplication degrades to
// process-local while the primary is down, which is acceptable for
// webhook replay protection.
type FailoverEventStore struct {
	primary   domain.EventStore
	fallback  domain.EventStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverEventStore(primary, fallback domain.EventStore, logger *zerolog.Logger) *FailoverEventStore {
	return &FailoverEventStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverEventStore) MarkEventProcessed(ctx context.Context, eventID string) (bool, error) {
	if !r.isDown.Load() {
		seen, err := r.primary.MarkEventProcessed(ctx, eventID)
		if err == nil {
			return seen, nil
		}
		r.logger.Error().Err(err).Msg("Primary event store failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
		return r.fallback.MarkEventProcessed(ctx, eventID)
	}

	// Try to recover after 1 minute
	if time.Since(r.lastCheck) > time.Minute {
		seen, err := r.primary.MarkEventProcessed(ctx, eventID)
		if err == nil {
			r.isDown.Store(false)
			return seen, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.MarkEventProcessed(ctx, eventID)
}

// UnmarkEvent clears the id from both stores; depending on when the
// primary went down it may be recorded in either one.
func (r *FailoverEventStore) UnmarkEvent(ctx context.Context, eventID string) error {
	var firstErr error
	if !r.isDown.Load() {
		if err := r.primary.UnmarkEvent(ctx, eventID); err != nil {
			r.logger.Error().Err(err).Msg("Primary event store unmark failed")
			firstErr = err
		}
	}
	if err := r.fallback.UnmarkEvent(ctx, eventID); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
