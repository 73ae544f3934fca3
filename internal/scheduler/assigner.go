package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"washhub/internal/database"
	"washhub/internal/domain"
	"washhub/internal/events"
	"washhub/internal/metrics"
	"washhub/internal/models"

	"github.com/rs/zerolog"
)

// Assigner sweeps bookings that sat unclaimed past the staleness
// threshold and hands each one to a randomly chosen approved washer.
// Claims go through a conditional update, so a concurrent manual
// acceptance simply wins and the booking is skipped.
type Assigner struct {
	repo       domain.Repository
	bus        domain.EventPublisher
	worker     domain.SyncWorker
	notifier   domain.Notifier
	logger     *zerolog.Logger
	staleAfter time.Duration
	batchSize  int
	interval   time.Duration
}

type AssignmentResult struct {
	BookingID int64  `json:"booking_id"`
	WasherID  int64  `json:"washer_id,omitempty"`
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason,omitempty"`
}

type RunSummary struct {
	Processed int                `json:"processed"`
	Assigned  int                `json:"assigned"`
	Skipped   int                `json:"skipped"`
	Failed    int                `json:"failed"`
	Duration  time.Duration      `json:"-"`
	Results   []AssignmentResult `json:"results,omitempty"`
	Errors    []string           `json:"errors,omitempty"`
}

func NewAssigner(repo domain.Repository, bus domain.EventPublisher, worker domain.SyncWorker,
	notifier domain.Notifier, logger *zerolog.Logger, staleAfter, interval time.Duration, batchSize int) *Assigner {
	if staleAfter <= 0 {
		staleAfter = models.DefaultStaleAfter
	}
	if batchSize <= 0 {
		batchSize = models.DefaultAssignBatchSize
	}
	return &Assigner{
		repo:       repo,
		bus:        bus,
		worker:     worker,
		notifier:   notifier,
		logger:     logger,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		interval:   interval,
	}
}

// Start runs the sweep on a fixed interval until the context is done.
func (a *Assigner) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		a.logger.Info().
			Dur("interval", a.interval).
			Dur("stale_after", a.staleAfter).
			Msg("Auto-assignment scheduler started")

		for {
			select {
			case <-ctx.Done():
				a.logger.Info().Msg("Auto-assignment scheduler stopped")
				return
			case <-ticker.C:
				summary, err := a.Run(ctx)
				if err != nil {
					a.logger.Error().Err(err).Msg("Assignment run failed")
					continue
				}
				if summary.Processed > 0 {
					a.logger.Info().
						Int("processed", summary.Processed).
						Int("assigned", summary.Assigned).
						Int("skipped", summary.Skipped).
						Int("failed", summary.Failed).
						Dur("duration", summary.Duration).
						Msg("Assignment run completed")
				}
			}
		}
	}()
}

// Run performs a single sweep. An empty candidate list or an empty
// washer pool is a successful no-op run.
func (a *Assigner) Run(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{}

	cutoff := time.Now().Add(-a.staleAfter)
	candidates, err := a.repo.StaleUnassigned(ctx, cutoff, a.batchSize)
	if err != nil {
		metrics.IncAssignmentRun("error")
		return nil, err
	}

	if len(candidates) == 0 {
		metrics.IncAssignmentRun("empty")
		summary.Duration = time.Since(start)
		return summary, nil
	}

	washers, err := a.repo.EligibleWashers(ctx)
	if err != nil {
		metrics.IncAssignmentRun("error")
		return nil, err
	}

	if len(washers) == 0 {
		a.logger.Warn().
			Int("candidates", len(candidates)).
			Msg("No eligible washers, leaving bookings unassigned")
		metrics.IncAssignmentRun("no_washers")
		summary.Processed = len(candidates)
		summary.Skipped = len(candidates)
		summary.Duration = time.Since(start)
		return summary, nil
	}

	for _, booking := range candidates {
		summary.Processed++
		washer := washers[rand.Intn(len(washers))]

		err := a.repo.ClaimForWasher(ctx, booking.ID, washer.UserID)
		switch {
		case err == nil:
			summary.Assigned++
			summary.Results = append(summary.Results, AssignmentResult{
				BookingID: booking.ID, WasherID: washer.UserID, Outcome: "assigned",
			})
			metrics.IncAssignment("assigned")
			a.afterAssignment(ctx, booking, washer.UserID)
		case errors.Is(err, database.ErrAlreadyClaimed):
			// Someone claimed it between the sweep query and our update.
			summary.Skipped++
			summary.Results = append(summary.Results, AssignmentResult{
				BookingID: booking.ID, Outcome: "already_claimed", Reason: err.Error(),
			})
			metrics.IncAssignment("already_claimed")
		default:
			summary.Failed++
			summary.Results = append(summary.Results, AssignmentResult{
				BookingID: booking.ID, Outcome: "error", Reason: err.Error(),
			})
			summary.Errors = append(summary.Errors, fmt.Sprintf("booking %d: %v", booking.ID, err))
			metrics.IncAssignment("error")
			a.logger.Error().Err(err).
				Int64("booking_id", booking.ID).
				Int64("washer_id", washer.UserID).
				Msg("Failed to claim booking for washer")
		}
	}

	metrics.IncAssignmentRun("ok")
	summary.Duration = time.Since(start)
	metrics.ObserveRunDuration(summary.Duration.Seconds())
	return summary, nil
}

func (a *Assigner) afterAssignment(ctx context.Context, booking *models.Booking, washerID int64) {
	a.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("washer_id", washerID).
		Msg("Booking auto-assigned")

	if a.bus != nil {
		payload := events.BookingEventPayload{
			BookingID:      booking.ID,
			UserID:         booking.UserID,
			WasherID:       washerID,
			Status:         models.StatusWasherAssigned,
			CollectionDate: booking.CollectionDate,
			TimeSlot:       booking.TimeSlot,
			TotalPrice:     booking.TotalPrice,
		}
		if err := a.bus.PublishJSON(events.EventWasherAssigned, payload); err != nil {
			a.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("Failed to publish assignment event")
		}
	}

	if a.worker != nil {
		if err := a.worker.EnqueueTask(ctx, "update_status", booking, models.StatusWasherAssigned); err != nil {
			a.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("Failed to enqueue ledger update")
		}
	}

	if a.notifier != nil {
		if err := a.notifier.NotifyAssignment(booking.ID, washerID); err != nil {
			a.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("Failed to send assignment notification")
		}
	}
}
