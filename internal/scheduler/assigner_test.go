package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"washhub/internal/database"
	"washhub/internal/domain"
	"washhub/internal/events"
	"washhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAssigner(t *testing.T) (*Assigner, *database.DB, *events.EventBus) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewEventBus()
	assigner := NewAssigner(db, bus, nil, nil, &logger, time.Millisecond, time.Minute, 50)
	return assigner, db, bus
}

func addWasher(t *testing.T, db *database.DB, userID int64) {
	t.Helper()
	require.NoError(t, db.UpsertProfile(context.Background(), &models.Profile{
		UserID:              userID,
		Role:                models.RoleWasher,
		WasherStatus:        models.WasherStatusApproved,
		StripeAccountStatus: models.AccountStatusActive,
	}))
}

func addStaleBooking(t *testing.T, db *database.DB, userID int64) *models.Booking {
	t.Helper()
	booking := &models.Booking{
		UserID:         userID,
		CollectionDate: time.Now().AddDate(0, 0, 1),
		TimeSlot:       "09:00-11:00",
		WeightTier:     "medium",
		TotalPrice:     2499,
		CollectionPIN:  "1234",
		DeliveryPIN:    "5678",
		PaymentStatus:  models.PaymentStatusPaid,
		Status:         models.StatusPendingAssignment,
	}
	require.NoError(t, db.CreateBooking(context.Background(), booking))
	return booking
}

func TestRunEmpty(t *testing.T) {
	assigner, _, _ := setupAssigner(t)

	summary, err := assigner.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
	assert.Zero(t, summary.Assigned)
}

func TestRunAssignsStaleBookings(t *testing.T) {
	assigner, db, bus := setupAssigner(t)
	ctx := context.Background()

	var published []events.BookingEventPayload
	bus.Subscribe(events.EventWasherAssigned, func(event *events.Event) error {
		var payload events.BookingEventPayload
		require.NoError(t, json.Unmarshal(event.Payload, &payload))
		published = append(published, payload)
		return nil
	})

	addWasher(t, db, 100)
	addWasher(t, db, 101)
	b1 := addStaleBooking(t, db, 1)
	b2 := addStaleBooking(t, db, 2)

	// Let both rows age past the threshold.
	time.Sleep(5 * time.Millisecond)

	summary, err := assigner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Assigned)
	assert.Zero(t, summary.Skipped)
	assert.Zero(t, summary.Failed)

	for _, id := range []int64{b1.ID, b2.ID} {
		got, err := db.GetBooking(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusWasherAssigned, got.Status)
		require.NotNil(t, got.WasherID)
		assert.Contains(t, []int64{100, 101}, *got.WasherID)
	}

	require.Len(t, published, 2)
	assert.Equal(t, models.StatusWasherAssigned, published[0].Status)

	// A second sweep finds nothing left to do.
	summary, err = assigner.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
}

func TestRunFreshBookingsUntouched(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	assigner := NewAssigner(db, nil, nil, nil, &logger, time.Hour, time.Minute, 50)
	addWasher(t, db, 100)
	booking := addStaleBooking(t, db, 1)

	summary, err := assigner.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)

	got, err := db.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingAssignment, got.Status)
}

func TestRunNoEligibleWashers(t *testing.T) {
	assigner, db, _ := setupAssigner(t)
	ctx := context.Background()

	// Pending washers and plain customers never receive work.
	require.NoError(t, db.UpsertProfile(ctx, &models.Profile{
		UserID: 100, Role: models.RoleWasher, WasherStatus: models.WasherStatusPending,
		StripeAccountStatus: models.AccountStatusPending,
	}))
	booking := addStaleBooking(t, db, 1)
	time.Sleep(5 * time.Millisecond)

	summary, err := assigner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Assigned)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Nil(t, got.WasherID)
}

type claimConflictRepo struct {
	domain.Repository
}

func (claimConflictRepo) ClaimForWasher(ctx context.Context, bookingID, washerID int64) error {
	return database.ErrAlreadyClaimed
}

func TestRunSkipsConcurrentlyClaimed(t *testing.T) {
	assigner, db, _ := setupAssigner(t)
	ctx := context.Background()

	addWasher(t, db, 100)
	addStaleBooking(t, db, 1)
	time.Sleep(5 * time.Millisecond)

	assigner.repo = claimConflictRepo{Repository: db}

	summary, err := assigner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Assigned)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "already_claimed", summary.Results[0].Outcome)
	assert.NotEmpty(t, summary.Results[0].Reason)
	assert.Empty(t, summary.Errors)
}

type brokenClaimRepo struct {
	domain.Repository
}

func (brokenClaimRepo) ClaimForWasher(ctx context.Context, bookingID, washerID int64) error {
	return errors.New("disk I/O error")
}

func TestRunContinuesAfterClaimError(t *testing.T) {
	assigner, db, _ := setupAssigner(t)
	ctx := context.Background()

	addWasher(t, db, 100)
	addStaleBooking(t, db, 1)
	addStaleBooking(t, db, 2)
	time.Sleep(5 * time.Millisecond)

	assigner.repo = brokenClaimRepo{Repository: db}

	summary, err := assigner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Failed)
	assert.Zero(t, summary.Assigned)

	// Each failure is reported with its reason, not just counted.
	require.Len(t, summary.Results, 2)
	for _, result := range summary.Results {
		assert.Equal(t, "error", result.Outcome)
		assert.Contains(t, result.Reason, "disk I/O error")
	}
	require.Len(t, summary.Errors, 2)
	assert.Contains(t, summary.Errors[0], "disk I/O error")
}

func TestStartStopsOnContext(t *testing.T) {
	assigner, db, _ := setupAssigner(t)
	assigner.interval = 2 * time.Millisecond

	addWasher(t, db, 100)
	addStaleBooking(t, db, 1)
	time.Sleep(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	assigner.Start(ctx)

	require.Eventually(t, func() bool {
		got, err := db.GetBooking(context.Background(), 1)
		return err == nil && got.Status == models.StatusWasherAssigned
	}, time.Second, 5*time.Millisecond)

	cancel()
}
