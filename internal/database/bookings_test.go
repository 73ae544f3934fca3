package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"washhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestBooking(userID int64, status string) *models.Booking {
	return &models.Booking{
		UserID:         userID,
		CollectionDate: time.Now().AddDate(0, 0, 1),
		TimeSlot:       "09:00-11:00",
		WeightTier:     "medium",
		SpecialItems:   []string{"duvet"},
		AddOns:         []string{"softener"},
		Instructions:   "ring twice",
		ImageURLs:      []string{"https://cdn.example.com/bag.jpg"},
		TotalPrice:     2499,
		CollectionPIN:  "1234",
		DeliveryPIN:    "5678",
		PaymentStatus:  models.PaymentStatusUnpaid,
		Status:         status,
	}
}

func TestCreateAndGetBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := newTestBooking(1, models.StatusPendingPayment)
	require.NoError(t, db.CreateBooking(ctx, booking))
	require.NotZero(t, booking.ID)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.UserID, got.UserID)
	assert.Equal(t, []string{"duvet"}, got.SpecialItems)
	assert.Equal(t, []string{"softener"}, got.AddOns)
	assert.Equal(t, []string{"https://cdn.example.com/bag.jpg"}, got.ImageURLs)
	assert.Equal(t, "ring twice", got.Instructions)
	assert.Equal(t, int64(2499), got.TotalPrice)
	assert.Equal(t, models.StatusPendingPayment, got.Status)
	assert.Nil(t, got.WasherID)
}

func TestGetBookingNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetBooking(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkBookingPaid(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := newTestBooking(1, models.StatusPendingPayment)
	require.NoError(t, db.CreateBooking(ctx, booking))

	require.NoError(t, db.MarkBookingPaid(ctx, booking.ID, "pi_123"))

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingAcceptance, got.Status)
	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, "pi_123", got.PaymentIntentID)

	// Replaying the same event re-applies identical values.
	require.NoError(t, db.MarkBookingPaid(ctx, booking.ID, "pi_123"))
	again, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Status, again.Status)
	assert.Equal(t, got.PaymentStatus, again.PaymentStatus)
	assert.Equal(t, got.PaymentIntentID, again.PaymentIntentID)
}

func TestMarkBookingPaidNotFound(t *testing.T) {
	db := setupTestDB(t)
	err := db.MarkBookingPaid(context.Background(), 404, "pi_x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStaleUnassigned(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	stale := newTestBooking(1, models.StatusPendingAssignment)
	require.NoError(t, db.CreateBooking(ctx, stale))

	// Ensure the remaining bookings are created after the cutoff below.
	time.Sleep(2 * time.Millisecond)

	fresh := newTestBooking(2, models.StatusPendingAssignment)
	require.NoError(t, db.CreateBooking(ctx, fresh))

	wrongStatus := newTestBooking(3, models.StatusPendingPayment)
	require.NoError(t, db.CreateBooking(ctx, wrongStatus))

	assigned := newTestBooking(4, models.StatusPendingAssignment)
	require.NoError(t, db.CreateBooking(ctx, assigned))
	require.NoError(t, db.ClaimForWasher(ctx, assigned.ID, 100))

	// Only the first booking is older than a cutoff placed right after
	// its creation time.
	cutoff := stale.CreatedAt.Add(time.Millisecond)
	time.Sleep(2 * time.Millisecond)

	candidates, err := db.StaleUnassigned(ctx, cutoff, 50)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, stale.ID, candidates[0].ID)

	// With a cutoff in the future, fresh unassigned rows show up too but
	// claimed and unpaid rows never do.
	candidates, err = db.StaleUnassigned(ctx, time.Now().Add(time.Hour), 50)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, stale.ID, candidates[0].ID)
	assert.Equal(t, fresh.ID, candidates[1].ID)
}

func TestStaleUnassignedLimit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, db.CreateBooking(ctx, newTestBooking(i, models.StatusPendingAssignment)))
	}

	candidates, err := db.StaleUnassigned(ctx, time.Now().Add(time.Hour), 3)
	require.NoError(t, err)
	assert.Len(t, candidates, 3)
}

func TestClaimForWasher(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := newTestBooking(1, models.StatusPendingAssignment)
	require.NoError(t, db.CreateBooking(ctx, booking))

	require.NoError(t, db.ClaimForWasher(ctx, booking.ID, 42))

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWasherAssigned, got.Status)
	require.NotNil(t, got.WasherID)
	assert.Equal(t, int64(42), *got.WasherID)

	// A second claim loses the race: the status guard matches nothing.
	err = db.ClaimForWasher(ctx, booking.ID, 43)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	got, err = db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), *got.WasherID)
}

func TestUpdateStatusFrom(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := newTestBooking(1, models.StatusPendingAssignment)
	require.NoError(t, db.CreateBooking(ctx, booking))
	require.NoError(t, db.ClaimForWasher(ctx, booking.ID, 42))

	require.NoError(t, db.UpdateStatusFrom(ctx, booking.ID, models.StatusWasherAssigned, models.StatusInProgress))

	err := db.UpdateStatusFrom(ctx, booking.ID, models.StatusWasherAssigned, models.StatusInProgress)
	assert.ErrorIs(t, err, ErrStatusConflict)

	require.NoError(t, db.UpdateStatusFrom(ctx, booking.ID, models.StatusInProgress, models.StatusCompleted))

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}

func TestGetBookingsByDateRange(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	inRange := newTestBooking(1, models.StatusPendingAssignment)
	inRange.CollectionDate = time.Now()
	require.NoError(t, db.CreateBooking(ctx, inRange))

	outOfRange := newTestBooking(2, models.StatusPendingAssignment)
	outOfRange.CollectionDate = time.Now().AddDate(0, 0, 10)
	require.NoError(t, db.CreateBooking(ctx, outOfRange))

	bookings, err := db.GetBookingsByDateRange(ctx, time.Now().AddDate(0, 0, -1), time.Now().AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, inRange.ID, bookings[0].ID)
}
