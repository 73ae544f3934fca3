package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"washhub/internal/domain"
	"washhub/internal/events"
	"washhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

func TestApplyAndApprove(t *testing.T) {
	db, bus, logger := setupServiceTest(t)
	svc := NewWasherService(db, bus, nil, logger)
	ctx := context.Background()

	var approved []events.WasherEventPayload
	bus.Subscribe(events.EventWasherApproved, func(event *events.Event) error {
		var payload events.WasherEventPayload
		require.NoError(t, json.Unmarshal(event.Payload, &payload))
		approved = append(approved, payload)
		return nil
	})

	app := &models.WasherApplication{UserID: 7}
	require.NoError(t, svc.Apply(ctx, app))
	require.NotZero(t, app.ID)

	profile, err := db.GetProfile(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.WasherStatusPending, profile.WasherStatus)
	assert.False(t, profile.EligibleWasher())

	require.NoError(t, svc.ReviewApplication(ctx, app.ID, true))

	profile, err = db.GetProfile(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.WasherStatusApproved, profile.WasherStatus)
	assert.True(t, profile.EligibleWasher())

	got, err := db.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, got.Status)

	require.Len(t, approved, 1)
	assert.Equal(t, int64(7), approved[0].UserID)
	assert.Equal(t, models.WasherStatusApproved, approved[0].WasherStatus)
}

func TestReviewReject(t *testing.T) {
	db, bus, logger := setupServiceTest(t)
	svc := NewWasherService(db, bus, nil, logger)
	ctx := context.Background()

	app := &models.WasherApplication{UserID: 8}
	require.NoError(t, svc.Apply(ctx, app))
	require.NoError(t, svc.ReviewApplication(ctx, app.ID, false))

	profile, err := db.GetProfile(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, models.WasherStatusRejected, profile.WasherStatus)
	assert.False(t, profile.EligibleWasher())
}

func TestReviewTwice(t *testing.T) {
	db, bus, logger := setupServiceTest(t)
	svc := NewWasherService(db, bus, nil, logger)
	ctx := context.Background()

	app := &models.WasherApplication{UserID: 9}
	require.NoError(t, svc.Apply(ctx, app))
	require.NoError(t, svc.ReviewApplication(ctx, app.ID, true))

	err := svc.ReviewApplication(ctx, app.ID, false)
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
}

type profileUpdateFailRepo struct {
	domain.Repository
}

func (profileUpdateFailRepo) UpdateWasherStatus(ctx context.Context, userID int64, status string) error {
	return errors.New("connection reset")
}

func TestReviewProfileUpdateFailure(t *testing.T) {
	db, bus, logger := setupServiceTest(t)
	ctx := context.Background()

	app := &models.WasherApplication{UserID: 10}
	require.NoError(t, NewWasherService(db, bus, nil, logger).Apply(ctx, app))

	svc := NewWasherService(profileUpdateFailRepo{Repository: db}, bus, nil, logger)
	err := svc.ReviewApplication(ctx, app.ID, true)
	require.Error(t, err)

	// The first write sticks: the application is reviewed even though the
	// profile still says pending.
	got, err := db.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, got.Status)

	profile, err := db.GetProfile(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, models.WasherStatusPending, profile.WasherStatus)
}

func TestHandleAccountUpdated(t *testing.T) {
	db, bus, logger := setupServiceTest(t)
	svc := NewWasherService(db, bus, nil, logger)
	ctx := context.Background()

	require.NoError(t, db.UpsertProfile(ctx, &models.Profile{
		UserID:              11,
		Role:                models.RoleWasher,
		WasherStatus:        models.WasherStatusApproved,
		StripeAccountID:     "acct_11",
		StripeAccountStatus: models.AccountStatusPending,
	}))

	account := &stripe.Account{
		ID:               "acct_11",
		DetailsSubmitted: true,
		PayoutsEnabled:   true,
		ChargesEnabled:   true,
	}
	require.NoError(t, svc.HandleAccountUpdated(ctx, account))

	profile, err := db.GetProfile(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusActive, profile.StripeAccountStatus)
	assert.True(t, profile.PayoutReady())

	// Losing a capability downgrades the account to restricted.
	account.PayoutsEnabled = false
	require.NoError(t, svc.HandleAccountUpdated(ctx, account))

	profile, err = db.GetProfile(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusRestricted, profile.StripeAccountStatus)
	assert.False(t, profile.PayoutReady())
}

func TestHandleAccountUpdatedUnknownAccount(t *testing.T) {
	db, bus, logger := setupServiceTest(t)
	svc := NewWasherService(db, bus, nil, logger)

	err := svc.HandleAccountUpdated(context.Background(), &stripe.Account{ID: "acct_ghost"})
	assert.NoError(t, err)
}
