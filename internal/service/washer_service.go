package service

import (
	"context"
	"errors"
	"fmt"

	"washhub/internal/domain"
	"washhub/internal/events"
	"washhub/internal/models"
	"washhub/internal/payments"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79"
)

var ErrAlreadyReviewed = errors.New("application already reviewed")

type WasherService struct {
	repo     domain.Repository
	bus      domain.EventPublisher
	notifier domain.Notifier
	logger   *zerolog.Logger
}

func NewWasherService(repo domain.Repository, bus domain.EventPublisher,
	notifier domain.Notifier, logger *zerolog.Logger) *WasherService {
	return &WasherService{
		repo:     repo,
		bus:      bus,
		notifier: notifier,
		logger:   logger,
	}
}

// Apply records a washer application and flags the profile as pending.
func (s *WasherService) Apply(ctx context.Context, app *models.WasherApplication) error {
	if app.UserID <= 0 {
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	}

	if err := s.repo.CreateApplication(ctx, app); err != nil {
		return err
	}

	profile := &models.Profile{
		UserID:              app.UserID,
		Role:                models.RoleWasher,
		WasherStatus:        models.WasherStatusPending,
		StripeAccountStatus: models.AccountStatusPending,
	}
	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		return err
	}

	s.logger.Info().
		Int64("application_id", app.ID).
		Int64("user_id", app.UserID).
		Msg("Washer application submitted")
	return nil
}

// ReviewApplication records the review decision and then updates the
// applicant's profile. The two writes are separate statements: if the
// second one fails, the application stays reviewed while the profile
// keeps its previous status, and the inconsistency is logged for manual
// repair rather than rolled back.
func (s *WasherService) ReviewApplication(ctx context.Context, applicationID int64, approve bool) error {
	app, err := s.repo.GetApplication(ctx, applicationID)
	if err != nil {
		return err
	}
	if app.Status != models.ApplicationStatusPending {
		return fmt.Errorf("%w: application %d is %s", ErrAlreadyReviewed, applicationID, app.Status)
	}

	appStatus := models.ApplicationStatusApproved
	washerStatus := models.WasherStatusApproved
	if !approve {
		appStatus = models.ApplicationStatusRejected
		washerStatus = models.WasherStatusRejected
	}

	if err := s.repo.UpdateApplicationStatus(ctx, applicationID, appStatus); err != nil {
		return err
	}

	if err := s.repo.UpdateWasherStatus(ctx, app.UserID, washerStatus); err != nil {
		s.logger.Error().Err(err).
			Int64("application_id", applicationID).
			Int64("user_id", app.UserID).
			Str("application_status", appStatus).
			Str("marker", "application_reviewed_profile_stale").
			Msg("Application reviewed but profile update failed, profile needs manual repair")
		return fmt.Errorf("application %d reviewed but profile update failed: %w", applicationID, err)
	}

	s.logger.Info().
		Int64("application_id", applicationID).
		Int64("user_id", app.UserID).
		Str("status", appStatus).
		Msg("Washer application reviewed")

	if s.bus != nil {
		payload := events.WasherEventPayload{
			UserID:        app.UserID,
			ApplicationID: applicationID,
			WasherStatus:  washerStatus,
		}
		if err := s.bus.PublishJSON(events.EventWasherApproved, payload); err != nil {
			s.logger.Error().Err(err).Int64("user_id", app.UserID).Msg("Failed to publish review event")
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyApproval(app.UserID, washerStatus); err != nil {
			s.logger.Error().Err(err).Int64("user_id", app.UserID).Msg("Failed to send review notification")
		}
	}

	return nil
}

// HandleAccountUpdated derives the capability status from a connected
// account event and stores it on the matching profile. Events for
// accounts we do not know yet are logged and dropped; the next event
// after the profile exists will catch the state up.
func (s *WasherService) HandleAccountUpdated(ctx context.Context, account *stripe.Account) error {
	status := payments.DeriveAccountStatus(account.DetailsSubmitted, account.PayoutsEnabled, account.ChargesEnabled)

	matched, err := s.repo.UpdateStripeAccount(ctx, account.ID, status, account.PayoutsEnabled, account.ChargesEnabled)
	if err != nil {
		return fmt.Errorf("failed to update account %s: %w", account.ID, err)
	}
	if !matched {
		s.logger.Warn().
			Str("account_id", account.ID).
			Str("derived_status", status).
			Msg("Account update for unknown connected account, dropped")
		return nil
	}

	s.logger.Info().
		Str("account_id", account.ID).
		Str("status", status).
		Bool("payouts_enabled", account.PayoutsEnabled).
		Bool("charges_enabled", account.ChargesEnabled).
		Msg("Connected account status updated")

	if s.bus != nil {
		payload := events.WasherEventPayload{
			AccountStatus:   status,
			StripeAccountID: account.ID,
		}
		if err := s.bus.PublishJSON(events.EventAccountUpdated, payload); err != nil {
			s.logger.Error().Err(err).Str("account_id", account.ID).Msg("Failed to publish account event")
		}
	}

	return nil
}

// EligibleWashers lists approved washers available for assignment.
func (s *WasherService) EligibleWashers(ctx context.Context) ([]*models.Profile, error) {
	return s.repo.EligibleWashers(ctx)
}
