package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"washhub/internal/database"
	"washhub/internal/domain"
	"washhub/internal/events"
	"washhub/internal/models"
	"washhub/internal/payments"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79"
)

var (
	ErrValidation = errors.New("validation error")
	ErrWrongPIN   = errors.New("pin does not match")
)

var validWeightTiers = map[string]bool{
	"small":  true,
	"medium": true,
	"large":  true,
}

// CreateBookingRequest carries the customer-supplied booking fields.
type CreateBookingRequest struct {
	UserID          int64     `json:"user_id"`
	CollectionDate  time.Time `json:"collection_date"`
	TimeSlot        string    `json:"time_slot"`
	WeightTier      string    `json:"weight_tier"`
	SpecialItems    []string  `json:"special_items,omitempty"`
	AddOns          []string  `json:"add_ons,omitempty"`
	Instructions    string    `json:"instructions,omitempty"`
	ImageURLs       []string  `json:"image_urls,omitempty"`
	AccessNotes     string    `json:"access_notes,omitempty"`
	TotalPrice      int64     `json:"total_price"`
	PaymentIntentID string    `json:"payment_intent_id,omitempty"`
}

type BookingService struct {
	repo   domain.Repository
	bus    domain.EventPublisher
	worker domain.SyncWorker
	logger *zerolog.Logger
}

func NewBookingService(repo domain.Repository, bus domain.EventPublisher,
	worker domain.SyncWorker, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:   repo,
		bus:    bus,
		worker: worker,
		logger: logger,
	}
}

// Create validates the request, generates the handover PINs and stores
// the booking. A booking that already carries a payment intent goes
// straight into the assignment queue; otherwise it waits for checkout.
func (s *BookingService) Create(ctx context.Context, req *CreateBookingRequest) (*models.Booking, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	collectionPIN, deliveryPIN, err := models.GeneratePINPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate pins: %w", err)
	}

	booking := &models.Booking{
		UserID:          req.UserID,
		CollectionDate:  req.CollectionDate,
		TimeSlot:        req.TimeSlot,
		WeightTier:      req.WeightTier,
		SpecialItems:    req.SpecialItems,
		AddOns:          req.AddOns,
		Instructions:    req.Instructions,
		ImageURLs:       req.ImageURLs,
		AccessNotes:     req.AccessNotes,
		TotalPrice:      req.TotalPrice,
		CollectionPIN:   collectionPIN,
		DeliveryPIN:     deliveryPIN,
		PaymentIntentID: req.PaymentIntentID,
		PaymentStatus:   models.PaymentStatusUnpaid,
		Status:          models.StatusPendingPayment,
	}
	if req.PaymentIntentID != "" {
		booking.PaymentStatus = models.PaymentStatusPaid
		booking.Status = models.StatusPendingAssignment
	}

	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("user_id", booking.UserID).
		Str("status", booking.Status).
		Msg("Booking created")

	s.publishBookingEvent(events.EventBookingCreated, booking, 0)
	s.enqueueLedgerTask(ctx, "upsert", booking, booking.Status)

	return booking, nil
}

func (s *BookingService) validate(req *CreateBookingRequest) error {
	switch {
	case req.UserID <= 0:
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	case req.CollectionDate.IsZero():
		return fmt.Errorf("%w: collection_date is required", ErrValidation)
	case req.TimeSlot == "":
		return fmt.Errorf("%w: time_slot is required", ErrValidation)
	case !validWeightTiers[req.WeightTier]:
		return fmt.Errorf("%w: unknown weight_tier %q", ErrValidation, req.WeightTier)
	case req.TotalPrice <= 0:
		return fmt.Errorf("%w: total_price must be positive", ErrValidation)
	}
	return nil
}

// HandleCheckoutCompleted applies a verified checkout event to the
// booking it references. The row update itself is idempotent; duplicate
// events are filtered before this point.
func (s *BookingService) HandleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	bookingID, err := payments.BookingIDFromSession(session)
	if err != nil {
		return err
	}

	if err := s.repo.MarkBookingPaid(ctx, bookingID, payments.PaymentIntentID(session)); err != nil {
		return fmt.Errorf("failed to apply checkout for booking %d: %w", bookingID, err)
	}

	s.logger.Info().
		Int64("booking_id", bookingID).
		Str("session_id", session.ID).
		Msg("Booking marked paid")

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	s.publishBookingEvent(events.EventBookingPaid, booking, 0)
	s.enqueueLedgerTask(ctx, "update_status", booking, booking.Status)
	return nil
}

// VerifyCollection checks the collection PIN and moves an assigned
// booking into progress.
func (s *BookingService) VerifyCollection(ctx context.Context, bookingID int64, pin string) (*models.Booking, error) {
	return s.verifyHandover(ctx, bookingID, pin, handoverCollection)
}

// VerifyDelivery checks the delivery PIN and completes the booking.
func (s *BookingService) VerifyDelivery(ctx context.Context, bookingID int64, pin string) (*models.Booking, error) {
	return s.verifyHandover(ctx, bookingID, pin, handoverDelivery)
}

type handoverKind int

const (
	handoverCollection handoverKind = iota
	handoverDelivery
)

func (s *BookingService) verifyHandover(ctx context.Context, bookingID int64, pin string, kind handoverKind) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	var expected, from, to string
	if kind == handoverCollection {
		expected, from, to = booking.CollectionPIN, models.StatusWasherAssigned, models.StatusInProgress
	} else {
		expected, from, to = booking.DeliveryPIN, models.StatusInProgress, models.StatusCompleted
	}

	if pin != expected {
		return nil, ErrWrongPIN
	}

	if err := s.repo.UpdateStatusFrom(ctx, bookingID, from, to); err != nil {
		if errors.Is(err, database.ErrStatusConflict) {
			return nil, fmt.Errorf("booking %d is not in status %s: %w", bookingID, from, err)
		}
		return nil, err
	}

	booking.Status = to
	s.logger.Info().
		Int64("booking_id", bookingID).
		Str("status", to).
		Msg("Booking handover verified")

	s.publishBookingEvent(events.EventBookingProgress, booking, washerIDOrZero(booking))
	s.enqueueLedgerTask(ctx, "update_status", booking, to)
	return booking, nil
}

func (s *BookingService) Get(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) ListForUser(ctx context.Context, userID int64) ([]*models.Booking, error) {
	return s.repo.GetUserBookings(ctx, userID)
}

func (s *BookingService) publishBookingEvent(eventType string, booking *models.Booking, washerID int64) {
	if s.bus == nil {
		return
	}
	if washerID == 0 {
		washerID = washerIDOrZero(booking)
	}
	payload := events.BookingEventPayload{
		BookingID:      booking.ID,
		UserID:         booking.UserID,
		WasherID:       washerID,
		Status:         booking.Status,
		CollectionDate: booking.CollectionDate,
		TimeSlot:       booking.TimeSlot,
		TotalPrice:     booking.TotalPrice,
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("Failed to publish booking event")
	}
}

func (s *BookingService) enqueueLedgerTask(ctx context.Context, taskType string, booking *models.Booking, status string) {
	if s.worker == nil {
		return
	}
	if err := s.worker.EnqueueTask(ctx, taskType, booking, status); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("Failed to enqueue ledger task")
	}
}

func washerIDOrZero(booking *models.Booking) int64 {
	if booking.WasherID == nil {
		return 0
	}
	return *booking.WasherID
}
