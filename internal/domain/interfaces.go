package domain

import (
	"context"
	"time"

	"washhub/internal/models"
)

// Repository is the persistence surface shared by the services, the
// assignment run, and the HTTP handlers.
type Repository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	MarkBookingPaid(ctx context.Context, id int64, paymentIntentID string) error
	StaleUnassigned(ctx context.Context, cutoff time.Time, limit int) ([]*models.Booking, error)
	ClaimForWasher(ctx context.Context, bookingID, washerID int64) error
	UpdateStatusFrom(ctx context.Context, id int64, from, to string) error
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error)

	UpsertProfile(ctx context.Context, profile *models.Profile) error
	GetProfile(ctx context.Context, userID int64) (*models.Profile, error)
	EligibleWashers(ctx context.Context) ([]*models.Profile, error)
	UpdateWasherStatus(ctx context.Context, userID int64, status string) error
	UpdateStripeAccount(ctx context.Context, accountID, status string, payoutsEnabled, chargesEnabled bool) (bool, error)

	CreateApplication(ctx context.Context, app *models.WasherApplication) error
	GetApplication(ctx context.Context, id int64) (*models.WasherApplication, error)
	UpdateApplicationStatus(ctx context.Context, id int64, status string) error

	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// EventStore remembers processed webhook event ids for duplicate detection.
type EventStore interface {
	// MarkEventProcessed records the id and reports whether it had been
	// seen before.
	MarkEventProcessed(ctx context.Context, eventID string) (seen bool, err error)
	// UnmarkEvent releases a recorded id so a provider retry of a failed
	// delivery is processed instead of dropped as a duplicate.
	UnmarkEvent(ctx context.Context, eventID string) error
}

// EventPublisher fans domain events out to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// LedgerWriter mirrors booking snapshots into the ops spreadsheet.
type LedgerWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error
}

// SyncWorker accepts ledger tasks for asynchronous processing.
type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, booking *models.Booking, status string) error
}

// Notifier delivers operational notifications; failures are logged, never
// propagated into the booking flow.
type Notifier interface {
	NotifyAssignment(bookingID, washerID int64) error
	NotifyApproval(userID int64, status string) error
}
