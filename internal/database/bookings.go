package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"washhub/internal/models"
)

const bookingColumns = `id, user_id, washer_id, collection_date, time_slot, weight_tier,
	special_items, add_ons, instructions, image_urls, access_notes, total_price,
	collection_pin, delivery_pin, payment_intent_id, payment_status, status,
	created_at, updated_at`

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	specialItems, err := marshalList(booking.SpecialItems)
	if err != nil {
		return fmt.Errorf("failed to encode special items: %w", err)
	}
	addOns, err := marshalList(booking.AddOns)
	if err != nil {
		return fmt.Errorf("failed to encode add-ons: %w", err)
	}
	imageURLs, err := marshalList(booking.ImageURLs)
	if err != nil {
		return fmt.Errorf("failed to encode image urls: %w", err)
	}

	query := `INSERT INTO bookings (
				user_id, washer_id, collection_date, time_slot, weight_tier,
				special_items, add_ons, instructions, image_urls, access_notes,
				total_price, collection_pin, delivery_pin, payment_intent_id,
				payment_status, status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		booking.UserID,
		booking.WasherID,
		booking.CollectionDate,
		booking.TimeSlot,
		booking.WeightTier,
		specialItems,
		addOns,
		booking.Instructions,
		imageURLs,
		booking.AccessNotes,
		booking.TotalPrice,
		booking.CollectionPIN,
		booking.DeliveryPIN,
		booking.PaymentIntentID,
		booking.PaymentStatus,
		booking.Status,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now

	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// MarkBookingPaid applies the checkout-completed transition. The update is
// deliberately unguarded: replaying the same event re-applies identical
// values. Duplicate detection happens at the webhook layer.
func (db *DB) MarkBookingPaid(ctx context.Context, id int64, paymentIntentID string) error {
	query := `UPDATE bookings
              SET status = ?, payment_status = ?, payment_intent_id = ?, updated_at = ?
              WHERE id = ?`
	result, err := db.ExecContext(ctx, query,
		models.StatusAwaitingAcceptance, models.PaymentStatusPaid, paymentIntentID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark booking paid: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// StaleUnassigned returns bookings stuck waiting for a washer past the
// cutoff, oldest first, bounded by limit.
func (db *DB) StaleUnassigned(ctx context.Context, cutoff time.Time, limit int) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
              FROM bookings
              WHERE status = ? AND washer_id IS NULL AND created_at < ?
              ORDER BY created_at ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, models.StatusPendingAssignment, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get stale unassigned bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ClaimForWasher atomically assigns a washer to a booking. The WHERE clause
// re-checks the expected prior state, so of two concurrent runs exactly one
// sees an affected row; the other gets ErrAlreadyClaimed.
func (db *DB) ClaimForWasher(ctx context.Context, bookingID, washerID int64) error {
	query := `UPDATE bookings
              SET washer_id = ?, status = ?, updated_at = ?
              WHERE id = ? AND status = ? AND washer_id IS NULL`
	result, err := db.ExecContext(ctx, query,
		washerID, models.StatusWasherAssigned, time.Now(), bookingID, models.StatusPendingAssignment)
	if err != nil {
		return fmt.Errorf("failed to claim booking %d: %w", bookingID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyClaimed
	}
	return nil
}

// UpdateStatusFrom performs a guarded status transition.
func (db *DB) UpdateStatusFrom(ctx context.Context, id int64, from, to string) error {
	query := `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
              FROM bookings
              WHERE date(collection_date) >= ? AND date(collection_date) <= ?
              ORDER BY collection_date ASC, created_at ASC`
	rows, err := db.QueryContext(ctx, query, startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
              FROM bookings WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b               models.Booking
		washerID        sql.NullInt64
		specialItems    string
		addOns          string
		imageURLs       string
		instructions    sql.NullString
		accessNotes     sql.NullString
		paymentIntentID sql.NullString
	)

	err := row.Scan(
		&b.ID, &b.UserID, &washerID, &b.CollectionDate, &b.TimeSlot, &b.WeightTier,
		&specialItems, &addOns, &instructions, &imageURLs, &accessNotes, &b.TotalPrice,
		&b.CollectionPIN, &b.DeliveryPIN, &paymentIntentID, &b.PaymentStatus, &b.Status,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if washerID.Valid {
		b.WasherID = &washerID.Int64
	}
	b.Instructions = instructions.String
	b.AccessNotes = accessNotes.String
	b.PaymentIntentID = paymentIntentID.String

	if err := unmarshalList(specialItems, &b.SpecialItems); err != nil {
		return nil, fmt.Errorf("failed to decode special items: %w", err)
	}
	if err := unmarshalList(addOns, &b.AddOns); err != nil {
		return nil, fmt.Errorf("failed to decode add-ons: %w", err)
	}
	if err := unmarshalList(imageURLs, &b.ImageURLs); err != nil {
		return nil, fmt.Errorf("failed to decode image urls: %w", err)
	}

	return &b, nil
}

func marshalList(list []string) (string, error) {
	if list == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalList(raw string, dst *[]string) error {
	if raw == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return err
	}
	if len(list) > 0 {
		*dst = list
	}
	return nil
}
