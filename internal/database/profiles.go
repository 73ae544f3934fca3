package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"washhub/internal/models"
)

const profileColumns = `user_id, role, washer_status, stripe_account_id,
	stripe_account_status, payouts_enabled, charges_enabled, created_at, updated_at`

func (db *DB) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	query := `INSERT INTO profiles (user_id, role, washer_status, stripe_account_id,
                stripe_account_status, payouts_enabled, charges_enabled, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(user_id) DO UPDATE SET
                role = excluded.role,
                washer_status = excluded.washer_status,
                stripe_account_id = COALESCE(excluded.stripe_account_id, stripe_account_id),
                stripe_account_status = excluded.stripe_account_status,
                payouts_enabled = excluded.payouts_enabled,
                charges_enabled = excluded.charges_enabled,
                updated_at = excluded.updated_at`

	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		profile.UserID,
		profile.Role,
		profile.WasherStatus,
		nullString(profile.StripeAccountID),
		profile.StripeAccountStatus,
		profile.PayoutsEnabled,
		profile.ChargesEnabled,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func (db *DB) GetProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = ?`
	profile, err := scanProfile(db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// EligibleWashers returns profiles allowed to receive assignments at this
// moment: role washer, approval granted.
func (db *DB) EligibleWashers(ctx context.Context) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumns + `
              FROM profiles
              WHERE role = ? AND washer_status = ?
              ORDER BY user_id ASC`
	rows, err := db.QueryContext(ctx, query, models.RoleWasher, models.WasherStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to get eligible washers: %w", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (db *DB) UpdateWasherStatus(ctx context.Context, userID int64, status string) error {
	query := `UPDATE profiles SET washer_status = ?, updated_at = ? WHERE user_id = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update washer status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStripeAccount writes the derived account status and raw enabled
// flags to the profile matching the Stripe account id. Returns false when no
// profile matched; callers log that, they do not escalate.
func (db *DB) UpdateStripeAccount(ctx context.Context, accountID, status string, payoutsEnabled, chargesEnabled bool) (bool, error) {
	query := `UPDATE profiles
              SET stripe_account_status = ?, payouts_enabled = ?, charges_enabled = ?, updated_at = ?
              WHERE stripe_account_id = ?`
	result, err := db.ExecContext(ctx, query, status, payoutsEnabled, chargesEnabled, time.Now(), accountID)
	if err != nil {
		return false, fmt.Errorf("failed to update stripe account: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p         models.Profile
		accountID sql.NullString
	)
	err := row.Scan(
		&p.UserID, &p.Role, &p.WasherStatus, &accountID,
		&p.StripeAccountStatus, &p.PayoutsEnabled, &p.ChargesEnabled,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.StripeAccountID = accountID.String
	return &p, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
