package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"washhub/internal/models"
)

func (db *DB) CreateApplication(ctx context.Context, app *models.WasherApplication) error {
	query := `INSERT INTO washer_applications (user_id, status, submitted_at) VALUES (?, ?, ?)`
	now := time.Now()
	if app.Status == "" {
		app.Status = models.ApplicationStatusPending
	}
	result, err := db.ExecContext(ctx, query, app.UserID, app.Status, now)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	app.ID = id
	app.SubmittedAt = now
	return nil
}

func (db *DB) GetApplication(ctx context.Context, id int64) (*models.WasherApplication, error) {
	query := `SELECT id, user_id, status, submitted_at, reviewed_at
              FROM washer_applications WHERE id = ?`

	var (
		app        models.WasherApplication
		reviewedAt sql.NullTime
	)
	err := db.QueryRowContext(ctx, query, id).Scan(
		&app.ID, &app.UserID, &app.Status, &app.SubmittedAt, &reviewedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	if reviewedAt.Valid {
		app.ReviewedAt = &reviewedAt.Time
	}
	return &app, nil
}

func (db *DB) UpdateApplicationStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE washer_applications SET status = ?, reviewed_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
