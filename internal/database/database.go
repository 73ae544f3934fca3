package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a row lookup matches nothing.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyClaimed is returned when a conditional assignment update
	// matches zero rows because another run claimed the booking first.
	ErrAlreadyClaimed = errors.New("booking already claimed")

	// ErrStatusConflict is returned when a guarded status transition finds
	// the row no longer in the expected prior status.
	ErrStatusConflict = errors.New("booking status conflict")
)

type DB struct {
	*sql.DB
	log zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// busy_timeout keeps concurrent writers (scheduler tick racing the
	// trigger endpoint) from failing with SQLITE_BUSY.
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: db, log: logger.With().Str("component", "database").Logger()}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER NOT NULL,
            washer_id INTEGER,
            collection_date DATETIME NOT NULL,
            time_slot TEXT NOT NULL,
            weight_tier TEXT NOT NULL,
            special_items TEXT NOT NULL DEFAULT '[]',
            add_ons TEXT NOT NULL DEFAULT '[]',
            instructions TEXT,
            image_urls TEXT NOT NULL DEFAULT '[]',
            access_notes TEXT,
            total_price INTEGER NOT NULL DEFAULT 0,
            collection_pin TEXT NOT NULL,
            delivery_pin TEXT NOT NULL,
            payment_intent_id TEXT,
            payment_status TEXT NOT NULL DEFAULT 'unpaid',
            status TEXT NOT NULL DEFAULT 'pending_payment',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS profiles (
            user_id INTEGER PRIMARY KEY,
            role TEXT NOT NULL DEFAULT 'customer',
            washer_status TEXT NOT NULL DEFAULT 'none',
            stripe_account_id TEXT,
            stripe_account_status TEXT NOT NULL DEFAULT 'pending',
            payouts_enabled BOOLEAN NOT NULL DEFAULT 0,
            charges_enabled BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS washer_applications (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            submitted_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            reviewed_at DATETIME
        )`,

		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            booking_id INTEGER NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_washer_id ON bookings(washer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_created_at ON bookings(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_role ON profiles(role)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_stripe_account ON profiles(stripe_account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_applications_user_id ON washer_applications(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
