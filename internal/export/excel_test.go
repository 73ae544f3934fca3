package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"washhub/internal/database"
	"washhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBookingsReport(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	booking := &models.Booking{
		UserID:         1,
		CollectionDate: time.Now(),
		TimeSlot:       "09:00-11:00",
		WeightTier:     "medium",
		TotalPrice:     2499,
		CollectionPIN:  "1234",
		DeliveryPIN:    "5678",
		PaymentStatus:  models.PaymentStatusPaid,
		Status:         models.StatusPendingAssignment,
	}
	require.NoError(t, db.CreateBooking(ctx, booking))

	exportDir := filepath.Join(t.TempDir(), "exports")
	exporter := NewExporter(db, exportDir, &logger)

	path, err := exporter.BookingsReport(ctx, time.Now().AddDate(0, 0, -1), time.Now().AddDate(0, 0, 1))
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "medium", rows[1][5])
}

func TestBookingsReportEmptyRange(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	exporter := NewExporter(db, filepath.Join(t.TempDir(), "exports"), &logger)

	path, err := exporter.BookingsReport(context.Background(), time.Now(), time.Now())
	require.NoError(t, err)
	assert.FileExists(t, path)
}
