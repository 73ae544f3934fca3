package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"washhub/internal/domain"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Exporter writes booking reports to Excel files for the ops team.
type Exporter struct {
	repo   domain.Repository
	path   string
	logger *zerolog.Logger
}

func NewExporter(repo domain.Repository, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{
		repo:   repo,
		path:   path,
		logger: logger,
	}
}

var reportHeaders = []string{
	"ID", "Customer", "Washer", "Collection Date", "Time Slot", "Weight Tier",
	"Total (£)", "Payment", "Status", "Created At", "Updated At",
}

// BookingsReport writes all bookings with a collection date inside the
// range to a timestamped xlsx file and returns its path.
func (e *Exporter) BookingsReport(ctx context.Context, startDate, endDate time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	bookings, err := e.repo.GetBookingsByDateRange(ctx, startDate, endDate)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Bookings"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, header := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, booking := range bookings {
		row := i + 2
		washer := ""
		if booking.WasherID != nil {
			washer = fmt.Sprintf("%d", *booking.WasherID)
		}
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), booking.ID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), booking.UserID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), washer)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), booking.CollectionDate.Format("2006-01-02"))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), booking.TimeSlot)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), booking.WeightTier)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), float64(booking.TotalPrice)/100)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), booking.PaymentStatus)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), booking.Status)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), booking.CreatedAt.Format("2006-01-02 15:04"))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("K%d", row), booking.UpdatedAt.Format("2006-01-02 15:04"))
	}

	_ = f.SetColWidth(sheetName, "A", "C", 12)
	_ = f.SetColWidth(sheetName, "D", "E", 16)
	_ = f.SetColWidth(sheetName, "F", "I", 14)
	_ = f.SetColWidth(sheetName, "J", "K", 18)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx",
		startDate.Format("2006-01-02"),
		endDate.Format("2006-01-02"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().
		Str("file_path", filePath).
		Int("bookings", len(bookings)).
		Msg("Excel report created")
	return filePath, nil
}
