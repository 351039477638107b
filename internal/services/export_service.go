package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/gatepass/checkout-backend/internal/models"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Checkouts"

var exportHeader = []string{
	"ID", "Employee_no", "Employee_name", "Department", "Location",
	"Purpose", "checkout_time", "checkin_time", "status",
}

// RecordLister returns every checkout record
type RecordLister interface {
	ListAll(ctx context.Context) ([]models.CheckoutRecord, error)
}

// ExportService dumps the full record store for reporting
type ExportService struct {
	records RecordLister
}

// NewExportService creates a new export service
func NewExportService(records RecordLister) *ExportService {
	return &ExportService{records: records}
}

// WriteCSV writes every record as CSV to w
func (s *ExportService) WriteCSV(ctx context.Context, w io.Writer) error {
	rows, err := s.rows(ctx)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return infrastructureError(fmt.Errorf("failed to write csv header: %w", err))
	}
	if err := writer.WriteAll(rows); err != nil {
		return infrastructureError(fmt.Errorf("failed to write csv rows: %w", err))
	}
	return nil
}

// WriteXLSX writes every record as a single-sheet workbook to w
func (s *ExportService) WriteXLSX(ctx context.Context, w io.Writer) error {
	rows, err := s.rows(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return infrastructureError(fmt.Errorf("failed to name sheet: %w", err))
	}

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return infrastructureError(fmt.Errorf("failed to write xlsx header: %w", err))
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return infrastructureError(err)
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return infrastructureError(fmt.Errorf("failed to write xlsx row %d: %w", i+2, err))
		}
	}

	if err := f.Write(w); err != nil {
		return infrastructureError(fmt.Errorf("failed to write xlsx: %w", err))
	}
	return nil
}

func (s *ExportService) rows(ctx context.Context) ([][]string, error) {
	records, err := s.records.ListAll(ctx)
	if err != nil {
		return nil, infrastructureError(err)
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.ID.String(),
			r.EmployeeNo,
			r.EmployeeName,
			r.Department,
			r.Location,
			r.Purpose,
			deref(models.FormatTimestamp(r.CheckoutTime)),
			deref(models.FormatTimestamp(r.CheckinTime)),
			string(r.Status),
		})
	}
	return rows, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
