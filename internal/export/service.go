package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/paperhold/docvault/internal/repository"
)

// Service produces XLSX bytes for document exports.
type Service struct {
	documents repository.DocumentRepository
	logger    *slog.Logger
}

func NewService(documents repository.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{documents: documents, logger: logger}
}

// ExportDocumentsXLSX returns an XLSX workbook (as bytes) for the given
// upload-date window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> all documents.
func (s *Service) ExportDocumentsXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	// Normalize dates (date-only, UTC)
	var fromDate, toDate *time.Time
	if from != nil {
		f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		fromDate = &f
	}
	if to != nil {
		t := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, time.UTC)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		today := time.Now().UTC()
		t := time.Date(today.Year(), today.Month(), today.Day(), 23, 59, 59, 0, time.UTC)
		toDate = &t
	}

	recs, err := s.documents.ListBetween(ctx, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Documents"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		_, err := f.NewSheet(sheet)
		if err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Uploaded",
		"Filename",
		"Document Type",
		"Owner",
		"Category",
		"Issue Date",
		"Expiry Date",
		"Country",
		"Amount",
		"Extraction Method",
		"File Path",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		str := func(p *string) string {
			if p == nil {
				return ""
			}
			return *p
		}
		date := func(p *time.Time) string {
			if p == nil {
				return ""
			}
			return p.Format("2006-01-02")
		}

		amount := str(r.AmountValue)
		if amount != "" && r.AmountCurrency != nil {
			amount = amount + " " + *r.AmountCurrency
		}

		write(1, r.CreatedAt.Format("2006-01-02"))
		write(2, r.Filename)
		write(3, str(r.DocumentType))
		write(4, str(r.OwnerName))
		write(5, str(r.Category))
		write(6, date(r.IssueDate))
		write(7, date(r.ExpiryDate))
		write(8, str(r.Country))
		write(9, amount)
		write(10, string(r.ExtractionMethod))
		write(11, r.StoragePath)

		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 12) // uploaded
	_ = f.SetColWidth(sheet, "B", "B", 32) // filename
	_ = f.SetColWidth(sheet, "C", "C", 18) // type
	_ = f.SetColWidth(sheet, "D", "D", 24) // owner
	_ = f.SetColWidth(sheet, "E", "E", 18) // category
	_ = f.SetColWidth(sheet, "F", "G", 12) // dates
	_ = f.SetColWidth(sheet, "H", "H", 10) // country
	_ = f.SetColWidth(sheet, "I", "I", 14) // amount
	_ = f.SetColWidth(sheet, "J", "J", 16) // method
	_ = f.SetColWidth(sheet, "K", "K", 60) // path

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
