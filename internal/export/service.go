package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/intake"
)

const (
	SheetQueue    = "Review Queue"
	SheetMappings = "Field Mappings"
)

// ReviewSource lists settled results awaiting a resolution decision.
type ReviewSource interface {
	ListReviewQueue(ctx context.Context, limit int) ([]intake.ReviewItem, error)
}

// Service produces XLSX bytes for the review worklist.
type Service struct {
	source ReviewSource
	logger *slog.Logger
}

func NewService(source ReviewSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, logger: logger}
}

// ReviewWorklistXLSX returns a workbook with one row per unresolved result
// and one row per field mapping of those results. limit <= 0 means all.
func (s *Service) ReviewWorklistXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	items, err := s.source.ListReviewQueue(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query review queue: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SheetQueue); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetMappings); err != nil {
		return nil, err
	}

	writeHeader(f, SheetQueue, []string{
		"Received",
		"OCR Result ID",
		"Original Filename",
		"Document Type",
		"OCR Confidence",
		"Extraction Confidence",
		"Pending Fields",
		"Analysis",
		"Processing Status",
		"Error",
	})
	writeHeader(f, SheetMappings, []string{
		"OCR Result ID",
		"Field",
		"Extracted Value",
		"Confidence",
		"Status",
	})

	row, mrow := 2, 2
	for _, it := range items {
		r := it.Result
		docType := ""
		if r.DocumentType != nil {
			docType = string(*r.DocumentType)
		}
		var conf, exConf any = "", ""
		if r.Confidence != nil {
			conf = *r.Confidence
		}
		analysis := ""
		if r.ExtractedData != nil {
			exConf = r.ExtractedData.Confidence
			analysis = truncate(r.ExtractedData.Analysis, 200)
		}
		filename := ""
		if it.Scan != nil {
			filename = it.Scan.OriginalFilename
		}
		errMsg := ""
		if r.ErrorMessage != nil {
			errMsg = truncate(*r.ErrorMessage, 200)
		}
		pending := 0
		for _, m := range it.Mappings {
			if m.Status == constants.MappingPending {
				pending++
			}
		}

		writeRow(f, SheetQueue, row, r.CreatedAt.Format(time.RFC3339), r.ID.String(), filename,
			docType, conf, exConf, pending, analysis, string(r.ProcessingStatus), errMsg)
		row++

		for _, m := range it.Mappings {
			var mc any = ""
			if m.Confidence != nil {
				mc = *m.Confidence
			}
			writeRow(f, SheetMappings, mrow, r.ID.String(), string(m.FieldName), m.ExtractedValue, mc, string(m.Status))
			mrow++
		}
	}

	_ = f.SetColWidth(SheetQueue, "A", "A", 22) // received
	_ = f.SetColWidth(SheetQueue, "B", "B", 38) // id
	_ = f.SetColWidth(SheetQueue, "C", "C", 32) // filename
	_ = f.SetColWidth(SheetQueue, "D", "G", 16) // type, confidences, count
	_ = f.SetColWidth(SheetQueue, "H", "H", 60) // analysis
	_ = f.SetColWidth(SheetQueue, "I", "I", 18)
	_ = f.SetColWidth(SheetQueue, "J", "J", 48)
	_ = f.SetColWidth(SheetMappings, "A", "A", 38)
	_ = f.SetColWidth(SheetMappings, "B", "B", 20)
	_ = f.SetColWidth(SheetMappings, "C", "C", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"results", len(items),
		"mappings", mrow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
