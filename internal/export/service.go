// Package export renders batch auto-fill results as an XLSX workbook.
package export

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/autofill/internal/async"
	"github.com/joseph-ayodele/autofill/internal/fields"
)

const Sheet = "AutoFill"

// FixedHeaders precede one column per requested field.
var FixedHeaders = []string{"File", "Status", "Message"}

type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ResultsXLSX writes one row per result. Null field values are left as empty cells.
func (s *Service) ResultsXLSX(results []async.Result, specs []fields.Spec) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName(f.GetSheetName(0), Sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	names := fields.Names(specs)
	headers := append(append([]string{}, FixedHeaders...), names...)
	if err := f.SetSheetRow(Sheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, r := range results {
		out := r.Outcome
		row := make([]any, 0, len(headers))
		row = append(row, filepath.Base(r.Path), string(out.Status), out.Envelope.Message)
		for _, n := range names {
			v := out.Envelope.Data[n]
			if v == nil {
				row = append(row, nil)
				continue
			}
			row = append(row, *v)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(Sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(Sheet, "A", "A", 32)
	_ = f.SetColWidth(Sheet, "B", "B", 10)
	_ = f.SetColWidth(Sheet, "C", "C", 40)
	if len(names) > 0 {
		first, _ := excelize.ColumnNumberToName(len(FixedHeaders) + 1)
		last, _ := excelize.ColumnNumberToName(len(headers))
		_ = f.SetColWidth(Sheet, first, last, 22)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"rows", len(results),
		"fields", len(names),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
