package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"oceancli/internal/files"
	"oceancli/pkg/contracts/domain"
)

const (
	defaultSheet = "Sheet1"
	// excelize rejects longer worksheet names
	maxSheetName = 31
)

// XLSXStorer writes each table to its own worksheet of a workbook. Storing
// into an existing workbook adds the sheet, replacing one with the same name.
type XLSXStorer struct {
	Decimals int

	files  *files.Manager
	logger *slog.Logger
}

// NewXLSXStorer creates a workbook storer. A negative decimals uses DefaultDecimals.
func NewXLSXStorer(decimals int, logger *slog.Logger) *XLSXStorer {
	if decimals < 0 {
		decimals = DefaultDecimals
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXStorer{Decimals: decimals, files: files.NewManager(logger), logger: logger}
}

// Store writes table to the worksheet opts.Name of the workbook at path.
func (s *XLSXStorer) Store(ctx context.Context, table domain.Table, path string, opts StoreOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := table.Validate(); err != nil {
		return fmt.Errorf("invalid table for %s: %w", path, err)
	}
	if err := s.files.EnsureParent(path); err != nil {
		return err
	}

	existing := s.files.FileExists(path)
	var wb *excelize.File
	if existing {
		var err error
		if wb, err = excelize.OpenFile(path); err != nil {
			return fmt.Errorf("failed to open workbook %s: %w", path, err)
		}
	} else {
		wb = excelize.NewFile()
	}
	defer wb.Close()

	sheet := SheetName(opts.Name)
	if err := resetSheet(wb, sheet, !existing); err != nil {
		return fmt.Errorf("failed to prepare sheet %s: %w", sheet, err)
	}

	t := translate(table, opts.Translate)
	layout := layoutOf(opts)
	header := make([]any, 0, len(t.Columns)+1)
	if opts.Index {
		header = append(header, "")
	}
	for _, l := range t.Labels() {
		header = append(header, l)
	}
	if err := wb.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for r := 0; r < t.Len(); r++ {
		row := make([]any, 0, len(header))
		if opts.Index {
			var idx any = r
			if t.Indexes != nil {
				idx = t.Indexes[r]
			}
			row = append(row, s.cell(idx, layout))
		}
		for _, c := range t.Columns {
			row = append(row, s.cell(c.Values[r], layout))
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r, err)
		}
	}

	if idx, err := wb.GetSheetIndex(sheet); err == nil && idx >= 0 {
		wb.SetActiveSheet(idx)
	}
	if err := wb.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}

	s.logger.DebugContext(ctx, "xlsx_stored",
		slog.String("path", path),
		slog.String("sheet", sheet),
		slog.Int("rows", t.Len()))
	return nil
}

// cell converts a table value to a spreadsheet value. Floats are rounded,
// timestamps and durations are written as text.
func (s *XLSXStorer) cell(v any, layout string) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return nil
		}
		p := math.Pow(10, float64(s.Decimals))
		return math.Round(x*p) / p
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return x.Format(layout)
	case time.Duration:
		return formatDuration(x)
	}
	return v
}

// resetSheet leaves wb with an empty worksheet called sheet. In a fresh
// workbook the default sheet is renamed.
func resetSheet(wb *excelize.File, sheet string, fresh bool) error {
	if fresh {
		if sheet == defaultSheet {
			return nil
		}
		return wb.SetSheetName(defaultSheet, sheet)
	}
	idx, err := wb.GetSheetIndex(sheet)
	if err != nil {
		return err
	}
	if idx < 0 {
		_, err := wb.NewSheet(sheet)
		return err
	}
	// a workbook cannot lose its last sheet, so swap in an empty one
	tmp := "~" + sheet
	if len(tmp) > maxSheetName {
		tmp = tmp[:maxSheetName]
	}
	if _, err := wb.NewSheet(tmp); err != nil {
		return err
	}
	if err := wb.DeleteSheet(sheet); err != nil {
		return err
	}
	return wb.SetSheetName(tmp, sheet)
}

// SheetName turns an artifact name into a valid worksheet name.
func SheetName(name string) string {
	if name == "" {
		return defaultSheet
	}
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			r = '_'
		}
		out = append(out, r)
	}
	if len(out) > maxSheetName {
		out = out[:maxSheetName]
	}
	return string(out)
}
