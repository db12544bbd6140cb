package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/golang/snappy"

	"oceancli/internal/dataprocessing"
	"oceancli/internal/files"
	"oceancli/pkg/contracts/domain"
)

// DefaultDecimals is the number of decimals floats are written with.
const DefaultDecimals = 3

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Storer writes a table to path.
type Storer interface {
	Store(ctx context.Context, table domain.Table, path string, opts StoreOptions) error
}

// CSVStorer writes tables as comma separated text. Paths ending in
// dataprocessing.SnappySuffix are written as snappy framed streams.
type CSVStorer struct {
	Decimals int
	// BOMPrefix adds a UTF-8 BOM for Excel compatibility.
	BOMPrefix bool

	files  *files.Manager
	logger *slog.Logger
}

// NewCSVStorer creates a CSV storer. A negative decimals uses DefaultDecimals.
func NewCSVStorer(decimals int, bom bool, logger *slog.Logger) *CSVStorer {
	if decimals < 0 {
		decimals = DefaultDecimals
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVStorer{
		Decimals:  decimals,
		BOMPrefix: bom,
		files:     files.NewManager(logger),
		logger:    logger,
	}
}

// Store writes table to path, creating the parent directories first.
// The table is not modified.
func (s *CSVStorer) Store(ctx context.Context, table domain.Table, path string, opts StoreOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := table.Validate(); err != nil {
		return fmt.Errorf("invalid table for %s: %w", path, err)
	}

	f := cellFormatter{decimals: s.Decimals, layout: layoutOf(opts)}
	header, rows := f.records(translate(table, opts.Translate), opts.Index)
	compressed := strings.HasSuffix(path, dataprocessing.SnappySuffix)

	err := s.files.WriteFile(path, func(w io.Writer) error {
		if compressed {
			sw := snappy.NewBufferedWriter(w)
			if err := s.write(sw, header, rows); err != nil {
				return err
			}
			return sw.Close()
		}
		return s.write(w, header, rows)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.logger.DebugContext(ctx, "csv_stored",
		slog.String("path", path),
		slog.Int("rows", len(rows)),
		slog.Bool("snappy", compressed))
	return nil
}

func (s *CSVStorer) write(w io.Writer, header []string, rows [][]string) error {
	if s.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, record := range rows {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func layoutOf(opts StoreOptions) string {
	if opts.DateLayout == "" {
		return DefaultDateLayout
	}
	return dataprocessing.GoLayout(opts.DateLayout)
}
