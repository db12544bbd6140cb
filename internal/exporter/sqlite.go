package exporter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"

	"oceancli/internal/files"
	"oceancli/pkg/contracts/domain"
)

// IndexColumn names the index column of stored SQL tables.
const IndexColumn = "row_index"

// SQLiteStorer writes each table to a SQL table of a SQLite database. The
// SQL table is dropped and recreated on every store.
type SQLiteStorer struct {
	BusyTimeout time.Duration

	files  *files.Manager
	logger *slog.Logger
}

// NewSQLiteStorer creates a database storer.
func NewSQLiteStorer(logger *slog.Logger) *SQLiteStorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStorer{
		BusyTimeout: 5 * time.Second,
		files:       files.NewManager(logger),
		logger:      logger,
	}
}

// Store replaces the SQL table opts.Name of the database at path with table.
func (s *SQLiteStorer) Store(ctx context.Context, table domain.Table, path string, opts StoreOptions) error {
	if opts.Name == "" {
		return fmt.Errorf("a table name is required to store into %s", path)
	}
	if err := table.Validate(); err != nil {
		return fmt.Errorf("invalid table for %s: %w", path, err)
	}
	if err := s.files.EnsureParent(path); err != nil {
		return err
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, s.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer db.Close()

	t := translate(table, opts.Translate)
	layout := layoutOf(opts)

	columns := make([]string, 0, len(t.Columns)+1)
	defs := make([]string, 0, len(t.Columns)+1)
	if opts.Index {
		columns = append(columns, IndexColumn)
		defs = append(defs, quoteIdent(IndexColumn)+" "+sqlType(t.Indexes))
	}
	for _, c := range t.Columns {
		columns = append(columns, c.Label)
		defs = append(defs, quoteIdent(c.Label)+" "+sqlType(c.Values))
	}
	name := quoteIdent(opts.Name)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", opts.Name, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create table %s: %w", opts.Name, err)
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		name, strings.Join(quoted, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for r := 0; r < t.Len(); r++ {
		args := make([]any, 0, len(columns))
		if opts.Index {
			var idx any = r
			if t.Indexes != nil {
				idx = t.Indexes[r]
			}
			args = append(args, sqlValue(idx, layout))
		}
		for _, c := range t.Columns {
			args = append(args, sqlValue(c.Values[r], layout))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", r, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit table %s: %w", opts.Name, err)
	}

	s.logger.DebugContext(ctx, "sqlite_stored",
		slog.String("path", path),
		slog.String("table", opts.Name),
		slog.Int("rows", t.Len()))
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// sqlType picks the column affinity from the first non-null value.
func sqlType(values []any) string {
	for _, v := range values {
		switch x := v.(type) {
		case nil:
			continue
		case float64:
			if math.IsNaN(x) {
				continue
			}
			return "REAL"
		case float32:
			return "REAL"
		case int, int64:
			return "INTEGER"
		}
		return "TEXT"
	}
	return "TEXT"
}

func sqlValue(v any, layout string) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return nil
		}
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
