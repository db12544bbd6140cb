package services

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"oceancli/internal/config"
	apperrors "oceancli/internal/errors"
	"oceancli/internal/exporter"
	"oceancli/internal/infrastructure"
	"oceancli/pkg/contracts/domain"
)

// Publisher uploads a stored file. rel is the path relative to the output
// directory.
type Publisher interface {
	Publish(ctx context.Context, localPath, rel string) (string, error)
}

// Artifact is one analysis table of a mission.
type Artifact struct {
	Mission   string
	Name      string
	Table     domain.Table
	Index     bool
	Translate *exporter.Translation
}

// ArtifactWriter stores artifacts in every configured format:
//
//	csv     <output>/<mission>/<name>.csv
//	csv.sz  <output>/<mission>/<name>.csv.sz
//	xlsx    <output>/<mission>/<mission>.xlsx, one sheet per artifact
//	sqlite  the configured database, one table <mission>_<name> per artifact
type ArtifactWriter struct {
	storage   config.StorageConfig
	outputDir string

	csv    *exporter.CSVStorer
	xlsx   *exporter.XLSXStorer
	sqlite *exporter.SQLiteStorer

	publisher Publisher
	metrics   *infrastructure.PipelineMetrics
	logger    *slog.Logger

	stored map[string]bool
}

// NewArtifactWriter creates a writer. publisher and metrics may be nil.
func NewArtifactWriter(storage config.StorageConfig, outputDir string, publisher Publisher, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *ArtifactWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArtifactWriter{
		storage:   storage,
		outputDir: outputDir,
		csv:       exporter.NewCSVStorer(storage.Decimals, storage.WriteBOM, logger),
		xlsx:      exporter.NewXLSXStorer(storage.Decimals, logger),
		sqlite:    exporter.NewSQLiteStorer(logger),
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		stored:    make(map[string]bool),
	}
}

// CSVPath is where the csv format stores an artifact.
func (w *ArtifactWriter) CSVPath(mission, name string) string {
	return filepath.Join(w.outputDir, mission, name+".csv")
}

// Write stores a in every configured format and returns the written paths.
func (w *ArtifactWriter) Write(ctx context.Context, a Artifact) ([]string, error) {
	opts := exporter.StoreOptions{
		DateLayout: w.storage.DateLayout,
		Index:      a.Index,
		Translate:  a.Translate,
	}

	var paths []string
	for _, format := range w.storage.Formats {
		var (
			storer exporter.Storer
			path   string
		)
		o := opts
		switch format {
		case config.FormatCSV:
			storer, path = w.csv, w.CSVPath(a.Mission, a.Name)
		case config.FormatCSVSnappy:
			storer, path = w.csv, w.CSVPath(a.Mission, a.Name)+".sz"
		case config.FormatXLSX:
			storer, path = w.xlsx, filepath.Join(w.outputDir, a.Mission, a.Mission+".xlsx")
			o.Name = exporter.SheetName(a.Name)
		case config.FormatSQLite:
			storer, path = w.sqlite, w.storage.SQLitePath
			o.Name = TableName(a.Mission, a.Name)
		default:
			return paths, apperrors.NewConfigError(fmt.Sprintf("unknown storage format %q", format), nil)
		}

		if err := storer.Store(ctx, a.Table, path, o); err != nil {
			return paths, apperrors.NewStorageError(fmt.Sprintf("failed to store %s/%s as %s", a.Mission, a.Name, format), err).
				WithContext("path", path)
		}
		w.stored[path] = true
		w.metrics.RecordArtifact(ctx, format)
		paths = append(paths, path)
	}

	w.logger.InfoContext(ctx, "artifact_stored",
		slog.String("mission", a.Mission),
		slog.String("artifact", a.Name),
		slog.Int("rows", a.Table.Len()),
		slog.Any("paths", paths))
	return paths, nil
}

// WriteReference stores a as CSV whatever the configured formats are, in the
// layout extractors read back: untranslated with exact timestamps.
func (w *ArtifactWriter) WriteReference(ctx context.Context, a Artifact) (string, error) {
	path := w.CSVPath(a.Mission, a.Name)
	err := w.csv.Store(ctx, a.Table, path, exporter.StoreOptions{
		DateLayout: exporter.ExactDateLayout,
		Index:      a.Index,
	})
	if err != nil {
		return "", apperrors.NewStorageError(fmt.Sprintf("failed to store %s/%s", a.Mission, a.Name), err).
			WithContext("path", path)
	}
	w.stored[path] = true
	return path, nil
}

// Publish uploads every file stored so far, once each, and returns their URIs.
// Without a publisher it does nothing.
func (w *ArtifactWriter) Publish(ctx context.Context) ([]string, error) {
	if w.publisher == nil {
		return nil, nil
	}
	paths := make([]string, 0, len(w.stored))
	for p := range w.stored {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	uris := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(w.outputDir, p)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(p)
		}
		uri, err := w.publisher.Publish(ctx, p, rel)
		if err != nil {
			return uris, apperrors.NewStorageError("failed to publish "+rel, err)
		}
		uris = append(uris, uri)
	}
	w.logger.InfoContext(ctx, "artifacts_published", slog.Int("count", len(uris)))
	return uris, nil
}

// TableName builds the SQL table name of an artifact. Runs of characters
// other than letters and digits become a single underscore.
func TableName(mission, name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range mission + "_" + name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}
