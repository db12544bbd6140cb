package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"oceancli/internal/config"
	apperrors "oceancli/internal/errors"
	"oceancli/internal/shared/testutil"
	"oceancli/pkg/contracts/domain"
)

func sampleTable() domain.Table {
	return domain.Table{Columns: []domain.Column{
		{Label: "Variable", Values: []any{"Salinity_PSU", "Oxygen_umol_L"}},
		{Label: "Values", Values: []any{36.2, 8.2}},
	}}
}

func TestArtifactWriterFormats(t *testing.T) {
	out := t.TempDir()
	storage := config.Default().Storage
	storage.Formats = []string{config.FormatCSV, config.FormatCSVSnappy, config.FormatXLSX, config.FormatSQLite}
	storage.SQLitePath = filepath.Join(out, "db", "results.db")
	storage.Decimals = 1

	w := NewArtifactWriter(storage, out, nil, nil, nil)
	ctx := context.Background()

	paths, err := w.Write(ctx, Artifact{Mission: "glider", Name: "spikes", Table: sampleTable()})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(out, "glider", "spikes.csv"),
		filepath.Join(out, "glider", "spikes.csv.sz"),
		filepath.Join(out, "glider", "glider.xlsx"),
		storage.SQLitePath,
	}, paths)

	_, err = w.Write(ctx, Artifact{Mission: "glider", Name: "describe", Table: sampleTable()})
	require.NoError(t, err)

	assert.Equal(t, "Variable,Values\nSalinity_PSU,36.2\nOxygen_umol_L,8.2\n", readText(t, paths[0]))
	assert.Equal(t, readText(t, paths[0]), testutil.ReadSnappy(t, paths[1]))

	wb, err := excelize.OpenFile(paths[2])
	require.NoError(t, err)
	defer wb.Close()
	assert.ElementsMatch(t, []string{"spikes", "describe"}, wb.GetSheetList())

	// nothing to publish to
	uris, err := w.Publish(ctx)
	require.NoError(t, err)
	assert.Empty(t, uris)
}

func TestArtifactWriterPublish(t *testing.T) {
	out := t.TempDir()
	storage := config.Default().Storage
	storage.Formats = []string{config.FormatCSV}
	pub := &fakePublisher{}
	w := NewArtifactWriter(storage, out, pub, nil, nil)
	ctx := context.Background()

	for _, name := range []string{"b", "a", "a"} {
		_, err := w.Write(ctx, Artifact{Mission: "seabed", Name: name, Table: sampleTable()})
		require.NoError(t, err)
	}

	uris, err := w.Publish(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"seabed/a.csv", "seabed/b.csv"}, pub.rels)
	assert.Equal(t, []string{"s3://bucket/seabed/a.csv", "s3://bucket/seabed/b.csv"}, uris)
}

func TestArtifactWriterErrors(t *testing.T) {
	out := t.TempDir()
	storage := config.Default().Storage
	ctx := context.Background()

	storage.Formats = []string{"parquet"}
	_, err := NewArtifactWriter(storage, out, nil, nil, nil).Write(ctx, Artifact{Mission: "m", Name: "n", Table: sampleTable()})
	assert.Equal(t, apperrors.ErrTypeConfig, apperrors.TypeOf(err))

	storage.Formats = []string{config.FormatCSV}
	bad := domain.Table{Columns: []domain.Column{
		{Label: "a", Values: []any{1.0}},
		{Label: "b", Values: []any{}},
	}}
	_, err = NewArtifactWriter(storage, out, nil, nil, nil).Write(ctx, Artifact{Mission: "m", Name: "n", Table: bad})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeStorage, apperrors.TypeOf(err))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, filepath.Join(out, "m", "n.csv"), appErr.Context["path"])
}

func TestTableName(t *testing.T) {
	tests := []struct {
		mission, name, want string
	}{
		{"glider-ocean", "spikes", "glider_ocean_spikes"},
		{"Misión 2022", "null_unique", "Misión_2022_null_unique"},
		{"correlation", "temp vs. temp", "correlation_temp_vs_temp"},
		{"-seabed-", "clean", "seabed_clean"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TableName(tt.mission, tt.name))
	}
}
