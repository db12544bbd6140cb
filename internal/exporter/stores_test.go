package exporter

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"oceancli/pkg/contracts/domain"
)

func TestXLSXStorer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "glider.xlsx")
	storer := NewXLSXStorer(2, nil)
	ctx := context.Background()

	require.NoError(t, storer.Store(ctx, weatherTable(), path, StoreOptions{Name: "describe"}))

	spikes := domain.Table{
		Columns: []domain.Column{{Label: "Values", Values: []any{8.2345, 7.5}}},
		Indexes: []any{1, 2},
	}
	require.NoError(t, storer.Store(ctx, spikes, path, StoreOptions{Name: "spikes", Index: true}))

	// storing again replaces the sheet
	spikes.Columns[0].Values = []any{1.0, 2.0}
	require.NoError(t, storer.Store(ctx, spikes, path, StoreOptions{Name: "spikes", Index: true}))

	wb, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer wb.Close()

	assert.ElementsMatch(t, []string{"describe", "spikes"}, wb.GetSheetList())

	rows, err := wb.GetRows("describe")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"TimeStamp", "Temperatura Cº", "Variable"}, rows[0])
	assert.Equal(t, []string{"2024-07-10 09:05:00", "25", "Salinity_PSU"}, rows[1])

	rows, err = wb.GetRows("spikes")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"", "Values"}, rows[0])
	assert.Equal(t, []string{"1", "1"}, rows[1])
	assert.Equal(t, []string{"2", "2"}, rows[2])
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Sheet1", SheetName(""))
	assert.Equal(t, "glider_ocean_spikes", SheetName("glider/ocean:spikes"))
	assert.Len(t, SheetName("a_very_long_artifact_name_for_one_mission"), 31)
}

func TestSQLiteStorer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "results.db")
	storer := NewSQLiteStorer(nil)
	ctx := context.Background()

	indexed := weatherTable()
	indexed.Indexes = []any{4, 7, 9}
	require.NoError(t, storer.Store(ctx, indexed, path, StoreOptions{Name: "weather", Index: true}))
	// replaced, not appended
	require.NoError(t, storer.Store(ctx, indexed, path, StoreOptions{Name: "weather", Index: true}))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "weather"`).Scan(&count))
	assert.Equal(t, 3, count)

	var (
		idx   int
		stamp string
		temp  sql.NullFloat64
	)
	require.NoError(t, db.QueryRow(`SELECT row_index, "TimeStamp", "Temperatura Cº" FROM "weather" WHERE "Variable" = 'Oxygen_umol_L'`).
		Scan(&idx, &stamp, &temp))
	assert.Equal(t, 7, idx)
	assert.Equal(t, "2024-07-10 09:10:00", stamp)
	assert.Equal(t, 26.5, temp.Float64)

	require.NoError(t, db.QueryRow(`SELECT "Temperatura Cº" FROM "weather" WHERE row_index = 9`).Scan(&temp))
	assert.False(t, temp.Valid)

	assert.Error(t, storer.Store(ctx, indexed, path, StoreOptions{}))
}

func TestSQLType(t *testing.T) {
	assert.Equal(t, "REAL", sqlType([]any{nil, 1.5}))
	assert.Equal(t, "INTEGER", sqlType([]any{3}))
	assert.Equal(t, "TEXT", sqlType([]any{"x"}))
	assert.Equal(t, "TEXT", sqlType(nil))
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = data
	return &s3.PutObjectOutput{}, nil
}

func TestS3Publisher(t *testing.T) {
	local := filepath.Join(t.TempDir(), "spikes.csv")
	require.NoError(t, os.WriteFile(local, []byte("a,b\n1,2\n"), 0644))
	ctx := context.Background()

	client := &fakePutter{}
	p := NewS3PublisherWithClient(client, "ocean-results", "runs/2024", nil)

	uri, err := p.Publish(ctx, local, filepath.Join("glider", "spikes.csv"))
	require.NoError(t, err)
	assert.Equal(t, "s3://ocean-results/runs/2024/glider/spikes.csv", uri)
	assert.Equal(t, "ocean-results", aws.ToString(client.input.Bucket))
	assert.Equal(t, "runs/2024/glider/spikes.csv", aws.ToString(client.input.Key))
	assert.Equal(t, "text/csv", aws.ToString(client.input.ContentType))
	assert.Equal(t, "a,b\n1,2\n", string(client.body))

	_, err = NewS3PublisherWithClient(&fakePutter{err: errors.New("denied")}, "b", "", nil).Publish(ctx, local, "x.csv")
	assert.ErrorContains(t, err, "denied")

	_, err = p.Publish(ctx, filepath.Join(t.TempDir(), "missing.csv"), "missing.csv")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
