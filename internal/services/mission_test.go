package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"oceancli/internal/analysis"
	"oceancli/internal/config"
	"oceancli/internal/dataprocessing"
	apperrors "oceancli/internal/errors"
	"oceancli/internal/operations"
	"oceancli/internal/shared/testutil"
	"oceancli/pkg/contracts/domain"
)

type fakePublisher struct {
	rels []string
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, localPath, rel string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	p.rels = append(p.rels, filepath.ToSlash(rel))
	return "s3://bucket/" + filepath.ToSlash(rel), nil
}

type missionEnv struct {
	fx      *testutil.SensorFixtures
	out     string
	db      string
	service *MissionService
	pub     *fakePublisher
	logs    *testutil.BufferedSlogHandler
}

func newMissionEnv(t *testing.T, formats ...string) *missionEnv {
	t.Helper()
	fx := testutil.NewSensorFixtures(t)
	fx.WriteFile("glider/ocean.csv", testutil.GliderOceanCSV)
	fx.WriteFile("glider/weather.csv", testutil.GliderWeatherCSV)
	fx.WriteFile("seabed/2024.csv", testutil.SeabedCSV)

	logger, logs := testutil.NewTestLogger(t)
	out := filepath.Join(t.TempDir(), "results")
	storage := config.Default().Storage
	storage.Formats = formats
	storage.SQLitePath = filepath.Join(out, "results.db")

	runner := operations.NewRunner(logger, nil)
	pub := &fakePublisher{}
	writer := NewArtifactWriter(storage, out, pub, nil, logger)
	service := NewMissionService(
		operations.NewBuilder(nil, runner, fx.TestDataDir, logger),
		runner,
		analysis.NewAnalyzer(logger),
		writer,
		nil,
		logger,
	)
	return &missionEnv{fx: fx, out: out, db: storage.SQLitePath, service: service, pub: pub, logs: logs}
}

func readText(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

const fullJob = `
name: canary-2024
missions:
  - name: glider-ocean
    device: glider_ocean
    pipeline:
      extractor:
        dates: {columns: [TimeStamp]}
      stages:
        - op: extract
          path: glider/ocean.csv
    analyses:
      describe: true
      null_unique: true
      continuity: 2
      spikes:
        interpolate: true
        variables:
          - variable: Oxygen_umol_L
            threshold: 0.36
    translate:
      labels: [Variable]
      dictionary: {Oxygen_umol_L: Oxígeno}
  - name: glider-weather
    device: glider_weather
    pipeline:
      extractor:
        dates: {columns: [TimeStamp]}
      stages:
        - op: extract
          path: glider/weather.csv
  - name: seabed
    device: seabed
    pipeline:
      extractor:
        dates: {columns: [TimeStamp]}
      stages:
        - op: extract
          path: seabed/*.csv
    analyses:
      spikes:
        variables:
          - variable: Salinity_PSU
            group: salinity
thresholds:
  - name: salinity
    variable: Salinity_PSU
    missions: [glider-ocean, seabed]
gliders:
  - name: canary
    ocean: glider-ocean
    weather: glider-weather
correlations:
  - name: temperatura_oc_temperatura_clima
    inputs:
      - label: Misión de 2024
        glider: canary
        x: {column: Temperature_C}
        y: {column: Temperature_C}
  - name: temperatura_sal
    inputs:
      - label: Glider
        x: {mission: glider-ocean, column: Temperature_C}
        y: {mission: glider-ocean, column: Salinity_PSU}
      - label: Seabed
        x: {mission: seabed, column: Temperature_C}
        y: {mission: seabed, column: Salinity_PSU}
`

func TestMissionServiceRun(t *testing.T) {
	env := newMissionEnv(t, config.FormatCSV, config.FormatSQLite)
	job, err := ParseJob([]byte(fullJob))
	require.NoError(t, err)

	report, err := env.service.Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, "canary-2024", report.Job)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Missions, 3)

	ocean := report.Missions[0]
	assert.Equal(t, "glider-ocean", ocean.Name)
	assert.Equal(t, 5, ocean.Rows)
	assert.Equal(t, map[string]int{domain.ColumnOxygen: 2}, ocean.Spikes)

	weather := report.Missions[1]
	assert.Nil(t, weather.Spikes)
	assert.ElementsMatch(t, []string{
		filepath.Join(env.out, "glider-weather", "readings.csv"),
		env.db,
	}, weather.Artifacts)

	assert.Contains(t, report.Thresholds, "salinity")
	assert.Len(t, report.Correlations, 4)

	dir := filepath.Join(env.out, "glider-ocean")
	for _, name := range []string{"readings", "describe", "null_unique", "continuity", "spikes", "spikes_reference", "clean"} {
		assert.FileExists(t, filepath.Join(dir, name+".csv"))
	}
	assert.FileExists(t, filepath.Join(env.out, "seabed", "spikes.csv"))
	assert.NoFileExists(t, filepath.Join(env.out, "seabed", "clean.csv"))

	// translated for readers, untranslated for the interpolation
	assert.Contains(t, readText(t, filepath.Join(dir, "spikes.csv")), "Oxígeno")
	reference := readText(t, filepath.Join(dir, "spikes_reference.csv"))
	assert.True(t, strings.HasPrefix(reference, ",Variable,Threshold,TimeStamp,Values\n1,Oxygen_umol_L,0.360,2024-07-10 09:10:00,8.200\n"))

	// both spikes are interpolated between 7.8 and 8.0; oxygen is the last column
	clean := readText(t, filepath.Join(dir, "clean.csv"))
	assert.Contains(t, clean, ",7.867\n")
	assert.Contains(t, clean, ",7.933\n")
	assert.NotContains(t, clean, ",8.200\n")

	correlation := readText(t, filepath.Join(env.out, CorrelationDir, "temperatura_sal.csv"))
	assert.True(t, strings.HasPrefix(correlation, ",Covariance,Pearson,"))
	assert.Contains(t, correlation, "\nGlider,")
	assert.Contains(t, correlation, "\nSeabed,")

	db, err := sql.Open("sqlite", env.db)
	require.NoError(t, err)
	defer db.Close()
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "glider_ocean_spikes"`).Scan(&count))
	assert.Equal(t, 2, count)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "correlation_temperatura_sal"`).Scan(&count))
	assert.Equal(t, 2, count)

	assert.Contains(t, env.pub.rels, "glider-ocean/clean.csv")
	assert.Contains(t, env.pub.rels, "results.db")
	assert.Equal(t, len(env.pub.rels), len(report.Published))

	testutil.AssertLogContains(t, env.logs, slog.LevelInfo, "job_completed")
	testutil.AssertLogContains(t, env.logs, slog.LevelInfo, "threshold_computed")
	testutil.AssertNoErrors(t, env.logs)
}

func TestMissionServiceRunInterpolateWithoutSpikes(t *testing.T) {
	env := newMissionEnv(t, config.FormatCSV)
	job, err := ParseJob([]byte(`
name: quiet
missions:
  - name: seabed
    device: seabed
    pipeline:
      extractor: {dates: {columns: [TimeStamp]}}
      stages: [{op: extract, path: seabed/2024.csv}]
    analyses:
      spikes:
        interpolate: true
        variables:
          - variable: Salinity_PSU
            threshold: 1000
`))
	require.NoError(t, err)

	report, err := env.service.Run(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, report.Missions, 1)
	assert.Equal(t, map[string]int{domain.ColumnSalinity: 0}, report.Missions[0].Spikes)

	dir := filepath.Join(env.out, "seabed")
	assert.Equal(t, ",Variable,Threshold,TimeStamp,Values\n", readText(t, filepath.Join(dir, "spikes_reference.csv")))
	assert.Equal(t, readText(t, filepath.Join(dir, "readings.csv")), readText(t, filepath.Join(dir, "clean.csv")))
	testutil.AssertNoErrors(t, env.logs)
}

func TestSpikeReferenceRoundTrip(t *testing.T) {
	out := t.TempDir()
	storage := config.Default().Storage
	storage.Formats = []string{config.FormatCSV}
	writer := NewArtifactWriter(storage, out, nil, nil, nil)

	stamp := time.Date(2024, 7, 10, 9, 10, 0, 250_000_000, time.UTC)
	spikes := domain.Spikes{Threshold: 0.4, Items: []domain.Spike{
		{Variable: domain.SpikeVariableOxygen, TimeStamp: stamp, Value: 8.2, Index: 1},
	}}

	ctx := context.Background()
	path, err := writer.WriteReference(ctx, Artifact{Mission: "glider", Name: ArtifactSpikeReference, Table: spikes.ToTable(), Index: true})
	require.NoError(t, err)
	assert.Contains(t, readText(t, path), "2024-07-10 09:10:00.25,")

	source := operations.NewPipeline(SpikesExtractor(), operations.NewRunner(nil, nil)).Extract(path)
	loaded, err := operations.Load[domain.Spikes](ctx, source, dataprocessing.SpikesLoader{})
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.True(t, stamp.Equal(loaded.Items[0].TimeStamp))
	assert.Equal(t, 1, loaded.Items[0].Index)
	assert.InDelta(t, 0.4, loaded.Threshold, 1e-9)
}

func TestMissionServiceRunFailures(t *testing.T) {
	tests := []struct {
		name    string
		job     string
		errType apperrors.ErrorType
	}{
		{
			name: "missing input file",
			job: `
name: x
missions:
  - name: a
    device: seabed
    pipeline:
      extractor: {dates: {columns: [TimeStamp]}}
      stages: [{op: extract, path: seabed/none.csv}]
`,
			errType: apperrors.ErrTypePipeline,
		},
		{
			name: "readings without the device columns",
			job: `
name: x
missions:
  - name: a
    device: glider_ocean
    pipeline:
      extractor: {dates: {columns: [TimeStamp]}}
      stages: [{op: extract, path: seabed/2024.csv}]
`,
			errType: apperrors.ErrTypePipeline,
		},
		{
			name: "unknown stage",
			job: `
name: x
missions:
  - name: a
    device: seabed
    pipeline:
      stages: [{op: extract, path: seabed/2024.csv}, {op: pivot}]
`,
			errType: apperrors.ErrTypeValidation,
		},
		{
			name: "spike test on a missing variable",
			job: `
name: x
missions:
  - name: a
    device: seabed
    pipeline:
      extractor: {dates: {columns: [TimeStamp]}}
      stages: [{op: extract, path: seabed/2024.csv}]
    analyses:
      spikes:
        variables: [{variable: Oxygen_umol_L}]
`,
			errType: apperrors.ErrTypePipeline,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newMissionEnv(t, config.FormatCSV)
			job, err := ParseJob([]byte(tt.job))
			require.NoError(t, err)

			_, err = env.service.Run(context.Background(), job)
			require.Error(t, err)
			assert.Equal(t, tt.errType, apperrors.TypeOf(err))
			assert.Empty(t, env.pub.rels)
		})
	}
}

func TestMissionServicePublishFailure(t *testing.T) {
	env := newMissionEnv(t, config.FormatCSV)
	env.pub.err = errors.New("access denied")
	job, err := ParseJob([]byte(`
name: x
missions:
  - name: a
    device: seabed
    pipeline:
      extractor: {dates: {columns: [TimeStamp]}}
      stages: [{op: extract, path: seabed/2024.csv}]
`))
	require.NoError(t, err)

	_, err = env.service.Run(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeStorage, apperrors.TypeOf(err))
	assert.ErrorContains(t, err, "access denied")
	assert.FileExists(t, filepath.Join(env.out, "a", "readings.csv"))
}
