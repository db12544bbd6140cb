package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "oceancli/internal/errors"
)

const validJob = `
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
      spikes:
        interpolate: true
        variables:
          - variable: Oxygen_umol_L
            threshold: 0.36
          - variable: Salinity_PSU
            group: salinity
  - name: glider-weather
    device: glider_weather
    pipeline:
      extractor:
        dates: {columns: [TimeStamp]}
      stages:
        - op: extract
          path: glider/weather.csv
thresholds:
  - name: salinity
    variable: Salinity_PSU
    missions: [glider-ocean]
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
`

func TestParseJob(t *testing.T) {
	job, err := ParseJob([]byte(validJob))
	require.NoError(t, err)

	assert.Equal(t, "canary-2024", job.Name)
	require.Len(t, job.Missions, 2)

	ocean := job.Missions[0]
	assert.Equal(t, DeviceGliderOcean, ocean.Device)
	assert.True(t, ocean.Analyses.Describe)
	assert.True(t, ocean.Analyses.Spikes.Interpolate)
	require.Len(t, ocean.Analyses.Spikes.Variables, 2)
	require.NotNil(t, ocean.Analyses.Spikes.Variables[0].Threshold)
	assert.Equal(t, 0.36, *ocean.Analyses.Spikes.Variables[0].Threshold)
	assert.Equal(t, "salinity", ocean.Analyses.Spikes.Variables[1].Group)
	require.Len(t, ocean.Pipeline.Stages, 1)
	assert.Equal(t, "glider/ocean.csv", ocean.Pipeline.Stages[0].Path)

	require.Len(t, job.Correlations, 1)
	assert.Equal(t, "canary", job.Correlations[0].Inputs[0].Glider)
}

func TestParseJobErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		errType apperrors.ErrorType
		msg     string
	}{
		{
			name:    "malformed yaml",
			doc:     "name: [unterminated",
			errType: apperrors.ErrTypeParsing,
		},
		{
			name:    "unknown field",
			doc:     "name: x\nmissons: []\n",
			errType: apperrors.ErrTypeParsing,
		},
		{
			name:    "no missions",
			doc:     "name: x\n",
			errType: apperrors.ErrTypeValidation,
			msg:     "Missions",
		},
		{
			name: "unknown device",
			doc: `
name: x
missions:
  - {name: a, device: buoy}
`,
			errType: apperrors.ErrTypeValidation,
			msg:     "Device",
		},
		{
			name: "mission name with a path separator",
			doc: `
name: x
missions:
  - {name: a/b, device: seabed}
`,
			errType: apperrors.ErrTypeValidation,
			msg:     "Name",
		},
		{
			name: "duplicate mission",
			doc: `
name: x
missions:
  - {name: a, device: seabed}
  - {name: a, device: seabed}
`,
			errType: apperrors.ErrTypeValidation,
			msg:     "defined twice",
		},
		{
			name: "threshold group over an unknown mission",
			doc: `
name: x
missions:
  - {name: a, device: seabed}
thresholds:
  - {name: sal, variable: Salinity_PSU, missions: [b]}
`,
			errType: apperrors.ErrTypeValidation,
			msg:     `unknown mission "b"`,
		},
		{
			name: "spike target with an unknown group",
			doc: `
name: x
missions:
  - name: a
    device: seabed
    analyses:
      spikes:
        variables: [{variable: Salinity_PSU, group: sal}]
`,
			errType: apperrors.ErrTypeValidation,
			msg:     `unknown threshold group "sal"`,
		},
		{
			name: "glider over the wrong devices",
			doc: `
name: x
missions:
  - {name: a, device: seabed}
  - {name: b, device: glider_weather}
gliders:
  - {name: g, ocean: a, weather: b}
`,
			errType: apperrors.ErrTypeValidation,
			msg:     "is not a glider_ocean mission",
		},
		{
			name: "correlation over an unknown glider",
			doc: `
name: x
missions:
  - {name: a, device: seabed}
correlations:
  - name: c
    inputs:
      - {label: l, glider: g, x: {column: Temperature_C}, y: {column: Temperature_C}}
`,
			errType: apperrors.ErrTypeValidation,
			msg:     `unknown glider "g"`,
		},
		{
			name: "correlation over an unknown mission",
			doc: `
name: x
missions:
  - {name: a, device: seabed}
correlations:
  - name: c
    inputs:
      - {label: l, x: {mission: a, column: Temperature_C}, y: {mission: z, column: Salinity_PSU}}
`,
			errType: apperrors.ErrTypeValidation,
			msg:     `unknown mission "z"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJob([]byte(tt.doc))
			require.Error(t, err)
			assert.Equal(t, tt.errType, apperrors.TypeOf(err))
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestLoadJob(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validJob), 0644))

	job, err := LoadJob(path)
	require.NoError(t, err)
	assert.Equal(t, "canary-2024", job.Name)

	_, err = LoadJob(filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, apperrors.ErrTypeNotFound, apperrors.TypeOf(err))
	assert.Equal(t, 1, apperrors.ExitCode(err))
}
