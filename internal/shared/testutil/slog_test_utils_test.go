package testutil

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandler(t *testing.T) {
	t.Run("captures records and attributes", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Info("stage_completed", slog.String("stage", "sort_values"))
		logger.Error("stage_failed", slog.Int("code", 2))

		require.Equal(t, 2, handler.Count())
		assert.True(t, handler.ContainsMessage("stage_completed"))
		assert.True(t, handler.ContainsAttr("stage", "sort_values"))
		assert.Len(t, handler.GetRecordsByLevel(slog.LevelError), 1)
	})

	t.Run("derived loggers share the store", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.With("pipeline", "seabed").WithGroup("run").Info("run_started", "stages", 3)

		require.Equal(t, 1, handler.Count())
		assert.True(t, handler.ContainsAttr("pipeline", "seabed"))
		assert.True(t, handler.ContainsAttr("run.stages", int64(3)))
	})

	t.Run("clear", func(t *testing.T) {
		logger, handler := NewTestLogger(t)
		logger.Warn("a")
		handler.Clear()
		assert.Zero(t, handler.Count())
		assert.Empty(t, handler.Messages())
	})
}

func TestSensorFixtures(t *testing.T) {
	fx := NewSensorFixtures(t)

	plain := fx.WriteFile("nested/seabed.csv", SeabedCSV)
	data, err := os.ReadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, SeabedCSV, string(data))

	packed := fx.WriteSnappy("spikes.csv.sz", SpikesCSV)
	assert.Equal(t, SpikesCSV, ReadSnappy(t, packed))
}
