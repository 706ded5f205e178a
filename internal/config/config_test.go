package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.WorkersCount)
	assert.Equal(t, 50, cfg.SampleLimit)
	assert.Equal(t, "verified", cfg.MatchedMethod)
	assert.Empty(t, cfg.TargetProvinces)
	assert.Equal(t, []string{"file"}, cfg.OutputSinks)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WORKERS_COUNT", "8")
	t.Setenv("OUTPUT_SINKS", "file, manticore ,")
	t.Setenv("MIN_SUCCESS_RATE", "0.99")
	t.Setenv("MANTICORE_TIMEOUT", "5s")
	t.Setenv("DETECT_SWAP", "true")
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.WorkersCount)
	assert.Equal(t, []string{"file", "manticore"}, cfg.OutputSinks)
	assert.Equal(t, 0.99, cfg.MinSuccessRate)
	assert.Equal(t, 5*time.Second, cfg.ManticoreConnTimeout)
	assert.True(t, cfg.DetectSwap)
	assert.Equal(t, "postgres://postgres:secret@db:5432/geonorm?sslmode=disable", cfg.PostgresDSN)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("WORKERS_COUNT", "many")
	t.Setenv("DETECT_SWAP", "maybe")
	t.Setenv("OUTPUT_SINKS", " , ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.WorkersCount)
	assert.False(t, cfg.DetectSwap)
	assert.Equal(t, []string{"file"}, cfg.OutputSinks)
}
