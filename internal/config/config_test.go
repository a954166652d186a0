package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.InDelta(t, 0.05, cfg.Pipeline.Contamination, 1e-9)
	assert.Equal(t, int64(42), cfg.Pipeline.Seed)
	assert.Equal(t, 30, cfg.Pipeline.ForecastHorizonDays)
	assert.InDelta(t, 0.05, cfg.Pipeline.ChangepointPriorScale, 1e-9)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"server:\n  port: 9090\npipeline:\n  contamination: 0.1\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 0.1, cfg.Pipeline.Contamination, 1e-9)
	// Untouched sections keep their defaults.
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, int64(42), cfg.Pipeline.Seed)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_SERVER_PORT", "7070")
	t.Setenv("APP_PIPELINE_SEED", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, int64(7), cfg.Pipeline.Seed)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"pipeline:\n  contamination: 0.9\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestGetPaths(t *testing.T) {
	p, err := GetPaths("/srv/app/data")
	require.NoError(t, err)

	assert.Equal(t, "/srv/app/data", p.DataDir)
	assert.Equal(t, filepath.Join("/srv/app/data", "district_flows.csv"), p.DistrictFlowsCSV)
	assert.Equal(t, filepath.Join("/srv/app/data", "sources"), p.ActivitySourceDir)
	assert.Equal(t, filepath.Join("/srv/app", "logs"), p.LogsDir)
}

func TestEnsureDirs(t *testing.T) {
	p, err := GetPaths(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	require.NoError(t, p.EnsureDirs())

	for _, dir := range []string{p.DataDir, p.LogsDir, p.ActivitySourceDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
