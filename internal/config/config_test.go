package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: sqlite\n"), 0o644))
	t.Setenv("MPS_FILES_DIR", "")
	t.Setenv("INSTANCES_DIR", "")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Experiment.TimeLimitS)
	assert.Equal(t, []float64{0.2, 0.5, 0.8}, cfg.Experiment.FixingRatios)
	assert.Equal(t, []int64{0, 1, 2}, cfg.Experiment.Seeds)
	assert.Equal(t, 1000, cfg.Experiment.MetricBatchSize)
	assert.Equal(t, "grb_only", cfg.Experiment.Selection.BaseGroup)
	assert.Equal(t, 0.05, cfg.Experiment.Selection.MinGap)
	assert.Equal(t, 10.0, cfg.Experiment.Selection.MaxGap)
	assert.Equal(t, "data/instances", cfg.Solver.InstancesDir)
	require.NotNil(t, cfg.Experiment.SelectedFixingRatio)
	assert.Equal(t, 0.2, *cfg.Experiment.SelectedFixingRatio)
}

func TestLoadConfigKeepsZeroSelectedRatio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("experiment:\n  selected_fixing_ratio: 0\n"), 0o644))
	t.Setenv("MPS_FILES_DIR", "")
	t.Setenv("INSTANCES_DIR", "")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Experiment.SelectedFixingRatio)
	assert.Equal(t, 0.0, *cfg.Experiment.SelectedFixingRatio)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("solver:\n  instances_dir: a\n"), 0o644))
	t.Setenv("MPS_FILES_DIR", "/data/mps")
	t.Setenv("INSTANCES_DIR", "")
	t.Setenv("DATABASE_DSN", "file::memory:")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/mps", cfg.Solver.InstancesDir)
	assert.Equal(t, "file::memory:", cfg.Database.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
