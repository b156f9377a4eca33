package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DataDirOverrideTakesHighestPriority(t *testing.T) {
	t.Setenv("SIMULATOR_DATA_DIR", "should-be-ignored")
	dir := filepath.Join(t.TempDir(), "override")

	cfg, err := Load(dir)
	require.NoError(t, err)

	want, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, want, cfg.DataDir)
	assert.DirExists(t, cfg.DataDir)
}

func TestLoad_FallsBackToDataDirEnvVar(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "envdir")
	t.Setenv("SIMULATOR_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	want, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, want, cfg.DataDir)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv("SIMULATOR_DATA_DIR", t.TempDir())
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("SIMULATOR_PORT")
	os.Unsetenv("SIMULATOR_ARCHIVE_BUCKET")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8090, cfg.Port)
	assert.False(t, cfg.ArchiveEnabled())
}

func TestLoad_ArchiveEnabledWhenBucketSet(t *testing.T) {
	t.Setenv("SIMULATOR_DATA_DIR", t.TempDir())
	t.Setenv("SIMULATOR_ARCHIVE_BUCKET", "sim-results")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.ArchiveEnabled())
}

func TestValidate_RejectsNonPositiveWorkers(t *testing.T) {
	cfg := &Config{DefaultWorkers: 0}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNegativeEpsilon(t *testing.T) {
	cfg := &Config{DefaultWorkers: 1, CapitalEpsilonUsd: -0.01}
	assert.Error(t, cfg.Validate())
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	cfg := &Config{DefaultWorkers: 4, CapitalEpsilonUsd: 0.01}
	assert.NoError(t, cfg.Validate())
}
