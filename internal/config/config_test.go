package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeedsDefaultsOnFirstRun(t *testing.T) {
	dir := t.TempDir()

	s, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, "umi", s.OCR.Engine)
	assert.Equal(t, "http://127.0.0.1:1224", s.OCR.BaseURL)
	assert.Equal(t, "0123456789KkMm", s.OCR.Allowlist)
	assert.Equal(t, 3, s.Tuning.RelocateAfterFail)
	assert.Equal(t, 4, s.Tuning.OCRWorkers)
	assert.Equal(t, 10, s.Tuning.MissStreakThreshold)
	assert.Equal(t, 180, s.Tuning.PenaltyWaitSec)
	assert.Equal(t, 20, s.Geometry.NameBandHeight)
	assert.Equal(t, 2.5, s.Geometry.DetailScale)

	// The seed is persisted, a second load reads the file back.
	_, err = os.Stat(filepath.Join(dir, "settings.yaml"))
	require.NoError(t, err)
	again, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, s.Tuning, again.Tuning)
}

func TestLoadAppliesPartialOverrides(t *testing.T) {
	dir := t.TempDir()
	content := []byte("log_level: debug\ntuning:\n  relocate_after_fail: 5\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.yaml"), content, 0644))

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, 5, s.Tuning.RelocateAfterFail)
	// Untouched knobs keep their defaults.
	assert.Equal(t, 4, s.Tuning.OCRWorkers)
	assert.Equal(t, "time", s.Mode)
}

func TestTasksPath(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tasks.json"), s.TasksPath())
}
