package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	uploads := filepath.Join(dir, "uploads")
	writeConfig(t, dir, `
server:
  port: "9090"
jwt:
  secret: test
  expire_hours: 2
storage:
  local_path: `+uploads+`
assessment:
  exclusive_attempts: true
credits:
  base_credits: 5
  tiers:
    - min_percentage: 50
      credits: 25
  multipliers:
    hard: 3
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.JWT.ExpireTime)
	assert.True(t, cfg.Assessment.ExclusiveAttempts)
	assert.Equal(t, 30, cfg.Assessment.GraceSeconds)
	assert.Equal(t, 5, cfg.Credits.BaseCredits)
	require.Len(t, cfg.Credits.Tiers, 1)
	assert.Equal(t, CreditTier{MinPercentage: 50, Credits: 25}, cfg.Credits.Tiers[0])
	assert.InDelta(t, 3.0, cfg.Credits.Multipliers["hard"], 0.001)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfg.ConfigFile)

	_, err = os.Stat(uploads)
	assert.NoError(t, err)
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "storage:\n  local_path: "+filepath.Join(dir, "uploads")+"\n")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 72*time.Hour, cfg.JWT.ExpireTime)
	assert.False(t, cfg.Assessment.ExclusiveAttempts)
	assert.Len(t, cfg.Credits.Tiers, 4)
	assert.Equal(t, 10, cfg.Credits.BaseCredits)
}

func TestLoadConfigRejectsShortSecretInRelease(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "server:\n  mode: release\njwt:\n  secret: short\nstorage:\n  local_path: "+filepath.Join(dir, "uploads")+"\n")

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}
