package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, FrequencyDaily, cfg.Backup.Frequency)
	assert.Equal(t, RetentionCaps{Hourly: 24, Daily: 7, Weekly: 4, Monthly: 12}, cfg.Backup.Retention)
	assert.Equal(t, "local", cfg.Store.Mode)
	assert.Equal(t, 1440, cfg.Objective.RPOMinutes)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recoverd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
backup:
  frequency: hourly
  compression: true
  retention:
    hourly: 12
store:
  mode: s3
  bucket: backups-prod
objectives:
  rpo_minutes: 120
  rto_minutes: 30
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, FrequencyHourly, cfg.Backup.Frequency)
	assert.True(t, cfg.Backup.Compression)
	assert.Equal(t, 12, cfg.Backup.Retention.Hourly)
	// Unset fields keep their defaults
	assert.Equal(t, 7, cfg.Backup.Retention.Daily)
	assert.Equal(t, "s3", cfg.Store.Mode)
	assert.Equal(t, 120, cfg.Objective.RPOMinutes)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("BadYAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("::: not yaml"), 0600))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("InvalidFrequency", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "freq.yaml")
		require.NoError(t, os.WriteFile(path, []byte("backup:\n  frequency: fortnightly\n"), 0600))
		_, err := Load(path)
		assert.ErrorContains(t, err, "frequency")
	})
}

func TestValidate(t *testing.T) {
	t.Run("NegativeRetention", func(t *testing.T) {
		cfg := Default()
		cfg.Backup.Retention.Daily = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("NonPositiveObjectives", func(t *testing.T) {
		cfg := Default()
		cfg.Objective.RPOMinutes = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RECOVERD_PORT", "7070")
	t.Setenv("RECOVERD_STORE_MODE", "s3")
	t.Setenv("RECOVERD_S3_BUCKET", "env-bucket")
	t.Setenv("RECOVERD_BACKUP_FREQUENCY", "weekly")

	cfg := Default()
	LoadFromEnv(cfg)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "s3", cfg.Store.Mode)
	assert.Equal(t, "env-bucket", cfg.Store.Bucket)
	assert.Equal(t, FrequencyWeekly, cfg.Backup.Frequency)
}

func TestBackupConfig_Interval(t *testing.T) {
	cases := map[string]time.Duration{
		FrequencyHourly:  time.Hour,
		FrequencyDaily:   24 * time.Hour,
		FrequencyWeekly:  7 * 24 * time.Hour,
		FrequencyMonthly: 30 * 24 * time.Hour,
	}
	for freq, want := range cases {
		c := BackupConfig{Frequency: freq}
		assert.Equal(t, want, c.Interval(), freq)
	}
}

func TestRetentionCaps_Cap(t *testing.T) {
	caps := RetentionCaps{Hourly: 1, Daily: 2, Weekly: 3, Monthly: 4}
	assert.Equal(t, 1, caps.Cap(FrequencyHourly))
	assert.Equal(t, 2, caps.Cap(FrequencyDaily))
	assert.Equal(t, 3, caps.Cap(FrequencyWeekly))
	assert.Equal(t, 4, caps.Cap(FrequencyMonthly))
	assert.Equal(t, 0, caps.Cap("quarterly"))
}
