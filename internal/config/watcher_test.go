package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, path, frequency string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path,
		[]byte("backup:\n  frequency: "+frequency+"\n"), 0600))
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recoverd.yaml")
	writeConfig(t, path, "daily")

	initial, err := Load(path)
	require.NoError(t, err)

	var applied *Config
	w, err := NewWatcher(path, initial, func(cfg *Config) { applied = cfg }, zap.NewNop())
	require.NoError(t, err)

	writeConfig(t, path, "hourly")
	require.NoError(t, w.Reload())

	assert.Equal(t, FrequencyHourly, w.Current().Backup.Frequency)
	require.NotNil(t, applied)
	assert.Equal(t, FrequencyHourly, applied.Backup.Frequency)
}

func TestWatcher_KeepsPreviousOnBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recoverd.yaml")
	writeConfig(t, path, "daily")

	initial, err := Load(path)
	require.NoError(t, err)

	callbackRan := false
	w, err := NewWatcher(path, initial, func(cfg *Config) { callbackRan = true }, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("backup:\n  frequency: never\n"), 0600))
	assert.Error(t, w.Reload())

	assert.Equal(t, FrequencyDaily, w.Current().Backup.Frequency, "previous config survives")
	assert.False(t, callbackRan)
}

func TestWatcher_PicksUpFileEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recoverd.yaml")
	writeConfig(t, path, "daily")

	initial, err := Load(path)
	require.NoError(t, err)

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, initial, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Give the watcher a moment to be scheduled before the write
	time.Sleep(50 * time.Millisecond)
	writeConfig(t, path, "weekly")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, FrequencyWeekly, cfg.Backup.Frequency)
	case <-time.After(3 * time.Second):
		t.Fatal("reload callback never fired")
	}
}
