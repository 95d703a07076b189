package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadFunc receives the freshly loaded config after a file change.
type ReloadFunc func(*Config)

// Watcher hot-reloads the config file. Only the retention caps and
// objective targets are safe to change at runtime; store and server
// settings still require a restart.
type Watcher struct {
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	onLoad  ReloadFunc

	mu      sync.RWMutex
	current *Config
}

// NewWatcher creates a watcher for the given config file.
func NewWatcher(path string, initial *Config, onLoad ReloadFunc, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}

	// Watch the directory, not the file: editors replace files on save.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	return &Watcher{
		path:    path,
		logger:  logger,
		watcher: fw,
		onLoad:  onLoad,
		current: initial,
	}, nil
}

// Current returns the most recently loaded config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Run processes file events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer func() { _ = w.watcher.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// Reload forces a reload outside of a file event (the explicit
// hot-reload operation exposed to operators).
func (w *Watcher) Reload() error {
	return w.reload()
}

func (w *Watcher) reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping previous",
			zap.String("path", w.path),
			zap.Error(err))
		return err
	}
	LoadFromEnv(cfg)

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	w.logger.Info("config reloaded",
		zap.String("path", w.path),
		zap.String("frequency", cfg.Backup.Frequency))

	if w.onLoad != nil {
		w.onLoad(cfg)
	}
	return nil
}
