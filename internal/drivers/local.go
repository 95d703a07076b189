package drivers

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalDriver implements Driver on the local filesystem. It serves as
// the fast-restore mirror next to a remote driver, or as the sole
// store in development.
type LocalDriver struct {
	basePath string
	logger   *zap.Logger
}

// NewLocalDriver creates a new local filesystem driver.
func NewLocalDriver(basePath string, logger *zap.Logger) *LocalDriver {
	return &LocalDriver{
		basePath: basePath,
		logger:   logger,
	}
}

// BasePath returns the root directory of the driver.
func (d *LocalDriver) BasePath() string {
	return d.basePath
}

// Get retrieves a blob by key.
func (d *LocalDriver) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := d.resolve(key)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("LocalDriver.Get",
		zap.String("key", key),
		zap.String("fullPath", fullPath))

	f, err := os.Open(fullPath) // #nosec G304 - path validated by resolve
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return f, nil
}

// Put stores a blob under key, creating parent directories as needed.
func (d *LocalDriver) Put(ctx context.Context, key string, data io.Reader) error {
	fullPath, err := d.resolve(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0750); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	file, err := os.Create(fullPath) // #nosec G304 - path validated by resolve
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := io.Copy(file, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Delete removes a blob. Deleting a missing key is not an error so
// retention retries stay idempotent.
func (d *LocalDriver) Delete(ctx context.Context, key string) error {
	fullPath, err := d.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// List returns keys starting with prefix.
func (d *LocalDriver) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.Walk(d.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.basePath, path)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return keys, nil
}

// Exists reports whether a blob is present.
func (d *LocalDriver) Exists(ctx context.Context, key string) (bool, error) {
	fullPath, err := d.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// HealthCheck verifies the base path is reachable.
func (d *LocalDriver) HealthCheck(ctx context.Context) error {
	if _, err := os.Stat(d.basePath); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// resolve joins key onto the base path and rejects traversal outside it.
func (d *LocalDriver) resolve(key string) (string, error) {
	fullPath := filepath.Join(d.basePath, filepath.FromSlash(key))
	if !strings.HasPrefix(fullPath, filepath.Clean(d.basePath)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid key: %s", key)
	}
	return fullPath, nil
}
