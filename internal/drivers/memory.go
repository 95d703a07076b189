package drivers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryDriver implements Driver in memory. Used by tests and by the
// DR harness when an isolated throwaway store is needed.
type MemoryDriver struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	// FailPuts, FailGets and FailDeletes inject failures for
	// resilience tests.
	FailPuts    bool
	FailGets    bool
	FailDeletes bool
}

// NewMemoryDriver creates an empty in-memory driver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		blobs: make(map[string][]byte),
	}
}

// Get retrieves a blob by key.
func (d *MemoryDriver) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.FailGets {
		return nil, fmt.Errorf("memory driver: gets disabled")
	}

	data, ok := d.blobs[key]
	if !ok {
		return nil, fmt.Errorf("not found: %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Put stores a blob.
func (d *MemoryDriver) Put(ctx context.Context, key string, data io.Reader) error {
	if d.FailPuts {
		return fmt.Errorf("memory driver: puts disabled")
	}

	buf, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.blobs[key] = buf
	return nil
}

// Delete removes a blob. Missing keys are not an error.
func (d *MemoryDriver) Delete(ctx context.Context, key string) error {
	if d.FailDeletes {
		return fmt.Errorf("memory driver: deletes disabled")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.blobs, key)
	return nil
}

// List returns keys under a prefix, sorted.
func (d *MemoryDriver) List(ctx context.Context, prefix string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var keys []string
	for key := range d.blobs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Exists reports whether a blob is present.
func (d *MemoryDriver) Exists(ctx context.Context, key string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.blobs[key]
	return ok, nil
}

// Corrupt flips one byte of a stored blob. Test hook for integrity
// checks.
func (d *MemoryDriver) Corrupt(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, ok := d.blobs[key]
	if !ok || len(data) == 0 {
		return false
	}
	mutated := make([]byte, len(data))
	copy(mutated, data)
	mutated[len(mutated)/2] ^= 0xFF
	d.blobs[key] = mutated
	return true
}

// Len returns the number of stored blobs.
func (d *MemoryDriver) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.blobs)
}
