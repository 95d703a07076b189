package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Catalog is the index of all known recovery points, the single source
// of truth for retention, restore, and health logic. All mutation goes
// through one mutex so concurrent cleanup and registration cannot lose
// updates. Persistence to Postgres is optional; with a nil store the
// catalog is memory-only.
type Catalog struct {
	mu           sync.RWMutex
	points       map[string]*RecoveryPoint
	store        *SQLStore
	staleTimeout time.Duration
	logger       *zap.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithSQLStore enables Postgres persistence.
func WithSQLStore(store *SQLStore) Option {
	return func(c *Catalog) { c.store = store }
}

// WithStaleTimeout overrides how long an in_progress entry may live
// before the sweeper marks it failed.
func WithStaleTimeout(d time.Duration) Option {
	return func(c *Catalog) { c.staleTimeout = d }
}

// New creates a catalog.
func New(logger *zap.Logger, opts ...Option) *Catalog {
	c := &Catalog{
		points:       make(map[string]*RecoveryPoint),
		staleTimeout: time.Hour,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadPersisted restores catalog state from the SQL store, if any.
func (c *Catalog) LoadPersisted(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	points, err := c.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range points {
		c.points[p.ID] = p
	}
	c.logger.Info("catalog loaded from store", zap.Int("points", len(points)))
	return nil
}

// Register adds a new recovery point. IDs are unique; registering a
// duplicate is an error.
func (c *Catalog) Register(ctx context.Context, p *RecoveryPoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.points[p.ID]; exists {
		return DuplicateIDError{ID: p.ID}
	}

	cp := *p
	c.points[p.ID] = &cp

	if c.store != nil {
		if err := c.store.Save(ctx, &cp); err != nil {
			c.logger.Warn("catalog persist failed",
				zap.String("recovery_point_id", p.ID),
				zap.Error(err))
		}
	}
	return nil
}

// Update replaces the stored point for p.ID. Used by the orchestrators
// for status transitions.
func (c *Catalog) Update(ctx context.Context, p *RecoveryPoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.points[p.ID]; !exists {
		return ErrNotFound(p.ID)
	}

	cp := *p
	c.points[p.ID] = &cp

	if c.store != nil {
		if err := c.store.Save(ctx, &cp); err != nil {
			c.logger.Warn("catalog persist failed",
				zap.String("recovery_point_id", p.ID),
				zap.Error(err))
		}
	}
	return nil
}

// Get returns a copy of the point with the given id.
func (c *Catalog) Get(ctx context.Context, id string) (*RecoveryPoint, error) {
	c.sweep(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.points[id]
	if !ok {
		return nil, ErrNotFound(id)
	}
	cp := *p
	return &cp, nil
}

// List returns matching points sorted newest-first. The staleness
// sweeper runs first so abandoned in_progress entries are reported as
// failed, never as live.
func (c *Catalog) List(ctx context.Context, filter Filter) []*RecoveryPoint {
	c.sweep(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []*RecoveryPoint
	for _, p := range c.points {
		if filter.Matches(p) {
			cp := *p
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result
}

// Remove deletes the catalog entry for id. Removing an unknown id is
// not an error; retention retries partial deletions.
func (c *Catalog) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.points, id)

	if c.store != nil {
		if err := c.store.Delete(ctx, id); err != nil {
			c.logger.Warn("catalog store delete failed",
				zap.String("recovery_point_id", id),
				zap.Error(err))
		}
	}
	return nil
}

// Newest returns the most recent point matching the filter, or nil.
func (c *Catalog) Newest(ctx context.Context, filter Filter) *RecoveryPoint {
	points := c.List(ctx, filter)
	if len(points) == 0 {
		return nil
	}
	return points[0]
}

// sweep marks in_progress entries older than the staleness threshold
// as failed. Runs on every read access so pollers always see terminal
// states for abandoned runs.
func (c *Catalog) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-c.staleTimeout)

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.points {
		if p.Status == StatusInProgress && p.Timestamp.Before(cutoff) {
			p.Status = StatusFailed
			p.Error = "abandoned: exceeded staleness timeout"
			c.logger.Warn("marked stale in-progress point failed",
				zap.String("recovery_point_id", p.ID),
				zap.Time("started", p.Timestamp))
			if c.store != nil {
				if err := c.store.Save(ctx, p); err != nil {
					c.logger.Warn("catalog persist failed",
						zap.String("recovery_point_id", p.ID),
						zap.Error(err))
				}
			}
		}
	}
}
