package backup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FairForge/recoverd/internal/artifact"
	"github.com/FairForge/recoverd/internal/catalog"
	"github.com/FairForge/recoverd/internal/component"
	"github.com/FairForge/recoverd/internal/events"
	"github.com/FairForge/recoverd/internal/metrics"
)

// ErrBackupInProgress is returned when a createBackup call arrives
// while another run holds the run-lock. The caller is expected to
// skip, not queue.
var ErrBackupInProgress = fmt.Errorf("backup already in progress")

// Orchestrator drives the create-backup workflow.
type Orchestrator struct {
	registry *component.Registry
	store    *artifact.Store
	catalog  *catalog.Catalog
	bus      *events.Bus
	metrics  *metrics.Metrics
	logger   *zap.Logger

	// defaultComponents returns the configured full set; resolved per
	// run so hot-reload takes effect.
	defaultComponents func() []string

	// onSuccess runs retention cleanup after a completed backup.
	onSuccess func(ctx context.Context)

	runMu sync.Mutex

	// most recent completed run duration, read by the health monitor
	durMu        sync.RWMutex
	lastDuration time.Duration
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithDefaultComponents sets the resolver for the configured full set.
func WithDefaultComponents(fn func() []string) Option {
	return func(o *Orchestrator) { o.defaultComponents = fn }
}

// WithRetention sets the cleanup hook run after each success.
func WithRetention(fn func(ctx context.Context)) Option {
	return func(o *Orchestrator) { o.onSuccess = fn }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator creates a backup orchestrator.
func NewOrchestrator(registry *component.Registry, store *artifact.Store,
	cat *catalog.Catalog, bus *events.Bus, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:          registry,
		store:             store,
		catalog:           cat,
		bus:               bus,
		logger:            logger,
		defaultComponents: func() []string { return nil },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CreateBackup runs the full backup workflow and returns the
// resulting recovery point. At most one backup executes at a time;
// a call that arrives mid-run returns ErrBackupInProgress instead of
// stacking. On any step failure the catalog entry is marked failed
// and the summarized error is returned; retention never runs after a
// failure.
func (o *Orchestrator) CreateBackup(ctx context.Context, kind string, components []string) (*catalog.RecoveryPoint, error) {
	if !o.runMu.TryLock() {
		o.logger.Info("backup tick coalesced, run already in progress")
		o.bus.Publish(ctx, events.Event{Type: events.BackupSkipped})
		return nil, ErrBackupInProgress
	}
	defer o.runMu.Unlock()

	if kind == "" {
		kind = catalog.KindFull
	}
	if kind != catalog.KindFull && kind != catalog.KindIncremental {
		return nil, fmt.Errorf("invalid backup kind: %s", kind)
	}
	if len(components) == 0 {
		components = o.defaultComponents()
	}
	if len(components) == 0 {
		components = o.registry.Names()
	}

	started := time.Now()
	point := &catalog.RecoveryPoint{
		ID:         uuid.New().String(),
		Timestamp:  started,
		Kind:       kind,
		Components: components,
		Status:     catalog.StatusInProgress,
	}

	if err := o.catalog.Register(ctx, point); err != nil {
		return nil, fmt.Errorf("register recovery point: %w", err)
	}

	o.logger.Info("backup started",
		zap.String("recovery_point_id", point.ID),
		zap.String("kind", kind),
		zap.Strings("components", components))
	o.bus.Publish(ctx, events.Event{Type: events.BackupStarted, RecoveryPointID: point.ID})

	point, err := o.run(ctx, point)
	duration := time.Since(started)

	if err != nil {
		o.logger.Error("backup failed",
			zap.String("recovery_point_id", point.ID),
			zap.Duration("duration", duration),
			zap.Error(err))
		o.bus.Publish(ctx, events.Event{
			Type:            events.BackupFailed,
			RecoveryPointID: point.ID,
			Duration:        duration,
			Error:           err.Error(),
		})
		if o.metrics != nil {
			o.metrics.ObserveBackup("failed", duration, 0)
		}
		return point, err
	}

	o.durMu.Lock()
	o.lastDuration = duration
	o.durMu.Unlock()

	o.logger.Info("backup completed",
		zap.String("recovery_point_id", point.ID),
		zap.Int64("size_bytes", point.SizeBytes),
		zap.Duration("duration", duration))
	o.bus.Publish(ctx, events.Event{
		Type:            events.BackupCompleted,
		RecoveryPointID: point.ID,
		Duration:        duration,
		SizeBytes:       point.SizeBytes,
	})
	if o.metrics != nil {
		o.metrics.ObserveBackup("completed", duration, point.SizeBytes)
	}

	if o.onSuccess != nil {
		o.onSuccess(ctx)
	}
	return point, nil
}

// run executes the fallible middle of the workflow. The caller owns
// the status transition bookkeeping around it.
func (o *Orchestrator) run(ctx context.Context, point *catalog.RecoveryPoint) (*catalog.RecoveryPoint, error) {
	fail := func(cause error) (*catalog.RecoveryPoint, error) {
		point.Status = catalog.StatusFailed
		point.Error = cause.Error()
		if err := o.catalog.Update(ctx, point); err != nil {
			o.logger.Error("failed to mark recovery point failed",
				zap.String("recovery_point_id", point.ID),
				zap.Error(err))
		}
		return point, cause
	}

	payloads, err := o.registry.SerializeAll(ctx, point.Components)
	if err != nil {
		return fail(err)
	}
	if ctx.Err() != nil {
		return fail(ctx.Err())
	}

	archive := artifact.NewArchive(payloads)
	data, err := archive.Marshal()
	if err != nil {
		return fail(err)
	}

	location, err := o.store.Put(ctx, point.ID, data)
	if err != nil {
		return fail(err)
	}

	point.Checksum = archive.Checksum()
	point.SizeBytes = archive.Size()
	point.Location = location
	point.Status = catalog.StatusCompleted

	if err := o.catalog.Update(ctx, point); err != nil {
		return fail(fmt.Errorf("finalize recovery point: %w", err))
	}
	return point, nil
}

// LastDuration returns the duration of the most recent completed
// backup, or zero if none has completed this process lifetime.
func (o *Orchestrator) LastDuration() time.Duration {
	o.durMu.RLock()
	defer o.durMu.RUnlock()
	return o.lastDuration
}
