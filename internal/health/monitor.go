package health

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/recoverd/internal/catalog"
	"github.com/FairForge/recoverd/internal/config"
	"github.com/FairForge/recoverd/internal/metrics"
)

// Health tiers
const (
	TierHealthy  = "healthy"
	TierWarning  = "warning"
	TierCritical = "critical"
)

// Fixed tier thresholds. Deliberately independent of the configured
// RPO target, which feeds the alert message instead.
const (
	warningAfter  = 720 * time.Minute
	criticalAfter = 1440 * time.Minute
)

// Alert is one breached condition.
type Alert struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Status is the derived health snapshot. Recomputed on demand, never
// persisted.
type Status struct {
	Tier                      string     `json:"tier"`
	LastSuccessfulBackup      *time.Time `json:"last_successful_backup,omitempty"`
	NextScheduledBackup       *time.Time `json:"next_scheduled_backup,omitempty"`
	CurrentRPOMinutes         float64    `json:"current_rpo_minutes"`
	CurrentRTOEstimateMinutes float64    `json:"current_rto_estimate_minutes"`
	StorageBytes              int64      `json:"storage_bytes"`
	Alerts                    []Alert    `json:"alerts"`
}

// Monitor derives RPO/RTO health from the catalog and recent
// operation timings.
type Monitor struct {
	catalog    *catalog.Catalog
	objectives func() config.ObjectiveConfig
	metrics    *metrics.Metrics
	logger     *zap.Logger

	// timing sources, wired to the orchestrators
	lastBackupDuration  func() time.Duration
	lastRestoreDuration func() time.Duration
	nextScheduled       func() time.Time

	now func() time.Time
}

// Option configures the monitor.
type Option func(*Monitor)

// WithTimings wires the orchestrator duration sources.
func WithTimings(backup, restore func() time.Duration) Option {
	return func(m *Monitor) {
		m.lastBackupDuration = backup
		m.lastRestoreDuration = restore
	}
}

// WithSchedule wires the scheduler's next-run source.
func WithSchedule(next func() time.Time) Option {
	return func(m *Monitor) { m.nextScheduled = next }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mx }
}

// NewMonitor creates a health monitor. objectives is a function so
// hot-reloaded targets take effect without restart.
func NewMonitor(cat *catalog.Catalog, objectives func() config.ObjectiveConfig,
	logger *zap.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		catalog:             cat,
		objectives:          objectives,
		logger:              logger,
		lastBackupDuration:  func() time.Duration { return 0 },
		lastRestoreDuration: func() time.Duration { return 0 },
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetStatus computes the current health snapshot.
func (m *Monitor) GetStatus(ctx context.Context) *Status {
	now := m.now()
	targets := m.objectives()

	status := &Status{Tier: TierHealthy, Alerts: []Alert{}}

	newest := m.catalog.Newest(ctx, catalog.Filter{Status: catalog.StatusCompleted})
	if newest != nil {
		ts := newest.Timestamp
		status.LastSuccessfulBackup = &ts
		status.CurrentRPOMinutes = now.Sub(ts).Minutes()
	} else {
		// No completed backup exists; report an effectively unbounded RPO.
		status.CurrentRPOMinutes = criticalAfter.Minutes() * 1000
	}

	if m.nextScheduled != nil {
		if next := m.nextScheduled(); !next.IsZero() {
			status.NextScheduledBackup = &next
		}
	}

	rpo := time.Duration(status.CurrentRPOMinutes * float64(time.Minute))
	switch {
	case rpo > criticalAfter:
		status.Tier = TierCritical
	case rpo > warningAfter:
		status.Tier = TierWarning
	}

	if status.CurrentRPOMinutes > float64(targets.RPOMinutes) {
		level := "warning"
		if status.Tier == TierCritical {
			level = "critical"
		}
		status.Alerts = append(status.Alerts, Alert{
			Level:     level,
			Message:   fmt.Sprintf("last completed backup is %.0f minutes old, RPO target is %d minutes", status.CurrentRPOMinutes, targets.RPOMinutes),
			Timestamp: now,
		})
	}

	// RTO estimate: most recent measured backup + restore duration.
	rto := m.lastBackupDuration() + m.lastRestoreDuration()
	status.CurrentRTOEstimateMinutes = rto.Minutes()
	if rto > 0 && status.CurrentRTOEstimateMinutes > float64(targets.RTOMinutes) {
		status.Alerts = append(status.Alerts, Alert{
			Level:     "warning",
			Message:   fmt.Sprintf("estimated recovery time %.1f minutes exceeds RTO target of %d minutes", status.CurrentRTOEstimateMinutes, targets.RTOMinutes),
			Timestamp: now,
		})
	}

	// Storage usage across all retained points.
	for _, p := range m.catalog.List(ctx, catalog.Filter{Status: catalog.StatusCompleted}) {
		status.StorageBytes += p.SizeBytes
	}
	if targets.StorageMaxBytes > 0 && status.StorageBytes > targets.StorageMaxBytes {
		status.Alerts = append(status.Alerts, Alert{
			Level:     "warning",
			Message:   fmt.Sprintf("backup storage usage %d bytes exceeds threshold %d", status.StorageBytes, targets.StorageMaxBytes),
			Timestamp: now,
		})
	}

	// Orphaned in_progress entries surface via the catalog sweeper as
	// failed points; alert when any failed point is newer than the
	// last success so operators notice broken runs.
	failed := m.catalog.Newest(ctx, catalog.Filter{Status: catalog.StatusFailed})
	if failed != nil && (newest == nil || failed.Timestamp.After(newest.Timestamp)) {
		status.Alerts = append(status.Alerts, Alert{
			Level:     "warning",
			Message:   fmt.Sprintf("most recent backup attempt %s failed: %s", failed.ID, failed.Error),
			Timestamp: now,
		})
	}

	if m.metrics != nil {
		m.metrics.RPOMinutes.Set(status.CurrentRPOMinutes)
	}
	return status
}
