package restore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/recoverd/internal/artifact"
	"github.com/FairForge/recoverd/internal/catalog"
	"github.com/FairForge/recoverd/internal/component"
	"github.com/FairForge/recoverd/internal/events"
	"github.com/FairForge/recoverd/internal/metrics"
)

// IntegrityError reports a fetched artifact that does not match the
// catalog entry: either the blob no longer decodes, or the archive
// checksum disagrees. No component restore runs after it.
type IntegrityError struct {
	RecoveryPointID string
	Expected        string
	Actual          string
	Cause           error // set when the artifact fails to decode
}

func (e IntegrityError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("integrity failure for %s: %v", e.RecoveryPointID, e.Cause)
	}
	return fmt.Sprintf("integrity failure for %s: checksum %s != %s",
		e.RecoveryPointID, e.Actual, e.Expected)
}

func (e IntegrityError) Unwrap() error { return e.Cause }

// MissingComponentError reports a requested component absent from the
// artifact.
type MissingComponentError struct {
	RecoveryPointID string
	Name            string
}

func (e MissingComponentError) Error() string {
	return fmt.Sprintf("component %s not present in recovery point %s", e.Name, e.RecoveryPointID)
}

// ComponentResult records the outcome of one component's restore.
type ComponentResult struct {
	Name       string `json:"name"`
	Restored   bool   `json:"restored"`
	RestoreErr string `json:"restore_error,omitempty"`
	Verified   bool   `json:"verified"`
	VerifyErr  string `json:"verify_error,omitempty"`
}

// Result is the full outcome of a restore run. Restore is not
// transactional across components: a partial failure reports exactly
// which components did and did not restore, with no rollback.
type Result struct {
	RecoveryPointID string            `json:"recovery_point_id"`
	Components      []ComponentResult `json:"components"`
	Duration        time.Duration     `json:"duration"`
	Success         bool              `json:"success"`
}

// Orchestrator drives the restore workflow.
type Orchestrator struct {
	registry *component.Registry
	store    *artifact.Store
	catalog  *catalog.Catalog
	bus      *events.Bus
	metrics  *metrics.Metrics
	logger   *zap.Logger

	// most recent completed run duration, read by the health monitor
	durMu        sync.RWMutex
	lastDuration time.Duration
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator creates a restore orchestrator.
func NewOrchestrator(registry *component.Registry, store *artifact.Store,
	cat *catalog.Catalog, bus *events.Bus, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		store:    store,
		catalog:  cat,
		bus:      bus,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Restore replays the recovery point's components. Steps before any
// component mutation (lookup, fetch, integrity, membership) are
// fail-fast and side-effect-free; per-component failures afterwards
// are collected into the result rather than aborting.
func (o *Orchestrator) Restore(ctx context.Context, recoveryPointID string, components []string) (*Result, error) {
	started := time.Now()

	result, err := o.restore(ctx, recoveryPointID, components)
	duration := time.Since(started)

	if err != nil {
		o.bus.Publish(ctx, events.Event{
			Type:            events.RestoreFailed,
			RecoveryPointID: recoveryPointID,
			Duration:        duration,
			Error:           err.Error(),
		})
		if o.metrics != nil {
			o.metrics.ObserveRestore("failed", duration)
		}
		return nil, err
	}

	result.Duration = duration
	o.durMu.Lock()
	o.lastDuration = duration
	o.durMu.Unlock()

	outcome := "completed"
	eventType := events.RestoreCompleted
	if !result.Success {
		outcome = "partial"
		eventType = events.RestoreFailed
	}

	o.logger.Info("restore finished",
		zap.String("recovery_point_id", recoveryPointID),
		zap.Bool("success", result.Success),
		zap.Duration("duration", duration))
	o.bus.Publish(ctx, events.Event{
		Type:            eventType,
		RecoveryPointID: recoveryPointID,
		Duration:        duration,
	})
	if o.metrics != nil {
		o.metrics.ObserveRestore(outcome, duration)
	}
	return result, nil
}

func (o *Orchestrator) restore(ctx context.Context, recoveryPointID string, components []string) (*Result, error) {
	point, err := o.catalog.Get(ctx, recoveryPointID)
	if err != nil {
		return nil, err
	}
	if !point.Restorable() {
		return nil, catalog.ErrNotFound(recoveryPointID)
	}

	o.bus.Publish(ctx, events.Event{Type: events.RestoreStarted, RecoveryPointID: point.ID})

	data, err := o.store.Get(ctx, point.Location)
	if err != nil {
		var corrupt artifact.CorruptArtifactError
		if errors.As(err, &corrupt) {
			return nil, IntegrityError{RecoveryPointID: point.ID, Cause: corrupt}
		}
		return nil, err
	}

	archive, err := artifact.UnmarshalArchive(data)
	if err != nil {
		return nil, IntegrityError{RecoveryPointID: point.ID, Cause: err}
	}

	if actual := archive.Checksum(); actual != point.Checksum {
		return nil, IntegrityError{
			RecoveryPointID: point.ID,
			Expected:        point.Checksum,
			Actual:          actual,
		}
	}

	if len(components) == 0 {
		components = archive.Components
	}
	for _, name := range components {
		if !archive.Has(name) {
			return nil, MissingComponentError{RecoveryPointID: point.ID, Name: name}
		}
	}

	// Everything past this line mutates component state.
	payloads := make(map[string][]byte, len(components))
	for _, name := range components {
		payloads[name] = archive.Payloads[name]
	}

	restoreErrs := o.registry.RestoreAll(ctx, payloads)

	var verified map[string]error
	var toVerify []string
	for _, name := range components {
		if restoreErrs[name] == nil {
			toVerify = append(toVerify, name)
		}
	}
	verified = o.registry.VerifyAll(ctx, toVerify)

	result := &Result{
		RecoveryPointID: point.ID,
		Success:         true,
	}
	for _, name := range components {
		cr := ComponentResult{Name: name}

		if err := restoreErrs[name]; err != nil {
			cr.RestoreErr = err.Error()
			result.Success = false
		} else {
			cr.Restored = true
			if err := verified[name]; err != nil {
				cr.VerifyErr = err.Error()
				result.Success = false
			} else {
				cr.Verified = true
			}
		}
		result.Components = append(result.Components, cr)
	}
	return result, nil
}

// LastDuration returns the duration of the most recent restore run,
// or zero if none has run this process lifetime.
func (o *Orchestrator) LastDuration() time.Duration {
	o.durMu.RLock()
	defer o.durMu.RUnlock()
	return o.lastDuration
}
