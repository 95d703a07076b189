package drtest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/recoverd/internal/artifact"
	"github.com/FairForge/recoverd/internal/backup"
	"github.com/FairForge/recoverd/internal/catalog"
	"github.com/FairForge/recoverd/internal/config"
	"github.com/FairForge/recoverd/internal/events"
	"github.com/FairForge/recoverd/internal/restore"
)

// CheckResult records one sub-test of the DR cycle.
type CheckResult struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Report is the outcome of one self-contained backup→restore→verify
// cycle. Success is the logical AND of all sub-test results.
type Report struct {
	Success         bool          `json:"success"`
	Results         []CheckResult `json:"results"`
	Recommendations []string      `json:"recommendations"`
	MeasuredRPO     time.Duration `json:"measured_rpo"`
	MeasuredRTO     time.Duration `json:"measured_rto"`
}

// Harness runs disaster-recovery drills against an isolated component
// set so live state is never overwritten.
type Harness struct {
	backup     *backup.Orchestrator
	restore    *restore.Orchestrator
	catalog    *catalog.Catalog
	store      *artifact.Store
	bus        *events.Bus
	objectives func() config.ObjectiveConfig
	components []string
	logger     *zap.Logger
}

// NewHarness creates a DR test harness. components names the isolated
// set reserved for testing; it must be registered like any other
// component but must not touch live state.
func NewHarness(b *backup.Orchestrator, r *restore.Orchestrator,
	cat *catalog.Catalog, store *artifact.Store, bus *events.Bus,
	objectives func() config.ObjectiveConfig, components []string,
	logger *zap.Logger) *Harness {
	return &Harness{
		backup:     b,
		restore:    r,
		catalog:    cat,
		store:      store,
		bus:        bus,
		objectives: objectives,
		components: components,
		logger:     logger,
	}
}

// RunTest executes the full drill. The test recovery point is deleted
// unconditionally afterward, even on partial failure, so the catalog
// is never polluted.
func (h *Harness) RunTest(ctx context.Context) *Report {
	report := &Report{Success: true, Recommendations: []string{}}
	targets := h.objectives()

	// Measured RPO: staleness of the last real production backup,
	// captured before the drill creates its own point.
	if newest := h.catalog.Newest(ctx, catalog.Filter{Status: catalog.StatusCompleted}); newest != nil {
		report.MeasuredRPO = time.Since(newest.Timestamp)
	} else {
		report.MeasuredRPO = -1 // no production backup exists
	}

	backupStart := time.Now()
	point, err := h.backup.CreateBackup(ctx, catalog.KindFull, h.components)
	backupDuration := time.Since(backupStart)

	if err != nil {
		report.Success = false
		report.Results = append(report.Results, CheckResult{
			Name:     "backup",
			Passed:   false,
			Detail:   err.Error(),
			Duration: backupDuration,
		})
		report.Recommendations = append(report.Recommendations,
			"backup creation failed; inspect component serialize hooks and store connectivity")
		h.cleanup(ctx, point)
		h.publish(ctx, report)
		return report
	}
	report.Results = append(report.Results, CheckResult{
		Name:     "backup",
		Passed:   true,
		Duration: backupDuration,
	})

	restoreStart := time.Now()
	restoreResult, err := h.restore.Restore(ctx, point.ID, h.components)
	restoreDuration := time.Since(restoreStart)

	restoreCheck := CheckResult{Name: "restore", Duration: restoreDuration}
	switch {
	case err != nil:
		restoreCheck.Detail = err.Error()
		report.Success = false
		report.Recommendations = append(report.Recommendations,
			"restore failed; verify artifact store availability and component restore hooks")
	case !restoreResult.Success:
		restoreCheck.Detail = "one or more components failed to restore"
		report.Success = false
		report.Recommendations = append(report.Recommendations,
			"partial restore; check per-component results for the failing hooks")
	default:
		restoreCheck.Passed = true
	}
	report.Results = append(report.Results, restoreCheck)

	// Data integrity: the restore path recomputes the stored checksum
	// before dispatching, so a successful restore proves the payload
	// round-tripped bit-for-bit.
	report.Results = append(report.Results, CheckResult{
		Name:   "data_integrity",
		Passed: restoreCheck.Passed,
		Detail: point.Checksum,
	})

	report.MeasuredRTO = backupDuration + restoreDuration

	rpoTarget := time.Duration(targets.RPOMinutes) * time.Minute
	rpoCheck := CheckResult{Name: "rpo_objective", Passed: true}
	if report.MeasuredRPO < 0 {
		rpoCheck.Passed = false
		rpoCheck.Detail = "no production backup exists"
		report.Success = false
		report.Recommendations = append(report.Recommendations,
			"no production backups found; enable the backup schedule")
	} else if report.MeasuredRPO > rpoTarget {
		rpoCheck.Passed = false
		rpoCheck.Detail = fmt.Sprintf("measured %s exceeds target %s", report.MeasuredRPO.Round(time.Second), rpoTarget)
		report.Success = false
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("last production backup is older than the %d minute RPO target; increase backup frequency", targets.RPOMinutes))
	}
	report.Results = append(report.Results, rpoCheck)

	rtoTarget := time.Duration(targets.RTOMinutes) * time.Minute
	rtoCheck := CheckResult{Name: "rto_objective", Passed: true}
	if report.MeasuredRTO > rtoTarget {
		rtoCheck.Passed = false
		rtoCheck.Detail = fmt.Sprintf("measured %s exceeds target %s", report.MeasuredRTO.Round(time.Second), rtoTarget)
		report.Success = false
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("measured recovery time exceeds the %d minute RTO target; consider smaller components or a local mirror", targets.RTOMinutes))
	}
	report.Results = append(report.Results, rtoCheck)

	h.cleanup(ctx, point)
	h.publish(ctx, report)
	return report
}

// cleanup purges the test recovery point and its artifact.
func (h *Harness) cleanup(ctx context.Context, point *catalog.RecoveryPoint) {
	if point == nil {
		return
	}
	if point.Location.RemoteKey != "" {
		if err := h.store.Delete(ctx, point.Location); err != nil {
			h.logger.Warn("failed to delete test artifact",
				zap.String("recovery_point_id", point.ID),
				zap.Error(err))
		}
	}
	if err := h.catalog.Remove(ctx, point.ID); err != nil {
		h.logger.Warn("failed to remove test recovery point",
			zap.String("recovery_point_id", point.ID),
			zap.Error(err))
	}
}

func (h *Harness) publish(ctx context.Context, report *Report) {
	event := events.Event{Type: events.DRTestCompleted}
	if !report.Success {
		event.Error = "dr test failed"
	}
	h.bus.Publish(ctx, event)

	h.logger.Info("dr test finished",
		zap.Bool("success", report.Success),
		zap.Duration("measured_rto", report.MeasuredRTO),
		zap.Int("recommendations", len(report.Recommendations)))
}
