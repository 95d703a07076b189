package service

import (
	"context"
	"time"

	"github.com/FairForge/recoverd/internal/catalog"
	"github.com/FairForge/recoverd/internal/config"
	"github.com/FairForge/recoverd/internal/events"
	"github.com/FairForge/recoverd/internal/health"
)

// Report is the read-only aggregation of catalog, health, and recent
// activity consumed by dashboards.
type Report struct {
	GeneratedAt   time.Time            `json:"generated_at"`
	Health        *health.Status       `json:"health"`
	TotalPoints   int                  `json:"total_points"`
	ByStatus      map[string]int       `json:"by_status"`
	ByKind        map[string]int       `json:"by_kind"`
	StorageBytes  int64                `json:"storage_bytes"`
	OldestPoint   *time.Time           `json:"oldest_point,omitempty"`
	NewestPoint   *time.Time           `json:"newest_point,omitempty"`
	RetentionCaps config.RetentionCaps `json:"retention_caps"`
	RecentEvents  []events.Event       `json:"recent_events"`
}

// GenerateReport builds the dashboard aggregation. It reads the
// catalog and event history without mutating anything.
func (s *Service) GenerateReport(ctx context.Context) *Report {
	now := time.Now()
	points := s.catalog.List(ctx, catalog.Filter{})

	report := &Report{
		GeneratedAt:   now,
		Health:        s.health.GetStatus(ctx),
		TotalPoints:   len(points),
		ByStatus:      make(map[string]int),
		ByKind:        make(map[string]int),
		RetentionCaps: s.Config().Backup.Retention,
		RecentEvents:  s.bus.Replay(now.Add(-24*time.Hour), now.Add(time.Second)),
	}

	for _, p := range points {
		report.ByStatus[p.Status]++
		report.ByKind[p.Kind]++
		if p.Status == catalog.StatusCompleted {
			report.StorageBytes += p.SizeBytes
		}

		ts := p.Timestamp
		if report.OldestPoint == nil || ts.Before(*report.OldestPoint) {
			report.OldestPoint = &ts
		}
		if report.NewestPoint == nil || ts.After(*report.NewestPoint) {
			report.NewestPoint = &ts
		}
	}
	return report
}
