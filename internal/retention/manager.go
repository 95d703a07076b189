package retention

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/recoverd/internal/artifact"
	"github.com/FairForge/recoverd/internal/catalog"
	"github.com/FairForge/recoverd/internal/config"
)

// Age tiers. A point belongs to exactly one tier based on its age;
// an old point is never promoted into a newer tier.
const (
	TierHourly  = config.FrequencyHourly
	TierDaily   = config.FrequencyDaily
	TierWeekly  = config.FrequencyWeekly
	TierMonthly = config.FrequencyMonthly
)

// Tier boundaries
const (
	hourlyMaxAge = 24 * time.Hour
	dailyMaxAge  = 7 * 24 * time.Hour
	weeklyMaxAge = 4 * 7 * 24 * time.Hour
)

// Result summarizes one cleanup pass.
type Result struct {
	Scanned int            `json:"scanned"`
	Deleted int            `json:"deleted"`
	Skipped int            `json:"skipped"`
	PerTier map[string]int `json:"per_tier"`
	Errors  []string       `json:"errors,omitempty"`
}

// Manager prunes completed recovery points beyond the per-tier caps.
type Manager struct {
	catalog *catalog.Catalog
	store   *artifact.Store
	caps    func() config.RetentionCaps
	now     func() time.Time
	logger  *zap.Logger
}

// NewManager creates a retention manager. caps is a function so the
// config watcher can swap limits without restarting.
func NewManager(cat *catalog.Catalog, store *artifact.Store,
	caps func() config.RetentionCaps, logger *zap.Logger) *Manager {
	return &Manager{
		catalog: cat,
		store:   store,
		caps:    caps,
		now:     time.Now,
		logger:  logger,
	}
}

// Tier classifies a point's age into a retention tier.
func Tier(age time.Duration) string {
	switch {
	case age < hourlyMaxAge:
		return TierHourly
	case age < dailyMaxAge:
		return TierDaily
	case age < weeklyMaxAge:
		return TierWeekly
	default:
		return TierMonthly
	}
}

// Cleanup partitions completed points into age tiers and deletes the
// oldest entries beyond each tier's cap. Deletion removes the
// artifact first and the catalog entry second: if the artifact delete
// fails, the entry stays and the next pass retries, so the operation
// is idempotent. Tiers are evaluated independently.
func (m *Manager) Cleanup(ctx context.Context) *Result {
	result := &Result{PerTier: make(map[string]int)}
	caps := m.caps()
	now := m.now()

	completed := m.catalog.List(ctx, catalog.Filter{Status: catalog.StatusCompleted})
	result.Scanned = len(completed)

	tiers := make(map[string][]*catalog.RecoveryPoint)
	for _, p := range completed {
		tier := Tier(now.Sub(p.Timestamp))
		tiers[tier] = append(tiers[tier], p)
	}

	for tier, points := range tiers {
		limit := caps.Cap(tier)

		// Newest first; everything past the cap is evicted oldest-last.
		sort.Slice(points, func(i, j int) bool {
			return points[i].Timestamp.After(points[j].Timestamp)
		})

		if len(points) <= limit {
			result.Skipped += len(points)
			continue
		}

		// Entries that survive a failed delete are still retained, so
		// they count toward Skipped until a later pass prunes them.
		retained := limit
		for _, p := range points[limit:] {
			if err := m.deletePoint(ctx, p); err != nil {
				result.Errors = append(result.Errors, err.Error())
				retained++
				m.logger.Warn("retention delete failed, will retry next pass",
					zap.String("recovery_point_id", p.ID),
					zap.String("tier", tier),
					zap.Error(err))
				continue
			}
			result.Deleted++
			result.PerTier[tier]++
		}
		result.Skipped += retained
	}

	if result.Deleted > 0 {
		m.logger.Info("retention cleanup pruned recovery points",
			zap.Int("deleted", result.Deleted),
			zap.Int("scanned", result.Scanned))
	}
	return result
}

// deletePoint removes the artifact and then the catalog entry.
func (m *Manager) deletePoint(ctx context.Context, p *catalog.RecoveryPoint) error {
	if err := m.store.Delete(ctx, p.Location); err != nil {
		return err
	}
	return m.catalog.Remove(ctx, p.ID)
}
