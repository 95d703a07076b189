package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/recoverd/internal/artifact"
	"github.com/FairForge/recoverd/internal/backup"
	"github.com/FairForge/recoverd/internal/catalog"
	"github.com/FairForge/recoverd/internal/component"
	"github.com/FairForge/recoverd/internal/config"
	"github.com/FairForge/recoverd/internal/drivers"
	"github.com/FairForge/recoverd/internal/drtest"
	"github.com/FairForge/recoverd/internal/events"
	"github.com/FairForge/recoverd/internal/health"
	"github.com/FairForge/recoverd/internal/metrics"
	"github.com/FairForge/recoverd/internal/pipeline"
	"github.com/FairForge/recoverd/internal/restore"
	"github.com/FairForge/recoverd/internal/retention"
	"github.com/FairForge/recoverd/internal/scheduler"
)

// drProbeComponent is the isolated component set reserved for DR
// drills. Its restore target is a scratch buffer, never live state.
const drProbeComponent = "dr_probe"

// Service is the one long-lived backup subsystem instance per
// process. It owns the catalog, the orchestrators, and the scheduler,
// and is passed explicitly to callers instead of living in a global.
type Service struct {
	logger    *zap.Logger
	registry  *component.Registry
	catalog   *catalog.Catalog
	store     *artifact.Store
	bus       *events.Bus
	metrics   *metrics.Metrics
	backup    *backup.Orchestrator
	restore   *restore.Orchestrator
	retention *retention.Manager
	health    *health.Monitor
	harness   *drtest.Harness
	scheduler *scheduler.Scheduler

	cfgMu sync.RWMutex
	cfg   *config.Config

	// drProbe holds what the probe component last round-tripped.
	drProbeMu   sync.Mutex
	drProbeData []byte
}

// Options carries the injectable pieces of a Service.
type Options struct {
	// Driver overrides the remote store driver (tests use a memory
	// driver; production wires local or S3 from config).
	Driver drivers.Driver
	// LocalMirror enables the fast-restore mirror.
	LocalMirror *drivers.LocalDriver
	// EncryptionKey is required when cfg.Backup.Encryption is set.
	EncryptionKey []byte
	// SQLStore enables catalog persistence.
	SQLStore *catalog.SQLStore
}

// New constructs and wires the subsystem.
func New(cfg *config.Config, opts Options, logger *zap.Logger) (*Service, error) {
	if opts.Driver == nil {
		return nil, fmt.Errorf("a store driver is required")
	}

	s := &Service{
		logger:   logger,
		registry: component.NewRegistry(logger),
		bus:      events.NewBus(),
		metrics:  metrics.New(),
		cfg:      cfg,
	}

	pipe, err := pipeline.New(pipeline.Config{
		Compression: cfg.Backup.Compression,
		Encryption:  cfg.Backup.Encryption,
		Key:         opts.EncryptionKey,
	})
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	storeOpts := []artifact.Option{artifact.WithPrefix(cfg.Store.Prefix)}
	if opts.LocalMirror != nil {
		storeOpts = append(storeOpts, artifact.WithLocalMirror(opts.LocalMirror))
	}
	s.store = artifact.NewStore(opts.Driver, pipe, logger, storeOpts...)

	catOpts := []catalog.Option{catalog.WithStaleTimeout(cfg.Catalog.StaleTimeout)}
	if opts.SQLStore != nil {
		catOpts = append(catOpts, catalog.WithSQLStore(opts.SQLStore))
	}
	s.catalog = catalog.New(logger, catOpts...)

	s.retention = retention.NewManager(s.catalog, s.store,
		func() config.RetentionCaps { return s.Config().Backup.Retention }, logger)

	s.backup = backup.NewOrchestrator(s.registry, s.store, s.catalog, s.bus, logger,
		backup.WithDefaultComponents(func() []string { return s.Config().Backup.Components }),
		backup.WithRetention(func(ctx context.Context) {
			result := s.retention.Cleanup(ctx)
			if result.Deleted > 0 {
				s.metrics.RetentionDeletes.Add(float64(result.Deleted))
			}
		}),
		backup.WithMetrics(s.metrics),
	)

	s.restore = restore.NewOrchestrator(s.registry, s.store, s.catalog, s.bus, logger,
		restore.WithMetrics(s.metrics))

	s.scheduler = scheduler.New(logger)

	s.health = health.NewMonitor(s.catalog,
		func() config.ObjectiveConfig { return s.Config().Objective },
		logger,
		health.WithTimings(s.backup.LastDuration, s.restore.LastDuration),
		health.WithSchedule(func() time.Time { return s.scheduler.NextRun(cfg.Backup.Frequency) }),
		health.WithMetrics(s.metrics),
	)

	s.harness = drtest.NewHarness(s.backup, s.restore, s.catalog, s.store, s.bus,
		func() config.ObjectiveConfig { return s.Config().Objective },
		[]string{drProbeComponent}, logger)

	s.registerDRProbe()

	return s, nil
}

// registerDRProbe installs the synthetic component the DR harness
// backs up and restores instead of live state.
func (s *Service) registerDRProbe() {
	_ = s.registry.Register(drProbeComponent, component.Handler{
		Serialize: func(ctx context.Context) ([]byte, error) {
			payload := fmt.Sprintf("dr-probe %d", time.Now().UnixNano())
			return []byte(payload), nil
		},
		Restore: func(ctx context.Context, data []byte) error {
			s.drProbeMu.Lock()
			defer s.drProbeMu.Unlock()
			s.drProbeData = data
			return nil
		},
		Verify: func(ctx context.Context) error {
			s.drProbeMu.Lock()
			defer s.drProbeMu.Unlock()
			if len(s.drProbeData) == 0 {
				return fmt.Errorf("probe data missing after restore")
			}
			return nil
		},
	})
}

// RegisterComponent exposes the plug-in contract to domain modules.
func (s *Service) RegisterComponent(name string, h component.Handler) error {
	return s.registry.Register(name, h)
}

// Start loads persisted catalog state and launches the scheduler.
func (s *Service) Start(ctx context.Context) error {
	if err := s.catalog.LoadPersisted(ctx); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	cfg := s.Config()
	err := s.scheduler.Register(cfg.Backup.Frequency, cfg.Backup.Interval(),
		func(ctx context.Context) error {
			_, err := s.CreateBackup(ctx, catalog.KindFull, nil)
			if err == backup.ErrBackupInProgress {
				return nil // dropped tick, already logged
			}
			return err
		})
	if err != nil {
		return err
	}
	return s.scheduler.Start(ctx)
}

// Stop halts scheduled backups.
func (s *Service) Stop() {
	s.scheduler.Stop()
}

// Config returns the current configuration snapshot.
func (s *Service) Config() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// ApplyConfig swaps the hot-reloadable knobs (retention caps,
// objective targets, default components). Store and schedule changes
// still require a restart.
func (s *Service) ApplyConfig(cfg *config.Config) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.cfg = cfg
	s.logger.Info("service config updated",
		zap.Int("retention_hourly", cfg.Backup.Retention.Hourly),
		zap.Int("rpo_minutes", cfg.Objective.RPOMinutes))
}

// CreateBackup runs one backup now.
func (s *Service) CreateBackup(ctx context.Context, kind string, components []string) (*catalog.RecoveryPoint, error) {
	return s.backup.CreateBackup(ctx, kind, components)
}

// Restore replays a recovery point.
func (s *Service) Restore(ctx context.Context, recoveryPointID string, components []string) (*restore.Result, error) {
	return s.restore.Restore(ctx, recoveryPointID, components)
}

// GetRecoveryPoint looks up a single recovery point by id.
func (s *Service) GetRecoveryPoint(ctx context.Context, id string) (*catalog.RecoveryPoint, error) {
	return s.catalog.Get(ctx, id)
}

// ListRecoveryPoints queries the catalog.
func (s *Service) ListRecoveryPoints(ctx context.Context, filter catalog.Filter) []*catalog.RecoveryPoint {
	return s.catalog.List(ctx, filter)
}

// GetHealthStatus derives the current RPO/RTO health snapshot.
func (s *Service) GetHealthStatus(ctx context.Context) *health.Status {
	return s.health.GetStatus(ctx)
}

// RunTest executes a DR drill.
func (s *Service) RunTest(ctx context.Context) *drtest.Report {
	return s.harness.RunTest(ctx)
}

// Cleanup runs a retention pass outside the post-backup trigger.
func (s *Service) Cleanup(ctx context.Context) *retention.Result {
	return s.retention.Cleanup(ctx)
}

// Metrics exposes the Prometheus registry for the admin surface.
func (s *Service) Metrics() *metrics.Metrics {
	return s.metrics
}

// Events exposes the event bus for subscribers.
func (s *Service) Events() *events.Bus {
	return s.bus
}
