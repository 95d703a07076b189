package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FairForge/recoverd/internal/catalog"
	"github.com/FairForge/recoverd/internal/component"
	"github.com/FairForge/recoverd/internal/config"
	"github.com/FairForge/recoverd/internal/drivers"
)

func newTestService(t *testing.T, cfg *config.Config) *Service {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	svc, err := New(cfg, Options{Driver: drivers.NewMemoryDriver()}, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestService_New(t *testing.T) {
	t.Run("RequiresDriver", func(t *testing.T) {
		_, err := New(config.Default(), Options{}, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("EncryptionRequiresKey", func(t *testing.T) {
		cfg := config.Default()
		cfg.Backup.Encryption = true
		_, err := New(cfg, Options{Driver: drivers.NewMemoryDriver()}, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("ProbeRegistered", func(t *testing.T) {
		svc := newTestService(t, nil)
		assert.True(t, svc.registry.Has("dr_probe"))
	})
}

func TestService_BackupRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	state := map[string][]byte{"database": []byte("live db state")}
	require.NoError(t, svc.RegisterComponent("database", component.Handler{
		Serialize: func(ctx context.Context) ([]byte, error) { return state["database"], nil },
		Restore: func(ctx context.Context, data []byte) error {
			state["database"] = data
			return nil
		},
	}))

	point, err := svc.CreateBackup(ctx, catalog.KindFull, []string{"database"})
	require.NoError(t, err)
	require.Equal(t, catalog.StatusCompleted, point.Status)

	// Simulate data loss, then restore
	state["database"] = []byte("corrupted")
	result, err := svc.Restore(ctx, point.ID, []string{"database"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, []byte("live db state"), state["database"])
}

func TestService_ListAndHealth(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	require.NoError(t, svc.RegisterComponent("database", component.Handler{
		Serialize: func(ctx context.Context) ([]byte, error) { return []byte("x"), nil },
		Restore:   func(ctx context.Context, data []byte) error { return nil },
	}))

	_, err := svc.CreateBackup(ctx, catalog.KindFull, []string{"database"})
	require.NoError(t, err)

	points := svc.ListRecoveryPoints(ctx, catalog.Filter{Status: catalog.StatusCompleted})
	assert.Len(t, points, 1)

	status := svc.GetHealthStatus(ctx)
	assert.Equal(t, "healthy", status.Tier)
	require.NotNil(t, status.LastSuccessfulBackup)
}

func TestService_GetRecoveryPoint(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	require.NoError(t, svc.RegisterComponent("database", component.Handler{
		Serialize: func(ctx context.Context) ([]byte, error) { return []byte("x"), nil },
		Restore:   func(ctx context.Context, data []byte) error { return nil },
	}))

	created, err := svc.CreateBackup(ctx, catalog.KindFull, []string{"database"})
	require.NoError(t, err)

	got, err := svc.GetRecoveryPoint(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.GetRecoveryPoint(ctx, "rp-ghost")
	var notFound catalog.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestService_DRDrill(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	// Seed one production point so the RPO check has something to measure
	require.NoError(t, svc.RegisterComponent("database", component.Handler{
		Serialize: func(ctx context.Context) ([]byte, error) { return []byte("x"), nil },
		Restore:   func(ctx context.Context, data []byte) error { return nil },
	}))
	_, err := svc.CreateBackup(ctx, catalog.KindFull, []string{"database"})
	require.NoError(t, err)

	report := svc.RunTest(ctx)
	assert.True(t, report.Success, "drill against a healthy system passes")

	// Only the production point survives the drill
	points := svc.ListRecoveryPoints(ctx, catalog.Filter{})
	assert.Len(t, points, 1)
}

func TestService_ApplyConfig(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	require.NoError(t, svc.RegisterComponent("database", component.Handler{
		Serialize: func(ctx context.Context) ([]byte, error) { return []byte("x"), nil },
		Restore:   func(ctx context.Context, data []byte) error { return nil },
	}))

	// Three completed backups, then tighten the hourly cap to two
	for i := 0; i < 3; i++ {
		_, err := svc.CreateBackup(ctx, catalog.KindFull, []string{"database"})
		require.NoError(t, err)
	}
	require.Len(t, svc.ListRecoveryPoints(ctx, catalog.Filter{}), 3)

	updated := config.Default()
	updated.Backup.Retention.Hourly = 2
	svc.ApplyConfig(updated)

	result := svc.Cleanup(ctx)
	assert.Equal(t, 1, result.Deleted, "reloaded caps apply without restart")
	assert.Len(t, svc.ListRecoveryPoints(ctx, catalog.Filter{}), 2)
}

func TestService_StartSchedulesBackups(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Default()
	cfg.Backup.Frequency = config.FrequencyHourly
	svc := newTestService(t, cfg)
	defer svc.Stop()

	require.NoError(t, svc.RegisterComponent("database", component.Handler{
		Serialize: func(ctx context.Context) ([]byte, error) { return []byte("x"), nil },
		Restore:   func(ctx context.Context, data []byte) error { return nil },
	}))

	require.NoError(t, svc.Start(ctx))

	next := svc.scheduler.NextRun(config.FrequencyHourly)
	assert.False(t, next.IsZero())
	assert.WithinDuration(t, time.Now().Add(time.Hour), next, 5*time.Second)
}

func TestService_GenerateReport(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	require.NoError(t, svc.RegisterComponent("database", component.Handler{
		Serialize: func(ctx context.Context) ([]byte, error) { return []byte("report me"), nil },
		Restore:   func(ctx context.Context, data []byte) error { return nil },
	}))
	point, err := svc.CreateBackup(ctx, catalog.KindFull, []string{"database"})
	require.NoError(t, err)

	report := svc.GenerateReport(ctx)
	assert.Equal(t, 1, report.TotalPoints)
	assert.Equal(t, 1, report.ByStatus[catalog.StatusCompleted])
	assert.Equal(t, 1, report.ByKind[catalog.KindFull])
	assert.Equal(t, point.SizeBytes, report.StorageBytes)
	require.NotNil(t, report.Health)
	assert.NotEmpty(t, report.RecentEvents)
	require.NotNil(t, report.NewestPoint)
}
