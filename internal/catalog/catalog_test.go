package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPoint(id string, ts time.Time, status string) *RecoveryPoint {
	return &RecoveryPoint{
		ID:         id,
		Timestamp:  ts,
		Kind:       KindFull,
		Components: []string{"database"},
		Status:     status,
		Checksum:   "abc123",
		Location:   Location{RemoteKey: "backups/" + id + ".zst"},
	}
}

func TestCatalog_RegisterAndGet(t *testing.T) {
	ctx := context.Background()
	cat := New(zap.NewNop())

	p := testPoint("rp-1", time.Now(), StatusCompleted)
	require.NoError(t, cat.Register(ctx, p))

	got, err := cat.Get(ctx, "rp-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Checksum, got.Checksum)

	// Returned copies must not alias catalog state
	got.Status = StatusFailed
	again, err := cat.Get(ctx, "rp-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, again.Status)
}

func TestCatalog_DuplicateID(t *testing.T) {
	ctx := context.Background()
	cat := New(zap.NewNop())

	require.NoError(t, cat.Register(ctx, testPoint("rp-1", time.Now(), StatusCompleted)))

	err := cat.Register(ctx, testPoint("rp-1", time.Now(), StatusCompleted))
	require.Error(t, err)

	var dup DuplicateIDError
	assert.ErrorAs(t, err, &dup)
}

func TestCatalog_GetMissing(t *testing.T) {
	cat := New(zap.NewNop())
	_, err := cat.Get(context.Background(), "nope")

	var notFound NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestCatalog_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	cat := New(zap.NewNop())
	now := time.Now()

	require.NoError(t, cat.Register(ctx, testPoint("old", now.Add(-2*time.Hour), StatusCompleted)))
	require.NoError(t, cat.Register(ctx, testPoint("new", now, StatusCompleted)))
	require.NoError(t, cat.Register(ctx, testPoint("mid", now.Add(-time.Hour), StatusCompleted)))

	points := cat.List(ctx, Filter{})
	require.Len(t, points, 3)
	assert.Equal(t, "new", points[0].ID)
	assert.Equal(t, "mid", points[1].ID)
	assert.Equal(t, "old", points[2].ID)
}

func TestCatalog_ListFilters(t *testing.T) {
	ctx := context.Background()
	cat := New(zap.NewNop())
	now := time.Now()

	full := testPoint("full-1", now, StatusCompleted)
	incr := testPoint("incr-1", now.Add(-time.Hour), StatusCompleted)
	incr.Kind = KindIncremental
	failed := testPoint("failed-1", now.Add(-2*time.Hour), StatusFailed)

	for _, p := range []*RecoveryPoint{full, incr, failed} {
		require.NoError(t, cat.Register(ctx, p))
	}

	t.Run("ByKind", func(t *testing.T) {
		points := cat.List(ctx, Filter{Kind: KindIncremental})
		require.Len(t, points, 1)
		assert.Equal(t, "incr-1", points[0].ID)
	})

	t.Run("ByStatus", func(t *testing.T) {
		points := cat.List(ctx, Filter{Status: StatusFailed})
		require.Len(t, points, 1)
		assert.Equal(t, "failed-1", points[0].ID)
	})

	t.Run("ByTimeWindow", func(t *testing.T) {
		points := cat.List(ctx, Filter{After: now.Add(-90 * time.Minute)})
		assert.Len(t, points, 2)

		points = cat.List(ctx, Filter{Before: now.Add(-90 * time.Minute)})
		require.Len(t, points, 1)
		assert.Equal(t, "failed-1", points[0].ID)
	})

	t.Run("Newest", func(t *testing.T) {
		newest := cat.Newest(ctx, Filter{Status: StatusCompleted})
		require.NotNil(t, newest)
		assert.Equal(t, "full-1", newest.ID)

		assert.Nil(t, cat.Newest(ctx, Filter{Status: StatusInProgress}))
	})
}

func TestCatalog_RemoveIdempotent(t *testing.T) {
	ctx := context.Background()
	cat := New(zap.NewNop())

	require.NoError(t, cat.Register(ctx, testPoint("rp-1", time.Now(), StatusCompleted)))
	require.NoError(t, cat.Remove(ctx, "rp-1"))
	require.NoError(t, cat.Remove(ctx, "rp-1"))
	require.NoError(t, cat.Remove(ctx, "never-existed"))

	assert.Empty(t, cat.List(ctx, Filter{}))
}

func TestCatalog_SweepsStaleInProgress(t *testing.T) {
	ctx := context.Background()
	cat := New(zap.NewNop(), WithStaleTimeout(time.Minute))

	stale := testPoint("stale", time.Now().Add(-10*time.Minute), StatusInProgress)
	fresh := testPoint("fresh", time.Now(), StatusInProgress)
	require.NoError(t, cat.Register(ctx, stale))
	require.NoError(t, cat.Register(ctx, fresh))

	got, err := cat.Get(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.Error, "abandoned")

	got, err = cat.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.Status)
}

func TestCatalog_UpdateMissing(t *testing.T) {
	cat := New(zap.NewNop())
	err := cat.Update(context.Background(), testPoint("ghost", time.Now(), StatusCompleted))
	assert.Error(t, err)
}

func TestRecoveryPoint_Restorable(t *testing.T) {
	p := testPoint("rp-1", time.Now(), StatusCompleted)
	assert.True(t, p.Restorable())

	failed := testPoint("rp-2", time.Now(), StatusFailed)
	assert.False(t, failed.Restorable())

	inProgress := testPoint("rp-3", time.Now(), StatusInProgress)
	assert.False(t, inProgress.Restorable())

	noChecksum := testPoint("rp-4", time.Now(), StatusCompleted)
	noChecksum.Checksum = ""
	assert.False(t, noChecksum.Restorable())
}
