package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishAndReplay(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	bus.Publish(ctx, Event{Type: BackupStarted, RecoveryPointID: "rp-1"})
	bus.Publish(ctx, Event{Type: BackupCompleted, RecoveryPointID: "rp-1"})

	events := bus.Replay(time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.Len(t, events, 2)
	assert.Equal(t, BackupStarted, events[0].Type)
	assert.Equal(t, BackupCompleted, events[1].Type)
	assert.NotEmpty(t, events[0].ID, "ids are assigned on publish")
}

func TestBus_SubscribeByType(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	var mu sync.Mutex
	var got []Event
	done := make(chan struct{}, 1)
	bus.Subscribe(BackupFailed, func(ctx context.Context, e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		done <- struct{}{}
	})

	bus.Publish(ctx, Event{Type: BackupCompleted})
	bus.Publish(ctx, Event{Type: BackupFailed, Error: "disk full"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "disk full", got[0].Error)
}

func TestBus_ReplayWindow(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	old := Event{Type: BackupCompleted, Timestamp: time.Now().Add(-2 * time.Hour)}
	recent := Event{Type: BackupCompleted, Timestamp: time.Now().Add(-5 * time.Minute)}
	bus.Publish(ctx, old)
	bus.Publish(ctx, recent)

	events := bus.Replay(time.Now().Add(-time.Hour), time.Now())
	require.Len(t, events, 1)
	assert.Equal(t, recent.Timestamp.Unix(), events[0].Timestamp.Unix())
}
