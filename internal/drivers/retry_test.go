package drivers

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("SucceedsFirstTry", func(t *testing.T) {
		policy := NewRetryPolicy(WithInitialDelay(time.Millisecond))
		calls := 0
		err := policy.Execute(ctx, func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("RecoversAfterTransientFailure", func(t *testing.T) {
		policy := NewRetryPolicy(WithInitialDelay(time.Millisecond), WithJitter(false))
		calls := 0
		err := policy.Execute(ctx, func() error {
			calls++
			if calls < 3 {
				return fmt.Errorf("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("GivesUpAfterMaxAttempts", func(t *testing.T) {
		policy := NewRetryPolicy(WithMaxAttempts(2), WithInitialDelay(time.Millisecond))
		calls := 0
		err := policy.Execute(ctx, func() error {
			calls++
			return fmt.Errorf("persistent")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "persistent")
		assert.Equal(t, 2, calls)
	})

	t.Run("HonorsCancellation", func(t *testing.T) {
		policy := NewRetryPolicy(WithInitialDelay(time.Hour))
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := policy.Execute(cancelled, func() error { return fmt.Errorf("nope") })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemoryDriver_Corrupt(t *testing.T) {
	ctx := context.Background()
	driver := NewMemoryDriver()

	require.NoError(t, driver.Put(ctx, "k", strings.NewReader("hello world")))
	require.True(t, driver.Corrupt("k"))

	rc, err := driver.Get(ctx, "k")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	data := make([]byte, 11)
	_, err = rc.Read(data)
	require.NoError(t, err)
	assert.NotEqual(t, "hello world", string(data))

	assert.False(t, driver.Corrupt("missing"))
}
