package component

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func staticHandler(data string) Handler {
	return Handler{
		Serialize: func(ctx context.Context) ([]byte, error) { return []byte(data), nil },
		Restore:   func(ctx context.Context, data []byte) error { return nil },
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	t.Run("Valid", func(t *testing.T) {
		require.NoError(t, r.Register("database", staticHandler("db")))
		assert.True(t, r.Has("database"))
		assert.Equal(t, []string{"database"}, r.Names())
	})

	t.Run("EmptyName", func(t *testing.T) {
		assert.Error(t, r.Register("", staticHandler("x")))
	})

	t.Run("MissingHooks", func(t *testing.T) {
		assert.Error(t, r.Register("partial", Handler{
			Serialize: func(ctx context.Context) ([]byte, error) { return nil, nil },
		}))
	})

	t.Run("ReplaceExisting", func(t *testing.T) {
		require.NoError(t, r.Register("database", staticHandler("v2")))
		assert.Len(t, r.Names(), 1)
	})
}

func TestRegistry_SerializeAll(t *testing.T) {
	ctx := context.Background()

	t.Run("AllRegistered", func(t *testing.T) {
		r := NewRegistry(zap.NewNop())
		require.NoError(t, r.Register("database", staticHandler("db bytes")))
		require.NoError(t, r.Register("cache", staticHandler("cache bytes")))

		payloads, err := r.SerializeAll(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte("db bytes"), payloads["database"])
		assert.Equal(t, []byte("cache bytes"), payloads["cache"])
	})

	t.Run("SubsetByName", func(t *testing.T) {
		r := NewRegistry(zap.NewNop())
		require.NoError(t, r.Register("database", staticHandler("db")))
		require.NoError(t, r.Register("cache", staticHandler("c")))

		payloads, err := r.SerializeAll(ctx, []string{"database"})
		require.NoError(t, err)
		assert.Len(t, payloads, 1)
	})

	t.Run("UnknownName", func(t *testing.T) {
		r := NewRegistry(zap.NewNop())
		_, err := r.SerializeAll(ctx, []string{"ghost"})

		var unknown UnknownComponentError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "ghost", unknown.Name)
	})

	t.Run("AtomicOnFailure", func(t *testing.T) {
		r := NewRegistry(zap.NewNop())
		require.NoError(t, r.Register("good", staticHandler("ok")))
		require.NoError(t, r.Register("bad", Handler{
			Serialize: func(ctx context.Context) ([]byte, error) {
				return nil, fmt.Errorf("disk on fire")
			},
			Restore: func(ctx context.Context, data []byte) error { return nil },
		}))

		payloads, err := r.SerializeAll(ctx, nil)
		require.Error(t, err)
		assert.Nil(t, payloads, "no partial payloads on failure")

		var failure ComponentFailure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, "bad", failure.Name)
		assert.Equal(t, "serialize", failure.Op)
	})
}

func TestRegistry_RestoreAll(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(zap.NewNop())

	var restored []byte
	require.NoError(t, r.Register("database", Handler{
		Serialize: func(ctx context.Context) ([]byte, error) { return nil, nil },
		Restore: func(ctx context.Context, data []byte) error {
			restored = data
			return nil
		},
	}))
	require.NoError(t, r.Register("flaky", Handler{
		Serialize: func(ctx context.Context) ([]byte, error) { return nil, nil },
		Restore: func(ctx context.Context, data []byte) error {
			return fmt.Errorf("connection refused")
		},
	}))

	results := r.RestoreAll(ctx, map[string][]byte{
		"database": []byte("db state"),
		"flaky":    []byte("x"),
		"ghost":    []byte("y"),
	})

	require.Len(t, results, 3)
	assert.NoError(t, results["database"])
	assert.Equal(t, []byte("db state"), restored)

	var failure ComponentFailure
	require.ErrorAs(t, results["flaky"], &failure)
	assert.Equal(t, "restore", failure.Op)

	var unknown UnknownComponentError
	assert.ErrorAs(t, results["ghost"], &unknown)
}

func TestRegistry_VerifyAll(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(zap.NewNop())

	require.NoError(t, r.Register("checked", Handler{
		Serialize: func(ctx context.Context) ([]byte, error) { return nil, nil },
		Restore:   func(ctx context.Context, data []byte) error { return nil },
		Verify:    func(ctx context.Context) error { return fmt.Errorf("row count mismatch") },
	}))
	require.NoError(t, r.Register("unchecked", staticHandler("x")))

	results := r.VerifyAll(ctx, []string{"checked", "unchecked"})

	var failure ComponentFailure
	require.ErrorAs(t, results["checked"], &failure)
	assert.Equal(t, "verify", failure.Op)

	// A nil Verify hook passes by definition
	assert.NoError(t, results["unchecked"])
}
