package hook_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribehub/subscriptionkit/pkg/hook"
)

func TestFire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("collects results in registration order", func(t *testing.T) {
		t.Parallel()

		var h hook.Hook[int, int]
		h.Register(func(_ context.Context, n int) (int, error) { return n + 1, nil })
		h.Register(func(_ context.Context, n int) (int, error) { return n * 10, nil })

		results, err := h.Fire(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, []int{4, 30}, results)
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		called := false

		var h hook.Hook[int, int]
		h.Register(func(_ context.Context, _ int) (int, error) { return 0, boom })
		h.Register(func(_ context.Context, _ int) (int, error) { called = true; return 0, nil })

		_, err := h.Fire(ctx, 1)
		assert.ErrorIs(t, err, boom)
		assert.False(t, called)
	})

	t.Run("empty registry yields no results", func(t *testing.T) {
		t.Parallel()

		var h hook.Hook[int, int]
		results, err := h.Fire(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("returns the first handler's result", func(t *testing.T) {
		t.Parallel()

		var h hook.Hook[string, string]
		h.Register(func(_ context.Context, s string) (string, error) { return s + "-first", nil })
		h.Register(func(_ context.Context, s string) (string, error) { return s + "-second", nil })

		result, err := h.First(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, "x-first", result)
	})

	t.Run("no handlers", func(t *testing.T) {
		t.Parallel()

		var h hook.Hook[string, string]
		_, err := h.First(ctx, "x")
		assert.ErrorIs(t, err, hook.ErrNoHandlers)
	})
}

func TestRegister(t *testing.T) {
	t.Parallel()

	var h hook.Hook[int, int]
	assert.Equal(t, 0, h.Len())
	h.Register(func(_ context.Context, n int) (int, error) { return n, nil })
	assert.Equal(t, 1, h.Len())
	assert.Panics(t, func() { h.Register(nil) })
}
