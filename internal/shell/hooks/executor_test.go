package hooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastarr-dev/mastarr/internal/core/domain"
)

func newTestExecutor(registry *Registry, timeout time.Duration) *Executor {
	return NewExecutor(registry, timeout, nil)
}

func TestRunUnregisteredHookIsNoOp(t *testing.T) {
	exec := newTestExecutor(NewRegistry(), 0)

	err := exec.Run(context.Background(), "jellyfin", domain.HookPreInstall, Context{})
	assert.NoError(t, err)
}

func TestRunOK(t *testing.T) {
	registry := NewRegistry()
	var got Context
	registry.Register("jellyfin", domain.HookPostStart, func(_ context.Context, hc Context) (Outcome, error) {
		got = hc
		return OutcomeOK, nil
	})
	exec := newTestExecutor(registry, 0)

	hc := Context{AppName: "media-1", ContainerAddr: "172.20.0.5"}
	require.NoError(t, exec.Run(context.Background(), "jellyfin", domain.HookPostStart, hc))
	assert.Equal(t, "media-1", got.AppName)
	assert.Equal(t, "172.20.0.5", got.ContainerAddr)
}

func TestRunFailure(t *testing.T) {
	registry := NewRegistry()
	registry.Register("jellyfin", domain.HookPostInstall, func(context.Context, Context) (Outcome, error) {
		return OutcomeFailed, nil
	})
	exec := newTestExecutor(registry, 0)

	err := exec.Run(context.Background(), "jellyfin", domain.HookPostInstall, Context{})
	var failure *HookFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, domain.HookPostInstall, failure.Point)
}

func TestRunErrorWrappedAsFailure(t *testing.T) {
	registry := NewRegistry()
	boom := errors.New("api unreachable")
	registry.Register("jellyfin", domain.HookPostStart, func(context.Context, Context) (Outcome, error) {
		return OutcomeFailed, boom
	})
	exec := newTestExecutor(registry, 0)

	err := exec.Run(context.Background(), "jellyfin", domain.HookPostStart, Context{})
	var failure *HookFailure
	require.True(t, errors.As(err, &failure))
	assert.ErrorIs(t, err, boom)
}

func TestRunAbortHonoredAtDestructivePoint(t *testing.T) {
	registry := NewRegistry()
	registry.Register("jellyfin", domain.HookPreRemove, func(context.Context, Context) (Outcome, error) {
		return OutcomeAbort, nil
	})
	exec := newTestExecutor(registry, 0)

	err := exec.Run(context.Background(), "jellyfin", domain.HookPreRemove, Context{})
	assert.ErrorIs(t, err, ErrHookAborted)
}

func TestRunAbortDemotedElsewhere(t *testing.T) {
	registry := NewRegistry()
	registry.Register("jellyfin", domain.HookPreInstall, func(context.Context, Context) (Outcome, error) {
		return OutcomeAbort, nil
	})
	exec := newTestExecutor(registry, 0)

	err := exec.Run(context.Background(), "jellyfin", domain.HookPreInstall, Context{})
	assert.NotErrorIs(t, err, ErrHookAborted)
	var failure *HookFailure
	assert.True(t, errors.As(err, &failure))
}

func TestRunTimeoutDeadline(t *testing.T) {
	registry := NewRegistry()
	registry.Register("jellyfin", domain.HookPostStart, func(ctx context.Context, _ Context) (Outcome, error) {
		select {
		case <-ctx.Done():
			return OutcomeFailed, ctx.Err()
		case <-time.After(5 * time.Second):
			return OutcomeOK, nil
		}
	})
	exec := newTestExecutor(registry, 20*time.Millisecond)

	start := time.Now()
	err := exec.Run(context.Background(), "jellyfin", domain.HookPostStart, Context{})
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegisterReplaces(t *testing.T) {
	registry := NewRegistry()
	registry.Register("jellyfin", domain.HookPreStop, func(context.Context, Context) (Outcome, error) {
		return OutcomeAbort, nil
	})
	registry.Register("jellyfin", domain.HookPreStop, func(context.Context, Context) (Outcome, error) {
		return OutcomeOK, nil
	})
	exec := newTestExecutor(registry, 0)

	assert.NoError(t, exec.Run(context.Background(), "jellyfin", domain.HookPreStop, Context{}))
}
