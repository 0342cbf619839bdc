package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mastarr-dev/mastarr/internal/core/domain"
)

// =============================================================================
// Errors
// =============================================================================

// HookFailure reports a hook that returned failed or errored out. The
// transition it decorated still completed.
type HookFailure struct {
	AppType string
	Point   domain.HookPoint
	Err     error
}

func (e *HookFailure) Error() string {
	return fmt.Sprintf("hook %s/%s failed: %v", e.AppType, e.Point, e.Err)
}

func (e *HookFailure) Unwrap() error {
	return e.Err
}

// ErrHookAborted is returned when a destructive pre-hook requested the
// transition stop.
var ErrHookAborted = errors.New("hook aborted transition")

// =============================================================================
// Executor
// =============================================================================

// Executor runs registered hooks with a per-invocation timeout.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
}

// NewExecutor creates a hook executor. A zero timeout means no per-hook
// deadline beyond the caller's context.
func NewExecutor(registry *Registry, timeout time.Duration, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		registry: registry,
		timeout:  timeout,
		logger:   logger.With("component", "hooks"),
	}
}

// Run executes the hook registered for (appType, point), if any. The returned
// error is nil for ok, ErrHookAborted when a destructive pre-hook aborts, and
// a HookFailure otherwise. An abort outcome at a non-destructive point is
// demoted to a failure.
func (e *Executor) Run(ctx context.Context, appType string, point domain.HookPoint, hc Context) error {
	hook := e.registry.Lookup(appType, point)
	if hook == nil {
		return nil
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	log := e.logger.With("app", hc.AppName, "app_type", appType, "point", string(point))
	log.Debug("running hook")

	outcome, err := hook(ctx, hc)
	if err != nil {
		log.Warn("hook errored", "error", err)
		return &HookFailure{AppType: appType, Point: point, Err: err}
	}

	switch outcome {
	case OutcomeOK:
		return nil
	case OutcomeAbort:
		if point.Destructive() {
			log.Info("hook aborted transition")
			return ErrHookAborted
		}
		log.Warn("abort outcome at non-destructive point, treating as failed")
		return &HookFailure{AppType: appType, Point: point, Err: errors.New("hook requested abort")}
	default:
		log.Warn("hook failed")
		return &HookFailure{AppType: appType, Point: point, Err: errors.New("hook reported failure")}
	}
}
