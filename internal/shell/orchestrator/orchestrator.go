package orchestrator

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/mastarr-dev/mastarr/internal/core/domain"
	"github.com/mastarr-dev/mastarr/internal/shell/docker"
	"github.com/mastarr-dev/mastarr/internal/shell/hooks"
	"github.com/mastarr-dev/mastarr/internal/shell/store"
)

// =============================================================================
// Configuration
// =============================================================================

// Config tunes orchestrator timing.
type Config struct {
	// StopTimeout is how long a container gets to shut down gracefully.
	StopTimeout time.Duration

	// ReadinessInterval is the pause between readiness probes.
	ReadinessInterval time.Duration

	// ReadinessAttempts bounds the readiness poll. Exhausting the budget is
	// a warning, never a failed install.
	ReadinessAttempts int
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		StopTimeout:       30 * time.Second,
		ReadinessInterval: 2 * time.Second,
		ReadinessAttempts: 15,
	}
}

func (c Config) normalized() Config {
	if c.StopTimeout <= 0 {
		c.StopTimeout = 30 * time.Second
	}
	if c.ReadinessInterval <= 0 {
		c.ReadinessInterval = 2 * time.Second
	}
	if c.ReadinessAttempts <= 0 {
		c.ReadinessAttempts = 15
	}
	return c
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator executes app lifecycle transitions. All public methods are
// safe for concurrent use; transitions on the same app instance are
// single-flight.
type Orchestrator struct {
	store  store.Store
	docker docker.Client
	hooks  *hooks.Executor
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates an orchestrator.
func New(s store.Store, d docker.Client, h *hooks.Executor, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:    s,
		docker:   d,
		hooks:    h,
		cfg:      cfg.normalized(),
		logger:   logger.With("component", "orchestrator"),
		inFlight: make(map[string]struct{}),
	}
}

// =============================================================================
// Single Flight
// =============================================================================

// acquire claims the in-flight slot for an app. The release func must be
// called exactly once.
func (o *Orchestrator) acquire(appID string) (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.inFlight[appID]; busy {
		return nil, ErrTransitionInFlight
	}
	o.inFlight[appID] = struct{}{}

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.inFlight, appID)
	}, nil
}

// =============================================================================
// Helpers
// =============================================================================

// stackPath is the per-app directory under which compose and env files live
// and bind mounts are rooted.
func stackPath(settings *domain.GlobalSettings, appName string) string {
	return filepath.Join(settings.HostPath, appName)
}

// fail moves the app to failed and persists, keeping the original error.
func (o *Orchestrator) fail(ctx context.Context, app *domain.App, cause error) error {
	o.logger.Error("transition failed", "app", app.Name, "phase", string(app.Phase), "error", cause)

	if err := app.Fail(cause.Error()); err == nil {
		// Persist with a fresh context so a cancelled request still
		// records the failure.
		if uerr := o.store.UpdateApp(context.WithoutCancel(ctx), app); uerr != nil {
			o.logger.Error("failed to persist failure state", "app", app.Name, "error", uerr)
		}
	}
	return cause
}

// transition applies and persists one phase change.
func (o *Orchestrator) transition(ctx context.Context, app *domain.App, to domain.Phase) error {
	if err := app.Transition(to); err != nil {
		return err
	}
	return o.store.UpdateApp(ctx, app)
}
