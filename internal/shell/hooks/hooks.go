// Package hooks runs externally registered lifecycle hooks around container
// transitions. Hooks live in the Imperative Shell: they may call services,
// touch files, or wait on the network.
package hooks

import (
	"context"
	"sync"

	"github.com/mastarr-dev/mastarr/internal/core/domain"
)

// =============================================================================
// Hook Contract
// =============================================================================

// Outcome is the result a hook reports back to the orchestrator.
type Outcome string

const (
	// OutcomeOK lets the transition proceed.
	OutcomeOK Outcome = "ok"

	// OutcomeFailed marks the hook as failed; the transition proceeds and
	// the failure is surfaced in the result.
	OutcomeFailed Outcome = "failed"

	// OutcomeAbort requests the transition stop. Honored only at
	// destructive pre-hook points; elsewhere it is treated as failed.
	OutcomeAbort Outcome = "abort"
)

// Context is the read-only view of an app a hook receives. Hooks never mutate
// lifecycle state; they observe and act on the outside world.
type Context struct {
	AppID         string
	AppName       string
	ContainerName string
	ContainerAddr string

	// Metadata and Service are the compiled descriptor documents for the
	// app, for hooks that need ports, API keys, or paths.
	Metadata map[string]any
	Service  map[string]any
}

// Hook runs at one lifecycle point for one app type. The context carries the
// per-phase deadline; hooks must return when it expires.
type Hook func(ctx context.Context, hc Context) (Outcome, error)

// =============================================================================
// Registry
// =============================================================================

// Registry maps (app type, hook point) pairs to hooks. An unregistered pair
// is a no-op.
type Registry struct {
	mu    sync.RWMutex
	hooks map[registryKey]Hook
}

type registryKey struct {
	appType string
	point   domain.HookPoint
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[registryKey]Hook)}
}

// Register installs a hook for an app type at a lifecycle point, replacing
// any previous hook for the same pair.
func (r *Registry) Register(appType string, point domain.HookPoint, hook Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[registryKey{appType: appType, point: point}] = hook
}

// Lookup returns the hook for an app type at a lifecycle point, nil when
// none is registered.
func (r *Registry) Lookup(appType string, point domain.HookPoint) Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hooks[registryKey{appType: appType, point: point}]
}
