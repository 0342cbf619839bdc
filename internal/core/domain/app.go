// Package domain contains the core domain types and lifecycle rules.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrInvalidTransition = errors.New("invalid phase transition")
	ErrBlueprintRequired = errors.New("blueprint name is required")
	ErrAppNameRequired   = errors.New("app name is required")
)

// =============================================================================
// Lifecycle Phases
// =============================================================================

// Phase is the lifecycle phase of an app instance.
type Phase string

const (
	PhaseUnconfigured Phase = "unconfigured"
	PhaseConfigured   Phase = "configured"
	PhaseInstalling   Phase = "installing"
	PhaseRunning      Phase = "running"
	PhaseStopping     Phase = "stopping"
	PhaseStopped      Phase = "stopped"
	PhaseRemoving     Phase = "removing"
	PhaseRemoved      Phase = "removed"
	PhaseFailed       Phase = "failed"
)

// IsTerminal reports whether the phase is terminal.
func (p Phase) IsTerminal() bool {
	return p == PhaseRemoved
}

// =============================================================================
// Hook Points
// =============================================================================

// HookPoint names a boundary in a lifecycle transition at which an externally
// registered hook may run.
type HookPoint string

const (
	HookPreInstall  HookPoint = "pre_install"
	HookPostInstall HookPoint = "post_install"
	HookPreUpdate   HookPoint = "pre_update"
	HookPostUpdate  HookPoint = "post_update"
	HookPreStart    HookPoint = "pre_start"
	HookPostStart   HookPoint = "post_start"
	HookPreStop     HookPoint = "pre_stop"
	HookPostStop    HookPoint = "post_stop"
	HookPreRemove   HookPoint = "pre_remove"
	HookPostRemove  HookPoint = "post_remove"
)

// Destructive reports whether the hook point precedes a destructive
// container action. Only these hook points may abort a transition.
func (h HookPoint) Destructive() bool {
	return h == HookPreStop || h == HookPreRemove
}

// =============================================================================
// App (Installation Record)
// =============================================================================

// App is one installed (or installing) application instance. The phase is
// mutated only by the lifecycle orchestrator; everything else is set at
// configuration time.
type App struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	BlueprintName string          `json:"blueprint_name"`
	Phase         Phase           `json:"phase"`
	PriorPhase    Phase           `json:"prior_phase,omitempty"` // phase before entering failed
	RawInputs     map[string]any  `json:"raw_inputs,omitempty"`
	CompiledDocs  json.RawMessage `json:"compiled_docs,omitempty"` // last compiled descriptor documents
	ContainerName string          `json:"container_name,omitempty"`
	ContainerAddr string          `json:"container_addr,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	TransitionAt  time.Time       `json:"transition_at"`
	InstalledAt   *time.Time      `json:"installed_at,omitempty"`
}

// NewApp creates a fresh app instance for a blueprint. New instances start
// unconfigured; the first successful configure moves them to configured.
func NewApp(name, blueprintName string, rawInputs map[string]any) (*App, error) {
	if name == "" {
		return nil, ErrAppNameRequired
	}
	if blueprintName == "" {
		return nil, ErrBlueprintRequired
	}

	now := time.Now().UTC()
	return &App{
		ID:            uuid.New().String(),
		Name:          name,
		BlueprintName: blueprintName,
		Phase:         PhaseUnconfigured,
		RawInputs:     rawInputs,
		ContainerName: name,
		CreatedAt:     now,
		TransitionAt:  now,
	}, nil
}

// =============================================================================
// State Machine
// =============================================================================

// validTransitions defines the allowed phase transitions. Failed is reachable
// from every non-terminal phase and is handled separately in Fail.
var validTransitions = map[Phase][]Phase{
	PhaseUnconfigured: {PhaseConfigured},
	PhaseConfigured:   {PhaseInstalling},
	PhaseInstalling:   {PhaseRunning},
	PhaseRunning:      {PhaseInstalling, PhaseStopping}, // installing = update/regenerate
	PhaseStopping:     {PhaseStopped},
	PhaseStopped:      {PhaseInstalling, PhaseRemoving},
	PhaseRemoving:     {PhaseRemoved},
	PhaseFailed:       {PhaseInstalling, PhaseStopping, PhaseRemoving},
	PhaseRemoved:      {}, // Terminal
}

// ValidateTransition checks if a phase transition is allowed.
func ValidateTransition(from, to Phase) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return ErrInvalidTransition
	}
	for _, p := range allowed {
		if p == to {
			return nil
		}
	}
	return ErrInvalidTransition
}

// Transition attempts to move the app to a new phase.
func (a *App) Transition(to Phase) error {
	if err := ValidateTransition(a.Phase, to); err != nil {
		return err
	}

	a.Phase = to
	a.TransitionAt = time.Now().UTC()

	// Clear stale failure details on retry
	if to == PhaseInstalling {
		a.ErrorMessage = ""
		a.PriorPhase = ""
	}

	if to == PhaseRunning {
		now := time.Now().UTC()
		a.InstalledAt = &now
	}

	return nil
}

// Fail moves the app to failed from any non-terminal phase, preserving the
// prior phase so the transition can be retried.
func (a *App) Fail(message string) error {
	if a.Phase.IsTerminal() {
		return ErrInvalidTransition
	}
	if a.Phase != PhaseFailed {
		a.PriorPhase = a.Phase
	}
	a.Phase = PhaseFailed
	a.ErrorMessage = message
	a.TransitionAt = time.Now().UTC()
	return nil
}
