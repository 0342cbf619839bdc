// Package orchestrator drives app lifecycle transitions: compiling
// descriptors, managing containers, and running hooks in order.
package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mastarr-dev/mastarr/internal/core/descriptor"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrTransitionInFlight is returned when a transition is already
	// running for the same app instance.
	ErrTransitionInFlight = errors.New("transition already in flight for this app")

	// ErrDuplicateBlueprint is returned when a batch selects two apps of
	// the same blueprint.
	ErrDuplicateBlueprint = errors.New("batch contains two apps of the same blueprint")
)

// ValidationError carries the per-field errors collected while compiling an
// app's descriptor. The install stops before any container work.
type ValidationError struct {
	Fields []descriptor.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, fe := range e.Fields {
		parts[i] = fe.Error()
	}
	return "descriptor validation failed: " + strings.Join(parts, "; ")
}

// PrerequisiteError names blueprints a batch needs but that are neither in
// the selection nor already installed.
type PrerequisiteError struct {
	Missing []string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("missing prerequisites: %s", strings.Join(e.Missing, ", "))
}
