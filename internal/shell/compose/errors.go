// Package compose renders compiled descriptors into Docker Compose YAML and
// env files, and validates the rendered output.
package compose

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNoService is returned when rendering is attempted without a
	// service document.
	ErrNoService = errors.New("no service document to render")

	// ErrRenderFailed is returned when YAML serialization fails.
	ErrRenderFailed = errors.New("compose rendering failed")

	// ErrInvalidCompose is returned when the rendered document does not
	// load as a valid compose project.
	ErrInvalidCompose = errors.New("rendered compose document is invalid")
)

// RenderError wraps rendering and validation failures.
type RenderError struct {
	App     string
	Message string
	Err     error
}

func (e *RenderError) Error() string {
	if e.App != "" {
		return fmt.Sprintf("render %s: %s", e.App, e.Message)
	}
	return "render: " + e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// NewRenderError creates a new RenderError.
func NewRenderError(app, message string, err error) *RenderError {
	return &RenderError{App: app, Message: message, Err: err}
}
