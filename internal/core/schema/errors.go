package schema

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrUnknownTarget is returned for a routing path whose first segment is
	// not a known output document.
	ErrUnknownTarget = errors.New("unknown target document")

	// ErrInvalidPath is returned for structurally invalid routing paths.
	ErrInvalidPath = errors.New("invalid routing path")

	// ErrUnknownType is returned for a field type outside the schema contract.
	ErrUnknownType = errors.New("unknown field type")

	// ErrUnknownTransform is returned when compose_transform names a
	// transform outside the closed set.
	ErrUnknownTransform = errors.New("unknown transform name")

	// ErrWildcardMisuse is returned when a wildcard path appears on a
	// non-array field.
	ErrWildcardMisuse = errors.New("wildcard path requires an array field")

	// ErrArrayNeedsTransform is returned for array fields with neither a
	// wildcard path nor a transform.
	ErrArrayNeedsTransform = errors.New("array field requires a transform")

	// ErrUnknownGlobal is returned for a use_global key outside PUID/PGID/TZ/USER.
	ErrUnknownGlobal = errors.New("unknown use_global key")

	// ErrInvalidSchema is returned when the schema document itself cannot be
	// decoded.
	ErrInvalidSchema = errors.New("invalid schema document")
)

// SchemaError is a fatal blueprint schema error, raised at parse time before
// any document is mutated.
type SchemaError struct {
	Field   string // field name or routing path
	Message string
	Err     error
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema field %s: %s", e.Field, e.Message)
	}
	return "schema: " + e.Message
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// NewSchemaError creates a new SchemaError.
func NewSchemaError(field, message string, err error) *SchemaError {
	return &SchemaError{Field: field, Message: message, Err: err}
}
