package descriptor

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrRequiredMissing is returned when a required field has neither a
	// supplied value nor a default.
	ErrRequiredMissing = errors.New("required field missing")

	// ErrMalformedValue is returned when a supplied value does not match the
	// field's declared shape.
	ErrMalformedValue = errors.New("malformed field value")

	// ErrMalformedElement is returned for an array element lacking required
	// sub-keys; the element is skipped, the rest of the array proceeds.
	ErrMalformedElement = errors.New("malformed array element")

	// ErrUnusableValue is returned when a transform received a well-formed
	// but unusable value (e.g. an unknown volume type); the fragment is
	// skipped, others proceed.
	ErrUnusableValue = errors.New("unusable transform value")

	// ErrNilSchema is returned when compilation is attempted without a
	// parsed schema.
	ErrNilSchema = errors.New("schema descriptor is nil")
)

// FieldError is a per-field error collected during routing. Routing continues
// for other fields; the caller receives the full list alongside any partial
// documents.
type FieldError struct {
	Field string
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("field %s: %v", e.Field, e.Err)
}

func (e FieldError) Unwrap() error {
	return e.Err
}
