package domain

import (
	"encoding/json"
	"errors"
	"regexp"
	"time"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrBlueprintNameInvalid = errors.New("blueprint name must be lowercase alphanumeric with hyphens")
	ErrBlueprintNoSchema    = errors.New("blueprint must define at least one field")
	ErrSelfPrerequisite     = errors.New("blueprint cannot require itself")
)

var blueprintNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]*$`)

// =============================================================================
// Blueprint
// =============================================================================

// Blueprint is a declarative template describing one deployable application:
// its configurable fields, prerequisites, and install ordering hint.
// The field schema itself is parsed by the schema package; the raw JSON is
// kept here so it can be stored and re-parsed against fresh global settings.
type Blueprint struct {
	Name          string          `json:"name"`
	AppType       string          `json:"app_type"` // hook registry key, defaults to Name
	Description   string          `json:"description,omitempty"`
	Version       string          `json:"version,omitempty"`
	SchemaJSON    json.RawMessage `json:"schema"`
	Prerequisites []string        `json:"prerequisites,omitempty"`
	InstallOrder  int             `json:"install_order"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ValidateBlueprint validates the structural parts of a blueprint that do not
// require schema parsing. Returns all errors found.
func ValidateBlueprint(b Blueprint) []error {
	var errs []error

	if !blueprintNameRegex.MatchString(b.Name) {
		errs = append(errs, ErrBlueprintNameInvalid)
	}
	if len(b.SchemaJSON) == 0 || string(b.SchemaJSON) == "{}" || string(b.SchemaJSON) == "null" {
		errs = append(errs, ErrBlueprintNoSchema)
	}
	for _, p := range b.Prerequisites {
		if p == b.Name {
			errs = append(errs, ErrSelfPrerequisite)
		}
	}

	return errs
}

// HookType returns the hook registry key for this blueprint.
func (b Blueprint) HookType() string {
	if b.AppType != "" {
		return b.AppType
	}
	return b.Name
}
