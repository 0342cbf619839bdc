// Package schema parses blueprint field definitions into immutable
// descriptors and validates them before any routing happens.
// This is part of the Functional Core - all functions are pure with no I/O.
package schema

import (
	"strings"

	"github.com/mastarr-dev/mastarr/internal/core/domain"
)

// =============================================================================
// Field Kinds
// =============================================================================

// Kind classifies a field descriptor.
type Kind string

const (
	KindScalar   Kind = "scalar"
	KindCompound Kind = "compound"
	KindArray    Kind = "array"
)

// =============================================================================
// Target Documents
// =============================================================================

// Target is the output document a routing path writes into.
type Target string

const (
	TargetService  Target = "service"
	TargetTopLevel Target = "top_level"
	TargetMetadata Target = "metadata"
	TargetEnvFile  Target = "envfile"
)

// IsValid checks if the target selects a known output document.
func (t Target) IsValid() bool {
	switch t {
	case TargetService, TargetTopLevel, TargetMetadata, TargetEnvFile:
		return true
	default:
		return false
	}
}

// =============================================================================
// Transform Names
// =============================================================================

// TransformName is the closed enumeration of named transforms a field may
// reference. The descriptor package maps each name to a function; parsing
// rejects anything outside this set as a SchemaError.
type TransformName string

const (
	TransformPortMapping         TransformName = "port_mapping"
	TransformPortArray           TransformName = "port_array"
	TransformVolumeMapping       TransformName = "volume_mapping"
	TransformVolumeArray         TransformName = "volume_array"
	TransformNetworkConfig       TransformName = "network_config"
	TransformCustomNetworksArray TransformName = "custom_networks_array"
)

// IsValid checks if the transform name is in the known set.
func (t TransformName) IsValid() bool {
	switch t {
	case TransformPortMapping, TransformPortArray,
		TransformVolumeMapping, TransformVolumeArray,
		TransformNetworkConfig, TransformCustomNetworksArray:
		return true
	default:
		return false
	}
}

// =============================================================================
// Routing Path
// =============================================================================

// RoutingPath addresses a nested key inside one target document. A trailing
// wildcard means "merge each {key, value} array element into the parent map"
// and is legal only on array fields.
type RoutingPath struct {
	Target   Target
	Segments []string
	Wildcard bool
}

// ParseRoutingPath parses a dot-separated routing path string.
func ParseRoutingPath(raw string) (RoutingPath, error) {
	if raw == "" {
		return RoutingPath{}, NewSchemaError("", "routing path is empty", ErrInvalidPath)
	}

	parts := strings.Split(raw, ".")
	target := Target(parts[0])
	if !target.IsValid() {
		return RoutingPath{}, NewSchemaError(raw, "unknown target document "+parts[0], ErrUnknownTarget)
	}

	path := RoutingPath{Target: target}
	for _, seg := range parts[1:] {
		if seg == "" {
			return RoutingPath{}, NewSchemaError(raw, "empty path segment", ErrInvalidPath)
		}
		path.Segments = append(path.Segments, seg)
	}

	// Wildcard is only legal as the final segment
	for i, seg := range path.Segments {
		if seg != "*" {
			continue
		}
		if i != len(path.Segments)-1 {
			return RoutingPath{}, NewSchemaError(raw, "wildcard must be the final segment", ErrInvalidPath)
		}
		path.Wildcard = true
		path.Segments = path.Segments[:i]
	}

	return path, nil
}

// String reassembles the path for error messages.
func (p RoutingPath) String() string {
	parts := append([]string{string(p.Target)}, p.Segments...)
	if p.Wildcard {
		parts = append(parts, "*")
	}
	return strings.Join(parts, ".")
}

// =============================================================================
// Field Descriptor
// =============================================================================

// FieldDescriptor is one parsed blueprint field. Immutable once parsed.
type FieldDescriptor struct {
	Name      string
	Kind      Kind
	Path      RoutingPath
	Transform TransformName // empty means direct write
	Default   any
	Required  bool
	Global    domain.GlobalKey // empty means no global fallback

	// Children holds child descriptors for compound fields, keyed by name.
	Children map[string]*FieldDescriptor

	// Item describes the element shape for array fields, nil when the array
	// is routed through a transform that takes raw elements.
	Item *FieldDescriptor
}

// Descriptor is a whole blueprint's parsed field set.
type Descriptor struct {
	Fields map[string]*FieldDescriptor

	// order preserves deterministic iteration for routing and injection.
	order []string
}

// Names returns field names in their deterministic routing order.
func (d *Descriptor) Names() []string {
	return d.order
}

// Field returns the descriptor for a field name, or nil.
func (d *Descriptor) Field(name string) *FieldDescriptor {
	return d.Fields[name]
}
