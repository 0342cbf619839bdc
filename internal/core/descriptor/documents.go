// Package descriptor compiles validated blueprint schemas and raw user
// inputs into deployment descriptors: routing, transforms, global-value
// injection, and pruning.
// This is part of the Functional Core - all functions are pure with no I/O.
package descriptor

import (
	"github.com/mastarr-dev/mastarr/internal/core/schema"
)

// =============================================================================
// Documents
// =============================================================================

// Documents is the set of output documents a schema routes into. Service,
// TopLevel and Metadata are nested maps; EnvFile is flat KEY=value material.
type Documents struct {
	Service  map[string]any `json:"service"`
	TopLevel map[string]any `json:"top_level"`
	Metadata map[string]any `json:"metadata"`
	EnvFile  map[string]any `json:"envfile"`
}

// NewDocuments creates an empty document set.
func NewDocuments() *Documents {
	return &Documents{
		Service:  make(map[string]any),
		TopLevel: make(map[string]any),
		Metadata: make(map[string]any),
		EnvFile:  make(map[string]any),
	}
}

// Doc returns the document for a routing target.
func (d *Documents) Doc(target schema.Target) map[string]any {
	switch target {
	case schema.TargetService:
		return d.Service
	case schema.TargetTopLevel:
		return d.TopLevel
	case schema.TargetMetadata:
		return d.Metadata
	case schema.TargetEnvFile:
		return d.EnvFile
	default:
		return nil
	}
}

// =============================================================================
// Path Operations
// =============================================================================

// setPath writes value at the nested key addressed by segments, creating
// intermediate maps as needed. An empty segment list is a no-op.
func setPath(doc map[string]any, segments []string, value any) {
	if len(segments) == 0 {
		return
	}
	m := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := m[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[seg] = next
		}
		m = next
	}
	m[segments[len(segments)-1]] = value
}

// lookupPath resolves the nested key addressed by segments. The second
// return distinguishes absence from present-but-falsy values.
func lookupPath(doc map[string]any, segments []string) (any, bool) {
	if len(segments) == 0 {
		return nil, false
	}
	m := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := m[seg].(map[string]any)
		if !ok {
			return nil, false
		}
		m = next
	}
	v, ok := m[segments[len(segments)-1]]
	return v, ok
}

// ensureMap returns the map at the nested key addressed by segments,
// creating it (and intermediates) when missing. With no segments the
// document itself is the parent, which is how flat envfile wildcards merge.
func ensureMap(doc map[string]any, segments []string) map[string]any {
	m := doc
	for _, seg := range segments {
		next, ok := m[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[seg] = next
		}
		m = next
	}
	return m
}

// appendList appends value to the list stored at key in doc.
func appendList(doc map[string]any, key string, value any) {
	list, _ := doc[key].([]any)
	doc[key] = append(list, value)
}

// =============================================================================
// Runtime Context
// =============================================================================

// RuntimeContext carries per-app values transforms may consult. Transforms
// never read ambient global state; everything they need arrives here or in
// the shared cache.
type RuntimeContext struct {
	AppName       string
	ContainerName string
	HostPath      string // expansion for ${HOST_PATH} bind-mount rewrites

	// RawInputs is the unrouted input map, consulted by transforms with
	// legacy field conventions (separate host_port/container_port).
	RawInputs map[string]any
}

// =============================================================================
// Shared Cache
// =============================================================================

// NetworkMode says how a staged custom network comes into existence.
type NetworkMode string

const (
	NetworkModeExisting NetworkMode = "existing"
	NetworkModeCreate   NetworkMode = "create"
)

// StagedNetwork is a custom network discovered by one field during routing
// and materialized at top level after all fields are routed.
type StagedNetwork struct {
	Name string      `json:"name"`
	Mode NetworkMode `json:"mode"`
}

// Cache holds cross-field state shared by all transforms of one routing run.
type Cache struct {
	// Values is free-form scratch space, e.g. the legacy port_mapping
	// dedupe marker.
	Values map[string]any

	// Networks are custom networks staged for top-level declaration.
	Networks []StagedNetwork

	errors []FieldError
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{Values: make(map[string]any)}
}

// RecordError records a per-field validation or transform error without
// stopping the routing run.
func (c *Cache) RecordError(field string, err error) {
	c.errors = append(c.errors, FieldError{Field: field, Err: err})
}

// Errors returns all recorded per-field errors.
func (c *Cache) Errors() []FieldError {
	return c.errors
}
