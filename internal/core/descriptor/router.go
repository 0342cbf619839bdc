package descriptor

import (
	"github.com/mastarr-dev/mastarr/internal/core/schema"
)

// =============================================================================
// Input Router
// =============================================================================

// Route walks a parsed schema against the raw input map and partitions the
// resolved values into the output documents. Per-field problems are recorded
// in the cache and routing continues; structural schema problems cannot occur
// here because schema.Parse rejects them before any document exists.
func Route(d *schema.Descriptor, inputs map[string]any, rtx *RuntimeContext, docs *Documents, cache *Cache) {
	for _, name := range d.Names() {
		routeField(d.Field(name), inputs, rtx, docs, cache)
	}
}

func routeField(fd *schema.FieldDescriptor, inputs map[string]any, rtx *RuntimeContext, docs *Documents, cache *Cache) {
	value, ok := resolveValue(inputs, fd)
	if !ok {
		if fd.Required {
			cache.RecordError(fd.Name, ErrRequiredMissing)
		}
		return
	}

	switch fd.Kind {
	case schema.KindScalar:
		routeScalar(fd, value, rtx, docs, cache)
	case schema.KindCompound:
		routeCompound(fd, value, rtx, docs, cache)
	case schema.KindArray:
		routeArray(fd, value, rtx, docs, cache)
	}
}

// resolveValue picks the supplied raw value when present and non-absent,
// falling back to the field default.
func resolveValue(inputs map[string]any, fd *schema.FieldDescriptor) (any, bool) {
	if v, ok := inputs[fd.Name]; ok && v != nil {
		return v, true
	}
	if fd.Default != nil {
		return fd.Default, true
	}
	return nil, false
}

// =============================================================================
// Scalar Routing
// =============================================================================

func routeScalar(fd *schema.FieldDescriptor, value any, rtx *RuntimeContext, docs *Documents, cache *Cache) {
	if fd.Transform != "" {
		applyTransform(fd, value, rtx, docs, cache)
		return
	}
	writeDirect(fd, fd.Path, value, docs, cache)
}

func writeDirect(fd *schema.FieldDescriptor, path schema.RoutingPath, value any, docs *Documents, cache *Cache) {
	doc := docs.Doc(path.Target)
	if doc == nil || len(path.Segments) == 0 {
		// Fields without a routing path carry UI-only metadata; nothing to
		// write.
		return
	}
	setPath(doc, path.Segments, value)
}

// =============================================================================
// Compound Routing
// =============================================================================

func routeCompound(fd *schema.FieldDescriptor, value any, rtx *RuntimeContext, docs *Documents, cache *Cache) {
	supplied, ok := value.(map[string]any)
	if !ok {
		cache.RecordError(fd.Name, ErrMalformedValue)
		return
	}

	// Resolve each child independently: supplied value, else child default.
	assembled := make(map[string]any, len(fd.Children))
	for childName, child := range fd.Children {
		if v, exists := supplied[childName]; exists && v != nil {
			assembled[childName] = v
			continue
		}
		if child.Default != nil {
			assembled[childName] = child.Default
			continue
		}
		if child.Required {
			cache.RecordError(fd.Name+"."+childName, ErrRequiredMissing)
		}
	}
	// Pass through keys the schema does not model; transforms such as
	// volume_mapping read optional sub-keys that have no child descriptor.
	for k, v := range supplied {
		if _, modeled := fd.Children[k]; !modeled && v != nil {
			assembled[k] = v
		}
	}

	if fd.Transform != "" {
		applyTransform(fd, assembled, rtx, docs, cache)
		return
	}

	// No parent transform: each child routes to its own path.
	for childName, child := range fd.Children {
		v, exists := assembled[childName]
		if !exists {
			continue
		}
		writeDirect(child, child.Path, v, docs, cache)
	}
}

// =============================================================================
// Array Routing
// =============================================================================

func routeArray(fd *schema.FieldDescriptor, value any, rtx *RuntimeContext, docs *Documents, cache *Cache) {
	elements, ok := asList(value)
	if !ok {
		cache.RecordError(fd.Name, ErrMalformedValue)
		return
	}

	if fd.Path.Wildcard {
		routeWildcard(fd, elements, docs, cache)
		return
	}

	// schema.Parse guarantees non-wildcard arrays carry a transform.
	applyTransform(fd, elements, rtx, docs, cache)
}

// routeWildcard merges each {key, value} element into the map addressed by
// the parent path. Used for free-form environment variables.
func routeWildcard(fd *schema.FieldDescriptor, elements []any, docs *Documents, cache *Cache) {
	doc := docs.Doc(fd.Path.Target)
	if doc == nil {
		return
	}
	parent := ensureMap(doc, fd.Path.Segments)

	for _, el := range elements {
		m, ok := el.(map[string]any)
		if !ok {
			cache.RecordError(fd.Name, ErrMalformedElement)
			continue
		}
		key, keyOK := m["key"].(string)
		val, valOK := m["value"]
		if !keyOK || !valOK {
			cache.RecordError(fd.Name, ErrMalformedElement)
			continue
		}
		if key == "" {
			// Blank form row, not worth reporting.
			continue
		}
		parent[key] = val
	}
}

func asList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}
