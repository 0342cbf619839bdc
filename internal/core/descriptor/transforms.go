package descriptor

import (
	"strings"

	"github.com/mastarr-dev/mastarr/internal/core/schema"
)

// =============================================================================
// Transform Registry
// =============================================================================

// TransformFunc converts one routed value into document fragments, mutating
// docs in place. Transforms never panic on well-typed input; malformed
// elements are skipped with a recorded error so one bad entry does not block
// the rest of the document.
type TransformFunc func(value any, fd *schema.FieldDescriptor, rtx *RuntimeContext, docs *Documents, cache *Cache)

// registry maps the closed set of transform names to their functions.
// schema.Parse already rejects unknown names; a registry miss here would be a
// programming error and is simply a no-op.
var registry = map[schema.TransformName]TransformFunc{
	schema.TransformPortMapping:         transformPortMapping,
	schema.TransformPortArray:           transformPortArray,
	schema.TransformVolumeMapping:       transformVolumeMapping,
	schema.TransformVolumeArray:         transformVolumeArray,
	schema.TransformNetworkConfig:       transformNetworkConfig,
	schema.TransformCustomNetworksArray: transformCustomNetworks,
}

func applyTransform(fd *schema.FieldDescriptor, value any, rtx *RuntimeContext, docs *Documents, cache *Cache) {
	fn, ok := registry[fd.Transform]
	if !ok {
		return
	}
	fn(value, fd, rtx, docs, cache)
}

// =============================================================================
// Port Transforms
// =============================================================================

// transformPortMapping appends one port entry to the service port list from a
// {host, container, protocol?} compound value. Falls back to the legacy
// separate host_port/container_port raw inputs when the value is not
// compound, at most once per routing run.
func transformPortMapping(value any, fd *schema.FieldDescriptor, rtx *RuntimeContext, docs *Documents, cache *Cache) {
	if m, ok := value.(map[string]any); ok {
		if entry, ok := portEntry(m); ok {
			appendList(docs.Service, "ports", entry)
		} else {
			cache.RecordError(fd.Name, ErrMalformedElement)
		}
		return
	}

	if _, done := cache.Values["port_mapping"]; done {
		return
	}
	host := rtx.rawInput("host_port")
	container := rtx.rawInput("container_port")
	if emptyPort(host) || emptyPort(container) {
		return
	}
	appendList(docs.Service, "ports", map[string]any{
		"published": host,
		"target":    container,
		"protocol":  "tcp",
	})
	cache.Values["port_mapping"] = true
}

// transformPortArray applies port_mapping semantics to every element.
func transformPortArray(value any, fd *schema.FieldDescriptor, rtx *RuntimeContext, docs *Documents, cache *Cache) {
	elements, ok := asList(value)
	if !ok {
		cache.RecordError(fd.Name, ErrMalformedValue)
		return
	}
	for _, el := range elements {
		m, ok := el.(map[string]any)
		if !ok {
			cache.RecordError(fd.Name, ErrMalformedElement)
			continue
		}
		if emptyPort(m["host"]) && emptyPort(m["container"]) {
			continue // blank form row
		}
		entry, ok := portEntry(m)
		if !ok {
			cache.RecordError(fd.Name, ErrMalformedElement)
			continue
		}
		appendList(docs.Service, "ports", entry)
	}
}

func portEntry(m map[string]any) (map[string]any, bool) {
	host, hasHost := m["host"]
	container, hasContainer := m["container"]
	if !hasHost || !hasContainer || emptyPort(host) || emptyPort(container) {
		return nil, false
	}
	proto, _ := m["protocol"].(string)
	if proto == "" {
		proto = "tcp"
	}
	return map[string]any{
		"published": host,
		"target":    container,
		"protocol":  proto,
	}, true
}

func emptyPort(v any) bool {
	switch p := v.(type) {
	case nil:
		return true
	case string:
		return p == ""
	case int:
		return p == 0
	case float64:
		return p == 0
	default:
		return false
	}
}

// =============================================================================
// Volume Transforms
// =============================================================================

// transformVolumeMapping appends one volume entry from a {source, target,
// read_only?, bind_propagation?, bind_create_host_path?, type?} value.
// Relative bind sources are rewritten under ${HOST_PATH}; read_only is
// emitted only when explicitly true; the bind sub-object only appears when a
// bind option was explicitly supplied.
func transformVolumeMapping(value any, fd *schema.FieldDescriptor, rtx *RuntimeContext, docs *Documents, cache *Cache) {
	m, ok := value.(map[string]any)
	if !ok {
		cache.RecordError(fd.Name, ErrMalformedValue)
		return
	}
	appendVolume(m, fd, docs, cache)
}

// transformVolumeArray applies volume_mapping semantics per element.
func transformVolumeArray(value any, fd *schema.FieldDescriptor, rtx *RuntimeContext, docs *Documents, cache *Cache) {
	elements, ok := asList(value)
	if !ok {
		cache.RecordError(fd.Name, ErrMalformedValue)
		return
	}
	for _, el := range elements {
		m, ok := el.(map[string]any)
		if !ok {
			cache.RecordError(fd.Name, ErrMalformedElement)
			continue
		}
		if stringOf(m["source"]) == "" && stringOf(m["target"]) == "" {
			continue // blank form row
		}
		appendVolume(m, fd, docs, cache)
	}
}

func appendVolume(m map[string]any, fd *schema.FieldDescriptor, docs *Documents, cache *Cache) {
	source := stringOf(m["source"])
	target := stringOf(m["target"])
	if source == "" || target == "" {
		cache.RecordError(fd.Name, ErrMalformedElement)
		return
	}

	vtype := stringOf(m["type"])
	if vtype == "" {
		vtype = "bind"
	}
	switch vtype {
	case "bind", "volume":
	default:
		cache.RecordError(fd.Name, ErrUnusableValue)
		return
	}

	// Named volumes skip path rewriting and bind options entirely.
	if vtype == "bind" && strings.HasPrefix(source, "./") {
		source = "${HOST_PATH}/" + source[2:]
	}

	entry := map[string]any{
		"type":   vtype,
		"source": source,
		"target": target,
	}

	// Explicit true only - an omitted key already means writable.
	if ro, ok := m["read_only"].(bool); ok && ro {
		entry["read_only"] = true
	}

	if vtype == "bind" {
		bind := make(map[string]any)
		if prop := stringOf(m["bind_propagation"]); prop != "" {
			bind["propagation"] = prop
		}
		if chp, ok := m["bind_create_host_path"].(bool); ok {
			bind["create_host_path"] = chp
		}
		if len(bind) > 0 {
			entry["bind"] = bind
		}
	}

	appendList(docs.Service, "volumes", entry)
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

// =============================================================================
// Network Transforms
// =============================================================================

// transformNetworkConfig writes a keyed entry into the service network map
// from a {network_name, ipv4_address?} value.
func transformNetworkConfig(value any, fd *schema.FieldDescriptor, rtx *RuntimeContext, docs *Documents, cache *Cache) {
	m, ok := value.(map[string]any)
	if !ok {
		cache.RecordError(fd.Name, ErrMalformedValue)
		return
	}
	name := stringOf(m["network_name"])
	if name == "" {
		cache.RecordError(fd.Name, ErrMalformedElement)
		return
	}

	networks := ensureMap(docs.Service, []string{"networks"})
	if addr := stringOf(m["ipv4_address"]); addr != "" {
		networks[name] = map[string]any{"ipv4_address": addr}
	} else {
		networks[name] = map[string]any{}
	}
}

// transformCustomNetworks attaches the service to each {network_name, mode}
// element and stages the network for top-level declaration. Networks with
// mode "create" are created on demand by the container-action collaborator;
// this transform never touches the Docker daemon.
func transformCustomNetworks(value any, fd *schema.FieldDescriptor, rtx *RuntimeContext, docs *Documents, cache *Cache) {
	elements, ok := asList(value)
	if !ok {
		cache.RecordError(fd.Name, ErrMalformedValue)
		return
	}

	networks := ensureMap(docs.Service, []string{"networks"})
	for _, el := range elements {
		m, ok := el.(map[string]any)
		if !ok {
			cache.RecordError(fd.Name, ErrMalformedElement)
			continue
		}
		name := stringOf(m["network_name"])
		if name == "" {
			continue
		}
		mode := NetworkMode(stringOf(m["mode"]))
		if mode == "" {
			mode = NetworkModeExisting
		}

		networks[name] = map[string]any{}
		cache.Networks = append(cache.Networks, StagedNetwork{Name: name, Mode: mode})
	}
}
