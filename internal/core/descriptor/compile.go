package descriptor

import (
	"github.com/mastarr-dev/mastarr/internal/core/domain"
	"github.com/mastarr-dev/mastarr/internal/core/schema"
)

// =============================================================================
// Descriptor Compilation
// =============================================================================

// Result is the outcome of compiling one blueprint against one input map.
type Result struct {
	// Documents is the final pruned deployment descriptor.
	Documents *Documents

	// Networks are the custom networks staged during routing; networks with
	// mode "create" must be ensured by the container-action collaborator
	// before the descriptor is deployed.
	Networks []StagedNetwork

	// FieldErrors are the per-field validation and transform errors
	// collected during routing. The documents are best-effort when this is
	// non-empty; the caller decides whether to proceed.
	FieldErrors []FieldError
}

// Compile runs the full pipeline: route inputs through the schema, merge
// staged networks into the top-level document, inject global fallbacks, and
// prune. Structural schema errors never reach this point - schema.Parse
// rejects them before any document is built.
func Compile(d *schema.Descriptor, inputs map[string]any, settings domain.GlobalSettings, rtx *RuntimeContext) (*Result, error) {
	if d == nil {
		return nil, ErrNilSchema
	}
	if rtx == nil {
		rtx = &RuntimeContext{}
	}
	if rtx.RawInputs == nil {
		rtx.RawInputs = inputs
	}

	docs := NewDocuments()
	cache := NewCache()

	Route(d, inputs, rtx, docs, cache)

	// Staged custom networks are merged into the top-level document after
	// all fields are routed. Both modes end up external from the compose
	// file's point of view: "create" networks exist by deploy time because
	// the container-action collaborator ensures them first.
	if len(cache.Networks) > 0 {
		topNetworks := ensureMap(docs.TopLevel, []string{"networks"})
		for _, n := range cache.Networks {
			topNetworks[n.Name] = map[string]any{"external": true}
		}
	}

	Inject(d, docs, settings)

	// A service network attachment is meaningful even with an empty
	// per-network config, so re-attach any that pruning dropped.
	attached := networkKeys(docs.Service)
	pruned := PruneDocuments(docs)
	if len(attached) > 0 {
		networks := ensureMap(pruned.Service, []string{"networks"})
		for _, name := range attached {
			if _, ok := networks[name]; !ok {
				networks[name] = map[string]any{}
			}
		}
	}

	return &Result{
		Documents:   pruned,
		Networks:    cache.Networks,
		FieldErrors: cache.Errors(),
	}, nil
}

func networkKeys(service map[string]any) []string {
	networks, ok := service["networks"].(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(networks))
	for name := range networks {
		keys = append(keys, name)
	}
	return keys
}

// rawInput looks up a legacy raw input key, nil when no raw inputs exist.
func (r *RuntimeContext) rawInput(key string) any {
	if r.RawInputs == nil {
		return nil
	}
	return r.RawInputs[key]
}
