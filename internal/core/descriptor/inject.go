package descriptor

import (
	"github.com/mastarr-dev/mastarr/internal/core/domain"
	"github.com/mastarr-dev/mastarr/internal/core/schema"
)

// =============================================================================
// Global Value Injector
// =============================================================================

// Inject fills unset global-fallback slots from the settings snapshot.
// Absence is the trigger: a routed 0 or false counts as present and is never
// overwritten. Runs strictly after routing and before pruning.
func Inject(d *schema.Descriptor, docs *Documents, settings domain.GlobalSettings) {
	for _, name := range d.Names() {
		injectField(d.Field(name), docs, settings)
	}
}

func injectField(fd *schema.FieldDescriptor, docs *Documents, settings domain.GlobalSettings) {
	if fd.Global != "" && !fd.Path.Wildcard {
		doc := docs.Doc(fd.Path.Target)
		if doc != nil && len(fd.Path.Segments) > 0 {
			if _, present := lookupPath(doc, fd.Path.Segments); !present {
				if value, ok := settings.Value(fd.Global); ok {
					setPath(doc, fd.Path.Segments, value)
				}
			}
		}
	}

	for _, child := range fd.Children {
		injectField(child, docs, settings)
	}
}
