package descriptor

// =============================================================================
// Descriptor Cleaner
// =============================================================================

// Prune returns a copy of the document with empty strings, empty maps, and
// empty lists removed at every depth. Meaningful falsy scalars (false, 0)
// are preserved wherever they appear. Prune is idempotent.
func Prune(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if pruned, keep := pruneValue(v); keep {
			out[k] = pruned
		}
	}
	return out
}

// PruneDocuments prunes every document in the set.
func PruneDocuments(docs *Documents) *Documents {
	return &Documents{
		Service:  Prune(docs.Service),
		TopLevel: Prune(docs.TopLevel),
		Metadata: Prune(docs.Metadata),
		EnvFile:  Prune(docs.EnvFile),
	}
}

func pruneValue(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case string:
		return val, val != ""
	case map[string]any:
		pruned := Prune(val)
		return pruned, len(pruned) > 0
	case []any:
		pruned := make([]any, 0, len(val))
		for _, el := range val {
			if p, keep := pruneValue(el); keep {
				pruned = append(pruned, p)
			}
		}
		return pruned, len(pruned) > 0
	default:
		// Numbers and booleans always survive, including 0 and false.
		return val, true
	}
}
