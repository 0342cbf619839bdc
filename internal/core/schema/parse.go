package schema

import (
	"encoding/json"
	"sort"

	"github.com/mastarr-dev/mastarr/internal/core/domain"
)

// =============================================================================
// Schema Document Format
// =============================================================================

// fieldDoc is the external per-field schema document:
//
//	{
//	  "type": "string|integer|boolean|object|array",
//	  "schema": "service.environment.TZ",
//	  "compose_transform": "port_mapping",
//	  "default": ...,
//	  "required": true,
//	  "use_global": "TZ",
//	  "fields": { ... },       // object only
//	  "item_schema": { ... }   // array only
//	}
type fieldDoc struct {
	Type      string              `json:"type"`
	Schema    string              `json:"schema"`
	Transform string              `json:"compose_transform"`
	Default   any                 `json:"default"`
	Required  bool                `json:"required"`
	UseGlobal string              `json:"use_global"`
	Fields    map[string]fieldDoc `json:"fields"`
	Item      map[string]fieldDoc `json:"item_schema"`
}

// =============================================================================
// Parsing
// =============================================================================

// Parse decodes and validates a raw blueprint schema document. All schema
// errors are fatal and raised here, before any routing takes place.
func Parse(raw json.RawMessage) (*Descriptor, error) {
	var doc map[string]fieldDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, NewSchemaError("", err.Error(), ErrInvalidSchema)
	}
	return parseDocument(doc)
}

// parseDocument validates an already-decoded schema document.
func parseDocument(doc map[string]fieldDoc) (*Descriptor, error) {
	d := &Descriptor{Fields: make(map[string]*FieldDescriptor, len(doc))}

	// Deterministic field order: routing and injection walk fields in sorted
	// name order so repeated compilations produce identical documents.
	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fd, err := parseField(name, doc[name])
		if err != nil {
			return nil, err
		}
		d.Fields[name] = fd
		d.order = append(d.order, name)
	}

	return d, nil
}

func parseField(name string, doc fieldDoc) (*FieldDescriptor, error) {
	kind, err := kindOf(name, doc.Type)
	if err != nil {
		return nil, err
	}

	fd := &FieldDescriptor{
		Name:     name,
		Kind:     kind,
		Default:  doc.Default,
		Required: doc.Required,
	}

	if doc.Schema != "" {
		path, err := ParseRoutingPath(doc.Schema)
		if err != nil {
			return nil, err
		}
		if path.Wildcard && kind != KindArray {
			return nil, NewSchemaError(name, "wildcard path on "+string(kind)+" field", ErrWildcardMisuse)
		}
		fd.Path = path
	}

	if doc.Transform != "" {
		t := TransformName(doc.Transform)
		if !t.IsValid() {
			return nil, NewSchemaError(name, "unknown transform "+doc.Transform, ErrUnknownTransform)
		}
		fd.Transform = t
	}

	if doc.UseGlobal != "" {
		key := domain.GlobalKey(doc.UseGlobal)
		if !key.IsValid() {
			return nil, NewSchemaError(name, "unknown use_global key "+doc.UseGlobal, ErrUnknownGlobal)
		}
		fd.Global = key
	}

	switch kind {
	case KindCompound:
		fd.Children = make(map[string]*FieldDescriptor, len(doc.Fields))
		for childName, childDoc := range doc.Fields {
			child, err := parseField(name+"."+childName, childDoc)
			if err != nil {
				return nil, err
			}
			child.Name = childName
			fd.Children[childName] = child
		}

	case KindArray:
		// Non-wildcard arrays must be consumed by a transform; there is no
		// sensible direct write for a list of compound values.
		if !fd.Path.Wildcard && fd.Transform == "" {
			return nil, NewSchemaError(name, "array field has neither wildcard path nor transform", ErrArrayNeedsTransform)
		}
		if len(doc.Item) > 0 {
			item := &FieldDescriptor{
				Name:     name + "[]",
				Kind:     KindCompound,
				Children: make(map[string]*FieldDescriptor, len(doc.Item)),
			}
			for childName, childDoc := range doc.Item {
				child, err := parseField(name+"[]."+childName, childDoc)
				if err != nil {
					return nil, err
				}
				child.Name = childName
				item.Children[childName] = child
			}
			fd.Item = item
		}
	}

	return fd, nil
}

func kindOf(field, typ string) (Kind, error) {
	switch typ {
	case "string", "integer", "boolean":
		return KindScalar, nil
	case "object":
		return KindCompound, nil
	case "array":
		return KindArray, nil
	default:
		return "", NewSchemaError(field, "unknown field type "+typ, ErrUnknownType)
	}
}
