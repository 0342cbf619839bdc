package compose

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"

	"github.com/mastarr-dev/mastarr/internal/core/descriptor"
)

// =============================================================================
// Rendering
// =============================================================================

// Render produces the compose YAML for one app from its compiled documents.
// The service document becomes services.<name>; the top-level document is
// merged in beside it. Key order is stable across renders.
func Render(appName string, docs *descriptor.Documents) (string, error) {
	if docs == nil || len(docs.Service) == 0 {
		return "", NewRenderError(appName, "empty service document", ErrNoService)
	}

	root := map[string]any{
		"services": map[string]any{appName: docs.Service},
	}
	for k, v := range docs.TopLevel {
		root[k] = v
	}

	var buf strings.Builder
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(sortedYAML(root)); err != nil {
		return "", NewRenderError(appName, err.Error(), ErrRenderFailed)
	}
	if err := enc.Close(); err != nil {
		return "", NewRenderError(appName, err.Error(), ErrRenderFailed)
	}

	return buf.String(), nil
}

// RenderEnvFile produces the env file content for one app: sorted KEY=value
// lines with a trailing newline, empty string when there is nothing to write.
func RenderEnvFile(docs *descriptor.Documents) string {
	if docs == nil || len(docs.EnvFile) == 0 {
		return ""
	}

	keys := make([]string, 0, len(docs.EnvFile))
	for k := range docs.EnvFile {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf strings.Builder
	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(envValue(docs.EnvFile[k]))
		buf.WriteByte('\n')
	}
	return buf.String()
}

func envValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// sortedYAML converts nested maps into yaml.Node trees with sorted keys so
// renders are byte-stable. Slices and scalars pass through unchanged.
func sortedYAML(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		if list, ok := v.([]any); ok {
			out := make([]any, len(list))
			for i, el := range list {
				out[i] = sortedYAML(el)
			}
			return out
		}
		return v
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		var keyNode yaml.Node
		keyNode.SetString(k)

		var valNode yaml.Node
		if err := valNode.Encode(sortedYAML(m[k])); err != nil {
			continue
		}
		node.Content = append(node.Content, &keyNode, &valNode)
	}
	return node
}

// =============================================================================
// Validation
// =============================================================================

// Validate loads the rendered YAML through the compose loader, catching
// structural problems before anything reaches the daemon.
func Validate(appName, yamlContent string) error {
	var dict map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil {
		return NewRenderError(appName, "invalid YAML syntax", ErrInvalidCompose)
	}
	if dict == nil {
		return NewRenderError(appName, "empty document", ErrInvalidCompose)
	}

	_, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(yamlContent),
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName("mastarr-"+appName, false)
		opts.SkipValidation = false
		opts.SkipInterpolation = true // ${HOST_PATH} resolves at deploy time
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		return NewRenderError(appName, err.Error(), ErrInvalidCompose)
	}

	return nil
}
