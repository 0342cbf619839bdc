package docker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mastarr-dev/mastarr/internal/core/domain"
)

// =============================================================================
// Spec Builder
// =============================================================================

// ErrNoImage is returned when a service document has no image to run.
var ErrNoImage = errors.New("service document has no image")

// BuildContainerSpec converts a compiled service document into a container
// spec. The document follows compose conventions: ports are
// {published, target, protocol} entries, volumes are {type, source, target}
// entries, networks is a name-keyed map. ${HOST_PATH} placeholders in bind
// sources are expanded against the app's stack path.
func BuildContainerSpec(app *domain.App, service map[string]any, hostPath string) (ContainerSpec, error) {
	image, _ := service["image"].(string)
	if image == "" {
		return ContainerSpec{}, NewDockerError("BuildContainerSpec", "container", app.Name, "missing image", ErrNoImage)
	}

	spec := ContainerSpec{
		Name:  app.ContainerName,
		Image: image,
		Labels: map[string]string{
			LabelManaged:   "true",
			LabelApp:       app.ID,
			LabelBlueprint: app.BlueprintName,
		},
	}

	if user, ok := service["user"].(string); ok {
		spec.User = user
	}
	if restart, ok := service["restart"].(string); ok {
		spec.RestartPolicy = restart
	}

	if env, ok := service["environment"].(map[string]any); ok {
		spec.Env = make(map[string]string, len(env))
		for k, v := range env {
			spec.Env[k] = scalarString(v)
		}
	}

	for _, entry := range listOfMaps(service["ports"]) {
		spec.Ports = append(spec.Ports, PortBinding{
			HostPort:      intOf(entry["published"]),
			ContainerPort: intOf(entry["target"]),
			Protocol:      scalarString(entry["protocol"]),
		})
	}

	for _, entry := range listOfMaps(service["volumes"]) {
		source, _ := entry["source"].(string)
		target, _ := entry["target"].(string)
		vtype, _ := entry["type"].(string)
		readOnly, _ := entry["read_only"].(bool)

		if vtype != "volume" {
			source = strings.ReplaceAll(source, "${HOST_PATH}", hostPath)
		}
		spec.Volumes = append(spec.Volumes, VolumeMount{
			Source:   source,
			Target:   target,
			Named:    vtype == "volume",
			ReadOnly: readOnly,
		})
	}

	if networks, ok := service["networks"].(map[string]any); ok {
		for name, cfg := range networks {
			attachment := NetworkAttachment{Name: name}
			if m, ok := cfg.(map[string]any); ok {
				attachment.IPv4Address, _ = m["ipv4_address"].(string)
			}
			spec.Networks = append(spec.Networks, attachment)
		}
	}

	return spec, nil
}

func listOfMaps(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, el := range list {
		if m, ok := el.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func intOf(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		parsed, _ := strconv.Atoi(n)
		return parsed
	default:
		return 0
	}
}

func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case int:
		return strconv.Itoa(s)
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return fmt.Sprintf("%g", s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

func intToPort(n int) string {
	return strconv.Itoa(n)
}
