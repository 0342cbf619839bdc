package docker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastarr-dev/mastarr/internal/core/domain"
)

func testApp(t *testing.T) *domain.App {
	t.Helper()
	app, err := domain.NewApp("media-1", "jellyfin", nil)
	require.NoError(t, err)
	return app
}

func TestBuildContainerSpec(t *testing.T) {
	service := map[string]any{
		"image":   "jellyfin/jellyfin:latest",
		"restart": "unless-stopped",
		"user":    "1000:1000",
		"environment": map[string]any{
			"TZ":    "Etc/UTC",
			"PUID":  1000,
			"DEBUG": false,
		},
		"ports": []any{
			map[string]any{"published": 8096, "target": 8096, "protocol": "tcp"},
		},
		"volumes": []any{
			map[string]any{"type": "bind", "source": "${HOST_PATH}/config", "target": "/config"},
			map[string]any{"type": "volume", "source": "cache", "target": "/cache", "read_only": true},
		},
		"networks": map[string]any{
			"mastarr_net": map[string]any{"ipv4_address": "172.20.0.5"},
		},
	}

	app := testApp(t)
	spec, err := BuildContainerSpec(app, service, "/opt/mastarr/stacks/media-1")
	require.NoError(t, err)

	assert.Equal(t, "media-1", spec.Name)
	assert.Equal(t, "jellyfin/jellyfin:latest", spec.Image)
	assert.Equal(t, "unless-stopped", spec.RestartPolicy)
	assert.Equal(t, "1000:1000", spec.User)

	assert.Equal(t, "Etc/UTC", spec.Env["TZ"])
	assert.Equal(t, "1000", spec.Env["PUID"])
	assert.Equal(t, "false", spec.Env["DEBUG"])

	require.Len(t, spec.Ports, 1)
	assert.Equal(t, PortBinding{ContainerPort: 8096, HostPort: 8096, Protocol: "tcp"}, spec.Ports[0])

	require.Len(t, spec.Volumes, 2)
	assert.Equal(t, "/opt/mastarr/stacks/media-1/config", spec.Volumes[0].Source)
	assert.False(t, spec.Volumes[0].Named)
	assert.Equal(t, "cache", spec.Volumes[1].Source, "named volume source stays untouched")
	assert.True(t, spec.Volumes[1].Named)
	assert.True(t, spec.Volumes[1].ReadOnly)

	require.Len(t, spec.Networks, 1)
	assert.Equal(t, NetworkAttachment{Name: "mastarr_net", IPv4Address: "172.20.0.5"}, spec.Networks[0])

	assert.Equal(t, app.ID, spec.Labels[LabelApp])
	assert.Equal(t, "jellyfin", spec.Labels[LabelBlueprint])
}

func TestBuildContainerSpecMissingImage(t *testing.T) {
	_, err := BuildContainerSpec(testApp(t), map[string]any{}, "/stacks/app")
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestBuildContainerSpecNumericEnvFromJSON(t *testing.T) {
	service := map[string]any{
		"image":       "app:latest",
		"environment": map[string]any{"PGID": float64(100)},
		"ports": []any{
			map[string]any{"published": float64(80), "target": "8080"},
		},
	}

	spec, err := BuildContainerSpec(testApp(t), service, "")
	require.NoError(t, err)
	assert.Equal(t, "100", spec.Env["PGID"])
	assert.Equal(t, 80, spec.Ports[0].HostPort)
	assert.Equal(t, 8080, spec.Ports[0].ContainerPort)
}
