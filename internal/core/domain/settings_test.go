package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobalValue(t *testing.T) {
	settings := GlobalSettings{PUID: 1000, PGID: 100, Timezone: "Europe/Berlin"}

	v, ok := settings.Value(GlobalPUID)
	assert.True(t, ok)
	assert.Equal(t, 1000, v)

	v, ok = settings.Value(GlobalTZ)
	assert.True(t, ok)
	assert.Equal(t, "Europe/Berlin", v)

	_, ok = settings.Value(GlobalKey("HOSTNAME"))
	assert.False(t, ok)
}

func TestGlobalUserComputed(t *testing.T) {
	settings := GlobalSettings{PUID: 1000, PGID: 100}
	v, _ := settings.Value(GlobalUser)
	assert.Equal(t, "1000:100", v)

	settings.User = "media"
	v, _ = settings.Value(GlobalUser)
	assert.Equal(t, "media", v)
}

func TestGlobalValueZeroSurvives(t *testing.T) {
	// Root-owned stacks use PUID 0; the value stays a numeric 0 so pruning
	// keeps it.
	settings := GlobalSettings{PUID: 0, PGID: 0}
	v, ok := settings.Value(GlobalPUID)
	assert.True(t, ok)
	assert.Equal(t, 0, v)
}

func TestExpandString(t *testing.T) {
	ctx := ExpandContext{
		Settings: GlobalSettings{PUID: 1000, PGID: 100, Timezone: "Etc/UTC", NetworkName: "mastarr_net"},
		AppName:  "jellyfin",
		HostPath: "/opt/mastarr/stacks/jellyfin",
	}

	assert.Equal(t, 1000, ctx.Expand("${GLOBAL.PUID}"))
	assert.Equal(t, "Etc/UTC", ctx.Expand("${GLOBAL.TIMEZONE}"))
	assert.Equal(t, "/opt/mastarr/stacks/jellyfin/config", ctx.Expand("${APP.HOST_PATH}/config"))
	assert.Equal(t, "jellyfin-net", ctx.Expand("${APP.NAME}-net"))
	assert.Equal(t, "plain", ctx.Expand("plain"))
}

func TestExpandPartialVariableStaysString(t *testing.T) {
	ctx := ExpandContext{Settings: GlobalSettings{PUID: 1000}}
	// Only a full-string numeric expansion converts to int.
	assert.Equal(t, "uid-1000", ctx.Expand("uid-${GLOBAL.PUID}"))
}

func TestExpandRecursive(t *testing.T) {
	ctx := ExpandContext{
		Settings: GlobalSettings{PUID: 1000, Timezone: "Etc/UTC"},
		HostPath: "/stacks/app",
	}

	in := map[string]any{
		"env": map[string]any{"TZ": "${GLOBAL.TIMEZONE}"},
		"volumes": []any{
			map[string]any{"source": "${APP.HOST_PATH}/data"},
		},
		"count": 3,
	}

	out := ctx.Expand(in).(map[string]any)
	assert.Equal(t, "Etc/UTC", out["env"].(map[string]any)["TZ"])
	assert.Equal(t, "/stacks/app/data", out["volumes"].([]any)[0].(map[string]any)["source"])
	assert.Equal(t, 3, out["count"])
}

func TestValidateBlueprint(t *testing.T) {
	good := Blueprint{Name: "jellyfin", SchemaJSON: []byte(`{"port":{"type":"integer"}}`)}
	assert.Empty(t, ValidateBlueprint(good))

	bad := Blueprint{Name: "Bad Name!", SchemaJSON: []byte(`{}`), Prerequisites: []string{"Bad Name!"}}
	errs := ValidateBlueprint(bad)
	assert.Len(t, errs, 3)
}

func TestBlueprintHookType(t *testing.T) {
	b := Blueprint{Name: "jellyfin"}
	assert.Equal(t, "jellyfin", b.HookType())

	b.AppType = "media_server"
	assert.Equal(t, "media_server", b.HookType())
}
