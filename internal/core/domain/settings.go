package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// Global Settings
// =============================================================================

// GlobalKey identifies a process-wide fallback value a schema field may
// reference via use_global.
type GlobalKey string

const (
	GlobalPUID GlobalKey = "PUID"
	GlobalPGID GlobalKey = "PGID"
	GlobalTZ   GlobalKey = "TZ"
	GlobalUser GlobalKey = "USER"
)

// IsValid checks if the global key is one of the known fallback keys.
func (k GlobalKey) IsValid() bool {
	switch k {
	case GlobalPUID, GlobalPGID, GlobalTZ, GlobalUser:
		return true
	default:
		return false
	}
}

// GlobalSettings is the shared settings record consulted when a routed
// document leaves a global-fallback slot unset. Callers pass an immutable
// snapshot into descriptor compilation; a later settings write only affects
// descriptors generated after it.
type GlobalSettings struct {
	PUID           int    `json:"puid"`
	PGID           int    `json:"pgid"`
	Timezone       string `json:"timezone"`
	User           string `json:"user,omitempty"` // explicit USER override, empty means computed PUID:PGID
	NetworkName    string `json:"network_name"`
	NetworkSubnet  string `json:"network_subnet,omitempty"`
	NetworkGateway string `json:"network_gateway,omitempty"`
	HostPath       string `json:"host_path"` // base directory for app stack bind mounts
}

// DefaultGlobalSettings returns the settings used before the operator has
// configured anything.
func DefaultGlobalSettings() GlobalSettings {
	return GlobalSettings{
		PUID:        1000,
		PGID:        1000,
		Timezone:    "Etc/UTC",
		NetworkName: "mastarr_net",
		HostPath:    "/opt/mastarr/stacks",
	}
}

// Value resolves a global key to the injectable value. PUID and PGID stay
// numeric so that a legitimate zero survives later pruning checks.
func (g GlobalSettings) Value(key GlobalKey) (any, bool) {
	switch key {
	case GlobalPUID:
		return g.PUID, true
	case GlobalPGID:
		return g.PGID, true
	case GlobalTZ:
		return g.Timezone, true
	case GlobalUser:
		if g.User != "" {
			return g.User, true
		}
		return fmt.Sprintf("%d:%d", g.PUID, g.PGID), true
	default:
		return nil, false
	}
}

// =============================================================================
// Template Variable Expansion
// =============================================================================

// ExpandContext carries the values available to ${GLOBAL.*} and ${APP.*}
// template variables in blueprint defaults and routing paths.
type ExpandContext struct {
	Settings GlobalSettings
	AppName  string
	HostPath string // per-app stack path, e.g. <settings.HostPath>/<app>
}

// replacements returns the variable table in expansion order.
func (c ExpandContext) replacements() [][2]string {
	return [][2]string{
		{"${GLOBAL.PUID}", strconv.Itoa(c.Settings.PUID)},
		{"${GLOBAL.PGID}", strconv.Itoa(c.Settings.PGID)},
		{"${GLOBAL.TIMEZONE}", c.Settings.Timezone},
		{"${GLOBAL.NETWORK_NAME}", c.Settings.NetworkName},
		{"${GLOBAL.NETWORK_SUBNET}", c.Settings.NetworkSubnet},
		{"${GLOBAL.NETWORK_GATEWAY}", c.Settings.NetworkGateway},
		{"${APP.HOST_PATH}", c.HostPath},
		{"${APP.NAME}", c.AppName},
	}
}

// Expand recursively expands template variables in a value. Strings that were
// entirely a variable and expand to a number are converted to int, so numeric
// defaults like ${GLOBAL.PUID} keep their type through routing.
func (c ExpandContext) Expand(value any) any {
	switch v := value.(type) {
	case string:
		return c.expandString(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = c.Expand(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = c.Expand(val)
		}
		return out
	default:
		return value
	}
}

func (c ExpandContext) expandString(text string) any {
	original := text
	for _, r := range c.replacements() {
		if strings.Contains(text, r[0]) {
			text = strings.ReplaceAll(text, r[0], r[1])
		}
	}

	if text != original {
		if n, err := strconv.Atoi(text); err == nil {
			return n
		}
	}
	return text
}
