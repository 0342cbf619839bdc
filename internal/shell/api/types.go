package api

import (
	"time"

	"github.com/mastarr-dev/mastarr/internal/core/descriptor"
)

// =============================================================================
// Request Types
// =============================================================================

// CreateAppRequest is the request body for creating an app instance.
type CreateAppRequest struct {
	Name      string         `json:"name"`
	Blueprint string         `json:"blueprint"`
	Inputs    map[string]any `json:"inputs,omitempty"`
}

// ConfigureAppRequest is the request body for (re)configuring an app.
type ConfigureAppRequest struct {
	Inputs map[string]any `json:"inputs"`
}

// BatchInstallRequest is the request body for installing several apps in
// dependency order.
type BatchInstallRequest struct {
	AppIDs []string `json:"app_ids"`
}

// =============================================================================
// Response Types
// =============================================================================

// AppResponse is the response for app operations.
type AppResponse struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Blueprint     string         `json:"blueprint"`
	Phase         string         `json:"phase"`
	PriorPhase    string         `json:"prior_phase,omitempty"`
	RawInputs     map[string]any `json:"raw_inputs,omitempty"`
	ContainerName string         `json:"container_name"`
	ContainerAddr string         `json:"container_addr,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	TransitionAt  time.Time      `json:"transition_at"`
	InstalledAt   *time.Time     `json:"installed_at,omitempty"`
}

// ListAppsResponse is the response for listing apps.
type ListAppsResponse struct {
	Apps   []AppResponse `json:"apps"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// BlueprintResponse is the response for blueprint operations.
type BlueprintResponse struct {
	Name          string    `json:"name"`
	AppType       string    `json:"app_type"`
	Description   string    `json:"description,omitempty"`
	Version       string    `json:"version,omitempty"`
	Prerequisites []string  `json:"prerequisites,omitempty"`
	InstallOrder  int       `json:"install_order"`
	Schema        any       `json:"schema,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ListBlueprintsResponse is the response for listing blueprints.
type ListBlueprintsResponse struct {
	Blueprints []BlueprintResponse `json:"blueprints"`
	Total      int                 `json:"total"`
}

// PreviewResponse shows the compiled deployment material for an app.
type PreviewResponse struct {
	App         AppResponse           `json:"app"`
	Documents   *descriptor.Documents `json:"documents"`
	ComposeYAML string                `json:"compose_yaml"`
	EnvFile     string                `json:"env_file,omitempty"`
}

// BatchInstallResponse reports the resolved order and the installed prefix.
type BatchInstallResponse struct {
	Order     []string `json:"order"`
	Installed []string `json:"installed"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Code   string   `json:"code"`
	Fields []string `json:"fields,omitempty"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
