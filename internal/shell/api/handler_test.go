package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastarr-dev/mastarr/internal/core/domain"
	"github.com/mastarr-dev/mastarr/internal/shell/docker"
	"github.com/mastarr-dev/mastarr/internal/shell/hooks"
	"github.com/mastarr-dev/mastarr/internal/shell/orchestrator"
	"github.com/mastarr-dev/mastarr/internal/shell/store"
)

// =============================================================================
// Test Helpers
// =============================================================================

// stubDocker implements docker.Client with all operations succeeding.
type stubDocker struct {
	pingErr error
}

func (d *stubDocker) CreateContainer(context.Context, docker.ContainerSpec) (string, error) {
	return "cid-1", nil
}
func (d *stubDocker) StartContainer(context.Context, string) error { return nil }
func (d *stubDocker) StopContainer(context.Context, string, *time.Duration) error {
	return nil
}
func (d *stubDocker) RemoveContainer(context.Context, string, docker.RemoveOptions) error {
	return nil
}
func (d *stubDocker) InspectContainer(context.Context, string) (*docker.ContainerInfo, error) {
	return &docker.ContainerInfo{
		ID:      "cid-1",
		State:   docker.ContainerStateRunning,
		Address: "172.20.0.9",
	}, nil
}
func (d *stubDocker) EnsureNetwork(context.Context, docker.NetworkSpec) (string, error) {
	return "net-1", nil
}
func (d *stubDocker) RemoveNetwork(context.Context, string) error { return nil }
func (d *stubDocker) PullImage(context.Context, string) error     { return nil }
func (d *stubDocker) Ping(context.Context) error                  { return d.pingErr }
func (d *stubDocker) Close() error                                { return nil }

func setupHandler(t *testing.T) (http.Handler, store.Store, *stubDocker) {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	settings := domain.DefaultGlobalSettings()
	settings.HostPath = t.TempDir()
	require.NoError(t, s.PutSettings(context.Background(), &settings))

	d := &stubDocker{}
	executor := hooks.NewExecutor(hooks.NewRegistry(), 0, nil)
	cfg := orchestrator.Config{
		StopTimeout:       time.Second,
		ReadinessInterval: time.Millisecond,
		ReadinessAttempts: 1,
	}
	orch := orchestrator.New(s, d, executor, cfg, nil)

	return NewHandler(s, d, orch, nil).Routes(), s, d
}

func seedBlueprint(t *testing.T, s store.Store, name string, prereqs ...string) {
	t.Helper()
	schema := `{
		"image": {"type": "string", "schema": "service.image", "default": "example/` + name + `:latest"},
		"timezone": {"type": "string", "schema": "service.environment.TZ", "use_global": "TZ"}
	}`
	require.NoError(t, s.UpsertBlueprint(context.Background(), &domain.Blueprint{
		Name:          name,
		SchemaJSON:    json.RawMessage(schema),
		Prerequisites: prereqs,
	}))
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeApp(t *testing.T, rec *httptest.ResponseRecorder) AppResponse {
	t.Helper()
	var resp AppResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// =============================================================================
// Health
// =============================================================================

func TestHandleHealth(t *testing.T) {
	router, _, _ := setupHandler(t)

	rec := doRequest(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestHandleReadyDockerDown(t *testing.T) {
	router, _, d := setupHandler(t)
	d.pingErr = docker.ErrConnectionFailed

	rec := doRequest(t, router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "failed", resp.Checks["docker"])
}

// =============================================================================
// Blueprints
// =============================================================================

func TestListBlueprints(t *testing.T) {
	router, s, _ := setupHandler(t)
	seedBlueprint(t, s, "jellyfin")
	seedBlueprint(t, s, "radarr")

	rec := doRequest(t, router, http.MethodGet, "/api/v1/blueprints", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ListBlueprintsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Total)

	// The list omits schemas; the detail endpoint includes them.
	assert.Nil(t, resp.Blueprints[0].Schema)
}

func TestGetBlueprint(t *testing.T) {
	router, s, _ := setupHandler(t)
	seedBlueprint(t, s, "jellyfin")

	rec := doRequest(t, router, http.MethodGet, "/api/v1/blueprints/jellyfin", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp BlueprintResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "jellyfin", resp.Name)
	assert.NotNil(t, resp.Schema)
}

func TestGetBlueprintNotFound(t *testing.T) {
	router, _, _ := setupHandler(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/blueprints/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// Apps
// =============================================================================

func TestCreateApp(t *testing.T) {
	router, s, _ := setupHandler(t)
	seedBlueprint(t, s, "jellyfin")

	rec := doRequest(t, router, http.MethodPost, "/api/v1/apps", CreateAppRequest{
		Name:      "jellyfin-main",
		Blueprint: "jellyfin",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeApp(t, rec)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "configured", resp.Phase)
	assert.Equal(t, "jellyfin-main", resp.ContainerName)
}

func TestCreateAppUnknownBlueprint(t *testing.T) {
	router, _, _ := setupHandler(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/apps", CreateAppRequest{
		Name:      "x",
		Blueprint: "nope",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAppDuplicateName(t *testing.T) {
	router, s, _ := setupHandler(t)
	seedBlueprint(t, s, "jellyfin")

	req := CreateAppRequest{Name: "jellyfin-main", Blueprint: "jellyfin"}
	rec := doRequest(t, router, http.MethodPost, "/api/v1/apps", req)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/v1/apps", req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetAppNotFound(t *testing.T) {
	router, _, _ := setupHandler(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/apps/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfigureAppReturnsPreview(t *testing.T) {
	router, s, _ := setupHandler(t)
	seedBlueprint(t, s, "jellyfin")

	rec := doRequest(t, router, http.MethodPost, "/api/v1/apps", CreateAppRequest{
		Name:      "jellyfin-main",
		Blueprint: "jellyfin",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	app := decodeApp(t, rec)

	rec = doRequest(t, router, http.MethodPut, "/api/v1/apps/"+app.ID+"/configure", ConfigureAppRequest{
		Inputs: map[string]any{"timezone": "Europe/Berlin"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PreviewResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.ComposeYAML, "example/jellyfin:latest")
	assert.Contains(t, resp.ComposeYAML, "Europe/Berlin")
	assert.Equal(t, "Europe/Berlin", resp.App.RawInputs["timezone"])
}

func TestConfigureAppValidationFailure(t *testing.T) {
	router, s, _ := setupHandler(t)
	schema := `{
		"image": {"type": "string", "schema": "service.image", "default": "example/sonarr:latest"},
		"api_key": {"type": "string", "schema": "service.environment.API_KEY", "required": true}
	}`
	require.NoError(t, s.UpsertBlueprint(context.Background(), &domain.Blueprint{
		Name:       "sonarr",
		SchemaJSON: json.RawMessage(schema),
	}))

	rec := doRequest(t, router, http.MethodPost, "/api/v1/apps", CreateAppRequest{
		Name:      "sonarr-main",
		Blueprint: "sonarr",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	app := decodeApp(t, rec)

	// The defaults do not satisfy the blueprint, so the record waits in
	// unconfigured until a configure with complete inputs succeeds.
	assert.Equal(t, "unconfigured", app.Phase)

	rec = doRequest(t, router, http.MethodPut, "/api/v1/apps/"+app.ID+"/configure", ConfigureAppRequest{
		Inputs: map[string]any{},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "validation_failed", resp.Code)
	assert.NotEmpty(t, resp.Fields)

	rec = doRequest(t, router, http.MethodPut, "/api/v1/apps/"+app.ID+"/configure", ConfigureAppRequest{
		Inputs: map[string]any{"api_key": "s3cret"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var preview PreviewResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&preview))
	assert.Equal(t, "configured", preview.App.Phase)
}

// =============================================================================
// Lifecycle
// =============================================================================

func installedApp(t *testing.T, router http.Handler, s store.Store, blueprint, name string) AppResponse {
	t.Helper()
	seedBlueprint(t, s, blueprint)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/apps", CreateAppRequest{
		Name:      name,
		Blueprint: blueprint,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	app := decodeApp(t, rec)

	rec = doRequest(t, router, http.MethodPost, "/api/v1/apps/"+app.ID+"/install", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return decodeApp(t, rec)
}

func TestInstallApp(t *testing.T) {
	router, s, _ := setupHandler(t)

	app := installedApp(t, router, s, "jellyfin", "jellyfin-main")
	assert.Equal(t, "running", app.Phase)
	assert.Equal(t, "172.20.0.9", app.ContainerAddr)
	assert.NotNil(t, app.InstalledAt)
}

func TestStopAndRemoveApp(t *testing.T) {
	router, s, _ := setupHandler(t)
	app := installedApp(t, router, s, "jellyfin", "jellyfin-main")

	rec := doRequest(t, router, http.MethodPost, "/api/v1/apps/"+app.ID+"/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stopped", decodeApp(t, rec).Phase)

	rec = doRequest(t, router, http.MethodPost, "/api/v1/apps/"+app.ID+"/remove", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "removed", decodeApp(t, rec).Phase)
}

func TestStopAppInvalidTransition(t *testing.T) {
	router, s, _ := setupHandler(t)
	seedBlueprint(t, s, "jellyfin")

	rec := doRequest(t, router, http.MethodPost, "/api/v1/apps", CreateAppRequest{
		Name:      "jellyfin-main",
		Blueprint: "jellyfin",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	app := decodeApp(t, rec)

	// A configured app has no container to stop.
	rec = doRequest(t, router, http.MethodPost, "/api/v1/apps/"+app.ID+"/stop", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteAppRequiresRemoval(t *testing.T) {
	router, s, _ := setupHandler(t)
	app := installedApp(t, router, s, "jellyfin", "jellyfin-main")

	rec := doRequest(t, router, http.MethodDelete, "/api/v1/apps/"+app.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/v1/apps/"+app.ID+"/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, router, http.MethodPost, "/api/v1/apps/"+app.ID+"/remove", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/api/v1/apps/"+app.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/apps/"+app.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// Batch Install
// =============================================================================

func TestBatchInstall(t *testing.T) {
	router, s, _ := setupHandler(t)
	seedBlueprint(t, s, "postgres")
	seedBlueprint(t, s, "radarr", "postgres")

	rec := doRequest(t, router, http.MethodPost, "/api/v1/apps", CreateAppRequest{Name: "postgres-main", Blueprint: "postgres"})
	require.Equal(t, http.StatusCreated, rec.Code)
	pg := decodeApp(t, rec)

	rec = doRequest(t, router, http.MethodPost, "/api/v1/apps", CreateAppRequest{Name: "radarr-main", Blueprint: "radarr"})
	require.Equal(t, http.StatusCreated, rec.Code)
	radarr := decodeApp(t, rec)

	rec = doRequest(t, router, http.MethodPost, "/api/v1/apps/batch-install", BatchInstallRequest{
		AppIDs: []string{radarr.ID, pg.ID},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BatchInstallResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []string{pg.ID, radarr.ID}, resp.Order)
	assert.Equal(t, resp.Order, resp.Installed)
}

func TestBatchInstallMissingPrerequisite(t *testing.T) {
	router, s, _ := setupHandler(t)
	seedBlueprint(t, s, "radarr", "postgres")

	rec := doRequest(t, router, http.MethodPost, "/api/v1/apps", CreateAppRequest{Name: "radarr-main", Blueprint: "radarr"})
	require.Equal(t, http.StatusCreated, rec.Code)
	radarr := decodeApp(t, rec)

	rec = doRequest(t, router, http.MethodPost, "/api/v1/apps/batch-install", BatchInstallRequest{
		AppIDs: []string{radarr.ID},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "missing_prerequisites", resp.Code)
	assert.Equal(t, []string{"postgres"}, resp.Fields)
}

// =============================================================================
// Settings
// =============================================================================

func TestSettingsRoundTrip(t *testing.T) {
	router, _, _ := setupHandler(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings domain.GlobalSettings
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&settings))
	assert.Equal(t, 1000, settings.PUID)

	settings.Timezone = "Europe/Berlin"
	rec = doRequest(t, router, http.MethodPut, "/api/v1/settings", settings)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&settings))
	assert.Equal(t, "Europe/Berlin", settings.Timezone)
}
