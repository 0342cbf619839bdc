// Package api provides HTTP handlers for the mastarr API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mastarr-dev/mastarr/internal/core/domain"
	"github.com/mastarr-dev/mastarr/internal/shell/docker"
	"github.com/mastarr-dev/mastarr/internal/shell/hooks"
	"github.com/mastarr-dev/mastarr/internal/shell/orchestrator"
	"github.com/mastarr-dev/mastarr/internal/shell/store"
)

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store  store.Store
	docker docker.Client
	orch   *orchestrator.Orchestrator
	logger *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, d docker.Client, orch *orchestrator.Orchestrator, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{
		store:  s,
		docker: d,
		orch:   orch,
		logger: l.With("component", "api"),
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/blueprints", func(r chi.Router) {
			r.Get("/", h.handleListBlueprints)
			r.Get("/{name}", h.handleGetBlueprint)
		})

		r.Route("/apps", func(r chi.Router) {
			r.Post("/", h.handleCreateApp)
			r.Get("/", h.handleListApps)
			r.Post("/batch-install", h.handleBatchInstall)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.handleGetApp)
				r.Delete("/", h.handleDeleteApp)
				r.Put("/configure", h.handleConfigureApp)
				r.Post("/install", h.handleInstallApp)
				r.Post("/update", h.handleUpdateApp)
				r.Post("/stop", h.handleStopApp)
				r.Post("/remove", h.handleRemoveApp)
			})
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.handleGetSettings)
			r.Put("/", h.handlePutSettings)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	checks["database"] = "ok"

	if err := h.docker.Ping(r.Context()); err != nil {
		checks["docker"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["docker"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Blueprint Handlers
// =============================================================================

func (h *Handler) handleListBlueprints(w http.ResponseWriter, r *http.Request) {
	blueprints, err := h.store.ListBlueprints(r.Context(), store.DefaultListOptions())
	if err != nil {
		h.logger.Error("failed to list blueprints", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list blueprints", "internal_error")
		return
	}

	resp := ListBlueprintsResponse{
		Blueprints: make([]BlueprintResponse, 0, len(blueprints)),
		Total:      len(blueprints),
	}
	for _, b := range blueprints {
		resp.Blueprints = append(resp.Blueprints, h.blueprintToResponse(&b, false))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetBlueprint(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	blueprint, err := h.store.GetBlueprint(r.Context(), name)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "blueprint not found", "blueprint_not_found")
			return
		}
		h.logger.Error("failed to get blueprint", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get blueprint", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, h.blueprintToResponse(blueprint, true))
}

// =============================================================================
// App Handlers
// =============================================================================

func (h *Handler) handleCreateApp(w http.ResponseWriter, r *http.Request) {
	var req CreateAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	// The blueprint must exist before an instance of it can be created.
	if _, err := h.store.GetBlueprint(r.Context(), req.Blueprint); err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusBadRequest, "unknown blueprint "+req.Blueprint, "validation_error")
			return
		}
		h.logger.Error("failed to get blueprint", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create app", "internal_error")
		return
	}

	app, err := domain.NewApp(req.Name, req.Blueprint, req.Inputs)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}

	if err := h.store.CreateApp(r.Context(), app); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			h.writeError(w, http.StatusConflict, "app name already in use", "duplicate_name")
			return
		}
		h.logger.Error("failed to create app", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create app", "internal_error")
		return
	}

	// Creation doubles as the first configure attempt. When the inputs (or
	// the blueprint defaults) do not compile yet, the record stays
	// unconfigured until a later configure succeeds.
	if _, err := h.orch.Configure(r.Context(), app.ID, req.Inputs); err != nil {
		h.logger.Info("app created unconfigured", "app", app.Name, "error", err)
	} else if configured, err := h.store.GetApp(r.Context(), app.ID); err == nil {
		app = configured
	}

	h.writeJSON(w, http.StatusCreated, h.appToResponse(app))
}

func (h *Handler) handleGetApp(w http.ResponseWriter, r *http.Request) {
	app, ok := h.fetchApp(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.appToResponse(app))
}

func (h *Handler) handleListApps(w http.ResponseWriter, r *http.Request) {
	opts := store.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}

	var (
		apps []domain.App
		err  error
	)
	if blueprint := r.URL.Query().Get("blueprint"); blueprint != "" {
		apps, err = h.store.ListAppsByBlueprint(r.Context(), blueprint)
	} else {
		apps, err = h.store.ListApps(r.Context(), opts)
	}
	if err != nil {
		h.logger.Error("failed to list apps", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list apps", "internal_error")
		return
	}

	resp := ListAppsResponse{
		Apps:   make([]AppResponse, 0, len(apps)),
		Total:  len(apps),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	for i := range apps {
		resp.Apps = append(resp.Apps, h.appToResponse(&apps[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeleteApp(w http.ResponseWriter, r *http.Request) {
	app, ok := h.fetchApp(w, r)
	if !ok {
		return
	}

	// Records with live containers must go through remove first.
	if app.Phase != domain.PhaseRemoved && app.Phase != domain.PhaseConfigured && app.Phase != domain.PhaseUnconfigured {
		h.writeError(w, http.StatusConflict, "app must be removed before deletion", "app_not_removed")
		return
	}

	if err := h.store.DeleteApp(r.Context(), app.ID); err != nil {
		h.logger.Error("failed to delete app", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to delete app", "internal_error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleConfigureApp(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ConfigureAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	preview, err := h.orch.Configure(r.Context(), id, req.Inputs)
	if err != nil {
		h.writeLifecycleError(w, err, "failed to configure app")
		return
	}

	app, err := h.store.GetApp(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get app", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to configure app", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, PreviewResponse{
		App:         h.appToResponse(app),
		Documents:   preview.Documents,
		ComposeYAML: preview.ComposeYAML,
		EnvFile:     preview.EnvFile,
	})
}

// =============================================================================
// Lifecycle Handlers
// =============================================================================

func (h *Handler) handleInstallApp(w http.ResponseWriter, r *http.Request) {
	h.handleLifecycle(w, r, h.orch.Install, "failed to install app")
}

func (h *Handler) handleUpdateApp(w http.ResponseWriter, r *http.Request) {
	h.handleLifecycle(w, r, h.orch.Update, "failed to update app")
}

func (h *Handler) handleStopApp(w http.ResponseWriter, r *http.Request) {
	h.handleLifecycle(w, r, h.orch.Stop, "failed to stop app")
}

func (h *Handler) handleRemoveApp(w http.ResponseWriter, r *http.Request) {
	h.handleLifecycle(w, r, h.orch.Remove, "failed to remove app")
}

// handleLifecycle runs one orchestrator transition and responds with the
// app's resulting state.
func (h *Handler) handleLifecycle(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error, failMsg string) {
	id := chi.URLParam(r, "id")

	if err := op(r.Context(), id); err != nil {
		h.writeLifecycleError(w, err, failMsg)
		return
	}

	app, err := h.store.GetApp(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get app", "error", err)
		h.writeError(w, http.StatusInternalServerError, failMsg, "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, h.appToResponse(app))
}

func (h *Handler) handleBatchInstall(w http.ResponseWriter, r *http.Request) {
	var req BatchInstallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if len(req.AppIDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "app_ids is required", "validation_error")
		return
	}

	result, err := h.orch.InstallBatch(r.Context(), req.AppIDs)
	if err != nil {
		var perr *orchestrator.PrerequisiteError
		if errors.As(err, &perr) {
			h.writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
				Error:  perr.Error(),
				Code:   "missing_prerequisites",
				Fields: perr.Missing,
			})
			return
		}
		if errors.Is(err, orchestrator.ErrDuplicateBlueprint) {
			h.writeError(w, http.StatusBadRequest, err.Error(), "duplicate_blueprint")
			return
		}
		h.writeLifecycleError(w, err, "batch install failed")
		return
	}

	h.writeJSON(w, http.StatusOK, BatchInstallResponse{
		Order:     result.Order,
		Installed: result.Installed,
	})
}

// =============================================================================
// Settings Handlers
// =============================================================================

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetSettings(r.Context())
	if err != nil {
		h.logger.Error("failed to get settings", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get settings", "internal_error")
		return
	}
	h.writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.GlobalSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	if err := h.store.PutSettings(r.Context(), &settings); err != nil {
		h.logger.Error("failed to put settings", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to save settings", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, settings)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) fetchApp(w http.ResponseWriter, r *http.Request) (*domain.App, bool) {
	id := chi.URLParam(r, "id")

	app, err := h.store.GetApp(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "app not found", "app_not_found")
			return nil, false
		}
		h.logger.Error("failed to get app", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get app", "internal_error")
		return nil, false
	}
	return app, true
}

// writeLifecycleError maps orchestrator errors to HTTP responses.
func (h *Handler) writeLifecycleError(w http.ResponseWriter, err error, failMsg string) {
	if isNotFound(err) {
		h.writeError(w, http.StatusNotFound, "app not found", "app_not_found")
		return
	}
	if errors.Is(err, orchestrator.ErrTransitionInFlight) {
		h.writeError(w, http.StatusConflict, err.Error(), "transition_in_flight")
		return
	}
	if errors.Is(err, domain.ErrInvalidTransition) {
		h.writeError(w, http.StatusConflict, err.Error(), "invalid_transition")
		return
	}
	if errors.Is(err, hooks.ErrHookAborted) {
		h.writeError(w, http.StatusConflict, err.Error(), "hook_aborted")
		return
	}
	var verr *orchestrator.ValidationError
	if errors.As(err, &verr) {
		fields := make([]string, len(verr.Fields))
		for i, fe := range verr.Fields {
			fields[i] = fe.Error()
		}
		h.writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "descriptor validation failed",
			Code:   "validation_failed",
			Fields: fields,
		})
		return
	}

	h.logger.Error(failMsg, "error", err)
	h.writeError(w, http.StatusInternalServerError, failMsg, "internal_error")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func (h *Handler) appToResponse(a *domain.App) AppResponse {
	return AppResponse{
		ID:            a.ID,
		Name:          a.Name,
		Blueprint:     a.BlueprintName,
		Phase:         string(a.Phase),
		PriorPhase:    string(a.PriorPhase),
		RawInputs:     a.RawInputs,
		ContainerName: a.ContainerName,
		ContainerAddr: a.ContainerAddr,
		ErrorMessage:  a.ErrorMessage,
		CreatedAt:     a.CreatedAt,
		TransitionAt:  a.TransitionAt,
		InstalledAt:   a.InstalledAt,
	}
}

func (h *Handler) blueprintToResponse(b *domain.Blueprint, includeSchema bool) BlueprintResponse {
	resp := BlueprintResponse{
		Name:          b.Name,
		AppType:       b.AppType,
		Description:   b.Description,
		Version:       b.Version,
		Prerequisites: b.Prerequisites,
		InstallOrder:  b.InstallOrder,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
	if includeSchema {
		var schema any
		if err := json.Unmarshal(b.SchemaJSON, &schema); err == nil {
			resp.Schema = schema
		}
	}
	return resp
}

func isNotFound(err error) bool {
	var storeErr *store.StoreError
	if errors.As(err, &storeErr) {
		return errors.Is(storeErr.Unwrap(), store.ErrNotFound)
	}
	return errors.Is(err, store.ErrNotFound)
}
