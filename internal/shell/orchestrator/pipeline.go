package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mastarr-dev/mastarr/internal/core/descriptor"
	"github.com/mastarr-dev/mastarr/internal/core/domain"
	"github.com/mastarr-dev/mastarr/internal/core/schema"
	"github.com/mastarr-dev/mastarr/internal/shell/compose"
	"github.com/mastarr-dev/mastarr/internal/shell/docker"
)

// =============================================================================
// Descriptor Pipeline
// =============================================================================

// compiled is the output of running one app through the descriptor pipeline.
type compiled struct {
	result   *descriptor.Result
	docsJSON json.RawMessage
	yaml     string
	envFile  string
	hostPath string
}

// compileApp expands the blueprint schema for this app, compiles the
// descriptor, and renders the compose material. Field errors abort the
// pipeline; nothing is written to disk here.
func (o *Orchestrator) compileApp(app *domain.App, blueprint *domain.Blueprint, settings *domain.GlobalSettings) (*compiled, error) {
	hostPath := stackPath(settings, app.Name)

	// Template variables in the schema document resolve against the current
	// settings snapshot and this app's identity.
	expandCtx := domain.ExpandContext{
		Settings: *settings,
		AppName:  app.Name,
		HostPath: hostPath,
	}

	var rawSchema map[string]any
	if err := json.Unmarshal(blueprint.SchemaJSON, &rawSchema); err != nil {
		return nil, fmt.Errorf("blueprint %s schema: %w", blueprint.Name, err)
	}
	expanded, err := json.Marshal(expandCtx.Expand(rawSchema))
	if err != nil {
		return nil, fmt.Errorf("blueprint %s schema: %w", blueprint.Name, err)
	}

	parsed, err := schema.Parse(expanded)
	if err != nil {
		return nil, err
	}

	rtx := &descriptor.RuntimeContext{
		AppName:       app.Name,
		ContainerName: app.ContainerName,
		HostPath:      hostPath,
		RawInputs:     app.RawInputs,
	}

	result, err := descriptor.Compile(parsed, app.RawInputs, *settings, rtx)
	if err != nil {
		return nil, err
	}
	if len(result.FieldErrors) > 0 {
		return nil, &ValidationError{Fields: result.FieldErrors}
	}

	yamlOut, err := compose.Render(app.Name, result.Documents)
	if err != nil {
		return nil, err
	}
	if err := compose.Validate(app.Name, yamlOut); err != nil {
		return nil, err
	}

	docsJSON, err := json.Marshal(result.Documents)
	if err != nil {
		return nil, fmt.Errorf("serialize documents for %s: %w", app.Name, err)
	}

	return &compiled{
		result:   result,
		docsJSON: docsJSON,
		yaml:     yamlOut,
		envFile:  compose.RenderEnvFile(result.Documents),
		hostPath: hostPath,
	}, nil
}

// compiledDocuments decodes the descriptor documents persisted with the app
// at its last configure or install. Returns nil when no snapshot exists.
func compiledDocuments(app *domain.App) *descriptor.Documents {
	if len(app.CompiledDocs) == 0 {
		return nil
	}
	var docs descriptor.Documents
	if err := json.Unmarshal(app.CompiledDocs, &docs); err != nil {
		return nil
	}
	return &docs
}

// writeStack writes the rendered compose file and env file into the app's
// stack directory.
func (o *Orchestrator) writeStack(c *compiled) error {
	if err := os.MkdirAll(c.hostPath, 0o755); err != nil {
		return fmt.Errorf("create stack dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(c.hostPath, "docker-compose.yml"), []byte(c.yaml), 0o644); err != nil {
		return fmt.Errorf("write compose file: %w", err)
	}
	if c.envFile != "" {
		if err := os.WriteFile(filepath.Join(c.hostPath, ".env"), []byte(c.envFile), 0o600); err != nil {
			return fmt.Errorf("write env file: %w", err)
		}
	}
	return nil
}

// ensureNetworks creates the shared default network and any custom networks
// the descriptor staged with mode "create". Networks staged as "existing"
// are the operator's responsibility.
func (o *Orchestrator) ensureNetworks(ctx context.Context, settings *domain.GlobalSettings, staged []descriptor.StagedNetwork) error {
	if settings.NetworkName != "" {
		if _, err := o.docker.EnsureNetwork(ctx, docker.NetworkSpec{
			Name:    settings.NetworkName,
			Subnet:  settings.NetworkSubnet,
			Gateway: settings.NetworkGateway,
		}); err != nil {
			return err
		}
	}

	for _, n := range staged {
		if n.Mode != descriptor.NetworkModeCreate {
			continue
		}
		if _, err := o.docker.EnsureNetwork(ctx, docker.NetworkSpec{Name: n.Name}); err != nil {
			return err
		}
		o.logger.Debug("ensured custom network", "network", n.Name)
	}
	return nil
}
