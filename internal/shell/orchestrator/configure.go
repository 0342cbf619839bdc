package orchestrator

import (
	"context"

	"github.com/mastarr-dev/mastarr/internal/core/descriptor"
	"github.com/mastarr-dev/mastarr/internal/core/domain"
)

// =============================================================================
// Configure
// =============================================================================

// Preview shows what a configuration would deploy without touching the
// container runtime.
type Preview struct {
	Documents   *descriptor.Documents
	ComposeYAML string
	EnvFile     string
}

// Configure replaces an app's raw inputs, compiles the descriptor against
// them, and persists the inputs and compiled documents only when compilation
// succeeds. A fresh instance moves from unconfigured to configured on its
// first successful configure. Nothing is written to disk and no container
// work happens. The running container is untouched until the next install
// or update.
func (o *Orchestrator) Configure(ctx context.Context, appID string, inputs map[string]any) (*Preview, error) {
	release, err := o.acquire(appID)
	if err != nil {
		return nil, err
	}
	defer release()

	app, err := o.store.GetApp(ctx, appID)
	if err != nil {
		return nil, err
	}
	blueprint, err := o.store.GetBlueprint(ctx, app.BlueprintName)
	if err != nil {
		return nil, err
	}
	settings, err := o.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	app.RawInputs = inputs
	c, err := o.compileApp(app, blueprint, settings)
	if err != nil {
		return nil, err
	}
	app.CompiledDocs = c.docsJSON

	// The first successful configure unlocks the rest of the lifecycle.
	if app.Phase == domain.PhaseUnconfigured {
		if terr := app.Transition(domain.PhaseConfigured); terr != nil {
			return nil, terr
		}
	}
	if err := o.store.UpdateApp(ctx, app); err != nil {
		return nil, err
	}

	o.logger.Info("configured", "app", app.Name)

	return &Preview{
		Documents:   c.result.Documents,
		ComposeYAML: c.yaml,
		EnvFile:     c.envFile,
	}, nil
}
