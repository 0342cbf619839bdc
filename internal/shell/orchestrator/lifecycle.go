package orchestrator

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/mastarr-dev/mastarr/internal/core/domain"
	"github.com/mastarr-dev/mastarr/internal/shell/docker"
	"github.com/mastarr-dev/mastarr/internal/shell/hooks"
)

// =============================================================================
// Install / Update
// =============================================================================

// Install takes a configured, stopped, or failed app to running: compile the
// descriptor, prepare networks and stack files, replace the container, and
// run the install and start hooks around the work.
func (o *Orchestrator) Install(ctx context.Context, appID string) error {
	return o.install(ctx, appID, false)
}

// Update regenerates a running app in place. The descriptor is recompiled
// against current inputs and settings and the container is replaced. Update
// runs the update hooks instead of the install hooks.
func (o *Orchestrator) Update(ctx context.Context, appID string) error {
	return o.install(ctx, appID, true)
}

func (o *Orchestrator) install(ctx context.Context, appID string, update bool) error {
	release, err := o.acquire(appID)
	if err != nil {
		return err
	}
	defer release()

	app, err := o.store.GetApp(ctx, appID)
	if err != nil {
		return err
	}
	blueprint, err := o.store.GetBlueprint(ctx, app.BlueprintName)
	if err != nil {
		return err
	}
	settings, err := o.store.GetSettings(ctx)
	if err != nil {
		return err
	}

	if err := o.transition(ctx, app, domain.PhaseInstalling); err != nil {
		return err
	}

	log := o.logger.With("app", app.Name, "blueprint", blueprint.Name)
	log.Info("installing", "update", update)

	prePoint, postPoint := domain.HookPreInstall, domain.HookPostInstall
	if update {
		prePoint, postPoint = domain.HookPreUpdate, domain.HookPostUpdate
	}

	c, err := o.compileApp(app, blueprint, settings)
	if err != nil {
		return o.fail(ctx, app, err)
	}
	// The compiled documents travel with the record so later stop and
	// remove hooks see the same service and metadata this install deployed.
	app.CompiledDocs = c.docsJSON

	hookCtx := hooks.Context{
		AppID:         app.ID,
		AppName:       app.Name,
		ContainerName: app.ContainerName,
		Metadata:      c.result.Documents.Metadata,
		Service:       c.result.Documents.Service,
	}

	// Pre-hooks at non-destructive points cannot abort; failures are
	// logged and the install proceeds.
	if err := o.hooks.Run(ctx, blueprint.HookType(), prePoint, hookCtx); err != nil {
		log.Warn("pre hook failed, continuing", "point", string(prePoint), "error", err)
	}

	if err := o.ensureNetworks(ctx, settings, c.result.Networks); err != nil {
		return o.fail(ctx, app, err)
	}
	if err := o.writeStack(c); err != nil {
		return o.fail(ctx, app, err)
	}

	image, _ := c.result.Documents.Service["image"].(string)
	if image != "" {
		if err := o.docker.PullImage(ctx, image); err != nil {
			return o.fail(ctx, app, err)
		}
	}

	// Replace any previous container for this instance.
	if err := o.removeContainer(context.WithoutCancel(ctx), app.ContainerName); err != nil {
		return o.fail(ctx, app, err)
	}

	spec, err := docker.BuildContainerSpec(app, c.result.Documents.Service, c.hostPath)
	if err != nil {
		return o.fail(ctx, app, err)
	}
	containerID, err := o.docker.CreateContainer(ctx, spec)
	if err != nil {
		return o.fail(ctx, app, err)
	}
	log.Debug("created container", "container_id", containerID)

	if err := o.hooks.Run(ctx, blueprint.HookType(), domain.HookPreStart, hookCtx); err != nil {
		log.Warn("pre_start hook failed, continuing", "error", err)
	}

	if err := o.docker.StartContainer(ctx, containerID); err != nil {
		return o.fail(ctx, app, err)
	}

	// Readiness is advisory: a slow app still transitions to running, and
	// the post hooks run against a possibly-not-ready service.
	info := o.awaitReady(ctx, containerID)
	if info == nil {
		log.Warn("readiness poll exhausted, proceeding", "container_id", containerID)
	} else {
		app.ContainerAddr = info.Address
	}

	hookCtx.ContainerAddr = app.ContainerAddr
	if err := o.hooks.Run(ctx, blueprint.HookType(), domain.HookPostStart, hookCtx); err != nil {
		log.Warn("post_start hook failed", "error", err)
	}
	if err := o.hooks.Run(ctx, blueprint.HookType(), postPoint, hookCtx); err != nil {
		log.Warn("post hook failed", "point", string(postPoint), "error", err)
	}

	if err := o.transition(ctx, app, domain.PhaseRunning); err != nil {
		return o.fail(ctx, app, err)
	}

	log.Info("running", "addr", app.ContainerAddr)
	return nil
}

// awaitReady polls the container until it reports running (and healthy, when
// it has a healthcheck) or the attempt budget runs out.
func (o *Orchestrator) awaitReady(ctx context.Context, containerID string) *docker.ContainerInfo {
	for attempt := 0; attempt < o.cfg.ReadinessAttempts; attempt++ {
		info, err := o.docker.InspectContainer(ctx, containerID)
		if err == nil && info.State == docker.ContainerStateRunning &&
			(info.Health == "" || info.Health == "healthy") {
			return info
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(o.cfg.ReadinessInterval):
		}
	}
	return nil
}

// =============================================================================
// Stop
// =============================================================================

// Stop takes a running app to stopped. The pre_stop hook may abort; once the
// container stop begins it runs to completion even if the request context is
// cancelled.
func (o *Orchestrator) Stop(ctx context.Context, appID string) error {
	release, err := o.acquire(appID)
	if err != nil {
		return err
	}
	defer release()

	app, err := o.store.GetApp(ctx, appID)
	if err != nil {
		return err
	}
	blueprint, err := o.store.GetBlueprint(ctx, app.BlueprintName)
	if err != nil {
		return err
	}

	if err := domain.ValidateTransition(app.Phase, domain.PhaseStopping); err != nil {
		return err
	}

	log := o.logger.With("app", app.Name)
	log.Info("stopping")

	hookCtx := hooks.Context{
		AppID:         app.ID,
		AppName:       app.Name,
		ContainerName: app.ContainerName,
		ContainerAddr: app.ContainerAddr,
	}
	if docs := compiledDocuments(app); docs != nil {
		hookCtx.Metadata = docs.Metadata
		hookCtx.Service = docs.Service
	}

	// The abortable hook runs before the phase moves: an abort fails the
	// record from its actual pre-stop phase and leaves the container alone.
	if err := o.hooks.Run(ctx, blueprint.HookType(), domain.HookPreStop, hookCtx); err != nil {
		if errors.Is(err, hooks.ErrHookAborted) {
			return o.fail(ctx, app, err)
		}
		log.Warn("pre_stop hook failed, continuing", "error", err)
	}

	if err := o.transition(ctx, app, domain.PhaseStopping); err != nil {
		return err
	}

	dctx := context.WithoutCancel(ctx)
	timeout := o.cfg.StopTimeout
	if err := o.docker.StopContainer(dctx, app.ContainerName, &timeout); err != nil {
		if !errors.Is(err, docker.ErrContainerNotFound) && !errors.Is(err, docker.ErrContainerNotRunning) {
			return o.fail(ctx, app, err)
		}
	}

	if err := o.hooks.Run(dctx, blueprint.HookType(), domain.HookPostStop, hookCtx); err != nil {
		log.Warn("post_stop hook failed", "error", err)
	}

	if err := o.transition(dctx, app, domain.PhaseStopped); err != nil {
		return o.fail(ctx, app, err)
	}

	log.Info("stopped")
	return nil
}

// =============================================================================
// Remove
// =============================================================================

// Remove takes a stopped or failed app to removed: stop and delete the
// container, delete the stack directory, keep the record. The pre_remove
// hook may abort.
func (o *Orchestrator) Remove(ctx context.Context, appID string) error {
	release, err := o.acquire(appID)
	if err != nil {
		return err
	}
	defer release()

	app, err := o.store.GetApp(ctx, appID)
	if err != nil {
		return err
	}
	blueprint, err := o.store.GetBlueprint(ctx, app.BlueprintName)
	if err != nil {
		return err
	}
	settings, err := o.store.GetSettings(ctx)
	if err != nil {
		return err
	}

	if err := domain.ValidateTransition(app.Phase, domain.PhaseRemoving); err != nil {
		return err
	}

	log := o.logger.With("app", app.Name)
	log.Info("removing")

	hookCtx := hooks.Context{
		AppID:         app.ID,
		AppName:       app.Name,
		ContainerName: app.ContainerName,
		ContainerAddr: app.ContainerAddr,
	}
	if docs := compiledDocuments(app); docs != nil {
		hookCtx.Metadata = docs.Metadata
		hookCtx.Service = docs.Service
	}

	// As with stop, the abortable hook runs before the phase moves.
	if err := o.hooks.Run(ctx, blueprint.HookType(), domain.HookPreRemove, hookCtx); err != nil {
		if errors.Is(err, hooks.ErrHookAborted) {
			return o.fail(ctx, app, err)
		}
		log.Warn("pre_remove hook failed, continuing", "error", err)
	}

	if err := o.transition(ctx, app, domain.PhaseRemoving); err != nil {
		return err
	}

	dctx := context.WithoutCancel(ctx)
	if err := o.removeContainer(dctx, app.ContainerName); err != nil {
		return o.fail(ctx, app, err)
	}

	if err := os.RemoveAll(stackPath(settings, app.Name)); err != nil {
		log.Warn("failed to remove stack dir", "error", err)
	}

	if err := o.hooks.Run(dctx, blueprint.HookType(), domain.HookPostRemove, hookCtx); err != nil {
		log.Warn("post_remove hook failed", "error", err)
	}

	app.ContainerAddr = ""
	if err := o.transition(dctx, app, domain.PhaseRemoved); err != nil {
		return o.fail(ctx, app, err)
	}

	log.Info("removed")
	return nil
}

// removeContainer force-removes a container by name, tolerating absence.
func (o *Orchestrator) removeContainer(ctx context.Context, containerName string) error {
	err := o.docker.RemoveContainer(ctx, containerName, docker.RemoveOptions{Force: true})
	if err != nil && !errors.Is(err, docker.ErrContainerNotFound) {
		return err
	}
	return nil
}
