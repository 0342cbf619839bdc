package orchestrator

import (
	"context"
	"fmt"

	"github.com/mastarr-dev/mastarr/internal/core/ordering"
	"github.com/mastarr-dev/mastarr/internal/shell/store"
)

// =============================================================================
// Batch Install
// =============================================================================

// BatchResult reports what a batch install accomplished. Order holds the
// resolved install sequence of app IDs; Installed holds the prefix that
// completed before the first failure, if any.
type BatchResult struct {
	Order     []string
	Installed []string
}

// InstallBatch installs a set of apps in dependency order. The selection is
// keyed by blueprint: each app's blueprint prerequisites must be satisfied
// either by another app in the batch or by an already installed app.
// Installation is sequential and stops at the first failure.
func (o *Orchestrator) InstallBatch(ctx context.Context, appIDs []string) (*BatchResult, error) {
	if len(appIDs) == 0 {
		return &BatchResult{}, nil
	}

	nodes := make([]ordering.Node, 0, len(appIDs))
	appByBlueprint := make(map[string]string, len(appIDs))
	selected := make(map[string]bool, len(appIDs))

	for _, id := range appIDs {
		app, err := o.store.GetApp(ctx, id)
		if err != nil {
			return nil, err
		}
		blueprint, err := o.store.GetBlueprint(ctx, app.BlueprintName)
		if err != nil {
			return nil, err
		}

		if _, dup := appByBlueprint[blueprint.Name]; dup {
			return nil, fmt.Errorf("blueprint %s: %w", blueprint.Name, ErrDuplicateBlueprint)
		}
		appByBlueprint[blueprint.Name] = app.ID
		selected[app.ID] = true

		nodes = append(nodes, ordering.Node{
			ID:            blueprint.Name,
			Prerequisites: blueprint.Prerequisites,
			InstallOrder:  blueprint.InstallOrder,
		})
	}

	available, err := o.installedBlueprints(ctx, selected)
	if err != nil {
		return nil, err
	}

	if missing := ordering.MissingPrerequisites(nodes, available); len(missing) > 0 {
		return nil, &PrerequisiteError{Missing: missing}
	}

	order, err := ordering.Resolve(nodes)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Order: make([]string, len(order))}
	for i, blueprintName := range order {
		result.Order[i] = appByBlueprint[blueprintName]
	}

	o.logger.Info("starting batch install", "count", len(result.Order))

	for _, appID := range result.Order {
		if err := o.Install(ctx, appID); err != nil {
			return result, fmt.Errorf("batch install stopped at app %s: %w", appID, err)
		}
		result.Installed = append(result.Installed, appID)
	}

	return result, nil
}

// installedBlueprints returns the blueprint names that already have an
// installed app outside the current selection.
func (o *Orchestrator) installedBlueprints(ctx context.Context, excludeApps map[string]bool) (map[string]bool, error) {
	apps, err := o.store.ListApps(ctx, store.ListOptions{Limit: 1000})
	if err != nil {
		return nil, err
	}

	available := make(map[string]bool)
	for i := range apps {
		app := &apps[i]
		if excludeApps[app.ID] {
			continue
		}
		if app.InstalledAt != nil && !app.Phase.IsTerminal() {
			available[app.BlueprintName] = true
		}
	}
	return available, nil
}
