package store

import (
	"context"

	"github.com/mastarr-dev/mastarr/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for Mastarr entities.
type Store interface {
	// Blueprint operations
	UpsertBlueprint(ctx context.Context, blueprint *domain.Blueprint) error
	GetBlueprint(ctx context.Context, name string) (*domain.Blueprint, error)
	DeleteBlueprint(ctx context.Context, name string) error
	ListBlueprints(ctx context.Context, opts ListOptions) ([]domain.Blueprint, error)

	// App operations
	CreateApp(ctx context.Context, app *domain.App) error
	GetApp(ctx context.Context, id string) (*domain.App, error)
	GetAppByName(ctx context.Context, name string) (*domain.App, error)
	UpdateApp(ctx context.Context, app *domain.App) error
	DeleteApp(ctx context.Context, id string) error
	ListApps(ctx context.Context, opts ListOptions) ([]domain.App, error)
	ListAppsByBlueprint(ctx context.Context, blueprintName string) ([]domain.App, error)

	// Global settings (singleton record)
	GetSettings(ctx context.Context) (*domain.GlobalSettings, error)
	PutSettings(ctx context.Context, settings *domain.GlobalSettings) error

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
