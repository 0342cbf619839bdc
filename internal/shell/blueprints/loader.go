// Package blueprints loads blueprint definition files from disk into the
// store, validating their schemas before anything is persisted.
package blueprints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mastarr-dev/mastarr/internal/core/domain"
	"github.com/mastarr-dev/mastarr/internal/core/schema"
	"github.com/mastarr-dev/mastarr/internal/shell/store"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidBlueprint is returned for a blueprint file that fails
	// structural or schema validation.
	ErrInvalidBlueprint = errors.New("invalid blueprint definition")
)

// LoadError reports one unloadable blueprint file.
type LoadError struct {
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("blueprint %s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// =============================================================================
// File Format
// =============================================================================

// blueprintFile is the on-disk JSON format for one blueprint.
type blueprintFile struct {
	Name          string          `json:"name"`
	AppType       string          `json:"app_type"`
	Description   string          `json:"description"`
	Version       string          `json:"version"`
	Prerequisites []string        `json:"prerequisites"`
	InstallOrder  int             `json:"install_order"`
	Schema        json.RawMessage `json:"schema"`
}

// =============================================================================
// Loader
// =============================================================================

// Loader reads blueprint JSON files from a directory and upserts them.
type Loader struct {
	store  store.Store
	logger *slog.Logger
}

// NewLoader creates a blueprint loader.
func NewLoader(s store.Store, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		store:  s,
		logger: logger.With("component", "blueprints"),
	}
}

// LoadDir loads every *.json file in dir. Files that fail validation are
// skipped and reported; valid files are upserted. The returned errors are
// per-file; a missing directory is not an error, it just means no blueprints
// are shipped yet.
func (l *Loader) LoadDir(ctx context.Context, dir string) (int, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.logger.Info("blueprint directory missing, skipping", "dir", dir)
			return 0, nil
		}
		return 0, []error{&LoadError{Path: dir, Message: err.Error(), Err: err}}
	}

	loaded := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := l.loadFile(ctx, path); err != nil {
			l.logger.Warn("skipping blueprint", "path", path, "error", err)
			errs = append(errs, err)
			continue
		}
		loaded++
	}

	l.logger.Info("blueprints loaded", "dir", dir, "count", loaded, "skipped", len(errs))
	return loaded, errs
}

func (l *Loader) loadFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{Path: path, Message: err.Error(), Err: err}
	}

	var file blueprintFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return &LoadError{Path: path, Message: "malformed JSON: " + err.Error(), Err: ErrInvalidBlueprint}
	}

	blueprint := domain.Blueprint{
		Name:          file.Name,
		AppType:       file.AppType,
		Description:   file.Description,
		Version:       file.Version,
		SchemaJSON:    file.Schema,
		Prerequisites: file.Prerequisites,
		InstallOrder:  file.InstallOrder,
	}

	if errs := domain.ValidateBlueprint(blueprint); len(errs) > 0 {
		return &LoadError{Path: path, Message: joinErrors(errs), Err: ErrInvalidBlueprint}
	}

	// Schema errors are fatal for the file: a blueprint that cannot parse
	// must never reach the store.
	if _, err := schema.Parse(blueprint.SchemaJSON); err != nil {
		return &LoadError{Path: path, Message: err.Error(), Err: err}
	}

	now := time.Now().UTC()
	blueprint.CreatedAt = now
	blueprint.UpdatedAt = now

	if err := l.store.UpsertBlueprint(ctx, &blueprint); err != nil {
		return &LoadError{Path: path, Message: err.Error(), Err: err}
	}

	return nil
}

func joinErrors(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}
