package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mastarr-dev/mastarr/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Blueprint Operations
// =============================================================================

// blueprintRow represents a blueprint row in the database.
type blueprintRow struct {
	Name          string `db:"name"`
	AppType       string `db:"app_type"`
	Description   string `db:"description"`
	Version       string `db:"version"`
	SchemaJSON    string `db:"schema_json"`
	Prerequisites string `db:"prerequisites"`
	InstallOrder  int    `db:"install_order"`
	CreatedAt     string `db:"created_at"`
	UpdatedAt     string `db:"updated_at"`
}

func (s *SQLiteStore) UpsertBlueprint(ctx context.Context, blueprint *domain.Blueprint) error {
	return upsertBlueprint(ctx, s.db, blueprint)
}

func (s *SQLiteStore) GetBlueprint(ctx context.Context, name string) (*domain.Blueprint, error) {
	return getBlueprint(ctx, s.db, name)
}

func (s *SQLiteStore) DeleteBlueprint(ctx context.Context, name string) error {
	return deleteBlueprint(ctx, s.db, name)
}

func (s *SQLiteStore) ListBlueprints(ctx context.Context, opts ListOptions) ([]domain.Blueprint, error) {
	return listBlueprints(ctx, s.db, opts)
}

// =============================================================================
// App Operations
// =============================================================================

// appRow represents an app row in the database.
type appRow struct {
	ID            string  `db:"id"`
	Name          string  `db:"name"`
	BlueprintName string  `db:"blueprint_name"`
	Phase         string  `db:"phase"`
	PriorPhase    string  `db:"prior_phase"`
	RawInputs     string  `db:"raw_inputs"`
	CompiledDocs  string  `db:"compiled_docs"`
	ContainerName string  `db:"container_name"`
	ContainerAddr string  `db:"container_addr"`
	ErrorMessage  string  `db:"error_message"`
	CreatedAt     string  `db:"created_at"`
	TransitionAt  string  `db:"transition_at"`
	InstalledAt   *string `db:"installed_at"`
}

func (s *SQLiteStore) CreateApp(ctx context.Context, app *domain.App) error {
	return createApp(ctx, s.db, app)
}

func (s *SQLiteStore) GetApp(ctx context.Context, id string) (*domain.App, error) {
	return getApp(ctx, s.db, id)
}

func (s *SQLiteStore) GetAppByName(ctx context.Context, name string) (*domain.App, error) {
	return getAppByName(ctx, s.db, name)
}

func (s *SQLiteStore) UpdateApp(ctx context.Context, app *domain.App) error {
	return updateApp(ctx, s.db, app)
}

func (s *SQLiteStore) DeleteApp(ctx context.Context, id string) error {
	return deleteApp(ctx, s.db, id)
}

func (s *SQLiteStore) ListApps(ctx context.Context, opts ListOptions) ([]domain.App, error) {
	return listApps(ctx, s.db, opts)
}

func (s *SQLiteStore) ListAppsByBlueprint(ctx context.Context, blueprintName string) ([]domain.App, error) {
	return listAppsByBlueprint(ctx, s.db, blueprintName)
}

// =============================================================================
// Settings Operations
// =============================================================================

func (s *SQLiteStore) GetSettings(ctx context.Context) (*domain.GlobalSettings, error) {
	return getSettings(ctx, s.db)
}

func (s *SQLiteStore) PutSettings(ctx context.Context, settings *domain.GlobalSettings) error {
	return putSettings(ctx, s.db, settings)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) UpsertBlueprint(ctx context.Context, blueprint *domain.Blueprint) error {
	return upsertBlueprint(ctx, s.tx, blueprint)
}

func (s *txSQLiteStore) GetBlueprint(ctx context.Context, name string) (*domain.Blueprint, error) {
	return getBlueprint(ctx, s.tx, name)
}

func (s *txSQLiteStore) DeleteBlueprint(ctx context.Context, name string) error {
	return deleteBlueprint(ctx, s.tx, name)
}

func (s *txSQLiteStore) ListBlueprints(ctx context.Context, opts ListOptions) ([]domain.Blueprint, error) {
	return listBlueprints(ctx, s.tx, opts)
}

func (s *txSQLiteStore) CreateApp(ctx context.Context, app *domain.App) error {
	return createApp(ctx, s.tx, app)
}

func (s *txSQLiteStore) GetApp(ctx context.Context, id string) (*domain.App, error) {
	return getApp(ctx, s.tx, id)
}

func (s *txSQLiteStore) GetAppByName(ctx context.Context, name string) (*domain.App, error) {
	return getAppByName(ctx, s.tx, name)
}

func (s *txSQLiteStore) UpdateApp(ctx context.Context, app *domain.App) error {
	return updateApp(ctx, s.tx, app)
}

func (s *txSQLiteStore) DeleteApp(ctx context.Context, id string) error {
	return deleteApp(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListApps(ctx context.Context, opts ListOptions) ([]domain.App, error) {
	return listApps(ctx, s.tx, opts)
}

func (s *txSQLiteStore) ListAppsByBlueprint(ctx context.Context, blueprintName string) ([]domain.App, error) {
	return listAppsByBlueprint(ctx, s.tx, blueprintName)
}

func (s *txSQLiteStore) GetSettings(ctx context.Context) (*domain.GlobalSettings, error) {
	return getSettings(ctx, s.tx)
}

func (s *txSQLiteStore) PutSettings(ctx context.Context, settings *domain.GlobalSettings) error {
	return putSettings(ctx, s.tx, settings)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Nested transactions run in the current one.
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	return nil
}

// =============================================================================
// Blueprint Implementation
// =============================================================================

func upsertBlueprint(ctx context.Context, exec executor, blueprint *domain.Blueprint) error {
	prereqJSON, err := json.Marshal(blueprint.Prerequisites)
	if err != nil {
		return NewStoreError("UpsertBlueprint", "blueprint", blueprint.Name, "failed to serialize prerequisites", ErrInvalidData)
	}

	query := `
		INSERT INTO blueprints (
			name, app_type, description, version, schema_json,
			prerequisites, install_order, created_at, updated_at
		) VALUES (
			:name, :app_type, :description, :version, :schema_json,
			:prerequisites, :install_order, :created_at, :updated_at
		)
		ON CONFLICT(name) DO UPDATE SET
			app_type = excluded.app_type,
			description = excluded.description,
			version = excluded.version,
			schema_json = excluded.schema_json,
			prerequisites = excluded.prerequisites,
			install_order = excluded.install_order,
			updated_at = excluded.updated_at`

	row := map[string]any{
		"name":          blueprint.Name,
		"app_type":      blueprint.AppType,
		"description":   blueprint.Description,
		"version":       blueprint.Version,
		"schema_json":   string(blueprint.SchemaJSON),
		"prerequisites": string(prereqJSON),
		"install_order": blueprint.InstallOrder,
		"created_at":    blueprint.CreatedAt.Format(time.RFC3339),
		"updated_at":    blueprint.UpdatedAt.Format(time.RFC3339),
	}

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		return NewStoreError("UpsertBlueprint", "blueprint", blueprint.Name, err.Error(), err)
	}

	return nil
}

func getBlueprint(ctx context.Context, exec executor, name string) (*domain.Blueprint, error) {
	query := `SELECT * FROM blueprints WHERE name = ?`

	var row blueprintRow
	err := exec.GetContext(ctx, &row, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetBlueprint", "blueprint", name, "blueprint not found", ErrNotFound)
		}
		return nil, NewStoreError("GetBlueprint", "blueprint", name, err.Error(), err)
	}

	return rowToBlueprint(&row)
}

func deleteBlueprint(ctx context.Context, exec executor, name string) error {
	query := `DELETE FROM blueprints WHERE name = ?`

	result, err := exec.ExecContext(ctx, query, name)
	if err != nil {
		return NewStoreError("DeleteBlueprint", "blueprint", name, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteBlueprint", "blueprint", name, "blueprint not found", ErrNotFound)
	}

	return nil
}

func listBlueprints(ctx context.Context, exec executor, opts ListOptions) ([]domain.Blueprint, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM blueprints ORDER BY install_order ASC, name ASC LIMIT ? OFFSET ?`

	var rows []blueprintRow
	err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListBlueprints", "blueprint", "", err.Error(), err)
	}

	blueprints := make([]domain.Blueprint, 0, len(rows))
	for _, row := range rows {
		blueprint, err := rowToBlueprint(&row)
		if err != nil {
			return nil, err
		}
		blueprints = append(blueprints, *blueprint)
	}

	return blueprints, nil
}

func rowToBlueprint(row *blueprintRow) (*domain.Blueprint, error) {
	var prereqs []string
	if row.Prerequisites != "" {
		if err := json.Unmarshal([]byte(row.Prerequisites), &prereqs); err != nil {
			return nil, NewStoreError("rowToBlueprint", "blueprint", row.Name, "failed to parse prerequisites", ErrInvalidData)
		}
	}

	createdAt, err := time.Parse(time.RFC3339, row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("rowToBlueprint", "blueprint", row.Name, "failed to parse created_at", ErrInvalidData)
	}
	updatedAt, err := time.Parse(time.RFC3339, row.UpdatedAt)
	if err != nil {
		return nil, NewStoreError("rowToBlueprint", "blueprint", row.Name, "failed to parse updated_at", ErrInvalidData)
	}

	return &domain.Blueprint{
		Name:          row.Name,
		AppType:       row.AppType,
		Description:   row.Description,
		Version:       row.Version,
		SchemaJSON:    json.RawMessage(row.SchemaJSON),
		Prerequisites: prereqs,
		InstallOrder:  row.InstallOrder,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}

// =============================================================================
// App Implementation
// =============================================================================

func createApp(ctx context.Context, exec executor, app *domain.App) error {
	inputsJSON, err := json.Marshal(app.RawInputs)
	if err != nil {
		return NewStoreError("CreateApp", "app", app.ID, "failed to serialize raw inputs", ErrInvalidData)
	}

	var installedAt *string
	if app.InstalledAt != nil {
		s := app.InstalledAt.Format(time.RFC3339)
		installedAt = &s
	}

	query := `
		INSERT INTO apps (
			id, name, blueprint_name, phase, prior_phase, raw_inputs,
			compiled_docs, container_name, container_addr, error_message,
			created_at, transition_at, installed_at
		) VALUES (
			:id, :name, :blueprint_name, :phase, :prior_phase, :raw_inputs,
			:compiled_docs, :container_name, :container_addr, :error_message,
			:created_at, :transition_at, :installed_at
		)`

	row := map[string]any{
		"id":             app.ID,
		"name":           app.Name,
		"blueprint_name": app.BlueprintName,
		"phase":          string(app.Phase),
		"prior_phase":    string(app.PriorPhase),
		"raw_inputs":     string(inputsJSON),
		"compiled_docs":  string(app.CompiledDocs),
		"container_name": app.ContainerName,
		"container_addr": app.ContainerAddr,
		"error_message":  app.ErrorMessage,
		"created_at":     app.CreatedAt.Format(time.RFC3339),
		"transition_at":  app.TransitionAt.Format(time.RFC3339),
		"installed_at":   installedAt,
	}

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: apps.id") {
			return NewStoreError("CreateApp", "app", app.ID, "app with this ID already exists", ErrDuplicateID)
		}
		if strings.Contains(err.Error(), "UNIQUE constraint failed: apps.name") {
			return NewStoreError("CreateApp", "app", app.Name, "app with this name already exists", ErrDuplicateName)
		}
		return NewStoreError("CreateApp", "app", app.ID, err.Error(), err)
	}

	return nil
}

func getApp(ctx context.Context, exec executor, id string) (*domain.App, error) {
	query := `SELECT * FROM apps WHERE id = ?`

	var row appRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetApp", "app", id, "app not found", ErrNotFound)
		}
		return nil, NewStoreError("GetApp", "app", id, err.Error(), err)
	}

	return rowToApp(&row)
}

func getAppByName(ctx context.Context, exec executor, name string) (*domain.App, error) {
	query := `SELECT * FROM apps WHERE name = ?`

	var row appRow
	err := exec.GetContext(ctx, &row, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetAppByName", "app", name, "app not found", ErrNotFound)
		}
		return nil, NewStoreError("GetAppByName", "app", name, err.Error(), err)
	}

	return rowToApp(&row)
}

func updateApp(ctx context.Context, exec executor, app *domain.App) error {
	inputsJSON, err := json.Marshal(app.RawInputs)
	if err != nil {
		return NewStoreError("UpdateApp", "app", app.ID, "failed to serialize raw inputs", ErrInvalidData)
	}

	var installedAt *string
	if app.InstalledAt != nil {
		s := app.InstalledAt.Format(time.RFC3339)
		installedAt = &s
	}

	query := `
		UPDATE apps SET
			name = :name,
			blueprint_name = :blueprint_name,
			phase = :phase,
			prior_phase = :prior_phase,
			raw_inputs = :raw_inputs,
			compiled_docs = :compiled_docs,
			container_name = :container_name,
			container_addr = :container_addr,
			error_message = :error_message,
			transition_at = :transition_at,
			installed_at = :installed_at
		WHERE id = :id`

	row := map[string]any{
		"id":             app.ID,
		"name":           app.Name,
		"blueprint_name": app.BlueprintName,
		"phase":          string(app.Phase),
		"prior_phase":    string(app.PriorPhase),
		"raw_inputs":     string(inputsJSON),
		"compiled_docs":  string(app.CompiledDocs),
		"container_name": app.ContainerName,
		"container_addr": app.ContainerAddr,
		"error_message":  app.ErrorMessage,
		"transition_at":  app.TransitionAt.Format(time.RFC3339),
		"installed_at":   installedAt,
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateApp", "app", app.ID, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateApp", "app", app.ID, "app not found", ErrNotFound)
	}

	return nil
}

func deleteApp(ctx context.Context, exec executor, id string) error {
	query := `DELETE FROM apps WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return NewStoreError("DeleteApp", "app", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteApp", "app", id, "app not found", ErrNotFound)
	}

	return nil
}

func listApps(ctx context.Context, exec executor, opts ListOptions) ([]domain.App, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM apps ORDER BY created_at DESC LIMIT ? OFFSET ?`

	var rows []appRow
	err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListApps", "app", "", err.Error(), err)
	}

	return rowsToApps(rows)
}

func listAppsByBlueprint(ctx context.Context, exec executor, blueprintName string) ([]domain.App, error) {
	query := `SELECT * FROM apps WHERE blueprint_name = ? ORDER BY created_at DESC`

	var rows []appRow
	err := exec.SelectContext(ctx, &rows, query, blueprintName)
	if err != nil {
		return nil, NewStoreError("ListAppsByBlueprint", "app", "", err.Error(), err)
	}

	return rowsToApps(rows)
}

func rowsToApps(rows []appRow) ([]domain.App, error) {
	apps := make([]domain.App, 0, len(rows))
	for _, row := range rows {
		app, err := rowToApp(&row)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	return apps, nil
}

func rowToApp(row *appRow) (*domain.App, error) {
	var inputs map[string]any
	if row.RawInputs != "" {
		if err := json.Unmarshal([]byte(row.RawInputs), &inputs); err != nil {
			return nil, NewStoreError("rowToApp", "app", row.ID, "failed to parse raw inputs", ErrInvalidData)
		}
	}

	createdAt, err := time.Parse(time.RFC3339, row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("rowToApp", "app", row.ID, "failed to parse created_at", ErrInvalidData)
	}
	transitionAt, err := time.Parse(time.RFC3339, row.TransitionAt)
	if err != nil {
		return nil, NewStoreError("rowToApp", "app", row.ID, "failed to parse transition_at", ErrInvalidData)
	}

	var installedAt *time.Time
	if row.InstalledAt != nil && *row.InstalledAt != "" {
		t, err := time.Parse(time.RFC3339, *row.InstalledAt)
		if err != nil {
			return nil, NewStoreError("rowToApp", "app", row.ID, "failed to parse installed_at", ErrInvalidData)
		}
		installedAt = &t
	}

	var compiledDocs json.RawMessage
	if row.CompiledDocs != "" {
		compiledDocs = json.RawMessage(row.CompiledDocs)
	}

	return &domain.App{
		ID:            row.ID,
		Name:          row.Name,
		BlueprintName: row.BlueprintName,
		Phase:         domain.Phase(row.Phase),
		PriorPhase:    domain.Phase(row.PriorPhase),
		RawInputs:     inputs,
		CompiledDocs:  compiledDocs,
		ContainerName: row.ContainerName,
		ContainerAddr: row.ContainerAddr,
		ErrorMessage:  row.ErrorMessage,
		CreatedAt:     createdAt,
		TransitionAt:  transitionAt,
		InstalledAt:   installedAt,
	}, nil
}

// =============================================================================
// Settings Implementation
// =============================================================================

// settingsRow represents the singleton settings row.
type settingsRow struct {
	ID             int    `db:"id"`
	PUID           int    `db:"puid"`
	PGID           int    `db:"pgid"`
	Timezone       string `db:"timezone"`
	User           string `db:"user"`
	NetworkName    string `db:"network_name"`
	NetworkSubnet  string `db:"network_subnet"`
	NetworkGateway string `db:"network_gateway"`
	HostPath       string `db:"host_path"`
}

func getSettings(ctx context.Context, exec executor) (*domain.GlobalSettings, error) {
	query := `SELECT * FROM settings WHERE id = 1`

	var row settingsRow
	err := exec.GetContext(ctx, &row, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			settings := domain.DefaultGlobalSettings()
			return &settings, nil
		}
		return nil, NewStoreError("GetSettings", "settings", "", err.Error(), err)
	}

	return &domain.GlobalSettings{
		PUID:           row.PUID,
		PGID:           row.PGID,
		Timezone:       row.Timezone,
		User:           row.User,
		NetworkName:    row.NetworkName,
		NetworkSubnet:  row.NetworkSubnet,
		NetworkGateway: row.NetworkGateway,
		HostPath:       row.HostPath,
	}, nil
}

func putSettings(ctx context.Context, exec executor, settings *domain.GlobalSettings) error {
	query := `
		UPDATE settings SET
			puid = :puid,
			pgid = :pgid,
			timezone = :timezone,
			user = :user,
			network_name = :network_name,
			network_subnet = :network_subnet,
			network_gateway = :network_gateway,
			host_path = :host_path
		WHERE id = 1`

	row := map[string]any{
		"puid":            settings.PUID,
		"pgid":            settings.PGID,
		"timezone":        settings.Timezone,
		"user":            settings.User,
		"network_name":    settings.NetworkName,
		"network_subnet":  settings.NetworkSubnet,
		"network_gateway": settings.NetworkGateway,
		"host_path":       settings.HostPath,
	}

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		return NewStoreError("PutSettings", "settings", "", err.Error(), err)
	}

	return nil
}
