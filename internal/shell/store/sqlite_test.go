package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastarr-dev/mastarr/internal/core/domain"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func testBlueprint(name string) *domain.Blueprint {
	now := time.Now().UTC()
	return &domain.Blueprint{
		Name:       name,
		SchemaJSON: json.RawMessage(`{"image":{"type":"string","schema":"service.image"}}`),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func createTestApp(t *testing.T, store Store, name string) *domain.App {
	t.Helper()
	app, err := domain.NewApp(name, "jellyfin", map[string]any{"port": 8096})
	require.NoError(t, err)
	require.NoError(t, store.CreateApp(context.Background(), app))
	return app
}

// =============================================================================
// Blueprint Tests
// =============================================================================

func TestUpsertBlueprint_InsertAndUpdate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	blueprint := testBlueprint("jellyfin")
	blueprint.Prerequisites = []string{"mastarr-net"}
	blueprint.InstallOrder = 5
	require.NoError(t, store.UpsertBlueprint(ctx, blueprint))

	retrieved, err := store.GetBlueprint(ctx, "jellyfin")
	require.NoError(t, err)
	assert.Equal(t, blueprint.Name, retrieved.Name)
	assert.Equal(t, []string{"mastarr-net"}, retrieved.Prerequisites)
	assert.Equal(t, 5, retrieved.InstallOrder)
	assert.JSONEq(t, string(blueprint.SchemaJSON), string(retrieved.SchemaJSON))

	// Re-upserting the same name updates in place.
	blueprint.Version = "2.0.0"
	require.NoError(t, store.UpsertBlueprint(ctx, blueprint))

	retrieved, err = store.GetBlueprint(ctx, "jellyfin")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", retrieved.Version)
}

func TestGetBlueprint_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetBlueprint(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "GetBlueprint", storeErr.Op)
}

func TestListBlueprints_InstallOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := testBlueprint("zebra")
	first.InstallOrder = 1
	second := testBlueprint("alpha")
	second.InstallOrder = 2
	require.NoError(t, store.UpsertBlueprint(ctx, first))
	require.NoError(t, store.UpsertBlueprint(ctx, second))

	blueprints, err := store.ListBlueprints(ctx, DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, blueprints, 2)
	assert.Equal(t, "zebra", blueprints[0].Name)
	assert.Equal(t, "alpha", blueprints[1].Name)
}

func TestDeleteBlueprint(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertBlueprint(ctx, testBlueprint("jellyfin")))
	require.NoError(t, store.DeleteBlueprint(ctx, "jellyfin"))

	_, err := store.GetBlueprint(ctx, "jellyfin")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.DeleteBlueprint(ctx, "jellyfin"), ErrNotFound)
}

// =============================================================================
// App Tests
// =============================================================================

func TestCreateApp_Success(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	app := createTestApp(t, store, "media-1")

	retrieved, err := store.GetApp(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, app.ID, retrieved.ID)
	assert.Equal(t, "media-1", retrieved.Name)
	assert.Equal(t, domain.PhaseUnconfigured, retrieved.Phase)
	assert.Equal(t, map[string]any{"port": float64(8096)}, retrieved.RawInputs)
	assert.Nil(t, retrieved.InstalledAt)
}

func TestCreateApp_DuplicateName(t *testing.T) {
	store := setupTestStore(t)

	createTestApp(t, store, "media-1")

	dup, err := domain.NewApp("media-1", "jellyfin", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, store.CreateApp(context.Background(), dup), ErrDuplicateName)
}

func TestGetAppByName(t *testing.T) {
	store := setupTestStore(t)
	app := createTestApp(t, store, "media-1")

	retrieved, err := store.GetAppByName(context.Background(), "media-1")
	require.NoError(t, err)
	assert.Equal(t, app.ID, retrieved.ID)

	_, err = store.GetAppByName(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateApp_PhaseRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	app := createTestApp(t, store, "media-1")
	require.NoError(t, app.Transition(domain.PhaseConfigured))
	require.NoError(t, app.Transition(domain.PhaseInstalling))
	require.NoError(t, app.Transition(domain.PhaseRunning))
	app.ContainerAddr = "172.20.0.5"
	app.CompiledDocs = json.RawMessage(`{"service":{"image":"example/jellyfin:latest"}}`)
	require.NoError(t, store.UpdateApp(ctx, app))

	retrieved, err := store.GetApp(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseRunning, retrieved.Phase)
	assert.Equal(t, "172.20.0.5", retrieved.ContainerAddr)
	assert.JSONEq(t, string(app.CompiledDocs), string(retrieved.CompiledDocs))
	require.NotNil(t, retrieved.InstalledAt)
}

func TestUpdateApp_NotFound(t *testing.T) {
	store := setupTestStore(t)

	app, err := domain.NewApp("ghost", "jellyfin", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, store.UpdateApp(context.Background(), app), ErrNotFound)
}

func TestListAppsByBlueprint(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestApp(t, store, "media-1")
	createTestApp(t, store, "media-2")

	other, err := domain.NewApp("db-1", "postgres", nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateApp(ctx, other))

	apps, err := store.ListAppsByBlueprint(ctx, "jellyfin")
	require.NoError(t, err)
	assert.Len(t, apps, 2)
}

func TestDeleteApp(t *testing.T) {
	store := setupTestStore(t)
	app := createTestApp(t, store, "media-1")

	require.NoError(t, store.DeleteApp(context.Background(), app.ID))
	_, err := store.GetApp(context.Background(), app.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// Settings Tests
// =============================================================================

func TestSettingsSingleton(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Migration seeds the defaults.
	settings, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000, settings.PUID)
	assert.Equal(t, "Etc/UTC", settings.Timezone)

	settings.PUID = 568
	settings.Timezone = "Europe/Berlin"
	require.NoError(t, store.PutSettings(ctx, settings))

	updated, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 568, updated.PUID)
	assert.Equal(t, "Europe/Berlin", updated.Timezone)
}

// =============================================================================
// Transaction Tests
// =============================================================================

func TestWithTx_RollbackOnError(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := store.WithTx(ctx, func(tx Store) error {
		if err := tx.UpsertBlueprint(ctx, testBlueprint("jellyfin")); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	_, err = store.GetBlueprint(ctx, "jellyfin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithTx_Commit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Store) error {
		return tx.UpsertBlueprint(ctx, testBlueprint("jellyfin"))
	})
	require.NoError(t, err)

	_, err = store.GetBlueprint(ctx, "jellyfin")
	require.NoError(t, err)
}
