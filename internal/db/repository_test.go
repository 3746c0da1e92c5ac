// Package db tests for repository operations.
package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/tripplanner/backend/internal/models"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	database, err := OpenMigrated(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewRepository(database.DB)
}

func TestKVEntries(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, ok, err := repo.GetValue(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetValue(ctx, "trip_planner_plan_a", `{"id":"a"}`))
	require.NoError(t, repo.SetValue(ctx, "trip_planner_plan_a", `{"id":"a","name":"v2"}`))
	require.NoError(t, repo.SetValue(ctx, "trip_planner_plan_b", `{"id":"b"}`))
	require.NoError(t, repo.SetValue(ctx, "trip_planner_sync_status", `{}`))

	v, ok, err := repo.GetValue(ctx, "trip_planner_plan_a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"a","name":"v2"}`, v)

	keys, err := repo.KeysWithPrefix(ctx, "trip_planner_plan_")
	require.NoError(t, err)
	assert.Equal(t, []string{"trip_planner_plan_a", "trip_planner_plan_b"}, keys)

	has, err := repo.HasValue(ctx, "trip_planner_plan_b")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, repo.DeleteValue(ctx, "trip_planner_plan_b"))
	require.NoError(t, repo.DeleteValue(ctx, "trip_planner_plan_b"))
	has, err = repo.HasValue(ctx, "trip_planner_plan_b")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestPendingFavorites(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	first := &models.PendingFavoriteChange{PlanID: "p1", IsFavorite: true}
	second := &models.PendingFavoriteChange{PlanID: "p2", IsFavorite: false}
	require.NoError(t, repo.CreatePendingFavorite(ctx, first))
	require.NoError(t, repo.CreatePendingFavorite(ctx, second))
	assert.Greater(t, second.ID, first.ID)

	list, err := repo.ListPendingFavorites(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p1", list[0].PlanID)
	assert.True(t, list[0].IsFavorite)
	assert.False(t, list[1].IsFavorite)
	assert.Equal(t, models.PendingFavoriteStatusPending, list[0].Status)

	first.Attempts = 3
	first.LastError = "boom"
	first.Status = models.PendingFavoriteStatusParked
	require.NoError(t, repo.UpdatePendingFavorite(ctx, first))

	n, err := repo.ResetParkedFavorites(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, repo.DeletePendingFavorite(ctx, second.ID))
	list, err = repo.ListPendingFavorites(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 0, list[0].Attempts)
	assert.Equal(t, models.PendingFavoriteStatusPending, list[0].Status)
}

func TestPendingFavorites_IDsNotReused(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	a := &models.PendingFavoriteChange{PlanID: "p1", IsFavorite: true}
	require.NoError(t, repo.CreatePendingFavorite(ctx, a))
	require.NoError(t, repo.DeletePendingFavorite(ctx, a.ID))

	b := &models.PendingFavoriteChange{PlanID: "p1", IsFavorite: false}
	require.NoError(t, repo.CreatePendingFavorite(ctx, b))
	assert.Greater(t, b.ID, a.ID)
}

func TestCacheNamespacesAndEntries(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	require.NoError(t, repo.CreateCacheNamespace(ctx, "trip-planner-cache-v0"))
	require.NoError(t, repo.CreateCacheNamespace(ctx, "trip-planner-cache-v1"))
	require.NoError(t, repo.CreateCacheNamespace(ctx, "trip-planner-cache-v1"))

	names, err := repo.ListCacheNamespaces(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"trip-planner-cache-v0", "trip-planner-cache-v1"}, names)

	shared := &models.CacheEntry{Namespace: "trip-planner-cache-v0", Key: "http://x/a.png", Status: 200, Header: []byte(`{}`), BodyHash: "shared", Size: 3}
	only := &models.CacheEntry{Namespace: "trip-planner-cache-v0", Key: "http://x/b.png", Status: 200, Header: []byte(`{}`), BodyHash: "only-v0", Size: 3}
	other := &models.CacheEntry{Namespace: "trip-planner-cache-v1", Key: "http://x/a.png", Status: 200, Header: []byte(`{}`), BodyHash: "shared", Size: 3}
	for _, e := range []*models.CacheEntry{shared, only, other} {
		require.NoError(t, repo.PutCacheEntry(ctx, e))
	}

	got, err := repo.GetCacheEntry(ctx, "trip-planner-cache-v0", "http://x/b.png")
	require.NoError(t, err)
	assert.Equal(t, "only-v0", got.BodyHash)

	refs, err := repo.CountBodyReferences(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, 2, refs)

	existed, orphaned, err := repo.DeleteCacheNamespace(ctx, "trip-planner-cache-v0")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, []string{"only-v0"}, orphaned)

	_, err = repo.GetCacheEntry(ctx, "trip-planner-cache-v0", "http://x/b.png")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	existed, _, err = repo.DeleteCacheNamespace(ctx, "trip-planner-cache-v0")
	require.NoError(t, err)
	assert.False(t, existed)

	keys, err := repo.ListCacheKeys(ctx, "trip-planner-cache-v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://x/a.png"}, keys)

	deleted, err := repo.DeleteCacheEntry(ctx, "trip-planner-cache-v1", "http://x/a.png")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestPutCacheEntry_Overwrites(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	require.NoError(t, repo.CreateCacheNamespace(ctx, "ns"))

	require.NoError(t, repo.PutCacheEntry(ctx, &models.CacheEntry{Namespace: "ns", Key: "k", Status: 200, Header: []byte(`{}`), BodyHash: "h1"}))
	require.NoError(t, repo.PutCacheEntry(ctx, &models.CacheEntry{Namespace: "ns", Key: "k", Status: 201, Header: []byte(`{}`), BodyHash: "h2"}))

	got, err := repo.GetCacheEntry(ctx, "ns", "k")
	require.NoError(t, err)
	assert.Equal(t, 201, got.Status)
	assert.Equal(t, "h2", got.BodyHash)
}
