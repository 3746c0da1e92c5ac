// Package planstore is the local plan store: durable per-plan documents, the
// plan-level sync status and the last-sync timestamp, on top of a kv.Storage.
package planstore

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
	"github.com/kimhsiao/tripplanner/backend/internal/kv"
	"github.com/kimhsiao/tripplanner/backend/internal/logging"
	"github.com/kimhsiao/tripplanner/backend/internal/metrics"
	"github.com/kimhsiao/tripplanner/backend/internal/models"
)

// Storage keys.
const (
	PlanKeyPrefix = "trip_planner_plan_"
	SyncStatusKey = "trip_planner_sync_status"
	LastSyncKey   = "trip_planner_last_sync"
)

// AssetCacher caches a single asset URL.
type AssetCacher interface {
	Cache(ctx context.Context, url string) error
}

// Store persists plans for offline use.
type Store struct {
	storage kv.Storage
	assets  AssetCacher

	// statusMu serializes read-modify-write of the sync status record within this process.
	statusMu sync.Mutex
}

// New creates a Store. storage may be nil, in which case writes fail with
// UNSUPPORTED_ENVIRONMENT. assets may be nil to skip image caching.
func New(storage kv.Storage, assets AssetCacher) *Store {
	return &Store{
		storage: storage,
		assets:  assets,
	}
}

// checkEnvironment verifies durable storage is configured and usable.
func (s *Store) checkEnvironment(ctx context.Context) error {
	if s.storage == nil {
		return apperrors.New(apperrors.ErrUnsupportedEnvironment, "durable storage is not available")
	}
	if p, ok := s.storage.(kv.Prober); ok {
		if err := p.Ping(ctx); err != nil {
			return apperrors.Wrap(apperrors.ErrUnsupportedEnvironment, "durable storage is not reachable", err)
		}
	}
	return nil
}

// CachePlan stores the full plan, replacing any previous entry, then
// opportunistically caches every image the plan references. Image failures
// are logged and never returned.
func (s *Store) CachePlan(ctx context.Context, plan *models.Plan) error {
	if err := s.checkEnvironment(ctx); err != nil {
		metrics.RecordPlanCacheWrite("unsupported")
		return err
	}

	data, err := EncodePlan(plan)
	if err != nil {
		metrics.RecordPlanCacheWrite("invalid")
		return err
	}

	if err := s.storage.Set(ctx, planKey(plan.ID), string(data)); err != nil {
		metrics.RecordPlanCacheWrite("failed")
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to write plan", err)
	}
	metrics.RecordPlanCacheWrite("ok")

	logging.Info("Plan cached for offline use", map[string]interface{}{
		"plan_id": plan.ID,
		"bytes":   len(data),
	})

	s.cacheImages(ctx, plan)
	return nil
}

func (s *Store) cacheImages(ctx context.Context, plan *models.Plan) {
	if s.assets == nil {
		return
	}

	urls := ExtractImageURLs(plan)
	for _, url := range urls {
		if err := s.assets.Cache(ctx, url); err != nil {
			metrics.RecordAssetCache("failed")
			logging.Warn("Failed to cache plan image", map[string]interface{}{
				"plan_id": plan.ID,
				"url":     url,
				"error":   err.Error(),
			})
			continue
		}
		metrics.RecordAssetCache("cached")
	}

	if len(urls) > 0 {
		logging.Debug("Plan images processed", map[string]interface{}{
			"plan_id": plan.ID,
			"images":  len(urls),
		})
	}
}

// GetPlan returns the cached plan, or nil when absent or unreadable.
// A corrupt entry is a cache miss, not an error.
func (s *Store) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	if s.storage == nil {
		return nil, nil
	}

	raw, ok, err := s.storage.Get(ctx, planKey(planID))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read plan", err)
	}
	if !ok {
		return nil, nil
	}

	res := DecodePlan([]byte(raw))
	if !res.OK {
		logging.Warn("Ignoring unreadable cached plan", map[string]interface{}{
			"plan_id": planID,
			"error":   res.Err.Error(),
		})
		return nil, nil
	}
	return res.Plan, nil
}

// RemovePlan deletes the cached plan and reports whether the delete succeeded.
func (s *Store) RemovePlan(ctx context.Context, planID string) bool {
	if s.storage == nil {
		return false
	}
	if err := s.storage.Delete(ctx, planKey(planID)); err != nil {
		logging.Error("Failed to remove cached plan", err, map[string]interface{}{"plan_id": planID})
		return false
	}
	return true
}

// IsPlanAvailableOffline reports whether a plan entry exists.
func (s *Store) IsPlanAvailableOffline(ctx context.Context, planID string) bool {
	if s.storage == nil {
		return false
	}
	ok, err := s.storage.Has(ctx, planKey(planID))
	if err != nil {
		logging.Error("Failed to check cached plan", err, map[string]interface{}{"plan_id": planID})
		return false
	}
	return ok
}

// ListPlans returns the ids of every offline-available plan.
func (s *Store) ListPlans(ctx context.Context) ([]string, error) {
	if s.storage == nil {
		return nil, nil
	}
	keys, err := s.storage.Keys(ctx, PlanKeyPrefix)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to list plans", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, PlanKeyPrefix))
	}
	return ids, nil
}

// SetFavorite updates the favorite flag of a cached plan in place.
// It reports false when the plan is not cached.
func (s *Store) SetFavorite(ctx context.Context, planID string, isFavorite bool) (bool, error) {
	plan, err := s.GetPlan(ctx, planID)
	if err != nil || plan == nil {
		return false, err
	}

	plan.IsFavorite = isFavorite
	data, err := EncodePlan(plan)
	if err != nil {
		return false, err
	}
	if err := s.storage.Set(ctx, planKey(planID), string(data)); err != nil {
		return false, apperrors.Wrap(apperrors.ErrDatabase, "failed to write plan", err)
	}
	return true, nil
}

// =====================================================
// Sync status
// =====================================================

// SyncStatus returns the plan-level sync status. A missing or corrupt record is empty.
func (s *Store) SyncStatus(ctx context.Context) (*models.SyncStatus, error) {
	status := &models.SyncStatus{PendingSyncs: []string{}}
	if s.storage == nil {
		return status, nil
	}

	raw, ok, err := s.storage.Get(ctx, SyncStatusKey)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read sync status", err)
	}
	if !ok {
		return status, nil
	}

	if err := json.Unmarshal([]byte(raw), status); err != nil {
		logging.Warn("Resetting unreadable sync status", map[string]interface{}{"error": err.Error()})
		return &models.SyncStatus{PendingSyncs: []string{}}, nil
	}
	if status.PendingSyncs == nil {
		status.PendingSyncs = []string{}
	}
	return status, nil
}

func (s *Store) writeSyncStatus(ctx context.Context, status *models.SyncStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrSerialization, "failed to serialize sync status", err)
	}
	if err := s.storage.Set(ctx, SyncStatusKey, string(data)); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to write sync status", err)
	}
	return nil
}

// AddToSyncQueue marks a plan as having unsynced changes. Adding twice is a no-op.
func (s *Store) AddToSyncQueue(ctx context.Context, planID string) error {
	if err := s.checkEnvironment(ctx); err != nil {
		return err
	}

	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	status, err := s.SyncStatus(ctx)
	if err != nil {
		return err
	}
	if status.Contains(planID) {
		return nil
	}
	status.PendingSyncs = append(status.PendingSyncs, planID)
	return s.writeSyncStatus(ctx, status)
}

// RemoveFromSyncQueue removes every occurrence of planID. Absent ids are a no-op.
func (s *Store) RemoveFromSyncQueue(ctx context.Context, planID string) error {
	if s.storage == nil {
		return nil
	}

	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	status, err := s.SyncStatus(ctx)
	if err != nil {
		return err
	}

	kept := status.PendingSyncs[:0]
	for _, id := range status.PendingSyncs {
		if id != planID {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(status.PendingSyncs) {
		return nil
	}
	status.PendingSyncs = kept
	return s.writeSyncStatus(ctx, status)
}

// =====================================================
// Last sync timestamp
// =====================================================

// SetLastSync overwrites the last successful sync time.
func (s *Store) SetLastSync(ctx context.Context, t time.Time) error {
	if err := s.checkEnvironment(ctx); err != nil {
		return err
	}
	if err := s.storage.Set(ctx, LastSyncKey, t.UTC().Format(time.RFC3339Nano)); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to write last sync time", err)
	}
	return nil
}

// LastSync returns the last successful sync time, if any.
func (s *Store) LastSync(ctx context.Context) (time.Time, bool, error) {
	if s.storage == nil {
		return time.Time{}, false, nil
	}
	raw, ok, err := s.storage.Get(ctx, LastSyncKey)
	if err != nil {
		return time.Time{}, false, apperrors.Wrap(apperrors.ErrDatabase, "failed to read last sync time", err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}
