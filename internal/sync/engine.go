package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
	"github.com/kimhsiao/tripplanner/backend/internal/logging"
	"github.com/kimhsiao/tripplanner/backend/internal/metrics"
	"github.com/kimhsiao/tripplanner/backend/internal/models"
	"github.com/kimhsiao/tripplanner/backend/internal/sync/queue"
	"github.com/kimhsiao/tripplanner/backend/internal/tracing"
)

// SyncStatus represents the current sync status.
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusFailed  SyncStatus = "failed"
)

// ItemError describes one change the server did not accept.
type ItemError struct {
	ID       int64  `json:"id"`
	PlanID   string `json:"planId"`
	Attempts int    `json:"attempts"`
	Parked   bool   `json:"parked"`
	Error    string `json:"error"`
}

// DrainResult represents the result of a drain.
type DrainResult struct {
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`
	Attempted int           `json:"attempted"`
	Synced    int           `json:"synced"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Errors    []ItemError   `json:"errors,omitempty"`

	// lastID is the highest queue id this drain listed.
	lastID int64
}

// Complete reports whether no attempted change failed.
func (r *DrainResult) Complete() bool {
	return r.Failed == 0
}

// Drainer sends queued favorite changes to the server.
type Drainer struct {
	queue   queue.FavoriteQueue
	api     FavoriteUpdater
	status  StatusStore
	now     func() time.Time
	flights singleflight.Group

	mu       sync.RWMutex
	state    SyncStatus
	lastSync *time.Time
	lastErr  error
}

// NewDrainer creates a Drainer.
func NewDrainer(q queue.FavoriteQueue, api FavoriteUpdater, status StatusStore) *Drainer {
	return &Drainer{
		queue:  q,
		api:    api,
		status: status,
		now:    time.Now,
		state:  SyncStatusIdle,
	}
}

var _ SyncEngineInterface = (*Drainer)(nil)

// Status returns the current sync status.
func (d *Drainer) Status() SyncStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// LastSync returns the time of the last complete drain.
func (d *Drainer) LastSync() *time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastSync
}

// LastError returns the last drain error.
func (d *Drainer) LastError() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}

// Drain processes every pending change once, in enqueue order. Accepted
// changes are removed; rejected ones stay queued and the drain moves on.
// Concurrent calls share one run. A caller that joined a run which had
// already listed the queue drains again when newer changes are waiting.
// An error is returned only when the queue itself cannot be read or ctx ends.
func (d *Drainer) Drain(ctx context.Context) (*DrainResult, error) {
	for {
		v, err, shared := d.flights.Do("drain", func() (interface{}, error) {
			return d.drain(ctx)
		})
		res, _ := v.(*DrainResult)
		if err != nil || !shared {
			return res, err
		}
		logging.Debug("Joined in-flight drain", nil)

		newer, lerr := d.hasNewer(ctx, res.lastID)
		if lerr != nil || !newer {
			return res, nil
		}
	}
}

// hasNewer reports whether an unparked change newer than lastID is queued.
func (d *Drainer) hasNewer(ctx context.Context, lastID int64) (bool, error) {
	items, err := d.queue.List(ctx)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if item.ID > lastID && item.Status != models.PendingFavoriteStatusParked {
			return true, nil
		}
	}
	return false, nil
}

func (d *Drainer) drain(ctx context.Context) (result *DrainResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "Sync.Drain")
	defer span.End()

	d.mu.Lock()
	d.state = SyncStatusSyncing
	d.mu.Unlock()

	result = &DrainResult{StartTime: d.now()}

	defer func() {
		result.EndTime = d.now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		metrics.SyncDrainDuration.Observe(result.Duration.Seconds())

		d.mu.Lock()
		defer d.mu.Unlock()
		switch {
		case err != nil:
			d.state = SyncStatusFailed
			d.lastErr = err
		case !result.Complete():
			d.state = SyncStatusFailed
			d.lastErr = apperrors.New(apperrors.ErrSyncItemFailed, fmt.Sprintf("%d favorite changes failed", result.Failed))
		default:
			d.state = SyncStatusIdle
			d.lastErr = nil
			end := result.EndTime
			d.lastSync = &end
		}
	}()

	items, err := d.queue.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read queue")
		return result, err
	}

	synced := make(map[string]bool)
	for _, item := range items {
		if item.ID > result.lastID {
			result.lastID = item.ID
		}
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return result, err
		}

		if item.Status == models.PendingFavoriteStatusParked {
			result.Skipped++
			metrics.RecordSyncItem("skipped")
			continue
		}

		result.Attempted++
		if ok := d.syncItem(ctx, item, result); ok {
			synced[item.PlanID] = true
		}
	}

	d.releasePlans(ctx, synced)
	d.refreshPendingGauge(ctx)

	span.SetAttributes(
		attribute.Int("sync.attempted", result.Attempted),
		attribute.Int("sync.synced", result.Synced),
		attribute.Int("sync.failed", result.Failed),
	)

	if result.Complete() {
		if err := d.status.SetLastSync(ctx, d.now()); err != nil {
			logging.Error("Failed to record last sync time", err, nil)
		}
		span.SetStatus(codes.Ok, "drained")
	} else {
		span.SetStatus(codes.Error, "some changes failed")
	}

	logging.Info("Favorite sync drained", map[string]interface{}{
		"attempted": result.Attempted,
		"synced":    result.Synced,
		"failed":    result.Failed,
		"skipped":   result.Skipped,
	})
	return result, nil
}

// syncItem pushes one change and updates the queue. It reports success.
func (d *Drainer) syncItem(ctx context.Context, item *models.PendingFavoriteChange, result *DrainResult) bool {
	err := d.api.UpdateFavorite(ctx, item.PlanID, item.IsFavorite)
	if err == nil {
		if derr := d.queue.Delete(ctx, item.ID); derr != nil {
			// The server has the change; a later drain resends the same value.
			logging.Error("Failed to dequeue synced favorite", derr, map[string]interface{}{"id": item.ID})
		}
		result.Synced++
		metrics.RecordSyncItem("synced")
		return true
	}

	failure := apperrors.Wrap(apperrors.ErrSyncItemFailed, fmt.Sprintf("favorite change %d for plan %s failed", item.ID, item.PlanID), err)
	logging.Warn("Favorite sync failed", map[string]interface{}{
		"id":      item.ID,
		"plan_id": item.PlanID,
		"error":   failure.Error(),
	})

	itemErr := ItemError{ID: item.ID, PlanID: item.PlanID, Attempts: item.Attempts + 1, Error: err.Error()}
	if updated, rerr := d.queue.RecordFailure(ctx, item.ID, err); rerr != nil {
		logging.Error("Failed to record favorite sync failure", rerr, map[string]interface{}{"id": item.ID})
	} else {
		itemErr.Attempts = updated.Attempts
		itemErr.Parked = updated.Status == models.PendingFavoriteStatusParked
	}

	result.Failed++
	result.Errors = append(result.Errors, itemErr)
	metrics.RecordSyncItem("failed")
	return false
}

// releasePlans clears plans from the pending status once none of their changes remain queued.
func (d *Drainer) releasePlans(ctx context.Context, synced map[string]bool) {
	if len(synced) == 0 {
		return
	}

	remaining, err := d.queue.List(ctx)
	if err != nil {
		logging.Error("Failed to re-read favorite queue", err, nil)
		return
	}
	for _, item := range remaining {
		delete(synced, item.PlanID)
	}

	for planID := range synced {
		if err := d.status.RemoveFromSyncQueue(ctx, planID); err != nil {
			logging.Error("Failed to clear plan sync status", err, map[string]interface{}{"plan_id": planID})
		}
	}
}

func (d *Drainer) refreshPendingGauge(ctx context.Context) {
	stats, err := queue.GetStats(ctx, d.queue)
	if err != nil {
		return
	}
	metrics.PendingFavorites.Set(float64(stats.Total))
}
