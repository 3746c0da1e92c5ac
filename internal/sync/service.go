package sync

import (
	"context"

	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
	"github.com/kimhsiao/tripplanner/backend/internal/logging"
	"github.com/kimhsiao/tripplanner/backend/internal/models"
	"github.com/kimhsiao/tripplanner/backend/internal/sync/queue"
	"github.com/kimhsiao/tripplanner/backend/internal/worker"
)

// FavoriteStore applies a favorite flag to the locally cached plan.
type FavoriteStore interface {
	StatusStore
	SetFavorite(ctx context.Context, planID string, isFavorite bool) (bool, error)
}

// Dispatcher schedules background events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev worker.Event) *worker.Future
}

// Service records user changes locally and schedules their delivery.
type Service struct {
	store      FavoriteStore
	queue      queue.FavoriteQueue
	dispatcher Dispatcher
}

// NewService creates a Service. dispatcher may be nil, in which case
// changes wait for the next scheduled drain.
func NewService(store FavoriteStore, q queue.FavoriteQueue, dispatcher Dispatcher) *Service {
	return &Service{store: store, queue: q, dispatcher: dispatcher}
}

// ToggleFavorite updates the cached plan optimistically, queues the change
// for the server and requests a background sync. The returned future
// resolves when that sync finishes; it is nil without a dispatcher.
func (s *Service) ToggleFavorite(ctx context.Context, planID string, isFavorite bool) (*models.PendingFavoriteChange, *worker.Future, error) {
	if planID == "" {
		return nil, nil, apperrors.New(apperrors.ErrInvalid, "plan id is required")
	}

	cached, err := s.store.SetFavorite(ctx, planID, isFavorite)
	if err != nil {
		return nil, nil, err
	}

	change, err := s.queue.Enqueue(ctx, planID, isFavorite)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.AddToSyncQueue(ctx, planID); err != nil {
		return nil, nil, err
	}

	logging.Info("Favorite change queued", map[string]interface{}{
		"id":          change.ID,
		"plan_id":     planID,
		"is_favorite": isFavorite,
		"cached":      cached,
	})

	if s.dispatcher == nil {
		return change, nil, nil
	}
	// The sync outlives the request that caused it.
	f := s.dispatcher.Dispatch(context.WithoutCancel(ctx), worker.Event{
		Kind: worker.KindSync,
		Tag:  worker.SyncFavoritesTag,
	})
	return change, f, nil
}

// RetryParked returns parked changes to the queue and requests a sync.
func (s *Service) RetryParked(ctx context.Context) (int, error) {
	n, err := s.queue.RetryParked(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 && s.dispatcher != nil {
		s.dispatcher.Dispatch(context.WithoutCancel(ctx), worker.Event{Kind: worker.KindSync, Tag: worker.SyncFavoritesTag})
	}
	return n, nil
}

// SyncHandler adapts a drainer to the worker's sync event.
func SyncHandler(d SyncEngineInterface) worker.Handler {
	return worker.OnTag(worker.SyncFavoritesTag, func(ctx context.Context, ev worker.Event) (worker.Result, error) {
		res, err := d.Drain(ctx)
		return worker.Result{Value: res}, err
	})
}
