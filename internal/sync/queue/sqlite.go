package queue

import (
	"context"

	"github.com/kimhsiao/tripplanner/backend/internal/db"
	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
	"github.com/kimhsiao/tripplanner/backend/internal/models"
)

// SQLiteQueue stores changes in the pending_favorites table.
type SQLiteQueue struct {
	repo        db.PendingFavoriteRepository
	maxAttempts int
}

// NewSQLiteQueue creates a SQLiteQueue. maxAttempts <= 0 retries forever.
func NewSQLiteQueue(repo db.PendingFavoriteRepository, maxAttempts int) *SQLiteQueue {
	return &SQLiteQueue{repo: repo, maxAttempts: maxAttempts}
}

func (q *SQLiteQueue) Enqueue(ctx context.Context, planID string, isFavorite bool) (*models.PendingFavoriteChange, error) {
	item, err := newChange(planID, isFavorite)
	if err != nil {
		return nil, err
	}
	if err := q.repo.CreatePendingFavorite(ctx, item); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to enqueue favorite change", err)
	}
	return item, nil
}

func (q *SQLiteQueue) List(ctx context.Context) ([]*models.PendingFavoriteChange, error) {
	items, err := q.repo.ListPendingFavorites(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to list favorite changes", err)
	}
	return items, nil
}

func (q *SQLiteQueue) Delete(ctx context.Context, id int64) error {
	if err := q.repo.DeletePendingFavorite(ctx, id); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to delete favorite change", err)
	}
	return nil
}

func (q *SQLiteQueue) RecordFailure(ctx context.Context, id int64, cause error) (*models.PendingFavoriteChange, error) {
	items, err := q.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if item.ID != id {
			continue
		}
		applyFailure(item, cause, q.maxAttempts)
		if err := q.repo.UpdatePendingFavorite(ctx, item); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to record favorite failure", err)
		}
		return item, nil
	}
	return nil, notFound(id)
}

func (q *SQLiteQueue) RetryParked(ctx context.Context) (int, error) {
	n, err := q.repo.ResetParkedFavorites(ctx)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to reset parked favorites", err)
	}
	return int(n), nil
}
