// Package queue holds favorite changes made offline until they reach the server.
package queue

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
	"github.com/kimhsiao/tripplanner/backend/internal/logging"
	"github.com/kimhsiao/tripplanner/backend/internal/models"
)

// FavoriteQueue is a durable FIFO of pending favorite changes.
// Items are only removed explicitly, after the server accepted them.
type FavoriteQueue interface {
	// Enqueue appends a change and returns it with its assigned ID.
	Enqueue(ctx context.Context, planID string, isFavorite bool) (*models.PendingFavoriteChange, error)
	// List returns every change, parked ones included, in ID order.
	List(ctx context.Context) ([]*models.PendingFavoriteChange, error)
	// Delete removes a change. Missing IDs are ignored.
	Delete(ctx context.Context, id int64) error
	// RecordFailure counts a failed attempt, parking the change once it hits the attempt limit.
	RecordFailure(ctx context.Context, id int64, cause error) (*models.PendingFavoriteChange, error)
	// RetryParked returns parked changes to pending and reports how many moved.
	RetryParked(ctx context.Context) (int, error)
}

// Stats summarizes queue contents.
type Stats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Parked  int `json:"parked"`
}

// GetStats counts the items of q by status.
func GetStats(ctx context.Context, q FavoriteQueue) (Stats, error) {
	items, err := q.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	var s Stats
	for _, item := range items {
		s.Total++
		if item.Status == models.PendingFavoriteStatusParked {
			s.Parked++
		} else {
			s.Pending++
		}
	}
	return s, nil
}

func newChange(planID string, isFavorite bool) (*models.PendingFavoriteChange, error) {
	if planID == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "plan id is required")
	}
	now := time.Now().Unix()
	return &models.PendingFavoriteChange{
		PlanID:     planID,
		IsFavorite: isFavorite,
		Status:     models.PendingFavoriteStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// applyFailure updates the retry bookkeeping of item. maxAttempts <= 0 never parks.
func applyFailure(item *models.PendingFavoriteChange, cause error, maxAttempts int) {
	item.Attempts++
	if cause != nil {
		item.LastError = cause.Error()
	}
	item.UpdatedAt = time.Now().Unix()

	if maxAttempts > 0 && item.Attempts >= maxAttempts {
		item.Status = models.PendingFavoriteStatusParked
		logging.Warn("Favorite change parked after repeated failures", map[string]interface{}{
			"id":       item.ID,
			"plan_id":  item.PlanID,
			"attempts": item.Attempts,
			"error":    item.LastError,
		})
		return
	}

	logging.Debug("Favorite change failed, will retry", map[string]interface{}{
		"id":       item.ID,
		"plan_id":  item.PlanID,
		"attempts": item.Attempts,
		"error":    item.LastError,
	})
}

func notFound(id int64) error {
	return apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("pending favorite %d not found", id))
}
