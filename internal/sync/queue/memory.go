package queue

import (
	"context"
	"sort"
	"sync"

	"github.com/kimhsiao/tripplanner/backend/internal/models"
)

// MemoryQueue is a process-local FavoriteQueue.
type MemoryQueue struct {
	mu          sync.RWMutex
	items       map[int64]*models.PendingFavoriteChange
	nextID      int64
	maxAttempts int
}

// NewMemoryQueue creates an empty MemoryQueue. maxAttempts <= 0 retries forever.
func NewMemoryQueue(maxAttempts int) *MemoryQueue {
	return &MemoryQueue{
		items:       make(map[int64]*models.PendingFavoriteChange),
		maxAttempts: maxAttempts,
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, planID string, isFavorite bool) (*models.PendingFavoriteChange, error) {
	item, err := newChange(planID, isFavorite)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	item.ID = q.nextID
	q.items[item.ID] = item

	copy := *item
	return &copy, nil
}

func (q *MemoryQueue) List(_ context.Context) ([]*models.PendingFavoriteChange, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	items := make([]*models.PendingFavoriteChange, 0, len(q.items))
	for _, item := range q.items {
		copy := *item
		items = append(items, &copy)
	}
	sort.Slice(items, func(a, b int) bool { return items[a].ID < items[b].ID })
	return items, nil
}

func (q *MemoryQueue) Delete(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.items, id)
	return nil
}

func (q *MemoryQueue) RecordFailure(_ context.Context, id int64, cause error) (*models.PendingFavoriteChange, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[id]
	if !ok {
		return nil, notFound(id)
	}
	applyFailure(item, cause, q.maxAttempts)

	copy := *item
	return &copy, nil
}

func (q *MemoryQueue) RetryParked(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	for _, item := range q.items {
		if item.Status == models.PendingFavoriteStatusParked {
			item.Status = models.PendingFavoriteStatusPending
			item.Attempts = 0
			item.LastError = ""
			count++
		}
	}
	return count, nil
}
