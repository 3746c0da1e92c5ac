package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
	"github.com/kimhsiao/tripplanner/backend/internal/models"
)

// DefaultRedisPrefix namespaces the Redis keys of the queue.
const DefaultRedisPrefix = "trip_planner:pending_favorites"

// RedisQueue stores changes as JSON in a hash, ordered by a sorted set on ID.
// IDs come from INCR so they increase across restarts.
type RedisQueue struct {
	rdb         *redis.Client
	prefix      string
	maxAttempts int
}

// NewRedisQueue creates a RedisQueue. maxAttempts <= 0 retries forever.
func NewRedisQueue(rdb *redis.Client, prefix string, maxAttempts int) *RedisQueue {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisQueue{rdb: rdb, prefix: prefix, maxAttempts: maxAttempts}
}

func (q *RedisQueue) seqKey() string   { return q.prefix + ":seq" }
func (q *RedisQueue) itemsKey() string { return q.prefix + ":items" }
func (q *RedisQueue) orderKey() string { return q.prefix + ":order" }

func (q *RedisQueue) save(ctx context.Context, item *models.PendingFavoriteChange) error {
	data, err := json.Marshal(item)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrSerialization, "failed to encode favorite change", err)
	}
	field := strconv.FormatInt(item.ID, 10)
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.itemsKey(), field, data)
		pipe.ZAdd(ctx, q.orderKey(), redis.Z{Score: float64(item.ID), Member: field})
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to store favorite change", err)
	}
	return nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, planID string, isFavorite bool) (*models.PendingFavoriteChange, error) {
	item, err := newChange(planID, isFavorite)
	if err != nil {
		return nil, err
	}

	id, err := q.rdb.Incr(ctx, q.seqKey()).Result()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to allocate favorite change id", err)
	}
	item.ID = id

	if err := q.save(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (q *RedisQueue) List(ctx context.Context) ([]*models.PendingFavoriteChange, error) {
	ids, err := q.rdb.ZRange(ctx, q.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to list favorite changes", err)
	}
	if len(ids) == 0 {
		return []*models.PendingFavoriteChange{}, nil
	}

	values, err := q.rdb.HMGet(ctx, q.itemsKey(), ids...).Result()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to load favorite changes", err)
	}

	items := make([]*models.PendingFavoriteChange, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var item models.PendingFavoriteChange
		if err := json.Unmarshal([]byte(s), &item); err != nil {
			continue
		}
		items = append(items, &item)
	}
	return items, nil
}

func (q *RedisQueue) get(ctx context.Context, id int64) (*models.PendingFavoriteChange, error) {
	s, err := q.rdb.HGet(ctx, q.itemsKey(), strconv.FormatInt(id, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to load favorite change", err)
	}
	var item models.PendingFavoriteChange
	if err := json.Unmarshal([]byte(s), &item); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSerialization, "corrupt favorite change", err)
	}
	return &item, nil
}

func (q *RedisQueue) Delete(ctx context.Context, id int64) error {
	field := strconv.FormatInt(id, 10)
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, q.itemsKey(), field)
		pipe.ZRem(ctx, q.orderKey(), field)
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to delete favorite change", err)
	}
	return nil
}

func (q *RedisQueue) RecordFailure(ctx context.Context, id int64, cause error) (*models.PendingFavoriteChange, error) {
	item, err := q.get(ctx, id)
	if err != nil {
		return nil, err
	}
	applyFailure(item, cause, q.maxAttempts)
	if err := q.save(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (q *RedisQueue) RetryParked(ctx context.Context) (int, error) {
	items, err := q.List(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, item := range items {
		if item.Status != models.PendingFavoriteStatusParked {
			continue
		}
		item.Status = models.PendingFavoriteStatusPending
		item.Attempts = 0
		item.LastError = ""
		if err := q.save(ctx, item); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
