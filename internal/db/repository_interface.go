// Package db provides repository interfaces for the offline cache tables.
package db

import (
	"context"

	"github.com/kimhsiao/tripplanner/backend/internal/models"
)

// KVRepository defines durable key-value persistence.
type KVRepository interface {
	GetValue(ctx context.Context, key string) (string, bool, error)
	SetValue(ctx context.Context, key, value string) error
	DeleteValue(ctx context.Context, key string) error
	HasValue(ctx context.Context, key string) (bool, error)
	KeysWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// PendingFavoriteRepository defines persistence of the favorite sync queue.
type PendingFavoriteRepository interface {
	CreatePendingFavorite(ctx context.Context, change *models.PendingFavoriteChange) error
	ListPendingFavorites(ctx context.Context) ([]*models.PendingFavoriteChange, error)
	UpdatePendingFavorite(ctx context.Context, change *models.PendingFavoriteChange) error
	DeletePendingFavorite(ctx context.Context, id int64) error
	ResetParkedFavorites(ctx context.Context) (int64, error)
}

// CacheRepository defines persistence of cache namespaces and response metadata.
type CacheRepository interface {
	CreateCacheNamespace(ctx context.Context, name string) error
	HasCacheNamespace(ctx context.Context, name string) (bool, error)
	ListCacheNamespaces(ctx context.Context) ([]string, error)
	DeleteCacheNamespace(ctx context.Context, name string) (bool, []string, error)
	PutCacheEntry(ctx context.Context, entry *models.CacheEntry) error
	GetCacheEntry(ctx context.Context, namespace, key string) (*models.CacheEntry, error)
	DeleteCacheEntry(ctx context.Context, namespace, key string) (bool, error)
	ListCacheKeys(ctx context.Context, namespace string) ([]string, error)
	CountBodyReferences(ctx context.Context, hash string) (int, error)
}

// Ensure *Repository implements the interfaces at compile time.
var (
	_ KVRepository              = (*Repository)(nil)
	_ PendingFavoriteRepository = (*Repository)(nil)
	_ CacheRepository           = (*Repository)(nil)
)
