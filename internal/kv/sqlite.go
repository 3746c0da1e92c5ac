package kv

import (
	"context"

	"github.com/kimhsiao/tripplanner/backend/internal/db"
)

// SQLiteStorage stores entries in the kv_entries table.
type SQLiteStorage struct {
	repo *db.Repository
}

// NewSQLiteStorage creates a Storage backed by repo.
func NewSQLiteStorage(repo *db.Repository) *SQLiteStorage {
	return &SQLiteStorage{repo: repo}
}

func (s *SQLiteStorage) Get(ctx context.Context, key string) (string, bool, error) {
	return s.repo.GetValue(ctx, key)
}

func (s *SQLiteStorage) Set(ctx context.Context, key, value string) error {
	return s.repo.SetValue(ctx, key, value)
}

func (s *SQLiteStorage) Delete(ctx context.Context, key string) error {
	return s.repo.DeleteValue(ctx, key)
}

func (s *SQLiteStorage) Has(ctx context.Context, key string) (bool, error) {
	return s.repo.HasValue(ctx, key)
}

func (s *SQLiteStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.repo.KeysWithPrefix(ctx, prefix)
}

// Ping checks the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
