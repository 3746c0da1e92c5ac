// Package sync drains favorite changes made offline to the trip planner server.
package sync

import (
	"context"
	"time"
)

// SyncEngineInterface defines the interface for sync engine operations.
// This interface allows for mocking in tests and alternative implementations.
type SyncEngineInterface interface {
	// Drain sends every pending favorite change to the server once.
	Drain(ctx context.Context) (*DrainResult, error)

	// Status returns the current sync status.
	Status() SyncStatus

	// LastSync returns the time of the last drain in which no item failed.
	LastSync() *time.Time

	// LastError returns the last error that occurred during a drain.
	LastError() error
}

// FavoriteUpdater pushes a favorite flag to the server.
type FavoriteUpdater interface {
	UpdateFavorite(ctx context.Context, planID string, isFavorite bool) error
}

// StatusStore is the plan-level sync bookkeeping kept in the local plan store.
type StatusStore interface {
	AddToSyncQueue(ctx context.Context, planID string) error
	RemoveFromSyncQueue(ctx context.Context, planID string) error
	SetLastSync(ctx context.Context, t time.Time) error
}
