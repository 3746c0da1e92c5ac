// Package db provides repository operations for the offline cache tables.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kimhsiao/tripplanner/backend/internal/models"
)

// Repository provides persistence for kv entries, pending favorites and cached responses.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Ping verifies the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// =====================================================
// Key-value entries
// =====================================================

// GetValue returns the value stored under key.
func (r *Repository) GetValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.GetContext(ctx, &value, `SELECT value FROM kv_entries WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetValue stores value under key, replacing any previous value.
func (r *Repository) SetValue(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	return err
}

// DeleteValue removes key. Deleting a missing key is not an error.
func (r *Repository) DeleteValue(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key)
	return err
}

// HasValue reports whether key exists.
func (r *Repository) HasValue(ctx context.Context, key string) (bool, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM kv_entries WHERE key = ?`, key); err != nil {
		return false, err
	}
	return n > 0, nil
}

// KeysWithPrefix lists keys starting with prefix in lexical order.
func (r *Repository) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := r.db.SelectContext(ctx, &keys,
		`SELECT key FROM kv_entries WHERE substr(key, 1, length(?)) = ? ORDER BY key`, prefix, prefix)
	return keys, err
}

// =====================================================
// Pending favorite changes
// =====================================================

// CreatePendingFavorite appends a change and assigns its ID.
func (r *Repository) CreatePendingFavorite(ctx context.Context, change *models.PendingFavoriteChange) error {
	now := time.Now().Unix()
	change.CreatedAt = now
	change.UpdatedAt = now
	if change.Status == "" {
		change.Status = models.PendingFavoriteStatusPending
	}

	res, err := r.db.NamedExecContext(ctx, `
	INSERT INTO pending_favorites (plan_id, is_favorite, attempts, last_error, status, created_at, updated_at)
	VALUES (:plan_id, :is_favorite, :attempts, :last_error, :status, :created_at, :updated_at)
	`, change)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read assigned id: %w", err)
	}
	change.ID = id
	return nil
}

// ListPendingFavorites returns every queued change in enqueue order.
func (r *Repository) ListPendingFavorites(ctx context.Context) ([]*models.PendingFavoriteChange, error) {
	var changes []*models.PendingFavoriteChange
	err := r.db.SelectContext(ctx, &changes, `
	SELECT id, plan_id, is_favorite, attempts, last_error, status, created_at, updated_at
	FROM pending_favorites ORDER BY id
	`)
	return changes, err
}

// UpdatePendingFavorite persists the retry bookkeeping of a change.
func (r *Repository) UpdatePendingFavorite(ctx context.Context, change *models.PendingFavoriteChange) error {
	change.UpdatedAt = time.Now().Unix()
	_, err := r.db.NamedExecContext(ctx, `
	UPDATE pending_favorites
	SET attempts = :attempts, last_error = :last_error, status = :status, updated_at = :updated_at
	WHERE id = :id
	`, change)
	return err
}

// DeletePendingFavorite removes a change by ID. Missing IDs are ignored.
func (r *Repository) DeletePendingFavorite(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_favorites WHERE id = ?`, id)
	return err
}

// ResetParkedFavorites moves parked changes back to pending with a fresh attempt count.
func (r *Repository) ResetParkedFavorites(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
	UPDATE pending_favorites SET status = ?, attempts = 0, last_error = '', updated_at = ?
	WHERE status = ?
	`, models.PendingFavoriteStatusPending, time.Now().Unix(), models.PendingFavoriteStatusParked)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// =====================================================
// Cache namespaces and entries
// =====================================================

// CreateCacheNamespace registers a namespace. Existing namespaces are left untouched.
func (r *Repository) CreateCacheNamespace(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO cache_namespaces (name, created_at) VALUES (?, ?)`, name, time.Now().Unix())
	return err
}

// HasCacheNamespace reports whether a namespace exists.
func (r *Repository) HasCacheNamespace(ctx context.Context, name string) (bool, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM cache_namespaces WHERE name = ?`, name); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListCacheNamespaces returns namespaces in creation order.
func (r *Repository) ListCacheNamespaces(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.SelectContext(ctx, &names, `SELECT name FROM cache_namespaces ORDER BY created_at, name`)
	return names, err
}

// DeleteCacheNamespace removes a namespace and its entries.
// It returns whether the namespace existed and the body hashes no other entry references.
func (r *Repository) DeleteCacheNamespace(ctx context.Context, name string) (bool, []string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var orphaned []string
	err = tx.SelectContext(ctx, &orphaned, `
	SELECT DISTINCT body_hash FROM cache_entries e
	WHERE e.namespace = ?
	  AND NOT EXISTS (SELECT 1 FROM cache_entries o WHERE o.body_hash = e.body_hash AND o.namespace <> ?)
	`, name, name)
	if err != nil {
		return false, nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE namespace = ?`, name); err != nil {
		return false, nil, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM cache_namespaces WHERE name = ?`, name)
	if err != nil {
		return false, nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, nil, err
	}

	if err := tx.Commit(); err != nil {
		return false, nil, err
	}
	return n > 0, orphaned, nil
}

// PutCacheEntry stores entry, replacing any entry with the same namespace and key.
func (r *Repository) PutCacheEntry(ctx context.Context, entry *models.CacheEntry) error {
	if entry.StoredAt == 0 {
		entry.StoredAt = time.Now().Unix()
	}
	_, err := r.db.NamedExecContext(ctx, `
	INSERT INTO cache_entries (namespace, request_key, status, header, body_hash, size, stored_at)
	VALUES (:namespace, :request_key, :status, :header, :body_hash, :size, :stored_at)
	ON CONFLICT(namespace, request_key) DO UPDATE SET
		status = excluded.status, header = excluded.header, body_hash = excluded.body_hash,
		size = excluded.size, stored_at = excluded.stored_at
	`, entry)
	return err
}

// GetCacheEntry returns the entry for namespace and key, or sql.ErrNoRows.
func (r *Repository) GetCacheEntry(ctx context.Context, namespace, key string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	err := r.db.GetContext(ctx, &entry, `
	SELECT namespace, request_key, status, header, body_hash, size, stored_at
	FROM cache_entries WHERE namespace = ? AND request_key = ?
	`, namespace, key)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeleteCacheEntry removes one entry. It reports whether the entry existed.
func (r *Repository) DeleteCacheEntry(ctx context.Context, namespace, key string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE namespace = ? AND request_key = ?`, namespace, key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListCacheKeys lists request keys stored in a namespace.
func (r *Repository) ListCacheKeys(ctx context.Context, namespace string) ([]string, error) {
	var keys []string
	err := r.db.SelectContext(ctx, &keys,
		`SELECT request_key FROM cache_entries WHERE namespace = ? ORDER BY request_key`, namespace)
	return keys, err
}

// CountBodyReferences returns how many entries reference a body hash.
func (r *Repository) CountBodyReferences(ctx context.Context, hash string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM cache_entries WHERE body_hash = ?`, hash)
	return n, err
}
