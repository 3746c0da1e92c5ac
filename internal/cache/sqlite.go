package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kimhsiao/tripplanner/backend/internal/db"
	"github.com/kimhsiao/tripplanner/backend/internal/logging"
	"github.com/kimhsiao/tripplanner/backend/internal/models"
)

// SQLiteStorage keeps response metadata in SQLite and bodies in a BlobStore.
type SQLiteStorage struct {
	repo  *db.Repository
	blobs *BlobStore
}

// NewSQLiteStorage creates a SQLite-backed Storage.
func NewSQLiteStorage(repo *db.Repository, blobs *BlobStore) *SQLiteStorage {
	return &SQLiteStorage{repo: repo, blobs: blobs}
}

func (s *SQLiteStorage) Open(ctx context.Context, name string) (Namespace, error) {
	if err := s.repo.CreateCacheNamespace(ctx, name); err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", name, err)
	}
	return &sqliteNamespace{name: name, storage: s}, nil
}

func (s *SQLiteStorage) Has(ctx context.Context, name string) (bool, error) {
	return s.repo.HasCacheNamespace(ctx, name)
}

func (s *SQLiteStorage) Names(ctx context.Context) ([]string, error) {
	return s.repo.ListCacheNamespaces(ctx)
}

func (s *SQLiteStorage) Delete(ctx context.Context, name string) (bool, error) {
	existed, orphaned, err := s.repo.DeleteCacheNamespace(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete cache %s: %w", name, err)
	}
	for _, hash := range orphaned {
		s.releaseBlob(ctx, hash)
	}
	return existed, nil
}

// releaseBlob deletes a body once no entry references it.
func (s *SQLiteStorage) releaseBlob(ctx context.Context, hash string) {
	refs, err := s.repo.CountBodyReferences(ctx, hash)
	if err != nil || refs > 0 {
		return
	}
	if err := s.blobs.Delete(hash); err != nil {
		logging.Warn("Failed to delete cached body", map[string]interface{}{
			"hash":  hash,
			"error": err.Error(),
		})
	}
}

type sqliteNamespace struct {
	name    string
	storage *SQLiteStorage
}

func (n *sqliteNamespace) Name() string { return n.name }

func (n *sqliteNamespace) Match(ctx context.Context, key string) (*Response, bool, error) {
	entry, err := n.storage.repo.GetCacheEntry(ctx, n.name, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	body, err := n.storage.blobs.Retrieve(entry.BodyHash)
	if err != nil {
		// A lost or damaged body makes the entry unusable; treat it as a miss.
		logging.Warn("Dropping cache entry with unreadable body", map[string]interface{}{
			"cache": n.name,
			"key":   key,
			"error": err.Error(),
		})
		n.storage.repo.DeleteCacheEntry(ctx, n.name, key)
		return nil, false, nil
	}

	header := http.Header{}
	if len(entry.Header) > 0 {
		if err := json.Unmarshal(entry.Header, &header); err != nil {
			header = http.Header{}
		}
	}

	return &Response{Status: entry.Status, Header: header, Body: body}, true, nil
}

func (n *sqliteNamespace) Put(ctx context.Context, key string, resp *Response) error {
	hash, err := n.storage.blobs.Store(resp.Body)
	if err != nil {
		return err
	}

	header, err := json.Marshal(resp.Header)
	if err != nil {
		return fmt.Errorf("failed to encode headers: %w", err)
	}

	var previous string
	if old, err := n.storage.repo.GetCacheEntry(ctx, n.name, key); err == nil {
		previous = old.BodyHash
	}

	entry := &models.CacheEntry{
		Namespace: n.name,
		Key:       key,
		Status:    resp.Status,
		Header:    header,
		BodyHash:  hash,
		Size:      int64(len(resp.Body)),
		StoredAt:  time.Now().Unix(),
	}
	if err := n.storage.repo.PutCacheEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	if previous != "" && previous != hash {
		n.storage.releaseBlob(ctx, previous)
	}
	return nil
}

func (n *sqliteNamespace) Delete(ctx context.Context, key string) (bool, error) {
	entry, err := n.storage.repo.GetCacheEntry(ctx, n.name, key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ok, err := n.storage.repo.DeleteCacheEntry(ctx, n.name, key)
	if err != nil {
		return false, err
	}
	n.storage.releaseBlob(ctx, entry.BodyHash)
	return ok, nil
}

func (n *sqliteNamespace) Keys(ctx context.Context) ([]string, error) {
	return n.storage.repo.ListCacheKeys(ctx, n.name)
}
