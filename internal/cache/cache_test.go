package cache

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/tripplanner/backend/internal/db"
)

func newSQLiteStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	dir := t.TempDir()
	database, err := db.OpenMigrated(dir)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewSQLiteStorage(db.NewRepository(database.DB), NewBlobStore(dir+"/blobs"))
}

func exerciseCacheStorage(t *testing.T, s Storage) {
	ctx := context.Background()

	has, err := s.Has(ctx, "v0")
	require.NoError(t, err)
	assert.False(t, has)

	v0, err := s.Open(ctx, "v0")
	require.NoError(t, err)
	v1, err := s.Open(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", v1.Name())

	resp := &Response{
		Status: 200,
		Header: http.Header{"Content-Type": []string{"text/css"}},
		Body:   []byte("body{}"),
	}
	require.NoError(t, v0.Put(ctx, "https://example.com/styles.css", resp))
	require.NoError(t, v1.Put(ctx, "https://example.com/styles.css", resp))

	got, ok, err := v1.Match(ctx, "https://example.com/styles.css")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 200, got.Status)
	assert.Equal(t, "text/css", got.Header.Get("Content-Type"))
	assert.Equal(t, "body{}", string(got.Body))

	// Overwrite replaces the body.
	require.NoError(t, v1.Put(ctx, "https://example.com/styles.css", &Response{Status: 200, Body: []byte("p{}")}))
	got, ok, err = v1.Match(ctx, "https://example.com/styles.css")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "p{}", string(got.Body))

	names, err := s.Names(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"v0", "v1"}, names)

	existed, err := s.Delete(ctx, "v0")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = s.Delete(ctx, "v0")
	require.NoError(t, err)
	assert.False(t, existed)

	names, err = s.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, names)

	keys, err := v1.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/styles.css"}, keys)

	deleted, err := v1.Delete(ctx, "https://example.com/styles.css")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, ok, err = v1.Match(ctx, "https://example.com/styles.css")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStorage(t *testing.T) {
	exerciseCacheStorage(t, NewMemoryStorage())
}

func TestSQLiteStorage(t *testing.T) {
	exerciseCacheStorage(t, newSQLiteStorage(t))
}

func TestSQLiteStorage_SharedBodyOutlivesNamespace(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStorage(t)

	a, err := s.Open(ctx, "a")
	require.NoError(t, err)
	b, err := s.Open(ctx, "b")
	require.NoError(t, err)

	resp := &Response{Status: 200, Body: []byte("shared")}
	require.NoError(t, a.Put(ctx, "k", resp))
	require.NoError(t, b.Put(ctx, "k", resp))

	_, err = s.Delete(ctx, "a")
	require.NoError(t, err)

	got, ok, err := b.Match(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "shared", string(got.Body))

	_, err = s.Delete(ctx, "b")
	require.NoError(t, err)
	assert.False(t, s.blobs.Exists(HashBody([]byte("shared"))))
}

func TestMemoryNamespace_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	ns, err := NewMemoryStorage().Open(ctx, "x")
	require.NoError(t, err)

	require.NoError(t, ns.Put(ctx, "k", &Response{Status: 200, Body: []byte("abc")}))
	got, _, err := ns.Match(ctx, "k")
	require.NoError(t, err)
	got.Body[0] = 'z'

	again, _, err := ns.Match(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again.Body))
}
