package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStore_StoreAndRetrieve(t *testing.T) {
	s := NewBlobStore(t.TempDir())

	hash, err := s.Store([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, HashBody([]byte("hello")), hash)
	assert.True(t, s.Exists(hash))

	again, err := s.Store([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, hash, again)

	data, err := s.Retrieve(hash)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestBlobStore_DetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	s := NewBlobStore(dir)

	hash, err := s.Store([]byte("original"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, hash[0:2], hash[2:4], hash), []byte("tampered"), 0644))

	_, err = s.Retrieve(hash)
	assert.ErrorContains(t, err, "hash mismatch")
}

func TestBlobStore_Delete(t *testing.T) {
	dir := t.TempDir()
	s := NewBlobStore(dir)

	hash, err := s.Store([]byte("bye"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(hash))
	require.NoError(t, s.Delete(hash))
	assert.False(t, s.Exists(hash))

	_, err = os.Stat(filepath.Join(dir, hash[0:2]))
	assert.True(t, os.IsNotExist(err))

	_, err = s.Retrieve(hash)
	assert.Error(t, err)
}
