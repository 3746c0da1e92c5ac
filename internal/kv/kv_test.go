package kv

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/tripplanner/backend/internal/db"
)

// exerciseStorage runs the shared Storage contract against a backend.
func exerciseStorage(t *testing.T, s Storage, prefix string) {
	ctx := context.Background()

	_, ok, err := s.Get(ctx, prefix+"missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, prefix+"a", "1"))
	require.NoError(t, s.Set(ctx, prefix+"a", "2"))
	require.NoError(t, s.Set(ctx, prefix+"b", "3"))

	v, ok, err := s.Get(ctx, prefix+"a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	has, err := s.Has(ctx, prefix+"b")
	require.NoError(t, err)
	assert.True(t, has)

	keys, err := s.Keys(ctx, prefix)
	require.NoError(t, err)
	assert.Equal(t, []string{prefix + "a", prefix + "b"}, keys)

	require.NoError(t, s.Delete(ctx, prefix+"b"))
	require.NoError(t, s.Delete(ctx, prefix+"b"))
	has, err = s.Has(ctx, prefix+"b")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage(), "k_")
}

func TestSQLiteStorage(t *testing.T) {
	database, err := db.OpenMigrated(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	s := NewSQLiteStorage(db.NewRepository(database.DB))
	require.NoError(t, s.Ping(context.Background()))
	exerciseStorage(t, s, "k_")
}

func TestRedisStorage(t *testing.T) {
	addr := os.Getenv("TRIP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TRIP_TEST_REDIS_ADDR not set")
	}
	host, portStr, _ := strings.Cut(addr, ":")
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	s, err := NewRedisStorage(RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	defer s.Close()

	prefix := "test_" + uuid.NewString() + "_"
	t.Cleanup(func() {
		keys, _ := s.Keys(context.Background(), prefix)
		for _, k := range keys {
			s.Delete(context.Background(), k)
		}
	})
	exerciseStorage(t, s, prefix)
}
