package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
)

func setupTestEnv(t *testing.T) {
	setupTestEnvWithDriver(t, "memory")
}

// setupTestEnvWithDriver leaves the storage driver to the config file when driver is empty.
func setupTestEnvWithDriver(t *testing.T, driver string) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	t.Cleanup(origin.Close)

	t.Setenv("TRIP_ORIGIN", origin.URL)
	t.Setenv("TRIP_LISTEN_ADDR", "127.0.0.1:0")
	if driver != "" {
		t.Setenv("TRIP_STORAGE_DRIVER", driver)
	}
	t.Setenv("TRIP_SYNC_INTERVAL", "0s")
	t.Setenv("TRIP_SYNC_PROBE_INTERVAL", "0s")
}

func TestRun_StopsOnCancel(t *testing.T) {
	setupTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, "") }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	setupTestEnvWithDriver(t, "")
	t.Setenv("TRIP_STORAGE_DRIVER", "")
	os.Unsetenv("TRIP_STORAGE_DRIVER")
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: floppy\n"), 0644))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, path)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}
