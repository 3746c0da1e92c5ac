package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
)

func setupTestEnv(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPatch:
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/api/plans/kyoto":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"kyoto","name":"Kyoto in autumn","is_favorite":false}`))
		case strings.HasPrefix(r.URL.Path, "/api/plans/"):
			http.NotFound(w, r)
		default:
			w.Write([]byte("shell"))
		}
	}))
	t.Cleanup(origin.Close)

	t.Setenv("TRIP_CONFIG", "")
	t.Setenv("TRIP_ORIGIN", origin.URL)
	t.Setenv("TRIP_STORAGE_DRIVER", "sqlite")
	t.Setenv("TRIP_DATA_DIR", t.TempDir())
	t.Setenv("TRIP_LOG_LEVEL", "error")
}

func execute(args ...string) (string, error) {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionFlag(t *testing.T) {
	out, err := execute("--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestVersionDefault(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
}

func TestPlansCommands(t *testing.T) {
	setupTestEnv(t)

	out, err := execute("plans", "pull", "kyoto")
	require.NoError(t, err)
	assert.Contains(t, out, "Kyoto in autumn")

	out, err = execute("plans", "list")
	require.NoError(t, err)
	assert.Equal(t, "kyoto\n", out)

	out, err = execute("plans", "get", "kyoto")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "kyoto"`)

	out, err = execute("plans", "rm", "kyoto")
	require.NoError(t, err)
	assert.Contains(t, out, `"removed": true`)

	_, err = execute("plans", "get", "kyoto")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestFavoriteThenStatus(t *testing.T) {
	setupTestEnv(t)

	out, err := execute("favorite", "kyoto", "true")
	require.NoError(t, err)
	assert.Contains(t, out, `"synced": 1`)

	out, err = execute("status")
	require.NoError(t, err)
	var status struct {
		PendingSyncs []string `json:"pendingSyncs"`
		Queue        struct {
			Total int `json:"total"`
		} `json:"queue"`
		LastSync string `json:"lastSync"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Empty(t, status.PendingSyncs)
	assert.Equal(t, 0, status.Queue.Total)
	assert.NotEmpty(t, status.LastSync)
}

func TestFavorite_BadFlag(t *testing.T) {
	setupTestEnv(t)
	_, err := execute("favorite", "kyoto", "maybe")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
}

func TestDrain_EmptyQueue(t *testing.T) {
	setupTestEnv(t)
	out, err := execute("drain")
	require.NoError(t, err)
	assert.Contains(t, out, `"attempted": 0`)
}

func TestInstallAndActivate(t *testing.T) {
	setupTestEnv(t)

	out, err := execute("install")
	require.NoError(t, err)
	assert.Contains(t, out, `"state": "active"`)

	out, err = execute("activate")
	require.NoError(t, err)
	assert.Contains(t, out, "trip-planner-cache-v1")
}
