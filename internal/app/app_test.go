package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/tripplanner/backend/internal/config"
	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
	"github.com/kimhsiao/tripplanner/backend/internal/models"
	"github.com/kimhsiao/tripplanner/backend/internal/sync"
)

type upstream struct {
	mu      gosync.Mutex
	patches []string
}

func newUpstream(t *testing.T) (*upstream, *httptest.Server) {
	u := &upstream{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			body, _ := io.ReadAll(r.Body)
			u.mu.Lock()
			u.patches = append(u.patches, r.URL.Path+" "+string(body))
			u.mu.Unlock()
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("asset " + r.URL.Path))
	}))
	t.Cleanup(srv.Close)
	return u, srv
}

func (u *upstream) Patches() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.patches...)
}

type recordingObserver struct {
	mu       gosync.Mutex
	started  int
	finished []*sync.DrainResult
}

func (o *recordingObserver) SyncStarted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) SyncFinished(res *sync.DrainResult, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, res)
}

func testConfig(origin, driver, dataDir string) *config.Config {
	cfg := config.Default()
	cfg.Server.Origin = origin
	cfg.Storage.Driver = driver
	cfg.Storage.DataDir = dataDir
	cfg.Sync.Interval = 0
	cfg.Sync.ProbeInterval = 0
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *App {
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := testConfig("http://localhost:3000", "postgres", "")
	a, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, a)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
}

func TestNew_RedisUnavailable(t *testing.T) {
	cfg := testConfig("http://localhost:3000", "redis", "")
	cfg.Storage.RedisHost = "127.0.0.1"
	cfg.Storage.RedisPort = 1
	a, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, a)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnsupportedEnvironment))
}

func TestNew_BadOrigin(t *testing.T) {
	cfg := testConfig("not a url", "sqlite", t.TempDir())
	a, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, a)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
}

func TestClose_PartiallyBuilt(t *testing.T) {
	var order []string
	a := &App{closers: []func() error{
		func() error { order = append(order, "db"); return nil },
		func() error { order = append(order, "redis"); return errors.New("already closed") },
	}}

	err := a.Close()
	assert.EqualError(t, err, "already closed")
	assert.Equal(t, []string{"redis", "db"}, order)
	assert.NoError(t, a.Close())
}

func TestApp_InstallAndFetch(t *testing.T) {
	_, srv := newUpstream(t)
	a := newApp(t, testConfig(srv.URL, "memory", ""))
	ctx := context.Background()

	require.NoError(t, a.Install(ctx))
	assert.Equal(t, "active", string(a.Interceptor.State()))

	names, err := a.Cache.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"trip-planner-cache-v1"}, names)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/styles.css", nil)
	require.NoError(t, err)
	srv.Close()

	resp, err := a.Fetch(ctx, req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "asset /styles.css", string(body))
}

func TestApp_ToggleFavoriteSyncs(t *testing.T) {
	up, srv := newUpstream(t)
	for _, driver := range []string{"memory", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			a := newApp(t, testConfig(srv.URL, driver, t.TempDir()))
			obs := &recordingObserver{}
			a.Observe(obs)
			ctx := context.Background()

			require.NoError(t, a.Plans.CachePlan(ctx, &models.Plan{
				ID:      "trip-" + driver,
				Name:    "Lisbon",
				Content: []byte(`{"days":[]}`),
			}))

			_, f, err := a.Favorites.ToggleFavorite(ctx, "trip-"+driver, true)
			require.NoError(t, err)
			waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			res, err := f.Wait(waitCtx)
			require.NoError(t, err)

			summary := res.Value.(*sync.DrainResult)
			assert.Equal(t, 1, summary.Synced)

			status, err := a.Plans.SyncStatus(ctx)
			require.NoError(t, err)
			assert.Empty(t, status.PendingSyncs)

			_, ok, err := a.Plans.LastSync(ctx)
			require.NoError(t, err)
			assert.True(t, ok)

			obs.mu.Lock()
			assert.Equal(t, 1, obs.started)
			assert.Len(t, obs.finished, 1)
			obs.mu.Unlock()
		})
	}

	var found int
	for _, p := range up.Patches() {
		if strings.Contains(p, `{"is_favorite":true}`) {
			found++
		}
	}
	assert.Equal(t, 2, found)
}
