// Package app assembles the offline layer from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	gosync "sync"

	"github.com/kimhsiao/tripplanner/backend/internal/api"
	"github.com/kimhsiao/tripplanner/backend/internal/cache"
	"github.com/kimhsiao/tripplanner/backend/internal/config"
	"github.com/kimhsiao/tripplanner/backend/internal/db"
	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
	"github.com/kimhsiao/tripplanner/backend/internal/interceptor"
	"github.com/kimhsiao/tripplanner/backend/internal/kv"
	"github.com/kimhsiao/tripplanner/backend/internal/logging"
	"github.com/kimhsiao/tripplanner/backend/internal/planstore"
	"github.com/kimhsiao/tripplanner/backend/internal/sync"
	"github.com/kimhsiao/tripplanner/backend/internal/sync/queue"
	"github.com/kimhsiao/tripplanner/backend/internal/sync/scheduler"
	"github.com/kimhsiao/tripplanner/backend/internal/worker"
)

// SyncObserver is told about every favorites drain the worker runs.
type SyncObserver interface {
	SyncStarted()
	SyncFinished(res *sync.DrainResult, err error)
}

// App holds the wired components of the offline layer.
type App struct {
	Config      *config.Config
	API         *api.Client
	Storage     kv.Storage
	Cache       cache.Storage
	Assets      *cache.AssetCache
	Plans       *planstore.Store
	Queue       queue.FavoriteQueue
	Drainer     *sync.Drainer
	Worker      *worker.Worker
	Interceptor *interceptor.Interceptor
	Favorites   *sync.Service
	Scheduler   *scheduler.Scheduler

	obsMu     gosync.RWMutex
	observers []SyncObserver
	closers   []func() error
}

// New builds an App. The caller must Close it.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			if cerr := a.Close(); cerr != nil {
				logging.Error("Failed to release partially opened storage", cerr, nil)
			}
		}
	}()

	apiCfg := api.DefaultConfig()
	apiCfg.BaseURL = cfg.Server.Origin
	apiCfg.Timeout = cfg.Server.APITimeout
	if cfg.Server.APIToken != "" {
		apiCfg.Headers = map[string]string{"Authorization": "Bearer " + cfg.Server.APIToken}
	}
	if a.API, err = api.NewClient(apiCfg); err != nil {
		return nil, err
	}

	if err = a.openStorage(cfg); err != nil {
		return nil, err
	}

	ns, err := a.Cache.Open(ctx, cfg.Cache.Name())
	if err != nil {
		return nil, err
	}
	a.Assets = cache.NewAssetCache(ns, a.API.HTTPClient())
	a.Plans = planstore.New(a.Storage, a.Assets)

	origin, err := url.Parse(cfg.Server.Origin)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "invalid origin", err)
	}
	a.Interceptor, err = interceptor.New(interceptor.Config{
		Origin:        origin,
		CacheName:     cfg.Cache.Name(),
		ShellManifest: cfg.Cache.ShellManifest,
		AuthPrefix:    cfg.Cache.AuthPrefix,
		HomePath:      cfg.Cache.HomePath,
		OfflinePath:   cfg.Cache.OfflinePath,
	}, a.Cache, a.API.HTTPClient())
	if err != nil {
		return nil, err
	}

	a.Drainer = sync.NewDrainer(a.Queue, a.API, a.Plans)
	a.Worker = worker.New()
	a.registerHandlers()
	a.Favorites = sync.NewService(a.Plans, a.Queue, a.Worker)

	a.Scheduler = scheduler.NewScheduler(a.Worker, &scheduler.HTTPProber{
		Client: a.API.HTTPClient(),
		URL:    origin.String(),
	}, &scheduler.SchedulerConfig{
		SyncInterval:  cfg.Sync.Interval,
		ProbeInterval: cfg.Sync.ProbeInterval,
	})

	logging.Info("Offline layer ready", map[string]interface{}{
		"driver": cfg.Storage.Driver,
		"origin": origin.String(),
		"cache":  cfg.Cache.Name(),
	})
	return a, nil
}

func (a *App) openStorage(cfg *config.Config) error {
	maxAttempts := cfg.Sync.MaxAttempts

	switch cfg.Storage.Driver {
	case "memory":
		a.Storage = kv.NewMemoryStorage()
		a.Cache = cache.NewMemoryStorage()
		a.Queue = queue.NewMemoryQueue(maxAttempts)
		return nil

	case "redis":
		rs, err := kv.NewRedisStorage(kv.RedisConfig{
			Host:     cfg.Storage.RedisHost,
			Port:     cfg.Storage.RedisPort,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		if err != nil {
			return apperrors.Wrap(apperrors.ErrUnsupportedEnvironment, "redis unavailable", err)
		}
		a.closers = append(a.closers, rs.Close)
		a.Storage = rs
		a.Queue = queue.NewRedisQueue(rs.Client(), queue.DefaultRedisPrefix, maxAttempts)
		// Response bodies stay on local disk when a data dir is configured.
		if cfg.Storage.DataDir == "" {
			a.Cache = cache.NewMemoryStorage()
			return nil
		}
		repo, err := a.openDB(cfg.Storage.DataDir)
		if err != nil {
			return err
		}
		a.Cache = cache.NewSQLiteStorage(repo, cache.NewBlobStore(filepath.Join(cfg.Storage.DataDir, "blobs")))
		return nil

	case "sqlite":
		repo, err := a.openDB(cfg.Storage.DataDir)
		if err != nil {
			return err
		}
		a.Storage = kv.NewSQLiteStorage(repo)
		a.Cache = cache.NewSQLiteStorage(repo, cache.NewBlobStore(filepath.Join(cfg.Storage.DataDir, "blobs")))
		a.Queue = queue.NewSQLiteQueue(repo, maxAttempts)
		return nil

	default:
		return apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("unknown storage driver %q", cfg.Storage.Driver))
	}
}

func (a *App) openDB(dataDir string) (*db.Repository, error) {
	database, err := db.OpenMigrated(dataDir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to open database", err)
	}
	a.closers = append(a.closers, database.Close)
	return db.NewRepository(database.DB), nil
}

func (a *App) registerHandlers() {
	a.Worker.Register(worker.KindInstall, func(ctx context.Context, _ worker.Event) (worker.Result, error) {
		err := a.Interceptor.Install(ctx)
		return worker.Result{Value: a.Interceptor.State()}, err
	})
	a.Worker.Register(worker.KindActivate, func(ctx context.Context, _ worker.Event) (worker.Result, error) {
		err := a.Interceptor.Activate(ctx)
		return worker.Result{Value: a.Interceptor.State()}, err
	})
	a.Worker.Register(worker.KindFetch, func(ctx context.Context, ev worker.Event) (worker.Result, error) {
		if ev.Request == nil {
			return worker.Result{}, apperrors.New(apperrors.ErrInvalid, "fetch event without a request")
		}
		resp, err := a.Interceptor.Handle(ctx, ev.Request)
		return worker.Result{Response: resp}, err
	})

	drain := sync.SyncHandler(a.Drainer)
	a.Worker.Register(worker.KindSync, func(ctx context.Context, ev worker.Event) (worker.Result, error) {
		if ev.Tag != worker.SyncFavoritesTag {
			return drain(ctx, ev)
		}
		a.notify(func(o SyncObserver) { o.SyncStarted() })
		res, err := drain(ctx, ev)
		summary, _ := res.Value.(*sync.DrainResult)
		a.notify(func(o SyncObserver) { o.SyncFinished(summary, err) })
		return res, err
	})
}

// Observe registers o for drain notifications.
func (a *App) Observe(o SyncObserver) {
	a.obsMu.Lock()
	defer a.obsMu.Unlock()
	a.observers = append(a.observers, o)
}

func (a *App) notify(fn func(SyncObserver)) {
	a.obsMu.RLock()
	defer a.obsMu.RUnlock()
	for _, o := range a.observers {
		fn(o)
	}
}

// Sync dispatches a favorites sync event.
func (a *App) Sync(ctx context.Context) *worker.Future {
	return a.Worker.Dispatch(ctx, worker.Event{Kind: worker.KindSync, Tag: worker.SyncFavoritesTag})
}

// Install dispatches the install event and then the activate event,
// waiting for each.
func (a *App) Install(ctx context.Context) error {
	if _, err := a.Worker.Dispatch(ctx, worker.Event{Kind: worker.KindInstall}).Wait(ctx); err != nil {
		return err
	}
	_, err := a.Worker.Dispatch(ctx, worker.Event{Kind: worker.KindActivate}).Wait(ctx)
	return err
}

// Fetch answers req through the fetch event. req must target the origin.
func (a *App) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	res, err := a.Worker.Dispatch(ctx, worker.Event{Kind: worker.KindFetch, Request: req}).Wait(ctx)
	if err != nil {
		return nil, err
	}
	return res.Response, nil
}

// Start begins connectivity probing and periodic drains.
func (a *App) Start(ctx context.Context) {
	a.Scheduler.Start(ctx)
}

// Close stops background work and releases storage.
func (a *App) Close() error {
	if a.Scheduler != nil && a.Scheduler.IsRunning() {
		a.Scheduler.Stop()
	}
	if a.Worker != nil {
		a.Worker.Wait()
	}

	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
