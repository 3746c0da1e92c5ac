// Package interceptor implements the fetch interception layer: per-request
// caching strategies, the offline fallbacks and the install/activate lifecycle.
package interceptor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kimhsiao/tripplanner/backend/internal/cache"
	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
	"github.com/kimhsiao/tripplanner/backend/internal/logging"
	"github.com/kimhsiao/tripplanner/backend/internal/metrics"
	"github.com/kimhsiao/tripplanner/backend/internal/tracing"
)

// DefaultShellManifest lists the resources precached on install.
var DefaultShellManifest = []string{
	"/",
	"/offline.html",
	"/styles.css",
	"/app.js",
	"/icon.png",
	"/manifest.json",
}

// Config configures an Interceptor.
type Config struct {
	// Origin is the upstream server, e.g. https://trips.example.com.
	Origin *url.URL
	// CacheName is the current versioned namespace.
	CacheName     string
	ShellManifest []string
	AuthPrefix    string
	HomePath      string
	OfflinePath   string
}

func (c *Config) setDefaults() {
	if c.CacheName == "" {
		c.CacheName = cache.DefaultName
	}
	if c.ShellManifest == nil {
		c.ShellManifest = DefaultShellManifest
	}
	if c.AuthPrefix == "" {
		c.AuthPrefix = "/api/auth"
	}
	if c.HomePath == "" {
		c.HomePath = "/api/home"
	}
	if c.OfflinePath == "" {
		c.OfflinePath = "/offline.html"
	}
}

// State is the lifecycle state of an Interceptor.
type State string

const (
	StateNew        State = "new"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActive     State = "active"
)

// Interceptor answers requests on behalf of the upstream origin.
type Interceptor struct {
	cfg     Config
	storage cache.Storage
	client  cache.Fetcher

	mu          sync.RWMutex
	state       State
	skipWaiting bool
	claimed     bool
}

// New creates an Interceptor. cfg.Origin is required.
func New(cfg Config, storage cache.Storage, client cache.Fetcher) (*Interceptor, error) {
	if cfg.Origin == nil || cfg.Origin.Scheme == "" || cfg.Origin.Host == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "interceptor requires an absolute upstream origin")
	}
	if storage == nil {
		return nil, apperrors.New(apperrors.ErrUnsupportedEnvironment, "cache storage is not available")
	}
	cfg.setDefaults()
	if client == nil {
		client = http.DefaultClient
	}
	return &Interceptor{
		cfg:     cfg,
		storage: storage,
		client:  client,
		state:   StateNew,
	}, nil
}

// CacheName returns the current versioned namespace.
func (i *Interceptor) CacheName() string {
	return i.cfg.CacheName
}

// Origin returns the upstream origin.
func (i *Interceptor) Origin() *url.URL {
	return i.cfg.Origin
}

// State returns the lifecycle state.
func (i *Interceptor) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// SkippedWaiting reports whether install asked for immediate activation.
func (i *Interceptor) SkippedWaiting() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.skipWaiting
}

// Claimed reports whether activation has claimed open clients.
func (i *Interceptor) Claimed() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.claimed
}

// Resolve maps a path (or absolute URL) onto the upstream origin.
func (i *Interceptor) Resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return i.cfg.Origin.ResolveReference(u), nil
}

// Install precaches the shell manifest into the current namespace.
// Any failed resource fails the whole install and nothing is stored.
func (i *Interceptor) Install(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "Interceptor.Install")
	defer span.End()

	urls := make([]string, 0, len(i.cfg.ShellManifest))
	for _, p := range i.cfg.ShellManifest {
		u, err := i.Resolve(p)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInvalid, fmt.Sprintf("invalid manifest entry %q", p), err)
		}
		urls = append(urls, u.String())
	}

	ns, err := i.storage.Open(ctx, i.cfg.CacheName)
	if err != nil {
		span.RecordError(err)
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to open cache", err)
	}

	if err := cache.AddAll(ctx, ns, i.client, urls); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "install failed")
		logging.Error("Shell precache failed", err, map[string]interface{}{"cache": i.cfg.CacheName})
		return err
	}

	i.mu.Lock()
	i.state = StateInstalled
	i.skipWaiting = true
	i.mu.Unlock()

	logging.Info("Shell precached", map[string]interface{}{
		"cache":     i.cfg.CacheName,
		"resources": len(urls),
	})
	return nil
}

// Activate deletes every namespace other than the current one and claims clients.
func (i *Interceptor) Activate(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "Interceptor.Activate")
	defer span.End()

	i.mu.Lock()
	i.state = StateActivating
	i.mu.Unlock()

	names, err := i.storage.Names(ctx)
	if err != nil {
		span.RecordError(err)
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to list caches", err)
	}

	for _, name := range names {
		if name == i.cfg.CacheName {
			continue
		}
		if _, err := i.storage.Delete(ctx, name); err != nil {
			span.RecordError(err)
			return apperrors.Wrap(apperrors.ErrDatabase, fmt.Sprintf("failed to delete cache %s", name), err)
		}
		logging.Info("Deleted outdated cache", map[string]interface{}{"cache": name})
	}

	i.mu.Lock()
	i.state = StateActive
	i.claimed = true
	i.mu.Unlock()
	return nil
}

// Handle answers req, whose URL must be absolute.
// An error is returned only when no response can be produced at all.
func (i *Interceptor) Handle(ctx context.Context, req *http.Request) (*http.Response, error) {
	class := i.Classify(req)

	ctx, span := tracing.StartSpan(ctx, "Interceptor.Handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL.String()),
		attribute.String("fetch.class", string(class)),
	)

	req = req.WithContext(ctx)

	var (
		resp   *http.Response
		source string
		err    error
	)
	switch class {
	case ClassPassthrough:
		resp, err = i.client.Do(req)
		source = "network"
		if err != nil {
			err = apperrors.Wrap(apperrors.ErrNetworkFailure, "upstream request failed", err)
		}
	case ClassAPI:
		resp, source = i.networkFirst(ctx, req)
	default:
		resp, source, err = i.cacheFirst(ctx, req)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no response")
		metrics.RecordFetch(string(class), "error")
		return nil, err
	}
	span.SetAttributes(attribute.String("fetch.source", source))
	metrics.RecordFetch(string(class), source)
	return resp, nil
}

func (i *Interceptor) namespace(ctx context.Context) (cache.Namespace, error) {
	return i.storage.Open(ctx, i.cfg.CacheName)
}

func (i *Interceptor) match(ctx context.Context, key string) (*cache.Response, bool) {
	ns, err := i.namespace(ctx)
	if err != nil {
		logging.Warn("Cache unavailable", map[string]interface{}{"error": err.Error()})
		return nil, false
	}
	resp, ok, err := ns.Match(ctx, key)
	if err != nil {
		logging.Warn("Cache lookup failed", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}
	metrics.RecordCacheLookup(ok)
	return resp, ok
}

func (i *Interceptor) store(ctx context.Context, key string, resp *cache.Response) {
	ns, err := i.namespace(ctx)
	if err == nil {
		err = ns.Put(ctx, key, resp)
	}
	if err != nil {
		logging.Warn("Failed to cache response", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// networkFirst serves API requests: fresh data when online, the last copy when not.
func (i *Interceptor) networkFirst(ctx context.Context, req *http.Request) (*http.Response, string) {
	key := cache.RequestKey(req.URL)

	resp, err := i.client.Do(req)
	if err == nil {
		var buffered *cache.Response
		// A body cut off mid-read counts as a network failure.
		if buffered, err = cache.FromHTTP(resp); err == nil {
			if buffered.OK() {
				i.store(ctx, key, buffered)
			}
			return resp, "network"
		}
	}

	logging.Debug("Network failed, trying cache", map[string]interface{}{
		"url":   key,
		"error": err.Error(),
	})

	if cached, ok := i.match(ctx, key); ok {
		return cached.ToHTTP(req), "cache"
	}

	if req.URL.Path == i.cfg.HomePath {
		return homePlaceholder(req), "fallback"
	}
	return i.offlinePage(ctx, req), "fallback"
}

// cacheFirst serves static resources from the cache, fetching and storing on a miss.
func (i *Interceptor) cacheFirst(ctx context.Context, req *http.Request) (*http.Response, string, error) {
	key := cache.RequestKey(req.URL)

	if cached, ok := i.match(ctx, key); ok {
		return cached.ToHTTP(req), "cache", nil
	}

	resp, err := i.client.Do(req)
	if err == nil && resp.StatusCode == http.StatusOK {
		var buffered *cache.Response
		if buffered, err = cache.FromHTTP(resp); err == nil {
			i.store(ctx, key, buffered)
		}
	}
	if err != nil {
		if strings.Contains(req.Header.Get("Accept"), "text/html") {
			return i.offlinePage(ctx, req), "fallback", nil
		}
		return nil, "", apperrors.Wrap(apperrors.ErrNetworkFailure, fmt.Sprintf("failed to fetch %s", key), err)
	}
	return resp, "network", nil
}

func (i *Interceptor) offlinePage(ctx context.Context, req *http.Request) *http.Response {
	if u, err := i.Resolve(i.cfg.OfflinePath); err == nil {
		if cached, ok := i.match(ctx, cache.RequestKey(u)); ok {
			return cached.ToHTTP(req)
		}
	}
	return unavailablePage(req)
}
