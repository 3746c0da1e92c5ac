package cache

import (
	"context"
	"fmt"
	"net/http"

	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
	"github.com/kimhsiao/tripplanner/backend/internal/metrics"
)

// AddAll fetches every URL and stores the responses in ns. Nothing is stored
// unless every fetch succeeds with a 2xx status.
func AddAll(ctx context.Context, ns Namespace, client Fetcher, urls []string) error {
	fetched := make(map[string]*Response, len(urls))
	for _, u := range urls {
		resp, key, err := fetch(ctx, client, u)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrNetworkFailure, fmt.Sprintf("failed to fetch %s", u), err)
		}
		if !resp.OK() {
			return apperrors.New(apperrors.ErrNetworkFailure, fmt.Sprintf("fetch %s returned status %d", u, resp.Status))
		}
		fetched[key] = resp
	}

	for key, resp := range fetched {
		if err := ns.Put(ctx, key, resp); err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, "failed to store response", err)
		}
	}
	return nil
}

func fetch(ctx context.Context, client Fetcher, rawURL string) (*Response, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	httpResp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	resp, err := FromHTTP(httpResp)
	if err != nil {
		return nil, "", err
	}
	return resp, RequestKey(req.URL), nil
}

// AssetCache stores individual assets, such as attraction images, for offline use.
type AssetCache struct {
	ns     Namespace
	client Fetcher
}

// NewAssetCache creates an AssetCache writing into ns.
func NewAssetCache(ns Namespace, client Fetcher) *AssetCache {
	if client == nil {
		client = http.DefaultClient
	}
	return &AssetCache{ns: ns, client: client}
}

// Cache fetches url and stores it unless it is already cached.
// Existing entries are never refreshed.
func (a *AssetCache) Cache(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrAssetCacheFailed, fmt.Sprintf("invalid asset url %s", url), err)
	}
	key := RequestKey(req.URL)

	if _, ok, err := a.ns.Match(ctx, key); err == nil && ok {
		metrics.RecordCacheLookup(true)
		return nil
	}
	metrics.RecordCacheLookup(false)

	httpResp, err := a.client.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrAssetCacheFailed, fmt.Sprintf("failed to fetch %s", url), err)
	}
	resp, err := FromHTTP(httpResp)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrAssetCacheFailed, fmt.Sprintf("failed to read %s", url), err)
	}
	if resp.Status >= 400 {
		return apperrors.New(apperrors.ErrAssetCacheFailed, fmt.Sprintf("fetch %s returned status %d", url, resp.Status))
	}

	if err := a.ns.Put(ctx, key, resp); err != nil {
		return apperrors.Wrap(apperrors.ErrAssetCacheFailed, fmt.Sprintf("failed to store %s", url), err)
	}
	return nil
}
