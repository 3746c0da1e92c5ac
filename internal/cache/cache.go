// Package cache implements named, versioned response caches and the asset
// cache built on them.
package cache

import (
	"context"
	"net/http"
)

// Storage manages named cache namespaces.
type Storage interface {
	// Open returns the namespace called name, creating it if needed.
	Open(ctx context.Context, name string) (Namespace, error)
	// Has reports whether the namespace exists.
	Has(ctx context.Context, name string) (bool, error)
	// Names lists existing namespaces.
	Names(ctx context.Context) ([]string, error)
	// Delete removes a namespace and all its entries, reporting whether it existed.
	Delete(ctx context.Context, name string) (bool, error)
}

// Namespace is one named collection of cached responses keyed by request URL.
type Namespace interface {
	Name() string
	// Match returns the stored response for key, if any.
	Match(ctx context.Context, key string) (*Response, bool, error)
	// Put stores resp under key, replacing any previous response.
	Put(ctx context.Context, key string, resp *Response) error
	Delete(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context) ([]string, error)
}

// Fetcher performs outbound HTTP requests. *http.Client satisfies it.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultName is the versioned namespace of the current deployment.
const DefaultName = "trip-planner-cache-v1"
