// Package api is the client for the trip planner server's REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
	"github.com/kimhsiao/tripplanner/backend/internal/logging"
	"github.com/kimhsiao/tripplanner/backend/internal/models"
)

const (
	// DefaultTimeout is the default request timeout
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum response body size (10MB)
	MaxResponseSize = 10 * 1024 * 1024
)

// Config holds API client configuration
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	// Headers are added to every request, e.g. Authorization.
	Headers map[string]string
}

// DefaultConfig returns default API client configuration
func DefaultConfig() Config {
	return Config{
		Timeout:         DefaultTimeout,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}
}

// Client talks to the trip planner server.
type Client struct {
	base    *url.URL
	client  *http.Client
	headers map[string]string
}

// NewClient creates a new API client.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("invalid API base URL %q", cfg.BaseURL))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		MaxIdleConns:    cfg.MaxIdleConns,
		IdleConnTimeout: cfg.IdleConnTimeout,
	}

	return &Client{
		base: base,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		headers: cfg.Headers,
	}, nil
}

// NewClientWithHTTP creates a client that sends requests through hc.
func NewClientWithHTTP(baseURL string, hc *http.Client) (*Client, error) {
	c, err := NewClient(Config{BaseURL: baseURL})
	if err != nil {
		return nil, err
	}
	c.client = hc
	return c, nil
}

// HTTPClient returns the underlying HTTP client so other components can share its transport.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// BaseURL returns the server origin.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.URL, e.StatusCode)
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

// do executes a request and returns the response body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrSerialization, "failed to encode request body", err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.endpoint(path)
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrNetworkFailure, fmt.Sprintf("%s %s failed", method, target), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrNetworkFailure, "failed to read response body", err)
	}
	if len(data) > MaxResponseSize {
		return nil, apperrors.New(apperrors.ErrNetworkFailure, fmt.Sprintf("response body too large (max %d)", MaxResponseSize))
	}

	logging.Debug("API request completed", map[string]interface{}{
		"method":      method,
		"url":         target,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

type favoriteUpdate struct {
	IsFavorite bool `json:"is_favorite"`
}

// UpdateFavorite sends PATCH /api/plans/{id} with the new favorite flag.
func (c *Client) UpdateFavorite(ctx context.Context, planID string, isFavorite bool) error {
	_, err := c.do(ctx, http.MethodPatch, "/api/plans/"+url.PathEscape(planID), favoriteUpdate{IsFavorite: isFavorite})
	return err
}

// GetPlan fetches a plan from GET /api/plans/{id}.
func (c *Client) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/plans/"+url.PathEscape(planID), nil)
	if err != nil {
		return nil, err
	}
	var plan models.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSerialization, "failed to decode plan", err)
	}
	return &plan, nil
}
