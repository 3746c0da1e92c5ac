package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/kimhsiao/tripplanner/backend/internal/app"
	"github.com/kimhsiao/tripplanner/backend/internal/logging"
)

// ManagementPrefix is the path prefix of the local management API.
// Every other path is answered through the interceptor.
const ManagementPrefix = "/_offline"

// NewServer builds the echo instance for a. hub may be nil to disable /events.
func NewServer(a *app.App, hub *Hub) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler

	e.Use(RequestID())
	e.Use(otelecho.Middleware("trip-planner-agent"))
	e.Use(RequestLogger())

	if m := a.Config.Metrics; m.Enabled {
		e.GET(m.Path, echo.WrapHandler(promhttp.Handler()))
	}

	g := e.Group(ManagementPrefix)
	g.GET("/health", Health(a))
	NewPlanHandler(a, hub).Register(g)
	NewSyncHandler(a).Register(g)
	if hub != nil {
		g.GET("/events", hub.Events)
	}

	e.Any("/*", Proxy(a))
	e.Any("/", Proxy(a))
	return e
}

// Run installs the interceptor, starts background sync and serves until
// ctx is cancelled.
func Run(ctx context.Context, a *app.App) error {
	if err := a.Install(ctx); err != nil {
		// Serving continues; requests fall through to the network.
		logging.Error("Install failed, continuing without precached shell", err, nil)
	}

	hub := NewHub()
	defer hub.Stop()
	a.Observe(hub)
	a.Start(ctx)

	e := NewServer(a, hub)
	addr := a.Config.Server.ListenAddr

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Local server listening", map[string]interface{}{"addr": addr})
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logging.Info("Shutting down local server", nil)
	return e.Shutdown(shutdownCtx)
}
