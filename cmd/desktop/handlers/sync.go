package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kimhsiao/tripplanner/backend/internal/app"
	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
	"github.com/kimhsiao/tripplanner/backend/internal/sync"
	"github.com/kimhsiao/tripplanner/backend/internal/sync/queue"
	"github.com/kimhsiao/tripplanner/backend/internal/sync/scheduler"
)

// SyncHandler exposes the favorite sync queue and drain controls.
type SyncHandler struct {
	app *app.App
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(a *app.App) *SyncHandler {
	return &SyncHandler{app: a}
}

// Register registers the sync routes.
func (h *SyncHandler) Register(g *echo.Group) {
	g.GET("/sync/status", h.GetStatus)
	g.GET("/sync/queue", h.ListQueue)
	g.POST("/sync", h.TriggerSync)
	g.POST("/sync/retry-parked", h.RetryParked)
	g.PUT("/sync/online", h.SetOnline)
}

// StatusResponse is returned by GET /sync/status.
type StatusResponse struct {
	Status       sync.SyncStatus           `json:"status"`
	PendingSyncs []string                  `json:"pendingSyncs"`
	LastSync     *time.Time                `json:"lastSync,omitempty"`
	LastError    string                    `json:"lastError,omitempty"`
	Queue        queue.Stats               `json:"queue"`
	Scheduler    scheduler.SchedulerStatus `json:"scheduler"`
}

// GetStatus handles GET /sync/status
func (h *SyncHandler) GetStatus(c echo.Context) error {
	ctx := c.Request().Context()

	status, err := h.app.Plans.SyncStatus(ctx)
	if err != nil {
		return err
	}
	stats, err := queue.GetStats(ctx, h.app.Queue)
	if err != nil {
		return err
	}

	resp := StatusResponse{
		Status:       h.app.Drainer.Status(),
		PendingSyncs: status.PendingSyncs,
		Queue:        stats,
		Scheduler:    h.app.Scheduler.GetStatus(),
	}
	if resp.PendingSyncs == nil {
		resp.PendingSyncs = []string{}
	}
	if t, ok, err := h.app.Plans.LastSync(ctx); err == nil && ok {
		resp.LastSync = &t
	}
	if err := h.app.Drainer.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

// ListQueue handles GET /sync/queue
func (h *SyncHandler) ListQueue(c echo.Context) error {
	items, err := h.app.Queue.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": items,
		"total": len(items),
	})
}

// TriggerSync handles POST /sync
// With ?wait=true the response carries the drain summary; otherwise the
// drain runs in the background and 202 is returned.
func (h *SyncHandler) TriggerSync(c echo.Context) error {
	ctx := c.Request().Context()
	wait, _ := strconv.ParseBool(c.QueryParam("wait"))

	if !wait {
		h.app.Sync(context.WithoutCancel(ctx))
		return c.JSON(http.StatusAccepted, map[string]interface{}{"status": "scheduled"})
	}

	res, err := h.app.Sync(ctx).Wait(ctx)
	if err != nil {
		return err
	}
	summary, ok := res.Value.(*sync.DrainResult)
	if !ok {
		return apperrors.New(apperrors.ErrInternal, "sync produced no summary")
	}
	return c.JSON(http.StatusOK, summary)
}

// RetryParked handles POST /sync/retry-parked
func (h *SyncHandler) RetryParked(c echo.Context) error {
	n, err := h.app.Favorites.RetryParked(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"requeued": n})
}

// SetOnline handles PUT /sync/online, letting the host report connectivity changes.
func (h *SyncHandler) SetOnline(c echo.Context) error {
	var req struct {
		Online *bool `json:"online"`
	}
	if err := c.Bind(&req); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, "invalid request body", err)
	}
	if req.Online == nil {
		return apperrors.New(apperrors.ErrInvalid, "online is required")
	}
	h.app.Scheduler.SetOnlineStatus(context.WithoutCancel(c.Request().Context()), *req.Online)
	return c.JSON(http.StatusOK, h.app.Scheduler.GetStatus())
}
