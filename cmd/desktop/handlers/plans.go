// Package handlers provides the local management API for the offline layer
// and the catch-all route that answers app requests through the interceptor.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kimhsiao/tripplanner/backend/internal/app"
	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
	"github.com/kimhsiao/tripplanner/backend/internal/models"
)

// PlanHandler serves cached plans.
type PlanHandler struct {
	app *app.App
	hub *Hub
}

// NewPlanHandler creates a PlanHandler. hub may be nil.
func NewPlanHandler(a *app.App, hub *Hub) *PlanHandler {
	return &PlanHandler{app: a, hub: hub}
}

// Register registers the plan routes.
func (h *PlanHandler) Register(g *echo.Group) {
	g.GET("/plans", h.ListPlans)
	g.GET("/plans/:id", h.GetPlan)
	g.PUT("/plans/:id", h.CachePlan)
	g.DELETE("/plans/:id", h.RemovePlan)
	g.GET("/plans/:id/offline", h.IsAvailableOffline)
	g.POST("/plans/:id/pull", h.PullPlan)
	g.POST("/plans/:id/favorite", h.ToggleFavorite)
}

// ListPlans handles GET /plans
func (h *PlanHandler) ListPlans(c echo.Context) error {
	ids, err := h.app.Plans.ListPlans(c.Request().Context())
	if err != nil {
		return err
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"plans": ids,
		"total": len(ids),
	})
}

// GetPlan handles GET /plans/:id
func (h *PlanHandler) GetPlan(c echo.Context) error {
	plan, err := h.app.Plans.GetPlan(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if plan == nil {
		return apperrors.New(apperrors.ErrNotFound, "plan is not cached")
	}
	return c.JSON(http.StatusOK, plan)
}

// CachePlan handles PUT /plans/:id
func (h *PlanHandler) CachePlan(c echo.Context) error {
	var plan models.Plan
	if err := c.Bind(&plan); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, "invalid request body", err)
	}
	id := c.Param("id")
	if plan.ID != "" && plan.ID != id {
		return apperrors.New(apperrors.ErrInvalid, "plan id does not match path")
	}
	plan.ID = id

	if err := h.app.Plans.CachePlan(c.Request().Context(), &plan); err != nil {
		return err
	}
	if h.hub != nil {
		h.hub.BroadcastPlanCached(id)
	}
	return c.JSON(http.StatusOK, &plan)
}

// RemovePlan handles DELETE /plans/:id
func (h *PlanHandler) RemovePlan(c echo.Context) error {
	id := c.Param("id")
	removed := h.app.Plans.RemovePlan(c.Request().Context(), id)
	if removed && h.hub != nil {
		h.hub.BroadcastPlanRemoved(id)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"removed": removed})
}

// IsAvailableOffline handles GET /plans/:id/offline
func (h *PlanHandler) IsAvailableOffline(c echo.Context) error {
	ok := h.app.Plans.IsPlanAvailableOffline(c.Request().Context(), c.Param("id"))
	return c.JSON(http.StatusOK, map[string]interface{}{"available": ok})
}

// PullPlan handles POST /plans/:id/pull, copying the server's plan into the store.
func (h *PlanHandler) PullPlan(c echo.Context) error {
	ctx := c.Request().Context()
	plan, err := h.app.API.GetPlan(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if err := h.app.Plans.CachePlan(ctx, plan); err != nil {
		return err
	}
	if h.hub != nil {
		h.hub.BroadcastPlanCached(plan.ID)
	}
	return c.JSON(http.StatusOK, plan)
}

type favoriteRequest struct {
	IsFavorite *bool `json:"is_favorite"`
}

// ToggleFavorite handles POST /plans/:id/favorite
// The change is applied locally and queued; the response does not wait for the server.
func (h *PlanHandler) ToggleFavorite(c echo.Context) error {
	var req favoriteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, "invalid request body", err)
	}
	if req.IsFavorite == nil {
		return apperrors.New(apperrors.ErrInvalid, "is_favorite is required")
	}

	change, _, err := h.app.Favorites.ToggleFavorite(c.Request().Context(), c.Param("id"), *req.IsFavorite)
	if err != nil {
		return err
	}
	if h.hub != nil {
		h.hub.BroadcastFavoriteQueued(change)
	}
	return c.JSON(http.StatusAccepted, change)
}
