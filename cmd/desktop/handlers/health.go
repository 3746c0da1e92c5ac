package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kimhsiao/tripplanner/backend/internal/app"
)

// Health handles GET /health
func Health(a *app.App) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"service":     "trip-planner-agent",
			"interceptor": a.Interceptor.State(),
			"cache":       a.Interceptor.CacheName(),
			"online":      a.Scheduler.IsOnline(),
		})
	}
}
