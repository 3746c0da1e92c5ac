package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/kimhsiao/tripplanner/backend/internal/app"
	"github.com/kimhsiao/tripplanner/backend/internal/interceptor"
)

// Proxy answers any other request by dispatching a fetch event for it.
func Proxy(a *app.App) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := a.Interceptor.UpstreamRequest(c.Request())
		resp, err := a.Fetch(c.Request().Context(), req)
		if err != nil {
			return err
		}
		interceptor.WriteResponse(c.Response(), resp)
		return nil
	}
}
