package handlers

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kimhsiao/tripplanner/backend/internal/logging"
	"github.com/kimhsiao/tripplanner/backend/internal/uuid"
)

// RequestID ensures every request carries an X-Request-ID, echoed on the response.
// Incoming ids that are not v4 identifiers are replaced.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := uuid.OrNew(c.Request().Header.Get(echo.HeaderXRequestID))
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

// RequestLogger logs one line per request after it completes.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()
			res := c.Response()
			start := time.Now()
			if err = next(c); err != nil {
				c.Error(err)
			}

			logging.Info("Request", map[string]interface{}{
				"request_id":    res.Header().Get(echo.HeaderXRequestID),
				"method":        req.Method,
				"uri":           req.RequestURI,
				"route":         c.Path(),
				"status":        res.Status,
				"remote_ip":     c.RealIP(),
				"response_time": time.Since(start).String(),
				"response_size": res.Size,
			})
			return nil
		}
	}
}
