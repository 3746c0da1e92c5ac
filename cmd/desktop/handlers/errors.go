package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
	"github.com/kimhsiao/tripplanner/backend/internal/logging"
	"github.com/kimhsiao/tripplanner/backend/internal/tracing"
)

// ErrorResponse is the JSON body of every failed management request.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// statusFor maps an error code to an HTTP status.
func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrInvalid, apperrors.ErrValidation, apperrors.ErrSerialization:
		return http.StatusBadRequest
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrUnsupportedEnvironment:
		return http.StatusServiceUnavailable
	case apperrors.ErrNetworkFailure, apperrors.ErrAssetCacheFailed, apperrors.ErrSyncItemFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders errors returned by handlers as ErrorResponse.
func ErrorHandler(err error, c echo.Context) {
	ctx := c.Request().Context()
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	body := ErrorResponse{
		Code:      string(apperrors.ErrInternal),
		Message:   "Internal Server Error",
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
		TraceID:   tracing.GetTraceID(ctx),
	}

	var he *echo.HTTPError
	var ae *apperrors.AppError
	switch {
	case errors.As(err, &he):
		code = he.Code
		body.Code = http.StatusText(he.Code)
		if msg, ok := he.Message.(string); ok {
			body.Message = msg
		}
	case errors.As(err, &ae):
		code = statusFor(ae.Code)
		body.Code = string(ae.Code)
		body.Message = ae.Message
	}

	if code >= http.StatusInternalServerError {
		logging.Error("Request failed", err, map[string]interface{}{
			"method": c.Request().Method,
			"path":   c.Request().URL.Path,
			"status": code,
		})
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, body)
}
