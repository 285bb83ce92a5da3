package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/odyssey-travel/odyssey/server/internal/catalog"
	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
	"github.com/odyssey-travel/odyssey/server/internal/lib/mapview"
	"github.com/odyssey-travel/odyssey/server/internal/lib/navigation"
	"github.com/odyssey-travel/odyssey/server/internal/lib/position"
	"github.com/odyssey-travel/odyssey/server/internal/services"
)

// Response is the envelope of every successful JSON reply
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the envelope of every failed JSON reply
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    int    `json:"code"`
}

func success(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// httpError maps service errors onto HTTP status codes
func httpError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrViewNotFound),
		errors.Is(err, catalog.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, navigation.ErrDataMissing),
		errors.Is(err, geo.ErrInvalidCoordinate),
		errors.Is(err, services.ErrUnknownCommand),
		errors.Is(err, mapview.ErrUnknownTileMode):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrSessionClosed),
		errors.Is(err, services.ErrNoMapSurface),
		errors.Is(err, navigation.ErrDisposed),
		errors.Is(err, navigation.ErrNotReady),
		errors.Is(err, navigation.ErrNotRetryable),
		errors.Is(err, mapview.ErrSurfaceRemoved),
		errors.Is(err, position.ErrClosed):
		status = http.StatusConflict
	}
	return echo.NewHTTPError(status, err.Error()).SetInternal(err)
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	he := httpError(err)
	if he.Code >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err))
	}

	message, ok := he.Message.(string)
	if !ok {
		message = http.StatusText(he.Code)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(he.Code)
	} else {
		writeErr = c.JSON(he.Code, ErrorResponse{Success: false, Error: message, Code: he.Code})
	}
	if writeErr != nil {
		s.logger.Warn("Failed to write error response", zap.Error(writeErr))
	}
}
