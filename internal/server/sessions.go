package server

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
	"github.com/odyssey-travel/odyssey/server/internal/lib/position"
	"github.com/odyssey-travel/odyssey/server/internal/services"
)

// FixRequest is one device position sample
type FixRequest struct {
	Latitude       float64    `json:"lat"`
	Longitude      float64    `json:"lng"`
	AccuracyMeters float64    `json:"accuracy,omitempty"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
}

func (r FixRequest) fix() (position.Fix, error) {
	p := geo.Point{Latitude: r.Latitude, Longitude: r.Longitude}
	if !p.Valid() {
		return position.Fix{}, geo.ErrInvalidCoordinate
	}
	fix := position.Fix{Point: p, AccuracyMeters: r.AccuracyMeters}
	if r.Timestamp != nil {
		fix.Timestamp = *r.Timestamp
	}
	return fix, nil
}

// LocationErrorRequest reports a device location failure by its numeric code (1 denied, 2 unavailable, 3 timeout)
type LocationErrorRequest struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

func (r LocationErrorRequest) validate() error {
	switch position.Code(r.Code) {
	case position.PermissionDenied, position.PositionUnavailable, position.Timeout:
		return nil
	default:
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown location error code %d", r.Code))
	}
}

// CommandRequest names a session command
type CommandRequest struct {
	Command services.Command `json:"command"`
}

func (s *Server) createSession(c echo.Context) error {
	var req services.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	sess, err := s.navigation.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return success(c, http.StatusCreated, "Navigation session created", sess.Snapshot())
}

func (s *Server) listSessions(c echo.Context) error {
	return success(c, http.StatusOK, "", s.navigation.List())
}

func (s *Server) getSession(c echo.Context) error {
	sess, err := s.navigation.Get(c.Param("id"))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "", sess.Snapshot())
}

func (s *Server) closeSession(c echo.Context) error {
	if err := s.navigation.Close(c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) pushFix(c echo.Context) error {
	sess, err := s.navigation.Get(c.Param("id"))
	if err != nil {
		return err
	}

	var req FixRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	fix, err := req.fix()
	if err != nil {
		return err
	}
	if err := sess.PushFix(fix); err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) pushLocationError(c echo.Context) error {
	sess, err := s.navigation.Get(c.Param("id"))
	if err != nil {
		return err
	}

	var req LocationErrorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := req.validate(); err != nil {
		return err
	}
	if err := sess.PushLocationError(position.Code(req.Code), req.Message); err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) executeCommand(c echo.Context) error {
	sess, err := s.navigation.Get(c.Param("id"))
	if err != nil {
		return err
	}

	var req CommandRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	result, err := sess.Execute(req.Command)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "", result)
}

func (s *Server) changeDestination(c echo.Context) error {
	var req services.ChangeDestinationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	id := c.Param("id")
	if err := s.navigation.ChangeDestination(c.Request().Context(), id, req); err != nil {
		return err
	}
	sess, err := s.navigation.Get(id)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "Destination changed", sess.Snapshot())
}

func (s *Server) sessionKML(c echo.Context) error {
	sess, err := s.navigation.Get(c.Param("id"))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := sess.WriteKML(&buf); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "navigation-"+sess.ID+".kml"))
	return c.Blob(http.StatusOK, "application/vnd.google-earth.kml+xml", buf.Bytes())
}
