package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

type openExploreRequest struct {
	ViewerID string `json:"viewer_id,omitempty"`
}

type exploreQueryRequest struct {
	Query    string `json:"query,omitempty"`
	Category string `json:"category,omitempty"`
}

type hoverRequest struct {
	PlaceID string `json:"place_id"`
}

func (s *Server) openExplore(c echo.Context) error {
	var req openExploreRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	view, err := s.explore.Open(c.Request().Context(), req.ViewerID)
	if err != nil {
		return err
	}
	return success(c, http.StatusCreated, "Explore view opened", view.Snapshot())
}

func (s *Server) getExplore(c echo.Context) error {
	snap, err := s.explore.Snapshot(c.Param("id"))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "", snap)
}

func (s *Server) closeExplore(c echo.Context) error {
	if err := s.explore.Close(c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) exploreSearch(c echo.Context) error {
	var req exploreQueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	places, err := s.explore.Search(c.Request().Context(), c.Param("id"), req.Query)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "", places)
}

func (s *Server) exploreCategory(c echo.Context) error {
	var req exploreQueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if req.Category == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "category is required")
	}

	places, err := s.explore.ShowCategory(c.Request().Context(), c.Param("id"), req.Category)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "", places)
}

func (s *Server) exploreBusiness(c echo.Context) error {
	places, err := s.explore.ShowBusinessFriendly(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "", places)
}

func (s *Server) exploreLocation(c echo.Context) error {
	var p geo.Point
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := s.explore.SetUserLocation(c.Param("id"), p); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) exploreHover(c echo.Context) error {
	var req hoverRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := s.explore.Hover(c.Param("id"), req.PlaceID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) exploreMode(c echo.Context) error {
	mode, err := s.explore.ToggleMode(c.Param("id"))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "", map[string]string{"map_mode": string(mode)})
}
