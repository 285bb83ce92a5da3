package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/odyssey-travel/odyssey/server/internal/catalog"
	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

const defaultNearbyRadius = 2000.0

type itineraryRequest struct {
	PlaceID string `json:"place_id"`
}

// listPlaces filters the catalog by ?category= or ?business=true
func (s *Server) listPlaces(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		places []catalog.Place
		err    error
	)
	switch {
	case c.QueryParam("category") != "":
		places, err = s.places.ByCategory(ctx, c.QueryParam("category"))
	case c.QueryParam("business") == "true":
		places, err = s.places.BusinessFriendly(ctx)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "category or business filter is required")
	}
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "", places)
}

func (s *Server) searchPlaces(c echo.Context) error {
	places, err := s.places.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "", places)
}

func (s *Server) popularPlaces(c echo.Context) error {
	popular, err := s.places.Popular(c.Request().Context())
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "", popular)
}

func (s *Server) placeCategories(c echo.Context) error {
	return success(c, http.StatusOK, "", s.places.Categories())
}

func (s *Server) nearbyPlaces(c echo.Context) error {
	center, err := pointFromQuery(c)
	if err != nil {
		return err
	}
	radius := defaultNearbyRadius
	if raw := c.QueryParam("radius"); raw != "" {
		if radius, err = strconv.ParseFloat(raw, 64); err != nil || radius <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "radius must be a positive number of meters")
		}
	}

	places, err := s.places.Nearby(c.Request().Context(), center, radius)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "", places)
}

func (s *Server) getPlace(c echo.Context) error {
	place, err := s.places.Details(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "", place)
}

func (s *Server) getItinerary(c echo.Context) error {
	places, err := s.places.Itinerary(c.Request().Context())
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "", places)
}

func (s *Server) addToItinerary(c echo.Context) error {
	var req itineraryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if req.PlaceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "place_id is required")
	}

	places, err := s.places.AddToItinerary(c.Request().Context(), req.PlaceID)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "Added to itinerary", places)
}

func (s *Server) removeFromItinerary(c echo.Context) error {
	places, err := s.places.RemoveFromItinerary(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "Removed from itinerary", places)
}

func (s *Server) clearItinerary(c echo.Context) error {
	if err := s.places.ClearItinerary(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) warmItinerary(c echo.Context) error {
	if s.warmer == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "route cache warming is disabled")
	}
	result, err := s.warmer.WarmItinerary(c.Request().Context())
	if err != nil && result.Warmed == 0 && result.Failed == 0 {
		return err
	}
	return success(c, http.StatusOK, "Route cache warmed", result)
}

func pointFromQuery(c echo.Context) (geo.Point, error) {
	lat, latErr := strconv.ParseFloat(c.QueryParam("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.QueryParam("lng"), 64)
	if latErr != nil || lngErr != nil {
		return geo.Point{}, echo.NewHTTPError(http.StatusBadRequest, "lat and lng query parameters are required")
	}
	p := geo.Point{Latitude: lat, Longitude: lng}
	if !p.Valid() {
		return geo.Point{}, geo.ErrInvalidCoordinate
	}
	return p, nil
}
