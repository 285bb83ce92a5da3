package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/odyssey-travel/odyssey/server/internal/catalog"
	"github.com/odyssey-travel/odyssey/server/internal/itinerary"
	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

// PlacesService serves the place catalog and the user's itinerary
type PlacesService struct {
	catalog   *catalog.Catalog
	itinerary *itinerary.Store
	logger    *zap.Logger
}

// NewPlacesService creates a new places service
func NewPlacesService(c *catalog.Catalog, store *itinerary.Store, logger *zap.Logger) *PlacesService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlacesService{catalog: c, itinerary: store, logger: logger}
}

func (s *PlacesService) Search(ctx context.Context, query string) ([]catalog.Place, error) {
	places, err := s.catalog.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Place search", zap.String("query", query), zap.Int("results", len(places)))
	return places, nil
}

func (s *PlacesService) Popular(ctx context.Context) ([]string, error) {
	return s.catalog.Popular(ctx)
}

func (s *PlacesService) Details(ctx context.Context, id string) (catalog.Place, error) {
	return s.catalog.Details(ctx, id)
}

func (s *PlacesService) BusinessFriendly(ctx context.Context) ([]catalog.Place, error) {
	return s.catalog.BusinessFriendly(ctx)
}

func (s *PlacesService) ByCategory(ctx context.Context, category string) ([]catalog.Place, error) {
	return s.catalog.ByCategory(ctx, category)
}

func (s *PlacesService) Categories() []string {
	return s.catalog.Categories()
}

func (s *PlacesService) Nearby(ctx context.Context, center geo.Point, radiusMeters float64) ([]catalog.Place, error) {
	return s.catalog.Nearby(ctx, center, radiusMeters)
}

// Itinerary returns the saved places
func (s *PlacesService) Itinerary(ctx context.Context) ([]catalog.Place, error) {
	return s.itinerary.Load(ctx)
}

// AddToItinerary saves the catalog place with id
func (s *PlacesService) AddToItinerary(ctx context.Context, id string) ([]catalog.Place, error) {
	place, err := s.catalog.Details(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.itinerary.Add(ctx, place)
}

func (s *PlacesService) RemoveFromItinerary(ctx context.Context, id string) ([]catalog.Place, error) {
	return s.itinerary.Remove(ctx, id)
}

func (s *PlacesService) ClearItinerary(ctx context.Context) error {
	return s.itinerary.Clear(ctx)
}

func (s *PlacesService) InItinerary(ctx context.Context, id string) (bool, error) {
	return s.itinerary.Contains(ctx, id)
}

// Resolve finds a place by id, preferring the itinerary copy over the catalog
func (s *PlacesService) Resolve(ctx context.Context, id string) (catalog.Place, error) {
	place, ok, err := s.itinerary.Get(ctx, id)
	if err != nil {
		s.logger.Warn("Itinerary lookup failed, falling back to catalog", zap.String("place_id", id), zap.Error(err))
	} else if ok {
		return place, nil
	}

	place, err = s.catalog.Details(ctx, id)
	if err != nil {
		return catalog.Place{}, fmt.Errorf("failed to resolve destination: %w", err)
	}
	return place, nil
}
