package services

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/odyssey-travel/odyssey/server/internal/lib/navigation"
)

const defaultWarmTimeout = 2 * time.Minute

// WarmResult summarizes one cache warming pass
type WarmResult struct {
	Legs   int `json:"legs"`
	Warmed int `json:"warmed"`
	Failed int `json:"failed"`
}

// CacheWarmer precomputes routes between consecutive itinerary stops so that
// navigation between them starts from the route cache
type CacheWarmer struct {
	router  navigation.RouteRequester
	places  *PlacesService
	timeout time.Duration
	logger  *zap.Logger
}

// NewCacheWarmer creates a new cache warming service
func NewCacheWarmer(router navigation.RouteRequester, places *PlacesService, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{
		router:  router,
		places:  places,
		timeout: defaultWarmTimeout,
		logger:  logger,
	}
}

// WarmItinerary requests the route of every itinerary leg. Failed legs are
// reported in the result and the combined error; the pass continues past them.
func (w *CacheWarmer) WarmItinerary(ctx context.Context) (WarmResult, error) {
	warmCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	stops, err := w.places.Itinerary(warmCtx)
	if err != nil {
		return WarmResult{}, err
	}
	if len(stops) < 2 {
		w.logger.Debug("Itinerary has no legs, skipping cache warming", zap.Int("stops", len(stops)))
		return WarmResult{}, nil
	}

	w.logger.Info("Starting route cache warming", zap.Int("legs", len(stops)-1))
	start := time.Now()

	var (
		result WarmResult
		errs   error
	)
	for i := 1; i < len(stops); i++ {
		if warmCtx.Err() != nil {
			errs = multierr.Append(errs, warmCtx.Err())
			break
		}
		from, to := stops[i-1], stops[i]
		result.Legs++

		r := w.router.Route(warmCtx, from.Location, to.Location)
		if !r.OK() {
			result.Failed++
			errs = multierr.Append(errs, r.Err)
			w.logger.Warn("Failed to warm itinerary leg",
				zap.String("from", from.ID),
				zap.String("to", to.ID),
				zap.Error(r.Err))
			continue
		}
		result.Warmed++
	}

	w.logger.Info("Route cache warming complete",
		zap.Int("warmed", result.Warmed),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", time.Since(start)))
	return result, errs
}
