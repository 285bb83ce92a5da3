package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/odyssey-travel/odyssey/server/internal/metrics"
	"github.com/odyssey-travel/odyssey/server/internal/services"
)

// Options wires the HTTP server to the services it exposes
type Options struct {
	Navigation  *services.NavigationService
	Explore     *services.ExploreService
	Places      *services.PlacesService
	Warmer      *services.CacheWarmer
	Metrics     *metrics.Collector
	Logger      *zap.Logger
	CorsOrigins []string
	// Ready reports whether dependencies are reachable; nil means always ready
	Ready func(ctx context.Context) error
}

// Server is the HTTP and WebSocket front end of the navigation services
type Server struct {
	echo       *echo.Echo
	navigation *services.NavigationService
	explore    *services.ExploreService
	places     *services.PlacesService
	warmer     *services.CacheWarmer
	metrics    *metrics.Collector
	logger     *zap.Logger
	ready      func(ctx context.Context) error
	upgrader   websocket.Upgrader
}

// New creates the server and registers every route
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:       e,
		navigation: opts.Navigation,
		explore:    opts.Explore,
		places:     opts.Places,
		warmer:     opts.Warmer,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		ready:      opts.Ready,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	if len(opts.CorsOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: opts.CorsOrigins}))
	}
	e.Use(s.observe)

	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/", s.homepage)
	e.GET("/healthz", s.healthz)
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	api := e.Group("/api/v1")

	places := api.Group("/places")
	places.GET("", s.listPlaces)
	places.GET("/search", s.searchPlaces)
	places.GET("/popular", s.popularPlaces)
	places.GET("/categories", s.placeCategories)
	places.GET("/nearby", s.nearbyPlaces)
	places.GET("/:id", s.getPlace)

	itinerary := api.Group("/itinerary")
	itinerary.GET("", s.getItinerary)
	itinerary.POST("", s.addToItinerary)
	itinerary.DELETE("", s.clearItinerary)
	itinerary.DELETE("/:id", s.removeFromItinerary)
	itinerary.POST("/warm", s.warmItinerary)

	sessions := api.Group("/sessions")
	sessions.POST("", s.createSession)
	sessions.GET("", s.listSessions)
	sessions.GET("/:id", s.getSession)
	sessions.DELETE("/:id", s.closeSession)
	sessions.POST("/:id/fixes", s.pushFix)
	sessions.POST("/:id/location-errors", s.pushLocationError)
	sessions.POST("/:id/commands", s.executeCommand)
	sessions.PUT("/:id/destination", s.changeDestination)
	sessions.GET("/:id/kml", s.sessionKML)
	sessions.GET("/:id/stream", s.streamSession)

	explore := api.Group("/explore")
	explore.POST("", s.openExplore)
	explore.GET("/:id", s.getExplore)
	explore.DELETE("/:id", s.closeExplore)
	explore.POST("/:id/search", s.exploreSearch)
	explore.POST("/:id/category", s.exploreCategory)
	explore.POST("/:id/business", s.exploreBusiness)
	explore.PUT("/:id/location", s.exploreLocation)
	explore.PUT("/:id/hover", s.exploreHover)
	explore.POST("/:id/mode", s.exploreMode)
}

// ServeHTTP lets the server be mounted or exercised with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.logger.Info("HTTP server listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// observe records request metrics and logs each request
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		req, res := c.Request(), c.Response()
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		s.metrics.ObserveHTTP(req.Method, route, res.Status, elapsed)

		s.logger.Debug("HTTP request",
			zap.String("method", req.Method),
			zap.String("route", route),
			zap.Int("status", res.Status),
			zap.Duration("elapsed", elapsed))
		return nil
	}
}

func (s *Server) healthz(c echo.Context) error {
	if s.ready != nil {
		if err := s.ready(c.Request().Context()); err != nil {
			s.logger.Warn("Readiness check failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
