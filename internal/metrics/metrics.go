package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics of the navigation server.
// A nil *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	ActiveSessions  *prometheus.GaugeVec
	RouteRequests   *prometheus.CounterVec
	RouteFailures   *prometheus.CounterVec
	StaleReplies    *prometheus.CounterVec
	InitAttempts    *prometheus.CounterVec
	PositionUpdates prometheus.Counter
	ReapedSessions  prometheus.Counter
}

// NewCollector registers metrics against reg, defaulting to the global registry when nil
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.HTTPRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_http_requests_total",
		Help: "Handled HTTP requests, labeled by method, route and status code.",
	}, []string{"method", "route", "code"}), "odyssey_http_requests_total"); err != nil {
		return nil, err
	}
	if c.HTTPDurations, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"method", "route"}), "odyssey_http_request_duration_seconds"); err != nil {
		return nil, err
	}
	if c.ActiveSessions, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "odyssey_active_sessions",
		Help: "Open sessions by kind (navigation, explore).",
	}, []string{"kind"}), "odyssey_active_sessions"); err != nil {
		return nil, err
	}
	if c.RouteRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_route_requests_total",
		Help: "Route requests issued by navigation sessions, labeled by reason (initial, reroute).",
	}, []string{"reason"}), "odyssey_route_requests_total"); err != nil {
		return nil, err
	}
	if c.RouteFailures, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_route_failures_total",
		Help: "Route requests that ended in a routing error, labeled by reason.",
	}, []string{"reason"}), "odyssey_route_failures_total"); err != nil {
		return nil, err
	}
	if c.StaleReplies, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_stale_route_replies_total",
		Help: "Route replies discarded because the session moved on, labeled by cause (epoch, sequence).",
	}, []string{"cause"}), "odyssey_stale_route_replies_total"); err != nil {
		return nil, err
	}
	if c.InitAttempts, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_map_init_attempts_total",
		Help: "Navigation map initialization attempts, labeled by result.",
	}, []string{"result"}), "odyssey_map_init_attempts_total"); err != nil {
		return nil, err
	}
	if c.PositionUpdates, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odyssey_position_updates_total",
		Help: "Position fixes applied to ready navigation sessions.",
	}), "odyssey_position_updates_total"); err != nil {
		return nil, err
	}
	if c.ReapedSessions, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odyssey_reaped_sessions_total",
		Help: "Idle sessions closed by the reaper.",
	}), "odyssey_reaped_sessions_total"); err != nil {
		return nil, err
	}

	return c, nil
}

// Handler exposes the /metrics endpoint
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveHTTP records one handled request
func (c *Collector) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	c.HTTPDurations.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// SessionOpened increments the open session gauge for kind
func (c *Collector) SessionOpened(kind string) {
	if c == nil {
		return
	}
	c.ActiveSessions.WithLabelValues(kind).Inc()
}

// SessionClosed decrements the open session gauge for kind
func (c *Collector) SessionClosed(kind string) {
	if c == nil {
		return
	}
	c.ActiveSessions.WithLabelValues(kind).Dec()
}

// SessionReaped counts a session closed for inactivity
func (c *Collector) SessionReaped() {
	if c == nil {
		return
	}
	c.ReapedSessions.Inc()
}

func (c *Collector) RouteRequested(reason string) {
	if c == nil {
		return
	}
	c.RouteRequests.WithLabelValues(reason).Inc()
}

func (c *Collector) RouteFailed(reason string) {
	if c == nil {
		return
	}
	c.RouteFailures.WithLabelValues(reason).Inc()
}

func (c *Collector) StaleReply(cause string) {
	if c == nil {
		return
	}
	c.StaleReplies.WithLabelValues(cause).Inc()
}

func (c *Collector) InitAttempt(success bool) {
	if c == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	c.InitAttempts.WithLabelValues(result).Inc()
}

func (c *Collector) PositionUpdated() {
	if c == nil {
		return
	}
	c.PositionUpdates.Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
