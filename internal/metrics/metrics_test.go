package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordsNavigationActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.RouteRequested("initial")
	c.RouteRequested("reroute")
	c.RouteRequested("reroute")
	c.RouteFailed("reroute")
	c.StaleReply("epoch")
	c.InitAttempt(false)
	c.InitAttempt(true)
	c.PositionUpdated()
	c.SessionOpened("navigation")
	c.SessionOpened("navigation")
	c.SessionClosed("navigation")
	c.SessionReaped()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.RouteRequests.WithLabelValues("reroute")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RouteFailures.WithLabelValues("reroute")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StaleReplies.WithLabelValues("epoch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.InitAttempts.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PositionUpdates))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ActiveSessions.WithLabelValues("navigation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ReapedSessions))
}

func TestCollector_ReRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	require.NoError(t, err)
	second, err := NewCollector(reg)
	require.NoError(t, err)

	first.PositionUpdated()
	assert.Equal(t, 1.0, testutil.ToFloat64(second.PositionUpdates))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RouteRequested("initial")
		c.StaleReply("sequence")
		c.ObserveHTTP(http.MethodGet, "/healthz", 200, time.Millisecond)
		c.SessionOpened("explore")
	})
}

func TestCollector_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)
	c.ObserveHTTP(http.MethodPost, "/api/v1/sessions", 201, 20*time.Millisecond)

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `odyssey_http_requests_total{code="201",method="POST",route="/api/v1/sessions"} 1`)
	assert.Contains(t, body, "odyssey_http_request_duration_seconds_bucket")
}
