package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/odyssey-travel/odyssey/server/internal/metrics"
)

type countingReapable struct {
	mu    sync.Mutex
	calls int
	n     int
	idle  time.Duration
}

func (c *countingReapable) ReapIdle(_ time.Time, idle time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.idle = idle
	return c.n
}

func (c *countingReapable) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestSessionReaper_ReapOnceCountsMetrics(t *testing.T) {
	m, err := metrics.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	a := &countingReapable{n: 2}
	b := &countingReapable{n: 1}
	r := NewSessionReaper(time.Minute, 30*time.Minute, m, zaptest.NewLogger(t), a, b)

	assert.Equal(t, 3, r.ReapOnce())
	assert.Equal(t, 30*time.Minute, a.idle)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ReapedSessions))
}

func TestSessionReaper_StartStop(t *testing.T) {
	target := &countingReapable{}
	r := NewSessionReaper(5*time.Millisecond, time.Minute, nil, zaptest.NewLogger(t), target)

	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Start(context.Background()))
	assert.True(t, r.IsRunning())

	require.Eventually(t, func() bool { return target.Calls() >= 2 }, time.Second, time.Millisecond)

	r.Stop()
	r.Stop()
	assert.False(t, r.IsRunning())

	calls := target.Calls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, target.Calls())
}

func TestSessionReaper_StopsWithContext(t *testing.T) {
	r := NewSessionReaper(time.Hour, time.Minute, nil, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, r.Start(ctx))
	cancel()
	require.Eventually(t, func() bool { return !r.IsRunning() }, time.Second, time.Millisecond)
	r.Stop()
}

func TestSessionReaper_DisabledWithoutInterval(t *testing.T) {
	r := NewSessionReaper(0, time.Minute, nil, zaptest.NewLogger(t))
	require.NoError(t, r.Start(context.Background()))
	assert.False(t, r.IsRunning())
}

func TestSessionReaper_ClosesIdleSessions(t *testing.T) {
	f := newFixture(t)
	dest := iskcon

	sess, err := f.navigation.Create(context.Background(), CreateSessionRequest{ViewerID: "idle", Destination: &dest})
	require.NoError(t, err)

	r := NewSessionReaper(time.Minute, time.Minute, nil, zaptest.NewLogger(t), f.navigation, f.explore, f.viewers)
	r.now = func() time.Time { return sess.LastActivity().Add(time.Hour) }

	assert.Equal(t, 2, r.ReapOnce())
	assert.Empty(t, f.navigation.List())
	assert.Equal(t, 0, f.viewers.Len())
}
