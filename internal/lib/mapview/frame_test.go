package mapview

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrameScheduler_KeepsOnlyLatest(t *testing.T) {
	s := NewFrameScheduler(time.Hour)
	var ran []int

	for i := 1; i <= 3; i++ {
		i := i
		s.Request(func() { ran = append(ran, i) })
	}
	assert.True(t, s.Pending())
	assert.Equal(t, uint64(2), s.Dropped())

	assert.True(t, s.Flush())
	assert.Equal(t, []int{3}, ran)
	assert.False(t, s.Flush())
}

func TestFrameScheduler_FiresAfterInterval(t *testing.T) {
	s := NewFrameScheduler(5 * time.Millisecond)
	var count atomic.Int32

	s.Request(func() { count.Add(1) })
	s.Request(func() { count.Add(10) })

	assert.Eventually(t, func() bool { return count.Load() == 10 }, time.Second, time.Millisecond)
	assert.False(t, s.Pending())
}

func TestFrameScheduler_CancelAndStop(t *testing.T) {
	s := NewFrameScheduler(time.Hour)
	called := false

	s.Request(func() { called = true })
	s.Cancel()
	assert.False(t, s.Flush())
	assert.Equal(t, uint64(1), s.Dropped())

	s.Stop()
	s.Request(func() { called = true })
	assert.False(t, s.Pending())
	assert.False(t, called)
}

func TestFrameScheduler_Immediate(t *testing.T) {
	s := NewFrameScheduler(0)
	called := false
	s.Request(func() { called = true })
	assert.True(t, called)
	assert.False(t, s.Pending())
}
