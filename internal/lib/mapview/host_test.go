package mapview

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHost_ClaimTearsDownPreviousOwner(t *testing.T) {
	var canvases []*Canvas
	host := NewHost(CanvasFactory(800, 500, func(c *Canvas) { canvases = append(canvases, c) }), nil)

	exploreTorn := 0
	_, err := host.Claim(context.Background(), "explore", func() error {
		exploreTorn++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "explore", host.Owner())

	_, err = host.Claim(context.Background(), "navigation", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, exploreTorn)
	require.Len(t, canvases, 2)
	assert.True(t, canvases[0].Snapshot().Removed)
	assert.False(t, canvases[1].Snapshot().Removed)
	assert.Equal(t, "navigation", host.Owner())

	// The previous owner releasing late does not touch the new surface
	require.NoError(t, host.Release("explore"))
	assert.False(t, canvases[1].Snapshot().Removed)
}

func TestHost_ReclaimBySameOwner(t *testing.T) {
	var canvases []*Canvas
	host := NewHost(CanvasFactory(800, 500, func(c *Canvas) { canvases = append(canvases, c) }), nil)

	torn := 0
	teardown := func() error {
		torn++
		return nil
	}
	_, err := host.Claim(context.Background(), "navigation", teardown)
	require.NoError(t, err)
	_, err = host.Claim(context.Background(), "navigation", teardown)
	require.NoError(t, err)

	assert.Equal(t, 0, torn)
	assert.True(t, canvases[0].Snapshot().Removed)

	require.NoError(t, host.Release("navigation"))
	assert.True(t, canvases[1].Snapshot().Removed)
	assert.Equal(t, "", host.Owner())
	_, ok := host.Current()
	assert.False(t, ok)
}

func TestHost_FactoryFailureLeavesNoSurface(t *testing.T) {
	boom := errors.New("container not found")
	host := NewHost(func(context.Context) (Surface, error) { return nil, boom }, nil)

	_, err := host.Claim(context.Background(), "navigation", nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "", host.Owner())
	_, ok := host.Current()
	assert.False(t, ok)
}
