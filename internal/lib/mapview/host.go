package mapview

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Host hands out the single map surface of one viewer.
// Claiming the surface tears down the previous owner before a new surface is created.
type Host struct {
	factory Factory
	logger  *zap.Logger

	mu       sync.Mutex
	surface  Surface
	owner    string
	teardown func() error
}

// NewHost creates a host that builds surfaces with factory
func NewHost(factory Factory, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{factory: factory, logger: logger}
}

// Claim removes the current surface and creates a new one owned by owner.
// When a different owner held the surface its teardown runs first.
// teardown must not call back into the Host.
func (h *Host) Claim(ctx context.Context, owner string, teardown func() error) (Surface, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.releaseLocked(owner != h.owner); err != nil {
		h.logger.Warn("Error tearing down previous map owner", zap.Error(err))
	}

	surface, err := h.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create map surface: %w", err)
	}

	h.surface = surface
	h.owner = owner
	h.teardown = teardown
	h.logger.Debug("Map surface claimed", zap.String("owner", owner))
	return surface, nil
}

// Release removes the surface if owner still holds it
func (h *Host) Release(owner string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.owner != owner || h.surface == nil {
		return nil
	}
	return h.releaseLocked(false)
}

// Owner returns the current owner, or "" when the surface is free
func (h *Host) Owner() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.owner
}

// Current returns the surface currently attached, if any
func (h *Host) Current() (Surface, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.surface, h.surface != nil
}

func (h *Host) releaseLocked(runTeardown bool) error {
	var err error
	if runTeardown && h.teardown != nil {
		err = multierr.Append(err, h.teardown())
	}
	if h.surface != nil {
		err = multierr.Append(err, h.surface.Remove())
	}
	h.surface = nil
	h.owner = ""
	h.teardown = nil
	return err
}
