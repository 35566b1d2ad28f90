package registry

import (
	"context"
	"sync"
)

// Cached decorates a Loader with load-once semantics. Repeated Load calls
// return the same immutable registry; Reload forces a fresh load and swaps
// the cached value only on success, so a failed reload never leaves the
// engine without rules.
type Cached struct {
	inner Loader

	mu  sync.RWMutex
	reg *Registry
}

func NewCached(inner Loader) *Cached {
	return &Cached{inner: inner}
}

func (c *Cached) Load(ctx context.Context) (*Registry, error) {
	c.mu.RLock()
	reg := c.reg
	c.mu.RUnlock()
	if reg != nil {
		return reg, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reg != nil {
		return c.reg, nil
	}
	reg, err := c.inner.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.reg = reg
	return reg, nil
}

// Reload discards the cached registry and loads a fresh one.
func (c *Cached) Reload(ctx context.Context) (*Registry, error) {
	reg, err := c.inner.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.reg = reg
	c.mu.Unlock()
	return reg, nil
}
