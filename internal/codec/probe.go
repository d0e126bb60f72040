package codec

import (
	"context"
	"sync"

	"assetd/pkg/types"
)

// Probe supplies device capability facts. The engine never inspects the
// platform itself; the embedding application implements this boundary.
type Probe interface {
	Probe(ctx context.Context) (types.Capabilities, error)
}

// StaticProbe returns fixed capability facts. Used when the caller has
// already detected the device.
type StaticProbe types.Capabilities

func (p StaticProbe) Probe(ctx context.Context) (types.Capabilities, error) {
	return types.Capabilities(p), nil
}

// CachedProbe runs the underlying probe once per session and serves the
// result to every subsequent caller.
type CachedProbe struct {
	probe Probe
	once  sync.Once
	caps  types.Capabilities
	err   error
}

// NewCachedProbe wraps p with once-per-session caching.
func NewCachedProbe(p Probe) *CachedProbe {
	return &CachedProbe{probe: p}
}

func (c *CachedProbe) Probe(ctx context.Context) (types.Capabilities, error) {
	c.once.Do(func() {
		c.caps, c.err = c.probe.Probe(ctx)
	})
	return c.caps, c.err
}
