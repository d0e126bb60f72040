// Package codec picks the encoding to request for each asset descriptor,
// weighing declared payload sizes against decode cost and the client's
// reported texture capabilities.
package codec

import (
	"github.com/rs/zerolog"

	"assetd/pkg/types"
)

// dracoSizeAdvantage is the size ratio below which the Draco variant is worth
// its decode cost. At or above it the baseline GLB wins.
const dracoSizeAdvantage = 0.7

// Selector resolves descriptors to concrete variants. Capabilities are fixed
// for the session; construct a new Selector if the device facts change.
type Selector struct {
	caps types.Capabilities
	log  zerolog.Logger
}

// NewSelector builds a Selector over the probed capabilities.
func NewSelector(caps types.Capabilities, log zerolog.Logger) *Selector {
	return &Selector{caps: caps, log: log}
}

// Capabilities returns the device facts the selector was built with.
func (s *Selector) Capabilities() types.Capabilities { return s.caps }

// Select resolves a descriptor of either kind to the variant to fetch.
func (s *Selector) Select(d types.AssetDescriptor) types.Variant {
	if d.Kind == types.KindTexture {
		return s.SelectTexture(d)
	}
	return s.SelectModel(d)
}

// SelectModel prefers the Draco variant only when its declared size is below
// 70% of the baseline; otherwise the decode cost is judged not to pay for the
// transfer savings.
func (s *Selector) SelectModel(d types.AssetDescriptor) types.Variant {
	draco, ok := d.Alternate(types.CodecDraco)
	if !ok || d.Baseline.SizeBytes <= 0 || draco.SizeBytes <= 0 {
		return d.Baseline
	}
	ratio := float64(draco.SizeBytes) / float64(d.Baseline.SizeBytes)
	if ratio < dracoSizeAdvantage {
		s.log.Debug().Str("asset", d.ID).Float64("ratio", ratio).Msg("selected draco variant")
		return draco
	}
	return d.Baseline
}

// SelectTexture prefers, in order: KTX2 when the client supports it, WebP
// when supported, else the baseline raster format.
func (s *Selector) SelectTexture(d types.AssetDescriptor) types.Variant {
	if s.caps.KTX2 {
		if v, ok := d.Alternate(types.CodecKTX2); ok {
			return v
		}
	}
	if s.caps.WebP {
		if v, ok := d.Alternate(types.CodecWebP); ok {
			return v
		}
	}
	return d.Baseline
}
