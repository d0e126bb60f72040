package types

import "time"

// Priority orders assets within and across bundles.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns a sortable weight; lower loads first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Valid reports whether p is one of the known priority tiers.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// AssetKind distinguishes geometry payloads from texture payloads.
type AssetKind string

const (
	KindModel   AssetKind = "model"
	KindTexture AssetKind = "texture"
)

// Codec identifies the wire encoding of one asset variant.
type Codec string

const (
	// CodecGLB is the baseline binary glTF container for models.
	CodecGLB Codec = "glb"
	// CodecDraco is a GLB whose mesh primitives are Draco-compressed.
	CodecDraco Codec = "draco"
	// CodecKTX2 is a GPU-native transcodable texture container.
	CodecKTX2 Codec = "ktx2"
	// CodecWebP is the generic lossy web image format.
	CodecWebP Codec = "webp"
	// CodecPNG is the baseline raster fallback for textures.
	CodecPNG Codec = "png"
)

// Variant is one concrete encoding of an asset: where to fetch it and how
// large the payload is declared to be.
type Variant struct {
	Codec Codec  `json:"codec" yaml:"codec" toml:"codec"`
	URL   string `json:"url" yaml:"url" toml:"url"`
	// Declared payload size in bytes; drives encoding selection and ETA.
	SizeBytes int64 `json:"size_bytes" yaml:"size_bytes" toml:"size_bytes"`
}

// AssetDescriptor identifies one loadable unit. Immutable once created;
// owned by content configuration and referenced (never mutated) by loaders.
type AssetDescriptor struct {
	// Stable identifier, e.g. "hero-model".
	ID   string    `json:"id" yaml:"id" toml:"id"`
	Kind AssetKind `json:"kind" yaml:"kind" toml:"kind"`
	// Baseline is the encoding every client can decode.
	Baseline Variant `json:"baseline" yaml:"baseline" toml:"baseline"`
	// Alternates are higher-compression or GPU-native encodings the codec
	// selector may prefer per client capability.
	Alternates []Variant `json:"alternates,omitempty" yaml:"alternates,omitempty" toml:"alternates,omitempty"`
	Priority   Priority  `json:"priority" yaml:"priority" toml:"priority"`
	// Preload marks the asset for eager loading ahead of any bundle request.
	Preload bool `json:"preload,omitempty" yaml:"preload,omitempty" toml:"preload,omitempty"`
}

// Alternate returns the variant with the given codec, if declared.
func (d AssetDescriptor) Alternate(c Codec) (Variant, bool) {
	for _, v := range d.Alternates {
		if v.Codec == c {
			return v, true
		}
	}
	return Variant{}, false
}

// AssetBundle is a named, ordered collection of descriptors for one logical
// scene. Consumed once by the bundle manager, which does not mutate it.
type AssetBundle struct {
	ID       string            `json:"id" yaml:"id" toml:"id"`
	Priority Priority          `json:"priority" yaml:"priority" toml:"priority"`
	Models   []AssetDescriptor `json:"models" yaml:"models" toml:"models"`
	Textures []AssetDescriptor `json:"textures" yaml:"textures" toml:"textures"`
}

// Size returns the total number of assets in the bundle.
func (b AssetBundle) Size() int { return len(b.Models) + len(b.Textures) }

// LoadingProgress is a snapshot of one bundle load session. Recreated on
// every tick; it has no identity beyond the tick that produced it.
type LoadingProgress struct {
	BundleID     string        `json:"bundle_id"`
	SessionID    string        `json:"session_id"`
	Loaded       int           `json:"loaded"`
	Total        int           `json:"total"`
	CurrentAsset string        `json:"current_asset,omitempty"`
	ETA          time.Duration `json:"eta_ns"`
}

// PerformanceSample is one frame-timing measurement reported by the renderer.
type PerformanceSample struct {
	FPS float64 `json:"fps"`
	// FrameTimeStdDev is the frame-time jitter in milliseconds.
	FrameTimeStdDev float64 `json:"frame_time_std_dev"`
	// MemoryPressure is used/limit in [0,1].
	MemoryPressure float64   `json:"memory_pressure"`
	At             time.Time `json:"at"`
}

// QualityTier is the process-wide rendering quality classification.
type QualityTier string

const (
	TierHigh   QualityTier = "high"
	TierMedium QualityTier = "medium"
	TierLow    QualityTier = "low"
)

// Below reports whether t is a lower-fidelity tier than other.
func (t QualityTier) Below(other QualityTier) bool {
	return t.rank() > other.rank()
}

func (t QualityTier) rank() int {
	switch t {
	case TierHigh:
		return 0
	case TierMedium:
		return 1
	default:
		return 2
	}
}

// Capabilities are device facts supplied by an external capability probe;
// the engine never performs platform feature detection itself.
type Capabilities struct {
	KTX2 bool `json:"ktx2"`
	WebP bool `json:"webp"`
	// MaxTextureSize in texels per side.
	MaxTextureSize int `json:"max_texture_size"`
	// DeviceMemoryGB is the approximate device memory, when known.
	DeviceMemoryGB float64 `json:"device_memory_gb,omitempty"`
	Mobile         bool    `json:"mobile"`
	// NetworkEffectiveType as reported by the platform, e.g. "4g", "3g".
	NetworkEffectiveType string `json:"network_effective_type,omitempty"`
}
