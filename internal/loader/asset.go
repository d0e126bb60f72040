package loader

import (
	"sync/atomic"

	"assetd/pkg/types"
)

// Vec3 is a point or extent in model space.
type Vec3 [3]float64

// BoundingBox is the axis-aligned extents of a geometry.
type BoundingBox struct {
	Min Vec3
	Max Vec3
}

// Center returns the box midpoint.
func (b BoundingBox) Center() Vec3 {
	return Vec3{
		(b.Min[0] + b.Max[0]) / 2,
		(b.Min[1] + b.Max[1]) / 2,
		(b.Min[2] + b.Max[2]) / 2,
	}
}

// BoundingSphere encloses a geometry for distance and culling tests.
type BoundingSphere struct {
	Center Vec3
	Radius float64
}

// Geometry is the decoded, renderer-ready view of a model payload.
type Geometry struct {
	Name          string
	MeshCount     int
	TriangleCount int
	Bounds        BoundingBox
	Sphere        BoundingSphere
	// Cullable is set during post-processing once bounds are known.
	Cullable bool
	// Payload is the raw binary chunk handed to the renderer for upload.
	Payload []byte
}

// Texture is the decoded view of a texture payload.
type Texture struct {
	Name    string
	Codec   types.Codec
	Width   int
	Height  int
	Payload []byte
}

// GPUResource is a handle to renderer-owned GPU memory. Dispose must be
// idempotent.
type GPUResource interface {
	Dispose()
}

// Uploader moves decoded payloads into GPU memory. Implemented by the
// renderer boundary; the engine never talks to a graphics API itself.
type Uploader interface {
	UploadGeometry(g *Geometry) (GPUResource, error)
	UploadTexture(t *Texture) (GPUResource, error)
}

// LoadedAsset is the cached result of loading one descriptor. The cache is
// the sole owner of the underlying GPU resource; every other holder keeps a
// non-owning reference and must check Alive before use.
type LoadedAsset struct {
	ID   string
	Kind types.AssetKind
	// URL is the resolved variant URL the asset was fetched from.
	URL   string
	Codec types.Codec
	// SizeBytes is the fetched payload size.
	SizeBytes int64

	Geometry *Geometry
	Texture  *Texture

	gpu      GPUResource
	disposed atomic.Bool
}

// Alive reports whether the underlying GPU resources are still valid.
func (a *LoadedAsset) Alive() bool { return !a.disposed.Load() }

// dispose releases GPU memory. Only the cache calls this.
func (a *LoadedAsset) dispose() {
	if a.disposed.Swap(true) {
		return
	}
	if a.gpu != nil {
		a.gpu.Dispose()
	}
}
