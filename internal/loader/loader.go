// Package loader fetches, decodes, and caches model and texture assets. Its
// single Load entry point is the only writer of the loaded-asset cache:
// concurrent requests for the same resolved URL are deduplicated onto one
// in-flight load, and every consumer shares the same LoadedAsset reference.
package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"assetd/internal/codec"
	"assetd/internal/fetch"
	"assetd/pkg/types"
)

// Config tunes the loader.
type Config struct {
	// Fetch options applied to every asset request.
	Fetch fetch.Options
	// Mesh transcodes compression-extension geometry; nil means
	// Draco-compressed models fail with a DecodeError.
	Mesh MeshDecoder
	// Uploader moves decoded payloads to the GPU. Nil is allowed for
	// headless use; assets then carry no GPU handle.
	Uploader Uploader
}

type call struct {
	done  chan struct{}
	asset *LoadedAsset
	err   error
}

// Loader is the deduplicating load path and sole owner of the asset cache.
type Loader struct {
	mu       sync.Mutex
	cache    map[string]*LoadedAsset
	inflight map[string]*call

	client   *fetch.Client
	selector *codec.Selector
	cfg      Config
	log      zerolog.Logger
}

// New constructs a Loader.
func New(client *fetch.Client, selector *codec.Selector, cfg Config, log zerolog.Logger) *Loader {
	return &Loader{
		cache:    make(map[string]*LoadedAsset),
		inflight: make(map[string]*call),
		client:   client,
		selector: selector,
		cfg:      cfg,
		log:      log,
	}
}

// Load resolves the descriptor to a variant, fetches and decodes it, and
// returns the cached asset. A second caller for the same resolved URL joins
// the in-flight load instead of issuing a duplicate fetch; if the joining
// caller's context ends first, it gets the context error while the load
// continues for the original caller.
func (l *Loader) Load(ctx context.Context, d types.AssetDescriptor) (*LoadedAsset, error) {
	variant := l.selector.Select(d)
	url := variant.URL

	l.mu.Lock()
	if a, ok := l.cache[url]; ok && a.Alive() {
		l.mu.Unlock()
		cacheHitsTotal.Inc()
		return a, nil
	}
	if c, ok := l.inflight[url]; ok {
		l.mu.Unlock()
		dedupedTotal.Inc()
		select {
		case <-c.done:
			return c.asset, c.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c := &call{done: make(chan struct{})}
	l.inflight[url] = c
	l.mu.Unlock()
	cacheMissesTotal.Inc()

	asset, err := l.load(ctx, d, variant)

	l.mu.Lock()
	delete(l.inflight, url)
	if err == nil {
		// If ClearCache raced with this load, the fresh entry simply
		// repopulates an empty cache; callers own draining (see ClearCache).
		l.cache[url] = asset
		l.updateGaugesLocked()
	}
	l.mu.Unlock()

	c.asset, c.err = asset, err
	close(c.done)
	return asset, err
}

func (l *Loader) load(ctx context.Context, d types.AssetDescriptor, v types.Variant) (*LoadedAsset, error) {
	data, err := l.client.Fetch(ctx, v.URL, l.cfg.Fetch)
	if err != nil {
		return nil, err
	}

	asset := &LoadedAsset{
		ID:        d.ID,
		Kind:      d.Kind,
		URL:       v.URL,
		Codec:     v.Codec,
		SizeBytes: int64(len(data)),
	}

	switch d.Kind {
	case types.KindModel:
		g, err := decodeGLB(v.URL, data, l.cfg.Mesh)
		if err != nil {
			decodeFailuresTotal.WithLabelValues(string(d.Kind)).Inc()
			return nil, err
		}
		g.Name = d.ID
		asset.Geometry = g
		if l.cfg.Uploader != nil {
			gpu, err := l.cfg.Uploader.UploadGeometry(g)
			if err != nil {
				return nil, fmt.Errorf("upload geometry %s: %w", d.ID, err)
			}
			asset.gpu = gpu
		}
	case types.KindTexture:
		t, err := decodeTexture(v.URL, v.Codec, data)
		if err != nil {
			decodeFailuresTotal.WithLabelValues(string(d.Kind)).Inc()
			return nil, err
		}
		t.Name = d.ID
		if max := l.selector.Capabilities().MaxTextureSize; max > 0 && (t.Width > max || t.Height > max) {
			decodeFailuresTotal.WithLabelValues(string(d.Kind)).Inc()
			return nil, &DecodeError{
				URL:    v.URL,
				Reason: fmt.Sprintf("texture %dx%d exceeds device max %d", t.Width, t.Height, max),
			}
		}
		asset.Texture = t
		if l.cfg.Uploader != nil {
			gpu, err := l.cfg.Uploader.UploadTexture(t)
			if err != nil {
				return nil, fmt.Errorf("upload texture %s: %w", d.ID, err)
			}
			asset.gpu = gpu
		}
	default:
		return nil, &DecodeError{URL: v.URL, Reason: "unknown asset kind: " + string(d.Kind)}
	}

	l.log.Debug().Str("asset", d.ID).Str("codec", string(v.Codec)).
		Int64("bytes", asset.SizeBytes).Msg("asset loaded")
	return asset, nil
}

// Cached reports whether the resolved URL for d is already loaded.
func (l *Loader) Cached(d types.AssetDescriptor) bool {
	url := l.selector.Select(d).URL
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.cache[url]
	return ok && a.Alive()
}

// Stats returns the entry count and total payload bytes held by the cache.
func (l *Loader) Stats() (entries int, bytes int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range l.cache {
		entries++
		bytes += a.SizeBytes
	}
	return entries, bytes
}

// ClearCache disposes every cached GPU resource and empties the cache.
// Callers are responsible for draining in-flight loads first; a load that
// completes after ClearCache repopulates the cache and its entry is disposed
// on the next clear. That race is a documented caller obligation, not
// something the loader hides.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for url, a := range l.cache {
		a.dispose()
		delete(l.cache, url)
	}
	l.updateGaugesLocked()
}

func (l *Loader) updateGaugesLocked() {
	var bytes int64
	for _, a := range l.cache {
		bytes += a.SizeBytes
	}
	cacheEntriesGauge.Set(float64(len(l.cache)))
	cacheBytesGauge.Set(float64(bytes))
}
