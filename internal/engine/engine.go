// Package engine wires the delivery and quality subsystems into one
// explicitly constructed controller. Nothing here is a package-level
// singleton; two engines in one process stay fully independent.
package engine

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"assetd/internal/bundle"
	"assetd/internal/codec"
	"assetd/internal/fetch"
	"assetd/internal/lifecycle"
	"assetd/internal/loader"
	"assetd/internal/lod"
	"assetd/internal/perf"
	"assetd/pkg/types"
)

// FrameStats is the per-frame report the renderer hands the engine.
type FrameStats struct {
	FPS             float64
	FrameTimeStdDev float64
	DrawCalls       int
	Triangles       int
	Geometries      int
	Textures        int
	GPUMemoryBytes  int64
	// MemoryPressure is used/limit in [0,1].
	MemoryPressure float64
}

// RenderSettings are the renderer knobs the engine adjusts per quality tier.
type RenderSettings struct {
	PixelRatio   float64
	Shadows      bool
	Antialiasing bool
}

// Renderer is the boundary to the actual rendering backend. The engine only
// reads frame statistics and pushes settings; it never touches GPU state.
type Renderer interface {
	FrameStats() FrameStats
	ApplySettings(RenderSettings)
}

// Config assembles an Engine. Renderer and Mesh may be nil for headless use.
type Config struct {
	// Probe supplies device capabilities. Required.
	Probe codec.Probe
	// Renderer receives tier-driven settings and supplies frame stats.
	Renderer Renderer
	// HTTPClient overrides the asset-fetching client.
	HTTPClient *http.Client
	// Mesh transcodes compressed geometry.
	Mesh loader.MeshDecoder
	// Uploader moves decoded payloads to the GPU.
	Uploader loader.Uploader

	Fetch   fetch.Options
	Breaker fetch.BreakerConfig
	Bundle  bundle.Config
	LOD     lod.Config
	Perf    perf.Config

	// Events receives engine lifecycle events; nil drops them.
	Events EventPublisher

	Logger zerolog.Logger
}

// Engine owns every subsystem and the feedback wiring between them.
type Engine struct {
	client    *fetch.Client
	selector  *codec.Selector
	loader    *loader.Loader
	bundles   *bundle.Manager
	lod       *lod.Manager
	perf      *perf.Controller
	resources *lifecycle.Tracker

	renderer  Renderer
	events    EventPublisher
	unsubTier func()
	startedAt time.Time
	log       zerolog.Logger
}

// New probes capabilities and constructs a fully wired Engine.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Probe == nil {
		return nil, fmt.Errorf("engine: capability probe is required")
	}
	caps, err := cfg.Probe.Probe(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: capability probe: %w", err)
	}

	log := cfg.Logger

	monitor := fetch.NewMonitor()
	breakers := fetch.NewBreakerSet(cfg.Breaker)
	client := fetch.NewClient(cfg.HTTPClient, breakers, monitor, log)
	selector := codec.NewSelector(caps, log)
	ld := loader.New(client, selector, loader.Config{
		Fetch:    cfg.Fetch,
		Mesh:     cfg.Mesh,
		Uploader: cfg.Uploader,
	}, log)
	bundles := bundle.NewManager(ld, monitor, cfg.Bundle, log)

	perfCfg := cfg.Perf
	zero := perf.Thresholds{}
	if perfCfg.Thresholds == zero {
		perfCfg.Thresholds = perf.DefaultThresholds(caps.Mobile)
	}

	e := &Engine{
		client:    client,
		selector:  selector,
		loader:    ld,
		bundles:   bundles,
		lod:       lod.NewManager(cfg.LOD, log),
		perf:      perf.NewController(perfCfg, log),
		resources: lifecycle.NewTracker(log),
		renderer:  cfg.Renderer,
		events:    cfg.Events,
		startedAt: time.Now(),
		log:       log,
	}
	if e.events == nil {
		e.events = noopPublisher{}
	}
	e.unsubTier = e.perf.Subscribe(e.onTierChange)
	e.perf.SetCleanupHook(e.onMemoryPressure)
	if e.renderer != nil {
		e.renderer.ApplySettings(settingsFor(types.TierHigh))
	}
	return e, nil
}

// onTierChange propagates a tier transition to the LOD budgets and the
// renderer settings.
func (e *Engine) onTierChange(tc perf.TierChange) {
	e.lod.SetPerformanceTarget(tc.To)
	if e.renderer != nil {
		e.renderer.ApplySettings(settingsFor(tc.To))
	}
	e.events.Publish(Event{Name: EventTierChanged, Fields: map[string]any{
		"from":    string(tc.From),
		"to":      string(tc.To),
		"avg_fps": tc.AvgFPS,
	}})
}

// onMemoryPressure releases tracked resources and drops the decoded-asset
// cache before the perf controller resorts to a tier downgrade.
func (e *Engine) onMemoryPressure() {
	e.log.Info().Msg("memory pressure: releasing tracked resources")
	e.resources.ReleaseAll()
	e.loader.ClearCache()
	e.events.Publish(Event{Name: EventMemoryPressure})
}

func settingsFor(tier types.QualityTier) RenderSettings {
	switch tier {
	case types.TierHigh:
		return RenderSettings{PixelRatio: 1.0, Shadows: true, Antialiasing: true}
	case types.TierMedium:
		return RenderSettings{PixelRatio: 0.85, Shadows: true, Antialiasing: false}
	default:
		return RenderSettings{PixelRatio: 0.7, Shadows: false, Antialiasing: false}
	}
}

// Tick advances the engine one frame: the renderer's stats feed the perf
// controller, then LOD selection runs for this camera. Safe to call headless;
// without a renderer only LOD advances.
func (e *Engine) Tick(cam lod.Camera, dt time.Duration) {
	if e.renderer != nil {
		fs := e.renderer.FrameStats()
		e.perf.Sample(types.PerformanceSample{
			FPS:             fs.FPS,
			FrameTimeStdDev: fs.FrameTimeStdDev,
			MemoryPressure:  fs.MemoryPressure,
			At:              time.Now(),
		})
	}
	e.lod.Update(cam, dt)
}

// Sample feeds an externally produced performance sample, for renderers that
// report over the network instead of through the Renderer interface.
func (e *Engine) Sample(s types.PerformanceSample) {
	if s.At.IsZero() {
		s.At = time.Now()
	}
	e.perf.Sample(s)
}

// LoadBundle loads a bundle synchronously.
func (e *Engine) LoadBundle(ctx context.Context, b types.AssetBundle) (*bundle.Result, error) {
	return e.bundles.Load(ctx, b)
}

// StartBundle starts a background load session and returns its id.
func (e *Engine) StartBundle(b types.AssetBundle) string {
	return e.bundles.Start(b)
}

// CancelSession cancels a running load session.
func (e *Engine) CancelSession(sessionID string) error {
	return e.bundles.Cancel(sessionID)
}

// Session returns one session's status.
func (e *Engine) Session(sessionID string) (types.SessionStatus, error) {
	return e.bundles.Session(sessionID)
}

// PreloadCritical warms the cache with every preload-flagged or high-priority
// asset of the given bundles.
func (e *Engine) PreloadCritical(ctx context.Context, bundles []types.AssetBundle) error {
	return e.bundles.PreloadCritical(ctx, bundles)
}

// OnContextLost forces the low tier and invalidates every GPU-backed asset;
// cached uploads do not survive a lost context.
func (e *Engine) OnContextLost() {
	e.perf.OnContextLost()
	e.resources.ReleaseAll()
	e.loader.ClearCache()
	e.events.Publish(Event{Name: EventContextLost})
}

// OnContextRestored resumes sampling; quality climbs back tier by tier.
func (e *Engine) OnContextRestored() {
	e.perf.OnContextRestored()
	e.events.Publish(Event{Name: EventContextRestored})
}

// SetOnline feeds platform connectivity transitions to the network monitor.
func (e *Engine) SetOnline(online bool) {
	e.client.Monitor().SetOnline(online)
}

// Resources exposes the lifecycle tracker for callers that allocate
// renderer-side objects outside the loader.
func (e *Engine) Resources() *lifecycle.Tracker { return e.resources }

// Bundles exposes the bundle manager, mainly for progress subscriptions.
func (e *Engine) Bundles() *bundle.Manager { return e.bundles }

// LOD exposes the representation manager for object registration.
func (e *Engine) LOD() *lod.Manager { return e.lod }

// Tier returns the current quality tier.
func (e *Engine) Tier() types.QualityTier { return e.perf.Tier() }

// Status projects the engine state for the HTTP layer.
func (e *Engine) Status() types.StatusResponse {
	entries, bytes := e.loader.Stats()
	snap := e.client.Breakers().Snapshot()
	breakers := make([]types.BreakerStatus, 0, len(snap))
	for ep, info := range snap {
		breakers = append(breakers, types.BreakerStatus{
			Endpoint: ep,
			State:    string(info.State),
			Failures: info.Failures,
		})
	}
	sort.Slice(breakers, func(i, j int) bool { return breakers[i].Endpoint < breakers[j].Endpoint })
	return types.StatusResponse{
		Tier:        e.perf.Tier(),
		ContextLost: e.perf.ContextLost(),
		Online:      e.client.Monitor().Online(),
		Cache:       types.CacheStatus{Entries: entries, Bytes: bytes},
		Sessions:    e.bundles.Sessions(),
		Breakers:    breakers,
		UptimeSec:   int64(time.Since(e.startedAt).Seconds()),
	}
}

// Close tears the engine down: sessions cancelled, subscriptions removed,
// tracked resources released, cache dropped.
func (e *Engine) Close() {
	e.bundles.Close()
	e.unsubTier()
	e.resources.ReleaseAll()
	e.loader.ClearCache()
}
