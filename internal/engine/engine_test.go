package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"assetd/internal/codec"
	"assetd/internal/lod"
	"assetd/internal/perf"
	"assetd/pkg/types"
)

type fakeRenderer struct {
	mu       sync.Mutex
	stats    FrameStats
	settings []RenderSettings
}

func (r *fakeRenderer) FrameStats() FrameStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *fakeRenderer) ApplySettings(s RenderSettings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = append(r.settings, s)
}

func (r *fakeRenderer) setStats(s FrameStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = s
}

func (r *fakeRenderer) lastSettings() RenderSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.settings) == 0 {
		return RenderSettings{}
	}
	return r.settings[len(r.settings)-1]
}

func newTestEngine(t *testing.T, r Renderer) *Engine {
	t.Helper()
	e, err := New(context.Background(), Config{
		Probe:    codec.StaticProbe(types.Capabilities{WebP: true}),
		Renderer: r,
		LOD:      lod.Config{DwellTime: time.Nanosecond},
		Perf: perf.Config{
			RingSize:         5,
			CheckInterval:    5,
			SustainedWindows: 2,
			Thresholds:       perf.DefaultThresholds(false),
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestNew_RequiresProbe(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("nil probe must be rejected")
	}
}

func TestTick_SustainedSlowFramesAdjustRendererAndLOD(t *testing.T) {
	r := &fakeRenderer{}
	e := newTestEngine(t, r)

	if got := r.lastSettings(); !got.Shadows || !got.Antialiasing {
		t.Fatalf("initial settings = %+v, want full quality", got)
	}

	ladder := []lod.Level{
		{Rep: lod.Representation{Name: "full", TriangleCount: 1000}, MinDistance: 0},
		{Rep: lod.Representation{Name: "half", TriangleCount: 500}, MinDistance: 10},
	}
	if err := e.LOD().Register("obj", [3]float64{0, 0, 0}, ladder); err != nil {
		t.Fatalf("Register: %v", err)
	}

	r.setStats(FrameStats{FPS: 15, FrameTimeStdDev: 3, MemoryPressure: 0.4})
	cam := lod.Camera{Position: [3]float64{1, 0, 0}}
	for i := 0; i < 10; i++ {
		e.Tick(cam, 16*time.Millisecond)
	}

	if got := e.Tier(); got != types.TierLow {
		t.Fatalf("tier = %s, want low after sustained 15 fps", got)
	}
	s := r.lastSettings()
	if s.Shadows || s.Antialiasing || s.PixelRatio >= 1.0 {
		t.Fatalf("settings = %+v, want degraded low-tier settings", s)
	}
	// The low tier forbids the top representation even at close range.
	if idx, _ := e.LOD().ActiveIndex("obj"); idx != 1 {
		t.Fatalf("lod index = %d, want 1 at low tier", idx)
	}
}

func TestStatus_ReportsTierOnlineAndCache(t *testing.T) {
	e := newTestEngine(t, nil)

	st := e.Status()
	if st.Tier != types.TierHigh {
		t.Fatalf("Tier = %s, want high", st.Tier)
	}
	if !st.Online {
		t.Fatalf("Online = false, want true at startup")
	}
	if st.ContextLost {
		t.Fatalf("ContextLost = true, want false")
	}
	if st.Cache.Entries != 0 || st.Cache.Bytes != 0 {
		t.Fatalf("Cache = %+v, want empty", st.Cache)
	}

	e.SetOnline(false)
	if e.Status().Online {
		t.Fatalf("Online = true after SetOnline(false)")
	}
}

func TestOnContextLost_ForcesLowAndReleasesResources(t *testing.T) {
	e := newTestEngine(t, nil)

	released := false
	e.Resources().Register("gpu-buffer", func() error {
		released = true
		return nil
	})

	e.OnContextLost()
	if got := e.Tier(); got != types.TierLow {
		t.Fatalf("tier = %s, want low", got)
	}
	if !e.Status().ContextLost {
		t.Fatalf("ContextLost = false after loss")
	}
	if !released {
		t.Fatalf("tracked resources must be released on context loss")
	}

	e.OnContextRestored()
	if e.Status().ContextLost {
		t.Fatalf("ContextLost = true after restore")
	}
	if got := e.Tier(); got != types.TierLow {
		t.Fatalf("tier = %s, restore must not jump quality back up", got)
	}
}

func TestEvents_PublishedOnTierAndContextTransitions(t *testing.T) {
	pub := NewMemoryPublisher()
	r := &fakeRenderer{}
	e, err := New(context.Background(), Config{
		Probe:    codec.StaticProbe(types.Capabilities{}),
		Renderer: r,
		Events:   pub,
		Perf: perf.Config{
			RingSize:         5,
			CheckInterval:    5,
			SustainedWindows: 2,
			Thresholds:       perf.DefaultThresholds(false),
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	r.setStats(FrameStats{FPS: 10, MemoryPressure: 0.4})
	for i := 0; i < 10; i++ {
		e.Tick(lod.Camera{}, 16*time.Millisecond)
	}
	e.OnContextLost()
	e.OnContextRestored()

	var names []string
	for _, ev := range pub.Events() {
		names = append(names, ev.Name)
	}
	want := []string{EventTierChanged, EventContextLost, EventContextRestored}
	if len(names) != len(want) {
		t.Fatalf("events = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("events = %v, want %v", names, want)
		}
	}
	if to := pub.Events()[0].Fields["to"]; to != "low" {
		t.Fatalf("tier event to = %v, want low", to)
	}
}

func TestTick_HeadlessOnlyAdvancesLOD(t *testing.T) {
	e := newTestEngine(t, nil)

	ladder := []lod.Level{
		{Rep: lod.Representation{Name: "full", TriangleCount: 1000}, MinDistance: 0},
		{Rep: lod.Representation{Name: "half", TriangleCount: 500}, MinDistance: 10},
	}
	e.LOD().Register("obj", [3]float64{0, 0, 0}, ladder)
	e.Tick(lod.Camera{Position: [3]float64{50, 0, 0}}, 16*time.Millisecond)

	if idx, _ := e.LOD().ActiveIndex("obj"); idx != 1 {
		t.Fatalf("lod index = %d, want 1", idx)
	}
	if got := e.Tier(); got != types.TierHigh {
		t.Fatalf("tier = %s, headless tick must not sample", got)
	}
}
