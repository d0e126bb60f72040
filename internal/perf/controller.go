// Package perf turns a stream of frame statistics into a quality tier. The
// controller keeps a bounded sample history, classifies it at a fixed frame
// interval, and only changes tier after consecutive windows agree, so a
// single slow frame never triggers a downgrade.
package perf

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"assetd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultRingSize         = 60
	defaultCheckInterval    = 30
	defaultSustainedWindows = 2
	defaultCleanupPressure  = 0.75
)

// Thresholds classify an evaluation window into a tier. FPS thresholds are
// device-class dependent; mobile GPUs run cooler targets.
type Thresholds struct {
	HighFPS   float64
	MediumFPS float64
	// JitterCeiling is the maximum mean frame-time standard deviation (ms)
	// tolerated at the high tier.
	JitterCeiling float64
	// HighMemory and MediumMemory are memory-pressure ceilings (0..1).
	HighMemory   float64
	MediumMemory float64
}

// DefaultThresholds returns the classification thresholds for a device class.
func DefaultThresholds(mobile bool) Thresholds {
	if mobile {
		return Thresholds{
			HighFPS:       30,
			MediumFPS:     25,
			JitterCeiling: 12,
			HighMemory:    0.70,
			MediumMemory:  0.85,
		}
	}
	return Thresholds{
		HighFPS:       50,
		MediumFPS:     30,
		JitterCeiling: 8,
		HighMemory:    0.70,
		MediumMemory:  0.85,
	}
}

// Config tunes the controller.
type Config struct {
	// RingSize is the sample history capacity.
	RingSize int
	// CheckInterval is how many samples elapse between evaluations.
	CheckInterval int
	// SustainedWindows is how many consecutive evaluations must agree on a
	// new tier before the controller switches to it.
	SustainedWindows int
	// CleanupPressure is the memory-pressure level at which the cleanup hook
	// fires, below the medium ceiling so resources are released before a
	// pressure-driven downgrade.
	CleanupPressure float64
	Thresholds      Thresholds
}

func (c Config) withDefaults() Config {
	if c.RingSize <= 0 {
		c.RingSize = defaultRingSize
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}
	if c.SustainedWindows <= 0 {
		c.SustainedWindows = defaultSustainedWindows
	}
	if c.CleanupPressure <= 0 {
		c.CleanupPressure = defaultCleanupPressure
	}
	zero := Thresholds{}
	if c.Thresholds == zero {
		c.Thresholds = DefaultThresholds(false)
	}
	return c
}

// TierChange is delivered to subscribers exactly once per tier transition,
// carrying the window averages that justified it.
type TierChange struct {
	From           types.QualityTier
	To             types.QualityTier
	AvgFPS         float64
	AvgJitter      float64
	MemoryPressure float64
	ContextLost    bool
	At             time.Time
}

// Controller is the performance feedback loop. Sample is expected once per
// frame from the render loop; everything else may be called from anywhere.
type Controller struct {
	mu      sync.Mutex
	ring    *ring
	tier    types.QualityTier
	frames  int
	pending types.QualityTier
	agreed  int

	contextLost bool
	// recovering caps upward transitions to one tier step after a context
	// restore, so the renderer is not slammed back to full quality at once.
	recovering bool

	cleanup      func()
	cleanupFired bool

	subs   map[int]func(TierChange)
	nextID int

	cfg Config
	log zerolog.Logger
}

// NewController constructs a Controller starting at the high tier.
func NewController(cfg Config, log zerolog.Logger) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{
		ring: newRing(cfg.RingSize),
		tier: types.TierHigh,
		subs: make(map[int]func(TierChange)),
		cfg:  cfg,
		log:  log,
	}
	tierGauge.Set(tierValue(c.tier))
	return c
}

// Tier returns the current quality tier.
func (c *Controller) Tier() types.QualityTier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tier
}

// ContextLost reports whether the GPU context is currently lost.
func (c *Controller) ContextLost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contextLost
}

// Subscribe registers a tier-change callback and returns an unsubscribe
// function. Callbacks run synchronously on the sampling goroutine.
func (c *Controller) Subscribe(fn func(TierChange)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// SetCleanupHook installs the function invoked when memory pressure crosses
// the cleanup threshold. The hook fires once per excursion and re-arms when
// pressure drops back below the threshold.
func (c *Controller) SetCleanupHook(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanup = fn
}

// Sample records one frame's statistics and, every CheckInterval samples,
// re-evaluates the tier. While the context is lost samples are dropped: the
// renderer is not producing meaningful frames.
func (c *Controller) Sample(s types.PerformanceSample) {
	c.mu.Lock()
	if c.contextLost {
		c.mu.Unlock()
		return
	}
	c.ring.push(s)
	fpsGauge.Set(s.FPS)
	memoryPressureGauge.Set(s.MemoryPressure)
	c.frames++
	if c.frames < c.cfg.CheckInterval {
		c.mu.Unlock()
		return
	}
	c.frames = 0
	change, fns, cleanup := c.evaluateLocked(s.At)
	c.mu.Unlock()
	if cleanup != nil {
		cleanup()
	}
	for _, fn := range fns {
		fn(change)
	}
}

// OnContextLost forces the low tier immediately and marks the context lost.
// Further samples are ignored until OnContextRestored.
func (c *Controller) OnContextLost() {
	c.mu.Lock()
	if c.contextLost {
		c.mu.Unlock()
		return
	}
	c.contextLost = true
	contextLossTotal.Inc()
	var change TierChange
	var fns []func(TierChange)
	if c.tier != types.TierLow {
		change, fns = c.transitionLocked(types.TierLow, windowStats{}, time.Now(), true)
	}
	c.log.Warn().Msg("gpu context lost, forcing low tier")
	c.mu.Unlock()
	for _, fn := range fns {
		fn(change)
	}
}

// OnContextRestored clears the lost flag and discards the sample history.
// The tier stays low and climbs back one step per sustained good window.
func (c *Controller) OnContextRestored() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.contextLost {
		return
	}
	c.contextLost = false
	c.recovering = true
	c.ring.reset()
	c.frames = 0
	c.pending = ""
	c.agreed = 0
	c.log.Info().Msg("gpu context restored, stepping quality back up")
}

type windowStats struct {
	fps      float64
	jitter   float64
	pressure float64
}

func (c *Controller) windowLocked() windowStats {
	samples := c.ring.values()
	if len(samples) == 0 {
		return windowStats{}
	}
	var w windowStats
	for _, s := range samples {
		w.fps += s.FPS
		w.jitter += s.FrameTimeStdDev
		w.pressure += s.MemoryPressure
	}
	n := float64(len(samples))
	w.fps /= n
	w.jitter /= n
	w.pressure /= n
	return w
}

func (c *Controller) classify(w windowStats) types.QualityTier {
	t := c.cfg.Thresholds
	switch {
	case w.fps >= t.HighFPS && w.jitter <= t.JitterCeiling && w.pressure < t.HighMemory:
		return types.TierHigh
	case w.fps >= t.MediumFPS && w.pressure < t.MediumMemory:
		return types.TierMedium
	default:
		return types.TierLow
	}
}

// evaluateLocked classifies the current window and applies the hysteresis
// rule: a new tier must win SustainedWindows consecutive evaluations. The
// returned cleanup hook and subscriber callbacks must be invoked by the
// caller after releasing the lock.
func (c *Controller) evaluateLocked(at time.Time) (TierChange, []func(TierChange), func()) {
	w := c.windowLocked()

	var cleanup func()
	if c.cleanup != nil {
		if w.pressure >= c.cfg.CleanupPressure && !c.cleanupFired {
			c.cleanupFired = true
			c.log.Info().Float64("pressure", w.pressure).Msg("memory pressure cleanup")
			cleanup = c.cleanup
		} else if w.pressure < c.cfg.CleanupPressure {
			c.cleanupFired = false
		}
	}

	target := c.classify(w)
	if target == c.tier {
		c.pending = ""
		c.agreed = 0
		if c.tier == types.TierHigh {
			c.recovering = false
		}
		return TierChange{}, nil, cleanup
	}
	if target != c.pending {
		c.pending = target
		c.agreed = 1
	} else {
		c.agreed++
	}
	if c.agreed < c.cfg.SustainedWindows {
		return TierChange{}, nil, cleanup
	}
	c.pending = ""
	c.agreed = 0
	if c.recovering && c.tier.Below(target) {
		// Upward move during recovery: one step at a time.
		target = stepUp(c.tier)
	}
	change, fns := c.transitionLocked(target, w, at, false)
	return change, fns, cleanup
}

func (c *Controller) transitionLocked(to types.QualityTier, w windowStats, at time.Time, lost bool) (TierChange, []func(TierChange)) {
	from := c.tier
	c.tier = to
	tierGauge.Set(tierValue(to))
	transitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	c.log.Info().
		Str("from", string(from)).
		Str("to", string(to)).
		Float64("avg_fps", w.fps).
		Float64("avg_jitter_ms", w.jitter).
		Float64("memory_pressure", w.pressure).
		Bool("context_lost", lost).
		Msg("quality tier changed")
	change := TierChange{
		From:           from,
		To:             to,
		AvgFPS:         w.fps,
		AvgJitter:      w.jitter,
		MemoryPressure: w.pressure,
		ContextLost:    lost,
		At:             at,
	}
	fns := make([]func(TierChange), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	return change, fns
}

func stepUp(t types.QualityTier) types.QualityTier {
	switch t {
	case types.TierLow:
		return types.TierMedium
	default:
		return types.TierHigh
	}
}

func tierValue(t types.QualityTier) float64 {
	switch t {
	case types.TierHigh:
		return 2
	case types.TierMedium:
		return 1
	default:
		return 0
	}
}
