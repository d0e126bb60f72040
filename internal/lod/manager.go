// Package lod keeps one distance-keyed representation ladder per displayed
// object and swaps the active representation each frame to meet the triangle
// and draw-call budget of the current quality tier.
package lod

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"assetd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultDwellTime      = 500 * time.Millisecond
	defaultHysteresisBand = 0.1
	defaultTriangleBudget = 2_000_000
	defaultDrawCallBudget = 1_000
)

// Representation is one renderable fidelity step of an object. Handle is the
// renderer-owned object the engine never inspects.
type Representation struct {
	Name          string
	TriangleCount int
	DrawCalls     int
	Handle        any
}

// Level pairs a representation with the camera distance at which it becomes
// eligible. Level 0 is the highest-fidelity representation.
type Level struct {
	Rep Representation
	// MinDistance is the closest camera distance this level serves.
	MinDistance float64
}

// Camera is the per-frame view state the manager needs.
type Camera struct {
	Position [3]float64
}

// Config tunes switching behavior and authored budgets.
type Config struct {
	// DwellTime is the minimum accumulated frame time between representation
	// switches for one object.
	DwellTime time.Duration
	// HysteresisBand widens each distance threshold by this fraction in both
	// directions; inside the band no switch happens.
	HysteresisBand float64
	// TriangleBudget and DrawCallBudget are the authored (high-tier) caps.
	TriangleBudget int
	DrawCallBudget int
}

func (c Config) withDefaults() Config {
	if c.DwellTime <= 0 {
		c.DwellTime = defaultDwellTime
	}
	if c.HysteresisBand <= 0 {
		c.HysteresisBand = defaultHysteresisBand
	}
	if c.TriangleBudget <= 0 {
		c.TriangleBudget = defaultTriangleBudget
	}
	if c.DrawCallBudget <= 0 {
		c.DrawCallBudget = defaultDrawCallBudget
	}
	return c
}

type entry struct {
	id       string
	position [3]float64
	levels   []Level
	active   int
	// sinceSwitch accumulates frame delta time; switches wait for dwell.
	sinceSwitch time.Duration
	// settled is false until the first selection, which bypasses dwell.
	settled bool
}

// Manager owns every registered LOD ladder. Update is expected once per
// frame from the render loop; all other methods may be called from anywhere.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry

	cfg  Config
	tier types.QualityTier
	// tier-derived state, recomputed by SetPerformanceTarget
	triangleBudget int
	drawCallBudget int
	distanceScale  float64
	minLevel       int

	log zerolog.Logger
}

// NewManager constructs a Manager at the high tier.
func NewManager(cfg Config, log zerolog.Logger) *Manager {
	m := &Manager{
		entries: make(map[string]*entry),
		cfg:     cfg.withDefaults(),
		log:     log,
	}
	m.applyTierLocked(types.TierHigh)
	return m
}

// Register adds an object's ladder. Level distances must be strictly
// increasing and the first level must start at distance 0.
func (m *Manager) Register(id string, position [3]float64, levels []Level) error {
	if len(levels) == 0 {
		return fmt.Errorf("lod %s: at least one level required", id)
	}
	if levels[0].MinDistance != 0 {
		return fmt.Errorf("lod %s: first level must start at distance 0", id)
	}
	for i := 1; i < len(levels); i++ {
		if levels[i].MinDistance <= levels[i-1].MinDistance {
			return fmt.Errorf("lod %s: level distances must be strictly increasing (level %d)", id, i)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = &entry{id: id, position: position, levels: levels}
	return nil
}

// Unregister removes an object's ladder.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
}

// SetPosition moves a registered object.
func (m *Manager) SetPosition(id string, position [3]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.position = position
	}
}

// ActiveIndex returns the active representation index for an object.
func (m *Manager) ActiveIndex(id string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return 0, false
	}
	return e.active, true
}

// ActiveRepresentation returns the currently selected representation.
func (m *Manager) ActiveRepresentation(id string) (Representation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return Representation{}, false
	}
	return e.levels[e.active].Rep, true
}

// SetPerformanceTarget reconfigures the global budgets for a quality tier:
// high keeps the authored budgets, medium roughly halves them, low quarters
// them and scales switch distances up so objects degrade sooner.
func (m *Manager) SetPerformanceTarget(tier types.QualityTier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tier == m.tier {
		return
	}
	m.applyTierLocked(tier)
	m.log.Info().Str("tier", string(tier)).
		Int("triangle_budget", m.triangleBudget).
		Int("draw_call_budget", m.drawCallBudget).
		Msg("lod performance target changed")
}

func (m *Manager) applyTierLocked(tier types.QualityTier) {
	m.tier = tier
	switch tier {
	case types.TierHigh:
		m.triangleBudget = m.cfg.TriangleBudget
		m.drawCallBudget = m.cfg.DrawCallBudget
		m.distanceScale = 1.0
		m.minLevel = 0
	case types.TierMedium:
		m.triangleBudget = m.cfg.TriangleBudget / 2
		m.drawCallBudget = m.cfg.DrawCallBudget / 2
		m.distanceScale = 1.0
		m.minLevel = 0
	default: // low
		m.triangleBudget = m.cfg.TriangleBudget / 4
		m.drawCallBudget = m.cfg.DrawCallBudget / 4
		m.distanceScale = 1.5
		m.minLevel = 1
	}
	trianglesBudgetGauge.Set(float64(m.triangleBudget))
}

// Update advances every ladder for this frame: per-object distance selection
// with dwell and hysteresis, then a global demotion pass that walks the
// heaviest objects down their ladders until the tier budget is met. The
// whole update is applied atomically under the manager lock; a renderer
// reading selections sees either the previous frame or this one, never a mix.
func (m *Manager) Update(cam Camera, dt time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		e.sinceSwitch += dt
		m.selectLocked(e, m.scaledDistance(cam, e))
	}
	m.enforceBudgetLocked()
	trianglesActiveGauge.Set(float64(m.totalTrianglesLocked()))
}

func (m *Manager) scaledDistance(cam Camera, e *entry) float64 {
	dx := cam.Position[0] - e.position[0]
	dy := cam.Position[1] - e.position[1]
	dz := cam.Position[2] - e.position[2]
	return math.Sqrt(dx*dx+dy*dy+dz*dz) * m.distanceScale
}

// selectLocked picks the largest level whose MinDistance <= distance,
// clamped to the tier's minimum level, honoring dwell and the hysteresis
// band around the crossed threshold.
func (m *Manager) selectLocked(e *entry, distance float64) {
	candidate := 0
	for i := range e.levels {
		if e.levels[i].MinDistance <= distance {
			candidate = i
		}
	}
	if candidate < m.minLevel && m.minLevel < len(e.levels) {
		candidate = m.minLevel
	}

	if !e.settled {
		e.active = candidate
		e.settled = true
		e.sinceSwitch = 0
		return
	}
	if candidate == e.active {
		return
	}
	if e.sinceSwitch < m.cfg.DwellTime {
		return
	}
	// The threshold being crossed is the MinDistance of the higher level.
	hi := candidate
	if e.active > hi {
		hi = e.active
	}
	threshold := e.levels[hi].MinDistance
	if threshold > 0 {
		band := threshold * m.cfg.HysteresisBand
		if distance > threshold-band && distance < threshold+band {
			return
		}
	}
	switchesTotal.Inc()
	e.active = candidate
	e.sinceSwitch = 0
}

// enforceBudgetLocked demotes the heaviest entries one level at a time until
// the active set fits the triangle and draw-call budgets or no demotion is
// possible. Demotions are budget-driven, not distance-driven, so they skip
// dwell/hysteresis.
func (m *Manager) enforceBudgetLocked() {
	for {
		tris := m.totalTrianglesLocked()
		draws := m.totalDrawCallsLocked()
		if tris <= m.triangleBudget && draws <= m.drawCallBudget {
			return
		}
		demotable := make([]*entry, 0, len(m.entries))
		for _, e := range m.entries {
			if e.active < len(e.levels)-1 {
				demotable = append(demotable, e)
			}
		}
		if len(demotable) == 0 {
			return
		}
		sort.Slice(demotable, func(i, j int) bool {
			return demotable[i].levels[demotable[i].active].Rep.TriangleCount >
				demotable[j].levels[demotable[j].active].Rep.TriangleCount
		})
		demotable[0].active++
	}
}

func (m *Manager) totalTrianglesLocked() int {
	total := 0
	for _, e := range m.entries {
		total += e.levels[e.active].Rep.TriangleCount
	}
	return total
}

func (m *Manager) totalDrawCallsLocked() int {
	total := 0
	for _, e := range m.entries {
		total += e.levels[e.active].Rep.DrawCalls
	}
	return total
}
