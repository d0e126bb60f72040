// Package bundle orchestrates loading of named, prioritized asset groups:
// fan-out to the loaders with bounded parallelism, per-bundle progress with
// ETA, eager preloading of critical assets, and suspend/resume across
// offline windows.
package bundle

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"assetd/internal/fetch"
	"assetd/internal/loader"
	"assetd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultParallelism = 3
	defaultETACeiling  = 5 * time.Minute
)

// Config tunes the bundle manager.
type Config struct {
	// Parallelism caps concurrent in-flight asset loads per bundle.
	Parallelism int
	// ETACeiling clamps estimated-time-remaining reports.
	ETACeiling time.Duration
}

func (c Config) withDefaults() Config {
	if c.Parallelism <= 0 {
		c.Parallelism = defaultParallelism
	}
	if c.ETACeiling <= 0 {
		c.ETACeiling = defaultETACeiling
	}
	return c
}

// Result is the decoded output of a completed bundle load, keyed by asset id.
type Result struct {
	Models   map[string]*loader.LoadedAsset
	Textures map[string]*loader.LoadedAsset
}

// Session lifecycle states.
const (
	StateLoading   = "loading"
	StateSuspended = "suspended"
	StateDone      = "done"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

type session struct {
	id     string
	bundle types.AssetBundle
	state  string
	loaded int
	total  int
	// current is the asset most recently dispatched or completed.
	current   string
	startedAt time.Time
	errMsg    string
	cancel    context.CancelFunc
}

// Manager runs bundle load sessions against the shared loader.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*session
	suspended map[string]*session // resumable sessions by bundle id
	subs      map[string]map[int]func(types.LoadingProgress)
	nextSubID int
	closed    bool

	loader   *loader.Loader
	cfg      Config
	log      zerolog.Logger
	unsubNet func()
}

// NewManager wires a Manager and arms offline/online handling: an online
// transition resumes any bundle left suspended by an offline one.
func NewManager(ld *loader.Loader, monitor *fetch.Monitor, cfg Config, log zerolog.Logger) *Manager {
	m := &Manager{
		sessions:  make(map[string]*session),
		suspended: make(map[string]*session),
		subs:      make(map[string]map[int]func(types.LoadingProgress)),
		loader:    ld,
		cfg:       cfg.withDefaults(),
		log:       log,
	}
	if monitor != nil {
		m.unsubNet = monitor.Subscribe(func(online bool) {
			if online {
				m.resumeSuspended()
			}
		})
	}
	return m
}

// Load runs a bundle load to completion. All-or-nothing: if any asset
// exhausts its retries the whole bundle fails with a BundleLoadError, but
// assets that already succeeded stay cached for a later retry. Going offline
// suspends the session instead (see IsSuspended); cancelling ctx aborts
// outstanding fetches and leaves cached assets intact.
func (m *Manager) Load(ctx context.Context, b types.AssetBundle) (*Result, error) {
	s := m.newSession(b)
	return m.run(ctx, s)
}

// Start launches a bundle load in the background and returns its session id.
func (m *Manager) Start(b types.AssetBundle) string {
	s := m.newSession(b)
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	s.cancel = cancel
	m.mu.Unlock()
	go func() {
		defer cancel()
		if _, err := m.run(ctx, s); err != nil {
			m.log.Warn().Str("bundle", b.ID).Str("session", s.id).Err(err).Msg("background bundle load ended")
		}
	}()
	return s.id
}

// Cancel aborts a running session. Cached assets are kept.
func (m *Manager) Cancel(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	var cancel context.CancelFunc
	if ok {
		cancel = s.cancel
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound(sessionID)
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

// Session returns a status projection for one session.
func (m *Manager) Session(sessionID string) (types.SessionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return types.SessionStatus{}, ErrSessionNotFound(sessionID)
	}
	return m.statusLocked(s), nil
}

// Sessions returns status projections for every known session.
func (m *Manager) Sessions() []types.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.SessionStatus, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, m.statusLocked(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Close cancels running sessions and detaches from the network monitor.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	cancels := make([]context.CancelFunc, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.cancel != nil {
			cancels = append(cancels, s.cancel)
		}
	}
	unsub := m.unsubNet
	m.mu.Unlock()
	for _, c := range cancels {
		c()
	}
	if unsub != nil {
		unsub()
	}
}

func (m *Manager) newSession(b types.AssetBundle) *session {
	s := &session{
		id:        uuid.NewString(),
		bundle:    b,
		state:     StateLoading,
		total:     b.Size(),
		startedAt: time.Now(),
	}
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	activeSessionsGauge.Inc()
	return s
}

// orderAssets flattens the bundle into load order: preload-flagged assets
// first, then by priority tier, stable within a tier.
func orderAssets(b types.AssetBundle) []types.AssetDescriptor {
	out := make([]types.AssetDescriptor, 0, b.Size())
	for _, d := range b.Models {
		if d.Kind == "" {
			d.Kind = types.KindModel
		}
		out = append(out, d)
	}
	for _, d := range b.Textures {
		if d.Kind == "" {
			d.Kind = types.KindTexture
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Preload != out[j].Preload {
			return out[i].Preload
		}
		return out[i].Priority.Rank() < out[j].Priority.Rank()
	})
	return out
}

func (m *Manager) run(ctx context.Context, s *session) (*Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	assets := orderAssets(s.bundle)
	res := &Result{
		Models:   make(map[string]*loader.LoadedAsset),
		Textures: make(map[string]*loader.LoadedAsset),
	}

	var (
		orderMu   sync.Mutex // serializes completions so progress never regresses
		wg        sync.WaitGroup
		failures  = make(map[string]error)
		wentOff   bool
	)
	sem := make(chan struct{}, m.cfg.Parallelism)

	for _, d := range assets {
		if runCtx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(d types.AssetDescriptor) {
			defer wg.Done()
			defer func() { <-sem }()

			a, err := m.loader.Load(runCtx, d)

			orderMu.Lock()
			defer orderMu.Unlock()
			if err != nil {
				if fetch.IsOffline(err) {
					wentOff = true
				} else if err != context.Canceled && err != context.DeadlineExceeded {
					failures[d.ID] = err
				}
				cancel()
				return
			}
			if d.Kind == types.KindTexture {
				res.Textures[d.ID] = a
			} else {
				res.Models[d.ID] = a
			}
			assetsLoadedTotal.Inc()

			m.mu.Lock()
			s.loaded++
			s.current = d.ID
			progress := m.progressLocked(s)
			m.mu.Unlock()
			m.emit(progress)
		}(d)
	}
	wg.Wait()

	return m.finish(ctx, s, res, failures, wentOff)
}

func (m *Manager) finish(ctx context.Context, s *session, res *Result, failures map[string]error, wentOff bool) (*Result, error) {
	m.mu.Lock()
	progress := m.progressLocked(s)

	switch {
	case wentOff:
		s.state = StateSuspended
		s.errMsg = "network offline"
		m.suspended[s.bundle.ID] = s
		m.mu.Unlock()
		activeSessionsGauge.Dec()
		loadsTotal.WithLabelValues(StateSuspended).Inc()
		m.log.Info().Str("bundle", s.bundle.ID).Str("session", s.id).
			Int("loaded", s.loaded).Int("total", s.total).Msg("bundle load suspended; will resume when online")
		return nil, ErrSuspended(s.bundle.ID)

	case ctx.Err() != nil:
		s.state = StateCancelled
		s.errMsg = ctx.Err().Error()
		m.mu.Unlock()
		activeSessionsGauge.Dec()
		loadsTotal.WithLabelValues(StateCancelled).Inc()
		return nil, ctx.Err()

	case len(failures) > 0:
		s.state = StateFailed
		err := &BundleLoadError{BundleID: s.bundle.ID, Progress: progress, Failures: failures}
		s.errMsg = err.Error()
		m.mu.Unlock()
		activeSessionsGauge.Dec()
		loadsTotal.WithLabelValues(StateFailed).Inc()
		return nil, err

	default:
		s.state = StateDone
		delete(m.suspended, s.bundle.ID)
		m.mu.Unlock()
		activeSessionsGauge.Dec()
		loadsTotal.WithLabelValues(StateDone).Inc()
		m.log.Info().Str("bundle", s.bundle.ID).Str("session", s.id).
			Int("assets", s.total).Dur("took", time.Since(s.startedAt)).Msg("bundle loaded")
		return res, nil
	}
}

// resumeSuspended re-arms every bundle left suspended by an offline window.
// Already-cached assets complete from the cache without refetching.
func (m *Manager) resumeSuspended() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	toResume := make([]*session, 0, len(m.suspended))
	for id, s := range m.suspended {
		delete(m.suspended, id)
		toResume = append(toResume, s)
	}
	m.mu.Unlock()

	for _, old := range toResume {
		s := old // reuse the session so the bundle id keeps its history
		ctx, cancel := context.WithCancel(context.Background())
		m.mu.Lock()
		s.state = StateLoading
		s.errMsg = ""
		s.loaded = 0
		s.startedAt = time.Now()
		s.cancel = cancel
		m.mu.Unlock()
		activeSessionsGauge.Inc()
		m.log.Info().Str("bundle", s.bundle.ID).Str("session", s.id).Msg("resuming bundle load")
		go func() {
			defer cancel()
			if _, err := m.run(ctx, s); err != nil {
				m.log.Warn().Str("bundle", s.bundle.ID).Err(err).Msg("bundle resume ended")
			}
		}()
	}
}

func (m *Manager) statusLocked(s *session) types.SessionStatus {
	return types.SessionStatus{
		SessionID: s.id,
		BundleID:  s.bundle.ID,
		State:     s.state,
		Progress:  m.progressLocked(s),
		Error:     s.errMsg,
	}
}
