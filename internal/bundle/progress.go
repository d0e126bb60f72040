package bundle

import (
	"time"

	"assetd/pkg/types"
)

// Subscribe registers a progress callback for one bundle id and returns an
// unsubscribe func. A caller loading several bundles concurrently subscribes
// once per bundle and distinguishes streams by the BundleID on each tick.
// Ticks for a given bundle arrive in non-decreasing Loaded order.
func (m *Manager) Subscribe(bundleID string, fn func(types.LoadingProgress)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs[bundleID] == nil {
		m.subs[bundleID] = make(map[int]func(types.LoadingProgress))
	}
	id := m.nextSubID
	m.nextSubID++
	m.subs[bundleID][id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[bundleID], id)
		if len(m.subs[bundleID]) == 0 {
			delete(m.subs, bundleID)
		}
	}
}

func (m *Manager) emit(p types.LoadingProgress) {
	m.mu.Lock()
	fns := make([]func(types.LoadingProgress), 0, len(m.subs[p.BundleID]))
	for _, fn := range m.subs[p.BundleID] {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}

func (m *Manager) progressLocked(s *session) types.LoadingProgress {
	return types.LoadingProgress{
		BundleID:     s.bundle.ID,
		SessionID:    s.id,
		Loaded:       s.loaded,
		Total:        s.total,
		CurrentAsset: s.current,
		ETA:          m.eta(s.loaded, s.total, time.Since(s.startedAt)),
	}
}

// eta extrapolates remaining time from the loaded/total ratio. Zero loaded
// means no rate information yet, so the ceiling is reported; the result is
// always clamped to the configured ceiling.
func (m *Manager) eta(loaded, total int, elapsed time.Duration) time.Duration {
	if total <= 0 || loaded >= total {
		return 0
	}
	if loaded == 0 {
		return m.cfg.ETACeiling
	}
	eta := time.Duration(float64(elapsed) * float64(total-loaded) / float64(loaded))
	if eta > m.cfg.ETACeiling {
		return m.cfg.ETACeiling
	}
	return eta
}
