package fetch

import "sync"

// Monitor tracks online/offline transitions reported by the platform
// boundary. The engine never probes connectivity itself; the embedding
// application pushes transitions via SetOnline.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(online bool)
	nextID int
}

// NewMonitor constructs a Monitor that starts online.
func NewMonitor() *Monitor {
	return &Monitor{online: true, subs: make(map[int]func(bool))}
}

// Online reports the last known connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records a connectivity transition and notifies subscribers.
// Redundant calls (same state) are ignored.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()
	// Notify outside the lock so subscribers may call back into the monitor.
	for _, fn := range subs {
		fn(online)
	}
}

// Subscribe registers a transition callback and returns an unsubscribe func.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}
