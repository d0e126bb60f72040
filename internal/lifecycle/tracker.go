// Package lifecycle tracks disposable engine resources so memory-pressure
// events and shutdown can release everything without each subsystem knowing
// about the others.
package lifecycle

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Releaser frees one tracked resource. It must be safe to call once;
// the tracker never calls a releaser twice.
type Releaser func() error

type resource struct {
	id      string
	seq     uint64
	release Releaser
}

// Tracker is a registry of live resources. Registration order is remembered
// so ReleaseAll tears down in reverse order, newest first.
type Tracker struct {
	mu        sync.Mutex
	resources map[uint64]resource
	nextSeq   uint64
	log       zerolog.Logger
}

// NewTracker constructs an empty Tracker.
func NewTracker(log zerolog.Logger) *Tracker {
	return &Tracker{
		resources: make(map[uint64]resource),
		log:       log,
	}
}

// Register tracks a resource and returns a function that releases it and
// removes it from the tracker. The returned function is idempotent.
func (t *Tracker) Register(id string, release Releaser) func() {
	t.mu.Lock()
	seq := t.nextSeq
	t.nextSeq++
	t.resources[seq] = resource{id: id, seq: seq, release: release}
	resourcesGauge.Set(float64(len(t.resources)))
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			r, ok := t.resources[seq]
			if ok {
				delete(t.resources, seq)
				resourcesGauge.Set(float64(len(t.resources)))
			}
			t.mu.Unlock()
			if ok {
				t.releaseOne(r)
			}
		})
	}
}

// Count returns the number of tracked resources.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.resources)
}

// ReleaseAll releases every tracked resource, newest first. Individual
// failures are logged and counted but never stop the sweep; the tracker is
// empty when it returns.
func (t *Tracker) ReleaseAll() {
	t.mu.Lock()
	all := make([]resource, 0, len(t.resources))
	for _, r := range t.resources {
		all = append(all, r)
	}
	t.resources = make(map[uint64]resource)
	resourcesGauge.Set(0)
	t.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].seq > all[j].seq })
	for _, r := range all {
		t.releaseOne(r)
	}
}

func (t *Tracker) releaseOne(r resource) {
	if r.release == nil {
		return
	}
	if err := r.release(); err != nil {
		releaseFailuresTotal.Inc()
		t.log.Warn().Err(err).Str("resource", r.id).Msg("resource release failed")
		return
	}
	releasesTotal.Inc()
}
