package perf

import "assetd/pkg/types"

// ring is a fixed-capacity sample buffer; the oldest sample is evicted on
// overflow.
type ring struct {
	buf   []types.PerformanceSample
	head  int
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]types.PerformanceSample, capacity)}
}

func (r *ring) push(s types.PerformanceSample) {
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *ring) len() int { return r.count }

// values returns the samples oldest-first.
func (r *ring) values() []types.PerformanceSample {
	out := make([]types.PerformanceSample, 0, r.count)
	start := r.head - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

func (r *ring) reset() {
	r.head = 0
	r.count = 0
}
