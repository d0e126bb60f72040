package fetch

import (
	"sync"
	"time"
)

// BreakerState is the lifecycle state of one endpoint's circuit breaker.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// Defaults applied when corresponding BreakerConfig fields are unset.
const (
	defaultFailureThreshold = 5
	defaultFailureWindow    = 30 * time.Second
	defaultCooldown         = 10 * time.Second
)

// BreakerConfig tunes the per-endpoint circuit breakers.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the breaker.
	FailureThreshold int
	// FailureWindow bounds how old the failure streak may be; a streak whose
	// first failure is older than the window restarts the count.
	FailureWindow time.Duration
	// Cooldown is how long an open breaker blocks calls before allowing one
	// half-open probe.
	Cooldown time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.FailureWindow <= 0 {
		c.FailureWindow = defaultFailureWindow
	}
	if c.Cooldown <= 0 {
		c.Cooldown = defaultCooldown
	}
	return c
}

// breaker tracks one endpoint. closed -> open after FailureThreshold
// consecutive failures within FailureWindow; open -> half-open after
// Cooldown (a single probe is allowed through); half-open -> closed on one
// success, back to open on one failure.
type breaker struct {
	state      BreakerState
	failures   int
	firstFail  time.Time
	openedAt   time.Time
	probing    bool
	cfg        BreakerConfig
	now        func() time.Time
}

func newBreaker(cfg BreakerConfig, now func() time.Time) *breaker {
	return &breaker{state: BreakerClosed, cfg: cfg, now: now}
}

// allow decides whether a call may proceed. Returns the remaining cooldown
// when the breaker is open.
func (b *breaker) allow() (bool, time.Duration) {
	switch b.state {
	case BreakerClosed:
		return true, 0
	case BreakerOpen:
		elapsed := b.now().Sub(b.openedAt)
		if elapsed < b.cfg.Cooldown {
			return false, b.cfg.Cooldown - elapsed
		}
		b.state = BreakerHalfOpen
		b.probing = true
		return true, 0
	default: // half-open
		if b.probing {
			// A probe is already in flight; fail fast.
			return false, b.cfg.Cooldown
		}
		b.probing = true
		return true, 0
	}
}

func (b *breaker) onSuccess() {
	b.state = BreakerClosed
	b.failures = 0
	b.probing = false
}

func (b *breaker) onFailure() {
	now := b.now()
	if b.state == BreakerHalfOpen {
		b.open(now)
		return
	}
	if b.failures == 0 || now.Sub(b.firstFail) > b.cfg.FailureWindow {
		b.failures = 0
		b.firstFail = now
	}
	b.failures++
	if b.failures >= b.cfg.FailureThreshold {
		b.open(now)
	}
}

func (b *breaker) open(now time.Time) {
	b.state = BreakerOpen
	b.openedAt = now
	b.probing = false
}

// BreakerSet holds one breaker per endpoint (scheme+host).
type BreakerSet struct {
	mu       sync.Mutex
	breakers map[string]*breaker
	cfg      BreakerConfig
	now      func() time.Time
}

// NewBreakerSet constructs a BreakerSet with the given config.
func NewBreakerSet(cfg BreakerConfig) *BreakerSet {
	return &BreakerSet{
		breakers: make(map[string]*breaker),
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

func (s *BreakerSet) get(endpoint string) *breaker {
	b, ok := s.breakers[endpoint]
	if !ok {
		b = newBreaker(s.cfg, func() time.Time { return s.now() })
		s.breakers[endpoint] = b
	}
	return b
}

// Allow returns nil if a call to endpoint may proceed, else a CircuitOpenError.
func (s *BreakerSet) Allow(endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, retryAfter := s.get(endpoint).allow()
	if !ok {
		breakerOpenTotal.WithLabelValues(endpoint).Inc()
		return &CircuitOpenError{Endpoint: endpoint, RetryAfter: retryAfter}
	}
	return nil
}

// Record reports the outcome of a call admitted by Allow.
func (s *BreakerSet) Record(endpoint string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.get(endpoint)
	if success {
		b.onSuccess()
	} else {
		b.onFailure()
	}
	breakerStateGauge.WithLabelValues(endpoint).Set(breakerStateValue(b.state))
}

// Snapshot returns the current state of every tracked endpoint.
func (s *BreakerSet) Snapshot() map[string]BreakerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]BreakerInfo, len(s.breakers))
	for ep, b := range s.breakers {
		out[ep] = BreakerInfo{State: b.state, Failures: b.failures}
	}
	return out
}

// BreakerInfo is a read-only projection of one breaker.
type BreakerInfo struct {
	State    BreakerState
	Failures int
}

func breakerStateValue(s BreakerState) float64 {
	switch s {
	case BreakerClosed:
		return 0
	case BreakerHalfOpen:
		return 1
	default:
		return 2
	}
}
