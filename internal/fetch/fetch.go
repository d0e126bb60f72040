// Package fetch is the resilient network layer of the asset engine: every
// byte the engine pulls over the wire goes through Client.Fetch, which wraps
// plain HTTP with exponential-backoff retry, per-endpoint circuit breaking,
// and online/offline awareness.
package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Options fields are unset.
const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 300 * time.Millisecond
	defaultCapDelay    = 5 * time.Second
)

// Options tune one Fetch call.
type Options struct {
	// MaxAttempts is the total number of underlying calls (first try included).
	MaxAttempts int
	// BaseDelay seeds the exponential backoff: attempt k waits
	// min(BaseDelay * 2^(k-1), CapDelay).
	BaseDelay time.Duration
	CapDelay  time.Duration
	// RetryCondition decides whether a failure is worth retrying.
	// Defaults to DefaultRetryCondition.
	RetryCondition func(error) bool
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = defaultBaseDelay
	}
	if o.CapDelay <= 0 {
		o.CapDelay = defaultCapDelay
	}
	if o.RetryCondition == nil {
		o.RetryCondition = DefaultRetryCondition
	}
	return o
}

// DefaultRetryCondition retries transport-level failures and 5xx/429/408
// statuses. Other client errors, offline fast-fails, and open breakers are
// terminal.
func DefaultRetryCondition(err error) bool {
	if IsCircuitOpen(err) || IsOffline(err) {
		return false
	}
	var ne *NetworkError
	if !errors.As(err, &ne) {
		return false
	}
	if ne.Status == 0 {
		return true // transport error or timeout
	}
	if ne.Status >= 500 {
		return true
	}
	return ne.Status == http.StatusTooManyRequests || ne.Status == http.StatusRequestTimeout
}

// Client fetches URLs with retry, breaker, and offline protection.
type Client struct {
	http     *http.Client
	breakers *BreakerSet
	monitor  *Monitor
	log      zerolog.Logger
}

// NewClient wires a Client from its collaborators. A nil http.Client gets a
// 30s-timeout default.
func NewClient(hc *http.Client, breakers *BreakerSet, monitor *Monitor, log zerolog.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{http: hc, breakers: breakers, monitor: monitor, log: log}
}

// Breakers exposes the breaker set for status reporting.
func (c *Client) Breakers() *BreakerSet { return c.breakers }

// Monitor exposes the network monitor.
func (c *Client) Monitor() *Monitor { return c.monitor }

// Endpoint reduces a URL to its breaker key (scheme://host). Falls back to
// the raw string when the URL does not parse.
func Endpoint(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}

// Fetch GETs rawURL and returns the body. Retryable failures back off
// exponentially up to MaxAttempts; context cancellation is immediately
// terminal and never retried.
func (c *Client) Fetch(ctx context.Context, rawURL string, opts Options) ([]byte, error) {
	opts = opts.withDefaults()
	endpoint := Endpoint(rawURL)

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if !c.monitor.Online() {
			return nil, &NetworkError{URL: rawURL, Offline: true}
		}
		if err := c.breakers.Allow(endpoint); err != nil {
			return nil, err
		}

		data, err := c.do(ctx, rawURL)
		c.breakers.Record(endpoint, err == nil)
		if err == nil {
			attemptsTotal.WithLabelValues("success").Inc()
			return data, nil
		}
		attemptsTotal.WithLabelValues("failure").Inc()
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !opts.RetryCondition(err) || attempt == opts.MaxAttempts {
			return nil, err
		}

		delay := backoffDelay(opts.BaseDelay, opts.CapDelay, attempt)
		retriesTotal.Inc()
		c.log.Debug().Str("url", rawURL).Int("attempt", attempt).
			Dur("delay", delay).Err(err).Msg("fetch retry")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func backoffDelay(base, cap time.Duration, attempt int) time.Duration {
	d := base << uint(attempt-1)
	if d > cap || d <= 0 {
		return cap
	}
	return d
}

func (c *Client) do(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return nil, &NetworkError{URL: rawURL, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	return body, nil
}
