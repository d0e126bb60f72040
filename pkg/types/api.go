package types

// ErrorResponse is the JSON error envelope returned by the HTTP API.
type ErrorResponse struct {
	// Human-readable message.
	// example: bundle not found: gallery
	Error string `json:"error" example:"bundle not found: gallery"`
	// HTTP status code echoed in the body.
	// example: 404
	Code int `json:"code" example:"404"`
}

// SessionStatus describes one bundle load session for /sessions/{id}.
type SessionStatus struct {
	SessionID string `json:"session_id"`
	BundleID  string `json:"bundle_id"`
	// State is one of: loading, suspended, done, failed, cancelled.
	State    string          `json:"state"`
	Progress LoadingProgress `json:"progress"`
	Error    string          `json:"error,omitempty"`
}

// CacheStatus summarizes the loaded-asset cache.
type CacheStatus struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// BreakerStatus reports one endpoint's circuit breaker state.
type BreakerStatus struct {
	Endpoint string `json:"endpoint"`
	// State is one of: closed, open, half-open.
	State    string `json:"state"`
	Failures int    `json:"failures"`
}

// StatusResponse is the detailed engine status for /status.
type StatusResponse struct {
	Tier        QualityTier     `json:"tier"`
	ContextLost bool            `json:"context_lost"`
	Online      bool            `json:"online"`
	Cache       CacheStatus     `json:"cache"`
	Sessions    []SessionStatus `json:"sessions"`
	Breakers    []BreakerStatus `json:"breakers,omitempty"`
	// UptimeSec since engine construction.
	UptimeSec int64 `json:"uptime_sec"`
}

// LoadResponse acknowledges a bundle load request.
type LoadResponse struct {
	SessionID string `json:"session_id"`
	BundleID  string `json:"bundle_id"`
}
