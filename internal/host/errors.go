package host

import "errors"

var (
	// ErrUnsupportedURL is returned when no registered client recognizes a URL.
	ErrUnsupportedURL = errors.New("host: no client can handle this url")
	// ErrCircuitOpen is returned when the circuit breaker is rejecting direct
	// API calls; callers should fall back to the web-session flow instead of
	// waiting.
	ErrCircuitOpen = errors.New("host: circuit breaker open")
	// ErrRateLimited is returned when a login attempt arrives before the
	// backoff window for the current failure streak has elapsed.
	ErrRateLimited = errors.New("host: login attempt rate limited")
	// ErrNotAuthenticated is returned when an operation requires a session
	// and none is cached or persisted.
	ErrNotAuthenticated = errors.New("host: not authenticated")
	// ErrLoginFailed is returned when every authentication tier was
	// exhausted without success.
	ErrLoginFailed = errors.New("host: all login tiers failed")
	// ErrResolveFailed is returned when neither the API nor the web-session
	// fallback could extract a direct URL from a resolve response.
	ErrResolveFailed = errors.New("host: could not resolve a direct download url")
)
