// Package host brokers authenticated access to the single third-party
// file-locker service the broker downloads from: resolving share URLs into
// direct, time-limited download URLs, maintaining the login session that
// makes those resolutions possible, and classifying the failures that come
// back from it.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/warpdl/warpbroker/internal/classify"
	"github.com/warpdl/warpbroker/internal/model"
)

// FileInfo is what the host reports about a share URL before any bytes move.
type FileInfo struct {
	Filename string
	Size     int64
}

// ResolvedURL is a direct, time-limited download URL plus any headers the
// transfer engine must send alongside it.
type ResolvedURL struct {
	DirectURL string
	Headers   map[string]string
	ExpiresAt time.Time
}

// AccountStatus summarizes the logged-in account's download entitlement.
type AccountStatus struct {
	CanDownload bool
	Premium     bool
	ValidUntil  time.Time
	TrafficLeft int64
}

// Client is the capability bundle the orchestrator depends on. A host
// implementation need not support every capability at full strength; the
// flags report what it actually does.
type Client interface {
	CanHandle(shareURL string) bool
	GetFileInfo(ctx context.Context, shareURL string) (FileInfo, error)
	ResolveDownloadURL(ctx context.Context, shareURL string) (ResolvedURL, error)
	ValidateDownloadURL(ctx context.Context, directURL string) bool
	RefreshDownloadURL(ctx context.Context, originalURL string) (ResolvedURL, error)
	CheckAccountStatus(ctx context.Context) (AccountStatus, error)
	Logout(ctx context.Context) error
	SupportsResume() bool
	MaxSegments() int
}

// SessionStore is the subset of internal/store the Host Client needs to
// persist credentials and session state across restarts.
type SessionStore interface {
	GetSetting(key string) (string, error)
	SaveSetting(key, value string) error
	GetSession(host string) (*model.Session, error)
	SaveSession(sess *model.Session) error
	DeleteSession(host string) error
}

const (
	// apiValidationInterval is how long a direct-API session is trusted
	// without re-validation; the API tier tolerates a longer window than
	// the web tier because it degrades more gracefully.
	apiValidationInterval = 10 * time.Minute
	// webValidationInterval is the shorter window used for the cookie-based
	// web fallback session.
	webValidationInterval = 5 * time.Minute
)

// Config carries the credentials and behavior knobs a Client needs. It
// mirrors config.HostConfig but lives in this package so host does not
// depend on internal/config.
type Config struct {
	HostName           string
	Email              string
	Password           string
	PreferSecondaryAPI bool
}

// NewHTTPClient builds a Client for the configured host, generalized from
// the reference account of a real file-locker's tiered login: a primary
// JSON API, a secondary JSON API under a different user agent, and a web
// form fallback, backed by a rate limiter and circuit breaker so repeated
// failures degrade gracefully instead of hammering the host.
func NewHTTPClient(cfg Config, store SessionStore) *HTTPClient {
	return &HTTPClient{
		cfg:   cfg,
		store: store,
		// The primary and secondary API clients never follow redirects:
		// a redirect response itself carries the information (e.g. a
		// Location header) the caller needs to inspect.
		apiClient: &http.Client{
			Timeout:       15 * time.Second,
			CheckRedirect: noRedirect,
		},
		// The web client must NOT use an automatic cookie jar. Letting
		// net/http manage cookies here causes it to inject its own
		// Cookie header on top of the one this client sets manually,
		// producing a duplicate/malformed header the host rejects
		// outright. Cookies are tracked by hand in webSession instead.
		webClient: &http.Client{
			Timeout:       20 * time.Second,
			CheckRedirect: noRedirect,
		},
		limiter:      rate.NewLimiter(rate.Every(time.Second), 3),
		breaker:      newCircuitBreaker(),
		rateLimiter:  newLoginRateLimiter(),
		sessionCache: newSessionCache("warpbroker"),
	}
}

func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// HTTPClient is the concrete Client implementation for the configured host.
type HTTPClient struct {
	cfg   Config
	store SessionStore

	apiClient *http.Client
	webClient *http.Client

	limiter      *rate.Limiter
	breaker      *circuitBreaker
	rateLimiter  *loginRateLimiter
	sessionCache *sessionCache

	loginMu sync.Mutex

	sessionMu    sync.Mutex
	session      *model.Session
	webSession   *model.Session
	isWebSession bool
}

func (c *HTTPClient) CanHandle(shareURL string) bool {
	u, err := url.Parse(shareURL)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(u.Host), c.cfg.HostName)
}

func (c *HTTPClient) SupportsResume() bool { return true }
func (c *HTTPClient) MaxSegments() int     { return 1 }

// credentials resolves login credentials, preferring values persisted in
// the store (set via a settings UI) over the static config, matching the
// reference client's "NEVER LOGIN IF SESSION STILL GOOD, but when we do,
// prefer what the operator saved most recently" resolution order.
func (c *HTTPClient) credentials() (email, password string) {
	email, password = c.cfg.Email, c.cfg.Password
	if c.store == nil {
		return email, password
	}
	if v, err := c.store.GetSetting(c.cfg.HostName + "_email"); err == nil && v != "" {
		email = v
	}
	if v, err := c.store.GetSetting(c.cfg.HostName + "_password"); err == nil && v != "" {
		password = v
	}
	return email, password
}

// ensureValidSession is the single entry point every capability funnels
// through. It never re-authenticates if a cached or persisted session is
// still within its validation window: logging in is the expensive, rate
// limited path and must only run on an actual miss.
func (c *HTTPClient) ensureValidSession(ctx context.Context) (*model.Session, error) {
	if sess := c.cachedSession(); sess != nil {
		return sess, nil
	}

	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	// Re-check under the lock: another goroutine may have just logged in
	// while this one was waiting.
	if sess := c.cachedSession(); sess != nil {
		return sess, nil
	}
	if c.store != nil {
		if sess, err := c.store.GetSession(c.cfg.HostName); err == nil && sess.Valid(time.Now(), apiValidationInterval) {
			c.setSession(sess)
			return sess, nil
		}
	}
	if sess, err := c.sessionCache.load(c.cfg.HostName); err == nil && sess.Valid(time.Now(), apiValidationInterval) {
		c.setSession(sess)
		return sess, nil
	}

	return c.performLogin(ctx)
}

func (c *HTTPClient) cachedSession() *model.Session {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	if c.session.Valid(time.Now(), apiValidationInterval) {
		return c.session
	}
	return nil
}

func (c *HTTPClient) setSession(sess *model.Session) {
	c.sessionMu.Lock()
	c.session = sess
	c.sessionMu.Unlock()
}

// performLogin runs the tiered authentication cascade under the login
// mutex, serialized so concurrent callers never fire two logins at once.
func (c *HTTPClient) performLogin(ctx context.Context) (*model.Session, error) {
	if err := c.rateLimiter.canLogin(); err != nil {
		return nil, err
	}
	c.rateLimiter.recordAttempt()

	email, password := c.credentials()
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: no credentials configured for %s", ErrNotAuthenticated, c.cfg.HostName)
	}

	sess, tier1Err := c.loginPrimaryAPI(ctx, email, password)
	if tier1Err == nil {
		c.rateLimiter.recordSuccess()
		c.persistSession(sess, false)
		return sess, nil
	}

	// Tier 1 -> tier 2 is connectivity-gated: a hard rejection (bad
	// credentials, account issue) means tier 2 would fail identically, so
	// only chase tier 2 when the failure looks like it could be transient
	// or host-side.
	cat := classify.Classify(tier1Err)
	if cat.Kind == classify.Retryable || cat.Kind == classify.SystemIssue {
		if sess, err := c.loginSecondaryAPI(ctx, email, password); err == nil {
			c.rateLimiter.recordSuccess()
			c.persistSession(sess, false)
			return sess, nil
		}
	}

	// Tier 2 -> tier 3 is unconditional: the secondary API is known to
	// reject certain accounts outright, so the web form is always tried
	// next regardless of why tier 2 failed. A session won this way flips
	// the client into web-session mode: the direct API is presumed broken
	// until a later login succeeds against tier 1 or tier 2 again, so
	// every resolution in the meantime goes straight to the web fallback
	// instead of probing the broken API first.
	if sess, err := c.loginWebForm(ctx, email, password); err == nil {
		c.rateLimiter.recordSuccess()
		c.persistSession(sess, true)
		return sess, nil
	}

	c.rateLimiter.recordFailure()
	return nil, ErrLoginFailed
}

func (c *HTTPClient) persistSession(sess *model.Session, webOnly bool) {
	c.sessionMu.Lock()
	c.session = sess
	c.isWebSession = webOnly
	c.sessionMu.Unlock()
	if c.store != nil {
		_ = c.store.SaveSession(sess)
	}
	c.sessionCache.store(sess)
}

// isWebSessionMode reports whether the currently cached session was won
// through the web-form fallback rather than the direct API.
func (c *HTTPClient) isWebSessionMode() bool {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	return c.isWebSession
}

type apiLoginResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
}

// loginPrimaryAPI is the first authentication tier: a JSON POST against the
// host's primary session endpoint, gated by the circuit breaker since it is
// the call most likely to trip it under sustained host outage.
func (c *HTTPClient) loginPrimaryAPI(ctx context.Context, email, password string) (*model.Session, error) {
	if err := c.breaker.allow(); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, _ := json.Marshal(map[string]string{"user_email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("/api/user/login"), strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "warpbroker/1.0")

	resp, err := c.apiClient.Do(req)
	if err != nil {
		c.breaker.recordFailure()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.breaker.recordFailure()
		return nil, fmt.Errorf("http error: %d", resp.StatusCode)
	}

	var out apiLoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.breaker.recordFailure()
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	c.breaker.recordSuccess()

	now := time.Now()
	return &model.Session{
		Host:          c.cfg.HostName,
		SessionID:     out.SessionID,
		Token:         out.Token,
		CreatedAt:     now,
		LastValidated: now,
	}, nil
}

// loginSecondaryAPI mirrors the primary tier against the host's secondary
// API surface, which some accounts are accepted by even when the primary
// endpoint rejects them.
func (c *HTTPClient) loginSecondaryAPI(ctx context.Context, email, password string) (*model.Session, error) {
	if err := c.breaker.allow(); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, _ := json.Marshal(map[string]string{"user_email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("/api/v2/user/login"), strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "okhttp/3.6.0")

	resp, err := c.apiClient.Do(req)
	if err != nil {
		c.breaker.recordFailure()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.breaker.recordFailure()
		return nil, fmt.Errorf("http error: %d", resp.StatusCode)
	}

	var out apiLoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.breaker.recordFailure()
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	c.breaker.recordSuccess()

	now := time.Now()
	return &model.Session{
		Host:          c.cfg.HostName,
		SessionID:     out.SessionID,
		Token:         out.Token,
		CreatedAt:     now,
		LastValidated: now,
	}, nil
}

// loginWebForm is the last-resort tier: fetch the login page for a CSRF
// token and initial cookies, POST form-encoded credentials, and accept
// either a redirect or a 200 body without login-form markers as success.
func (c *HTTPClient) loginWebForm(ctx context.Context, email, password string) (*model.Session, error) {
	getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.webURL("/login"), nil)
	if err != nil {
		return nil, err
	}
	getResp, err := c.webClient.Do(getReq)
	if err != nil {
		return nil, err
	}
	cookies := getResp.Cookies()
	pageBody, _ := io.ReadAll(getResp.Body)
	getResp.Body.Close()

	csrf := extractCSRFToken(string(pageBody))

	form := url.Values{
		"email":    {email},
		"password": {password},
	}
	if csrf != "" {
		form.Set("_token", csrf)
	}

	postReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webURL("/login"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	postReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	setCookieHeader(postReq, cookies)

	postResp, err := c.webClient.Do(postReq)
	if err != nil {
		return nil, err
	}
	defer postResp.Body.Close()

	cookies = append(cookies, postResp.Cookies()...)
	body, _ := io.ReadAll(postResp.Body)

	success := postResp.StatusCode == http.StatusFound ||
		(postResp.StatusCode == http.StatusOK && !strings.Contains(string(body), "login-form"))
	if !success {
		return nil, fmt.Errorf("%w: web form login rejected (status %d)", ErrLoginFailed, postResp.StatusCode)
	}

	now := time.Now()
	sess := &model.Session{
		Host:          c.cfg.HostName,
		SessionID:     cookieValue(cookies, "session_id"),
		Token:         cookieValue(cookies, "session_id"),
		CreatedAt:     now,
		LastValidated: now,
	}
	c.sessionMu.Lock()
	c.webSession = sess
	c.sessionMu.Unlock()
	return sess, nil
}

func (c *HTTPClient) cachedWebSession() *model.Session {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	if c.webSession.Valid(time.Now(), webValidationInterval) {
		return c.webSession
	}
	return nil
}

// ensureWebSession mirrors ensureValidSession for the cookie-based web
// tier: it reuses a still-valid cached web session and only re-logs-in
// through the web form on a miss.
func (c *HTTPClient) ensureWebSession(ctx context.Context) (*model.Session, error) {
	if sess := c.cachedWebSession(); sess != nil {
		return sess, nil
	}

	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	if sess := c.cachedWebSession(); sess != nil {
		return sess, nil
	}
	if err := c.rateLimiter.canLogin(); err != nil {
		return nil, err
	}
	email, password := c.credentials()
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: no credentials configured for %s", ErrNotAuthenticated, c.cfg.HostName)
	}
	c.rateLimiter.recordAttempt()
	sess, err := c.loginWebForm(ctx, email, password)
	if err != nil {
		c.rateLimiter.recordFailure()
		return nil, err
	}
	c.rateLimiter.recordSuccess()
	return sess, nil
}

// resolveDownloadURLWeb resolves a share URL through the cookie-based web
// form, the fallback used once the client is in web-session mode or the
// direct API call itself failed outright. Mirrors loginWebForm's
// fetch-page-then-POST-form shape: a fresh GET against the share page
// picks up a CSRF token scoped to that page, then the download form POST
// either redirects straight to the direct URL or returns it in a JSON body.
func (c *HTTPClient) resolveDownloadURLWeb(ctx context.Context, shareURL string) (ResolvedURL, error) {
	sess, err := c.ensureWebSession(ctx)
	if err != nil {
		return ResolvedURL{}, err
	}

	getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, shareURL, nil)
	if err != nil {
		return ResolvedURL{}, err
	}
	getReq.Header.Set("Cookie", "session_id="+sess.SessionID)
	getResp, err := c.webClient.Do(getReq)
	if err != nil {
		return ResolvedURL{}, err
	}
	pageBody, _ := io.ReadAll(getResp.Body)
	getResp.Body.Close()
	csrf := extractCSRFToken(string(pageBody))

	form := url.Values{"url": {shareURL}, "password": {""}}
	if csrf != "" {
		form.Set("_token", csrf)
	}
	postReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webURL("/download/get"), strings.NewReader(form.Encode()))
	if err != nil {
		return ResolvedURL{}, err
	}
	postReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	postReq.Header.Set("Cookie", "session_id="+sess.SessionID)
	postReq.Header.Set("X-Requested-With", "XMLHttpRequest")

	postResp, err := c.webClient.Do(postReq)
	if err != nil {
		return ResolvedURL{}, err
	}
	defer postResp.Body.Close()

	if loc := postResp.Header.Get("Location"); loc != "" {
		return ResolvedURL{DirectURL: loc, ExpiresAt: time.Now().Add(6 * time.Hour)}, nil
	}

	body, _ := io.ReadAll(postResp.Body)
	var out struct {
		Location string `json:"location"`
		URL      string `json:"url"`
	}
	if err := json.Unmarshal(body, &out); err == nil {
		if direct := out.Location; direct != "" {
			return ResolvedURL{DirectURL: direct, ExpiresAt: time.Now().Add(6 * time.Hour)}, nil
		}
		if direct := out.URL; direct != "" {
			return ResolvedURL{DirectURL: direct, ExpiresAt: time.Now().Add(6 * time.Hour)}, nil
		}
	}
	return ResolvedURL{}, fmt.Errorf("%w: web download resolution returned no url (status %d)", ErrResolveFailed, postResp.StatusCode)
}

func extractCSRFToken(html string) string {
	const marker = `name="_token" value="`
	idx := strings.Index(html, marker)
	if idx < 0 {
		return ""
	}
	rest := html[idx+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return rest[:end]
}

func setCookieHeader(req *http.Request, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	var sb strings.Builder
	for i, ck := range cookies {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(ck.Name)
		sb.WriteByte('=')
		sb.WriteString(ck.Value)
	}
	req.Header.Set("Cookie", sb.String())
}

func cookieValue(cookies []*http.Cookie, name string) string {
	for _, ck := range cookies {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// GetFileInfo fetches the authoritative filename and size for a share URL.
func (c *HTTPClient) GetFileInfo(ctx context.Context, shareURL string) (FileInfo, error) {
	sess, err := c.ensureValidSession(ctx)
	if err != nil {
		return FileInfo{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL("/api/fileinfo")+"?url="+url.QueryEscape(shareURL), nil)
	if err != nil {
		return FileInfo{}, err
	}
	c.authenticate(req, sess)

	resp, err := c.apiClient.Do(req)
	if err != nil {
		return FileInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return FileInfo{}, fmt.Errorf("http error: %d", resp.StatusCode)
	}

	var out struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return FileInfo{}, fmt.Errorf("decode file info: %w", err)
	}
	return FileInfo{Filename: out.Name, Size: out.Size}, nil
}

// ResolveDownloadURL exchanges a share URL for a direct, time-limited URL,
// gated by the circuit breaker so a host outage skips the dead API
// endpoint quickly instead of retrying it. A client already in
// web-session mode skips the API probe entirely; one that hits an open
// breaker or a transport-level failure on the API call falls through to
// the same web resolution instead of failing the download outright.
func (c *HTTPClient) ResolveDownloadURL(ctx context.Context, shareURL string) (ResolvedURL, error) {
	if c.isWebSessionMode() {
		return c.resolveDownloadURLWeb(ctx, shareURL)
	}

	sess, err := c.ensureValidSession(ctx)
	if err != nil {
		return ResolvedURL{}, err
	}
	if err := c.breaker.allow(); err != nil {
		return c.resolveDownloadURLWeb(ctx, shareURL)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return ResolvedURL{}, err
	}

	body, _ := json.Marshal(map[string]string{"url": shareURL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("/api/session/download"), strings.NewReader(string(body)))
	if err != nil {
		return ResolvedURL{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authenticate(req, sess)

	resp, err := c.apiClient.Do(req)
	if err != nil {
		c.breaker.recordFailure()
		return c.resolveDownloadURLWeb(ctx, shareURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.breaker.recordFailure()
		return ResolvedURL{}, fmt.Errorf("http error: %d", resp.StatusCode)
	}
	c.breaker.recordSuccess()

	var out struct {
		Location  string `json:"location"`
		ExpiresIn int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ResolvedURL{}, fmt.Errorf("decode resolve response: %w", err)
	}
	expiresIn := out.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return ResolvedURL{
		DirectURL: out.Location,
		ExpiresAt: time.Now().Add(time.Duration(expiresIn) * time.Second),
	}, nil
}

// ValidateDownloadURL issues a cheap HEAD request to check a previously
// resolved URL is still usable.
func (c *HTTPClient) ValidateDownloadURL(ctx context.Context, directURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, directURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.apiClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

// RefreshDownloadURL forces a fresh resolution, ignoring any cached
// resolved URL the caller may still be holding.
func (c *HTTPClient) RefreshDownloadURL(ctx context.Context, originalURL string) (ResolvedURL, error) {
	return c.ResolveDownloadURL(ctx, originalURL)
}

// CheckAccountStatus reports the logged-in account's download entitlement.
func (c *HTTPClient) CheckAccountStatus(ctx context.Context) (AccountStatus, error) {
	sess, err := c.ensureValidSession(ctx)
	if err != nil {
		return AccountStatus{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL("/api/user/get"), nil)
	if err != nil {
		return AccountStatus{}, err
	}
	c.authenticate(req, sess)

	resp, err := c.apiClient.Do(req)
	if err != nil {
		return AccountStatus{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return AccountStatus{}, fmt.Errorf("http error: %d", resp.StatusCode)
	}

	var out struct {
		AccountType int    `json:"account_type"`
		ExpireDate  string `json:"expire_date"`
		TrafficLeft int64  `json:"traffic_left"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return AccountStatus{}, fmt.Errorf("decode account status: %w", err)
	}

	status := AccountStatus{
		Premium:     out.AccountType > 0,
		TrafficLeft: out.TrafficLeft,
		CanDownload: out.TrafficLeft != 0,
	}
	if secs, err := strconv.ParseInt(out.ExpireDate, 10, 64); err == nil && secs > 0 {
		status.ValidUntil = time.Unix(secs, 0)
	}
	return status, nil
}

// Logout invalidates the cached session and drops the persisted row.
func (c *HTTPClient) Logout(ctx context.Context) error {
	c.sessionMu.Lock()
	c.session = nil
	c.webSession = nil
	c.sessionMu.Unlock()

	c.sessionCache.delete(c.cfg.HostName)
	if c.store != nil {
		return c.store.DeleteSession(c.cfg.HostName)
	}
	return nil
}

func (c *HTTPClient) authenticate(req *http.Request, sess *model.Session) {
	if sess.SessionID != "" {
		req.Header.Set("Cookie", "session_id="+sess.SessionID)
	}
	if sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}
}

func (c *HTTPClient) apiURL(path string) string {
	return "https://api." + c.cfg.HostName + path
}

func (c *HTTPClient) webURL(path string) string {
	return "https://www." + c.cfg.HostName + path
}
