package toolstation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/scrape"
)

const (
	tokenCookie = "ecomApiAccessToken"
	// FreshnessMargin is how long before expiry a session stops being reused
	FreshnessMargin = 60 * time.Second
	// DefaultLifetime applies when the token carries no expiry claim
	DefaultLifetime = 45 * time.Minute
)

// SessionManager obtains and caches the bearer token the search API requires.
// It holds a single session slot that is only ever replaced wholesale.
type SessionManager struct {
	client  *scrape.Client
	current atomic.Pointer[domain.Session]
	now     func() time.Time
}

// NewSessionManager creates a session manager that warms sessions through client
func NewSessionManager(client *scrape.Client) *SessionManager {
	return &SessionManager{client: client, now: time.Now}
}

// Current returns the cached session while it is fresh, warming a new one otherwise
func (m *SessionManager) Current(ctx context.Context, term string) (*domain.Session, error) {
	cached := m.current.Load()
	if cached.FreshAt(m.now(), FreshnessMargin) {
		return cached, nil
	}
	return m.replace(ctx, term, cached)
}

// Refresh warms a new session regardless of the cached one's freshness.
// stale is the session the caller saw fail.
func (m *SessionManager) Refresh(ctx context.Context, term string, stale *domain.Session) (*domain.Session, error) {
	return m.replace(ctx, term, stale)
}

// Cached returns the session in the slot without warming
func (m *SessionManager) Cached() *domain.Session {
	return m.current.Load()
}

func (m *SessionManager) replace(ctx context.Context, term string, old *domain.Session) (*domain.Session, error) {
	fresh, err := m.warm(ctx, term)
	if err != nil {
		return nil, err
	}
	if !m.current.CompareAndSwap(old, fresh) {
		// a concurrent search already replaced the slot; keep theirs cached
		m.client.Logger().Debug("session slot replaced concurrently")
	}
	return fresh, nil
}

// warm runs the cookie handshake: the home page first, then the search page
// carrying whatever cookies the home page set
func (m *SessionManager) warm(ctx context.Context, term string) (*domain.Session, error) {
	logger := m.client.Logger()
	jar := newCookieJar("")

	setCookies, err := m.fetchCookies(ctx, "/", nil, "")
	if err != nil {
		return nil, err
	}
	jar.merge(setCookies)

	if jar.get(tokenCookie) == "" {
		q := term
		if q == "" {
			q = "a"
		}
		setCookies, err = m.fetchCookies(ctx, "/search", map[string]string{"q": q}, jar.header())
		if err != nil {
			return nil, err
		}
		jar.merge(setCookies)
	}

	token := jar.get(tokenCookie)
	if token == "" {
		return nil, domain.ErrNoSession
	}

	now := m.now()
	expiresAt, ok := TokenExpiry(token)
	if !ok {
		expiresAt = now.Add(DefaultLifetime)
	}

	logger.Debug("session warmed", "cookies", jar.len(), "expires_in", expiresAt.Sub(now).Round(time.Second))
	return &domain.Session{Token: token, CookieHeader: jar.header(), ExpiresAt: expiresAt}, nil
}

// fetchCookies requests a page and returns its Set-Cookie lines. Error statuses
// still carry cookies, so only transport failures abort the handshake.
func (m *SessionManager) fetchCookies(ctx context.Context, path string, query map[string]string, cookie string) ([]string, error) {
	resp, err := m.client.Do(ctx, resty.MethodGet, path, func(r *resty.Request) {
		r.SetQueryParams(query)
		r.SetHeader("Accept", scrape.AcceptHTML)
		if cookie != "" {
			r.SetHeader("Cookie", cookie)
		}
	})
	var status *domain.StatusError
	if err != nil && !errors.As(err, &status) {
		return nil, fmt.Errorf("session handshake %s: %w", path, err)
	}
	return resp.Header().Values("Set-Cookie"), nil
}

// TokenExpiry reads the exp claim from a three-part dot-delimited token
func TokenExpiry(token string) (time.Time, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		payload, err = base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			return time.Time{}, false
		}
	}

	var claims struct {
		Exp float64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(claims.Exp * 1000)), true
}

// cookieJar merges cookies by name, last value wins, keeping first-seen order
type cookieJar struct {
	names  []string
	values map[string]string
}

func newCookieJar(header string) *cookieJar {
	j := &cookieJar{values: make(map[string]string)}
	for _, pair := range strings.Split(header, "; ") {
		j.set(pair)
	}
	return j
}

func (j *cookieJar) merge(setCookies []string) {
	for _, sc := range setCookies {
		nameValue, _, _ := strings.Cut(sc, ";")
		j.set(nameValue)
	}
}

func (j *cookieJar) set(pair string) {
	name, value, _ := strings.Cut(strings.TrimSpace(pair), "=")
	if name == "" {
		return
	}
	if _, ok := j.values[name]; !ok {
		j.names = append(j.names, name)
	}
	j.values[name] = value
}

func (j *cookieJar) get(name string) string {
	return j.values[name]
}

func (j *cookieJar) len() int {
	return len(j.names)
}

func (j *cookieJar) header() string {
	parts := make([]string, 0, len(j.names))
	for _, n := range j.names {
		parts = append(parts, n+"="+j.values[n])
	}
	return strings.Join(parts, "; ")
}
