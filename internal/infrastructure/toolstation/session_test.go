package toolstation

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/scrape"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func jwt(exp int64) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"sub":"guest","exp":%d}`, exp)))
	return "eyJhbGciOiJIUzI1NiJ9." + payload + ".c2lnbmF0dXJl"
}

func newTestClient(url string) *scrape.Client {
	return scrape.NewClient(scrape.ClientOptions{
		Retailer: domain.RetailerToolstation,
		BaseURL:  url,
		Timeout:  2 * time.Second,
	})
}

func newSessionManager(t *testing.T, handler http.Handler, clock *fakeClock) *SessionManager {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	m := NewSessionManager(newTestClient(server.URL))
	m.now = clock.Now
	return m
}

func TestSessionManager_WarmsFromHomePage(t *testing.T) {
	var homeHits atomic.Int32
	clock := newClock()
	m := newSessionManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		homeHits.Add(1)
		w.Header().Add("Set-Cookie", "visitor=abc; Path=/; HttpOnly")
		w.Header().Add("Set-Cookie", "ecomApiAccessToken=tok-1; Path=/; Secure")
	}), clock)

	s, err := m.Current(context.Background(), "drill")

	require.NoError(t, err)
	assert.Equal(t, "tok-1", s.Token)
	assert.Equal(t, "visitor=abc; ecomApiAccessToken=tok-1", s.CookieHeader)
	assert.Equal(t, clock.Now().Add(DefaultLifetime), s.ExpiresAt)

	again, err := m.Current(context.Background(), "saw")
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Equal(t, int32(1), homeHits.Load())
}

func TestSessionManager_FallsBackToSearchPage(t *testing.T) {
	exp := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	token := jwt(exp.Unix())

	m := newSessionManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Add("Set-Cookie", "visitor=v1; Path=/")
			w.Header().Add("Set-Cookie", "region=gb")
		case "/search":
			assert.Equal(t, "drill", r.URL.Query().Get("q"))
			assert.Equal(t, "visitor=v1; region=gb", r.Header.Get("Cookie"))
			w.Header().Add("Set-Cookie", "visitor=v2; Path=/")
			w.Header().Add("Set-Cookie", "ecomApiAccessToken="+token+"; Path=/")
		}
	}), newClock())

	s, err := m.Current(context.Background(), "drill")

	require.NoError(t, err)
	assert.Equal(t, token, s.Token)
	assert.Equal(t, "visitor=v2; region=gb; ecomApiAccessToken="+token, s.CookieHeader)
	assert.True(t, exp.Equal(s.ExpiresAt))
}

func TestSessionManager_NoToken(t *testing.T) {
	var searchQuery atomic.Value
	m := newSessionManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			searchQuery.Store(r.URL.Query().Get("q"))
		}
		w.Header().Add("Set-Cookie", "visitor=v1")
	}), newClock())

	s, err := m.Current(context.Background(), "")

	assert.Nil(t, s)
	assert.ErrorIs(t, err, domain.ErrNoSession)
	assert.Equal(t, "a", searchQuery.Load())
	assert.Nil(t, m.Cached())
}

func TestSessionManager_ErrorStatusStillYieldsCookies(t *testing.T) {
	m := newSessionManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "ecomApiAccessToken=tok-403")
		w.WriteHeader(http.StatusForbidden)
	}), newClock())

	s, err := m.Current(context.Background(), "drill")

	require.NoError(t, err)
	assert.Equal(t, "tok-403", s.Token)
}

func TestSessionManager_StaleSessionRewarms(t *testing.T) {
	var issued atomic.Int32
	clock := newClock()
	m := newSessionManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := issued.Add(1)
		w.Header().Add("Set-Cookie", fmt.Sprintf("ecomApiAccessToken=tok-%d", n))
	}), clock)
	ctx := context.Background()

	first, err := m.Current(ctx, "drill")
	require.NoError(t, err)

	clock.Advance(DefaultLifetime - 2*time.Minute)
	s, err := m.Current(ctx, "drill")
	require.NoError(t, err)
	assert.Same(t, first, s, "two minutes before expiry is still fresh")

	clock.Advance(90 * time.Second)
	s, err = m.Current(ctx, "drill")
	require.NoError(t, err)
	assert.NotSame(t, first, s, "thirty seconds before expiry is stale")
	assert.Equal(t, "tok-2", s.Token)
	assert.Same(t, s, m.Cached())
}

func TestSessionManager_RefreshReplacesSlot(t *testing.T) {
	var issued atomic.Int32
	m := newSessionManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := issued.Add(1)
		w.Header().Add("Set-Cookie", fmt.Sprintf("ecomApiAccessToken=tok-%d", n))
	}), newClock())
	ctx := context.Background()

	first, err := m.Current(ctx, "drill")
	require.NoError(t, err)

	refreshed, err := m.Refresh(ctx, "drill", first)
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, refreshed.Token)
	assert.Same(t, refreshed, m.Cached())
}

func TestSessionManager_RefreshKeepsConcurrentReplacement(t *testing.T) {
	var issued atomic.Int32
	m := newSessionManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := issued.Add(1)
		w.Header().Add("Set-Cookie", fmt.Sprintf("ecomApiAccessToken=tok-%d", n))
	}), newClock())
	ctx := context.Background()

	first, err := m.Current(ctx, "drill")
	require.NoError(t, err)
	other, err := m.Refresh(ctx, "drill", first)
	require.NoError(t, err)

	// a caller still holding the first session refreshes after someone else did
	late, err := m.Refresh(ctx, "drill", first)
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, late.Token)
	assert.Same(t, other, m.Cached())
}

func TestSessionManager_TransportError(t *testing.T) {
	m := NewSessionManager(newTestClient("http://127.0.0.1:1"))

	_, err := m.Current(context.Background(), "drill")
	assert.ErrorIs(t, err, domain.ErrUpstreamFailure)
}

func TestTokenExpiry(t *testing.T) {
	t.Run("exp claim", func(t *testing.T) {
		got, ok := TokenExpiry(jwt(1772370000))
		require.True(t, ok)
		assert.Equal(t, int64(1772370000), got.Unix())
	})

	t.Run("padded standard encoding", func(t *testing.T) {
		payload := base64.StdEncoding.EncodeToString([]byte(`{"exp": 1772370000}`))
		got, ok := TokenExpiry("h." + payload + ".s")
		require.True(t, ok)
		assert.Equal(t, int64(1772370000), got.Unix())
	})

	for name, token := range map[string]string{
		"opaque":      "tok-1",
		"two parts":   "a.b",
		"bad base64":  "a.!!!.c",
		"no exp":      "a." + base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"x"}`)) + ".c",
		"not json":    "a." + base64.RawURLEncoding.EncodeToString([]byte(`hello`)) + ".c",
		"zero expiry": "a." + base64.RawURLEncoding.EncodeToString([]byte(`{"exp":0}`)) + ".c",
	} {
		t.Run(name, func(t *testing.T) {
			_, ok := TokenExpiry(token)
			assert.False(t, ok)
		})
	}
}

func TestCookieJar(t *testing.T) {
	jar := newCookieJar("a=1; b=2")
	jar.merge([]string{"b=3; Path=/", "c=x=y; HttpOnly", "=orphan", "d"})

	assert.Equal(t, "a=1; b=3; c=x=y; d=", jar.header())
	assert.Equal(t, "x=y", jar.get("c"))
	assert.Equal(t, 4, jar.len())
	assert.Equal(t, "", newCookieJar("").header())
}
