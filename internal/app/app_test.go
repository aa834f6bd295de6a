package app

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricescout/backend/config"
	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/imageurl"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("PRICESCOUT_SERVER_ENVIRONMENT", "test")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestImageProxyURL(t *testing.T) {
	cfg := loadConfig(t)
	assert.Equal(t, "/api/v1/image-proxy", ImageProxyURL(cfg))

	cfg.Server.PublicBaseURL = "https://prices.example.com/"
	assert.Equal(t, "https://prices.example.com/api/v1/image-proxy", ImageProxyURL(cfg))

	cfg.ImageProxy.Path = ""
	assert.Equal(t, "https://prices.example.com/api/v1/image-proxy", ImageProxyURL(cfg))
}

func TestProviders(t *testing.T) {
	cfg := loadConfig(t)
	selector := imageurl.NewSelector(ImageProxyURL(cfg), nil)

	var got []domain.Retailer
	for _, p := range Providers(cfg, selector) {
		got = append(got, p.Retailer())
	}
	assert.Equal(t, domain.AllRetailers, got)

	cfg.Retailers.Screwfix.Enabled = false
	got = got[:0]
	for _, p := range Providers(cfg, selector) {
		got = append(got, p.Retailer())
	}
	assert.Equal(t, []domain.Retailer{domain.RetailerBQ, domain.RetailerToolstation}, got)
}

func TestNew_NoRetailers(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Retailers.BQ.Enabled = false
	cfg.Retailers.Screwfix.Enabled = false
	cfg.Retailers.Toolstation.Enabled = false

	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestNew_BadRedisURL(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Cache.Type = "redis"
	cfg.Cache.RedisURL = "not-a-redis-url"

	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestRouter_Health(t *testing.T) {
	cfg := loadConfig(t)
	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Len(t, body["retailers"], 3)
}

func TestRouter_ImageProxyRejectsForeignHost(t *testing.T) {
	cfg := loadConfig(t)
	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/image-proxy?url=https%3A%2F%2Fevil.example%2Fa.jpg", nil)
	a.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Server.Port = "0"
	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

type closingCache struct {
	domain.CacheRepository
	closed   int
	closeErr error
}

func (c *closingCache) Close() error {
	c.closed++
	return c.closeErr
}

func TestRun_ClosesCacheOnCancel(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Server.Port = "0"
	a, err := New(cfg, nil)
	require.NoError(t, err)
	store := &closingCache{CacheRepository: a.cache}
	a.cache = store

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, 1, store.closed)
}

func TestRun_ClosesCacheWhenServeFails(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := loadConfig(t)
	_, port, err := net.SplitHostPort(busy.Addr().String())
	require.NoError(t, err)
	cfg.Server.Port = port
	a, err := New(cfg, nil)
	require.NoError(t, err)
	store := &closingCache{CacheRepository: a.cache, closeErr: errors.New("connection reset")}
	a.cache = store

	err = a.Run(context.Background(), time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server failed")
	assert.Contains(t, err.Error(), "close cache: connection reset")
	assert.Equal(t, 1, store.closed)
}
