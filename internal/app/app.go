// Package app wires configuration into the running service: cache, retailer
// providers, the image proxy, the search service and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pricescout/backend/config"
	httpDelivery "github.com/pricescout/backend/internal/delivery/http"
	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/bq"
	"github.com/pricescout/backend/internal/infrastructure/cache"
	"github.com/pricescout/backend/internal/infrastructure/imageproxy"
	"github.com/pricescout/backend/internal/infrastructure/imageurl"
	"github.com/pricescout/backend/internal/infrastructure/scrape"
	"github.com/pricescout/backend/internal/infrastructure/screwfix"
	"github.com/pricescout/backend/internal/infrastructure/toolstation"
	"github.com/pricescout/backend/internal/usecase"
)

// redisKeyPrefix namespaces every key this service writes to a shared Redis
const redisKeyPrefix = "pricescout:"

// imageFetchTimeout bounds a single proxied image download
const imageFetchTimeout = 15 * time.Second

// App is the assembled service
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Search  *usecase.SearchService
	Images  *imageproxy.Proxy
	Handler *httpDelivery.Handler

	cache domain.CacheRepository
}

// New assembles the service from configuration
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := newCache(cfg, logger)
	if err != nil {
		return nil, err
	}

	selector := imageurl.NewSelector(ImageProxyURL(cfg), cfg.ImageProxy.AllowedHosts)
	providers := Providers(cfg, selector)
	if len(providers) == 0 {
		return nil, errors.New("no retailers enabled")
	}

	matcher := usecase.NewMatchingService(usecase.MatchConfig{
		Threshold: cfg.Matching.Threshold,
		Weights: usecase.Weights{
			Term:        cfg.Matching.Weights.Term,
			Spec:        cfg.Matching.Weights.Spec,
			Partial:     cfg.Matching.Weights.Partial,
			Levenshtein: cfg.Matching.Weights.Levenshtein,
			Numbers:     cfg.Matching.Weights.Numbers,
		},
		Logger: logger,
	})

	search := usecase.NewSearchService(store, providers, matcher, usecase.SearchServiceConfig{
		CacheTTL: cfg.Cache.TTL,
		Timeouts: map[domain.Retailer]time.Duration{
			domain.RetailerBQ:          cfg.Retailers.BQ.Timeout,
			domain.RetailerScrewfix:    cfg.Retailers.Screwfix.Timeout,
			domain.RetailerToolstation: cfg.Retailers.Toolstation.Timeout,
		},
	}, logger)

	images := imageproxy.New(
		scrape.NewClient(scrape.ClientOptions{
			UserAgent: cfg.Scrape.UserAgent,
			Timeout:   imageFetchTimeout,
		}),
		imageproxy.Options{
			AllowedHosts: cfg.ImageProxy.AllowedHosts,
			CacheSize:    cfg.ImageProxy.CacheSize,
			CacheTTL:     cfg.ImageProxy.CacheTTL,
			MaxBytes:     cfg.ImageProxy.MaxBytes,
		},
	)

	logger.Info("service assembled",
		"environment", cfg.Server.Environment,
		"cache", cfg.Cache.Type,
		"retailers", search.Retailers(),
		"threshold", matcher.Threshold())

	return &App{
		Config:  cfg,
		Logger:  logger,
		Search:  search,
		Images:  images,
		Handler: httpDelivery.NewHandler(search, images, logger),
		cache:   store,
	}, nil
}

// Router builds the gin engine serving the API
func (a *App) Router() *gin.Engine {
	return httpDelivery.SetupRouter(a.Config, a.Handler, a.Logger)
}

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests for up to grace before returning
func (a *App) Serve(ctx context.Context, grace time.Duration) error {
	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down", "grace", grace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// Run serves until ctx is cancelled and releases the cache on every exit path
func (a *App) Run(ctx context.Context, grace time.Duration) error {
	serveErr := a.Serve(ctx, grace)
	if err := a.Close(); err != nil {
		a.Logger.Warn("cache close failed", "error", err)
		return errors.Join(serveErr, fmt.Errorf("close cache: %w", err))
	}
	return serveErr
}

// Close releases the cache backend
func (a *App) Close() error {
	if c, ok := a.cache.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Providers builds one provider per enabled retailer, in merge order
func Providers(cfg *config.Config, selector imageurl.Selector) []domain.Provider {
	var providers []domain.Provider

	if rc := cfg.Retailers.BQ; rc.Enabled {
		providers = append(providers, bq.NewProvider(newClient(cfg, domain.RetailerBQ, rc), selector))
	}
	if rc := cfg.Retailers.Screwfix; rc.Enabled {
		providers = append(providers, screwfix.NewProvider(newClient(cfg, domain.RetailerScrewfix, rc), selector))
	}
	if rc := cfg.Retailers.Toolstation; rc.Enabled {
		client := newClient(cfg, domain.RetailerToolstation, rc)
		providers = append(providers, toolstation.NewProvider(client, toolstation.NewSessionManager(client), selector))
	}

	return providers
}

// ImageProxyURL is the endpoint generated image links point at. With no public
// base URL the links stay relative to whichever host served the results.
func ImageProxyURL(cfg *config.Config) string {
	path := cfg.ImageProxy.Path
	if path == "" {
		path = "/api/v1/image-proxy"
	}
	return strings.TrimRight(cfg.Server.PublicBaseURL, "/") + path
}

func newClient(cfg *config.Config, retailer domain.Retailer, rc config.RetailerConfig) *scrape.Client {
	return scrape.NewClient(scrape.ClientOptions{
		Retailer:          retailer,
		BaseURL:           rc.BaseURL,
		UserAgent:         cfg.Scrape.UserAgent,
		Timeout:           rc.Timeout,
		RequestsPerSecond: cfg.Scrape.RequestsPerSecond,
		Burst:             cfg.Scrape.Burst,
		Retries:           cfg.Scrape.Retries,
		CloudflareBypass:  cfg.Scrape.CloudflareBypass,
	})
}

func newCache(cfg *config.Config, logger *slog.Logger) (domain.CacheRepository, error) {
	switch cfg.Cache.Type {
	case "redis":
		rc, err := cache.NewRedisCache(cfg.Cache.RedisURL, redisKeyPrefix)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rc.Ping(ctx); err != nil {
			// searches still work, every cache access just misses
			logger.Warn("redis not reachable at startup", "error", err)
		}
		return rc, nil
	default:
		return cache.NewMemoryCache(), nil
	}
}
