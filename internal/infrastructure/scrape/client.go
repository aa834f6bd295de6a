// Package scrape holds the plumbing shared by the retailer clients: a throttled
// resty client, tolerant value extraction and traversal of untyped JSON trees.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/pricescout/backend/internal/domain"
)

// Header values that mirror a desktop browser
const (
	AcceptHTML     = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	AcceptJSON     = "application/json,text/plain;q=0.9,*/*;q=0.8"
	AcceptImage    = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"
	AcceptLanguage = "en-GB,en;q=0.9"
	DefaultAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
)

// ClientOptions configures a retailer HTTP client
type ClientOptions struct {
	Retailer          domain.Retailer
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Retries           int
	CloudflareBypass  bool
}

// Client is a resty client bound to one retailer origin with an outbound rate limit
type Client struct {
	retailer domain.Retailer
	baseURL  string
	http     *resty.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewClient creates a retailer client
func NewClient(opts ClientOptions) *Client {
	agent := opts.UserAgent
	if agent == "" {
		agent = DefaultAgent
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	hc := resty.New()
	hc.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	hc.SetTimeout(timeout)
	hc.SetHeader("User-Agent", agent)
	hc.SetHeader("Accept-Language", AcceptLanguage)
	// cookies are carried explicitly where a retailer needs them
	hc.SetCookieJar(nil)

	// transient failures and throttling are retried, other 4xx are final
	if opts.Retries > 0 {
		hc.SetRetryCount(opts.Retries)
		hc.SetRetryWaitTime(500 * time.Millisecond)
		hc.SetRetryMaxWaitTime(2 * time.Second)
		hc.AddRetryCondition(retryable)
	}

	if opts.CloudflareBypass {
		transport := hc.GetClient().Transport
		if transport == nil {
			transport = http.DefaultTransport.(*http.Transport).Clone()
		}
		hc.SetTransport(cloudflarebp.AddCloudFlareByPass(transport))
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		retailer: opts.Retailer,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     hc,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   slog.Default().With("retailer", string(opts.Retailer)),
	}
}

func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// BaseURL returns the retailer origin without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Retailer returns the retailer this client talks to
func (c *Client) Retailer() domain.Retailer {
	return c.retailer
}

// Logger returns a logger tagged with the retailer
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// HTTP exposes the underlying resty client
func (c *Client) HTTP() *resty.Client {
	return c.http
}

// R waits for the rate limiter and returns a request bound to ctx
func (c *Client) R(ctx context.Context) (*resty.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	return c.http.R().SetContext(ctx), nil
}

// Do runs a request built by build and converts transport failures and
// non-2xx responses into domain errors
func (c *Client) Do(ctx context.Context, method, path string, build func(*resty.Request)) (*resty.Response, error) {
	req, err := c.R(ctx)
	if err != nil {
		return nil, err
	}
	if build != nil {
		build(req)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrUpstreamFailure, c.retailer, path, err)
	}

	c.logger.Debug("request complete", "method", method, "path", path, "status", resp.StatusCode(), "bytes", len(resp.Body()))
	if resp.IsError() {
		return resp, &domain.StatusError{Retailer: c.retailer, Status: resp.StatusCode()}
	}
	return resp, nil
}
