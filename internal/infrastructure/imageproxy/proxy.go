// Package imageproxy fetches allow-listed retailer images on behalf of clients
// whose direct requests the retailer CDN would refuse.
package imageproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/imageurl"
	"github.com/pricescout/backend/internal/infrastructure/scrape"
)

const (
	defaultContentType = "image/jpeg"
	referer            = "https://www.diy.com/"
	// sanitizedDomain is the vendor whose image service paths get explicit presets
	sanitizedDomain = "diy.com"
	maxRedirects    = 5
)

// Image is a fetched upstream image
type Image struct {
	Body        []byte
	ContentType string
	UpstreamURL string
}

// UpstreamError carries a non-2xx upstream response back to the caller
type UpstreamError struct {
	Status int
	Body   string
	URL    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("image upstream status %d for %s", e.Status, e.URL)
}

// Unwrap lets errors.Is match domain.ErrUpstreamFailure
func (e *UpstreamError) Unwrap() error {
	return domain.ErrUpstreamFailure
}

// Options configures a Proxy
type Options struct {
	AllowedHosts []string
	CacheSize    int
	CacheTTL     time.Duration
	MaxBytes     int64
}

// Proxy fetches and caches images from allow-listed hosts
type Proxy struct {
	client   *scrape.Client
	hosts    []string
	cache    *expirable.LRU[string, Image]
	maxBytes int64
}

// New creates a Proxy. A CacheSize of zero disables caching.
func New(client *scrape.Client, opts Options) *Proxy {
	p := &Proxy{
		client:   client,
		hosts:    opts.AllowedHosts,
		maxBytes: opts.MaxBytes,
	}
	if opts.CacheSize > 0 {
		p.cache = expirable.NewLRU[string, Image](opts.CacheSize, nil, opts.CacheTTL)
	}
	client.HTTP().SetRedirectPolicy(resty.RedirectPolicyFunc(p.checkRedirect))
	return p
}

// checkRedirect keeps redirects on allow-listed hosts
func (p *Proxy) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if !imageurl.HostMatches(req.URL.Hostname(), p.hosts) {
		return fmt.Errorf("%w: redirect to %s", domain.ErrHostNotAllowed, req.URL.Hostname())
	}
	return nil
}

// Resolve validates a raw target URL and returns the URL that will be fetched
func (p *Proxy) Resolve(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: missing url", domain.ErrInvalidURL)
	}
	if decoded, err := url.QueryUnescape(raw); err == nil {
		raw = decoded
	}
	raw = strings.ReplaceAll(raw, "&amp;", "&")

	target, err := url.Parse(raw)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidURL, raw)
	}
	if !imageurl.HostMatches(target.Hostname(), p.hosts) {
		return nil, fmt.Errorf("%w: %s", domain.ErrHostNotAllowed, target.Hostname())
	}

	if imageurl.HostMatches(target.Hostname(), []string{sanitizedDomain}) && strings.HasPrefix(target.Path, "/is/image/") {
		imageurl.Sanitize(target)
	}
	return target, nil
}

// Fetch resolves raw and returns the upstream image, from cache when possible
func (p *Proxy) Fetch(ctx context.Context, raw string) (Image, error) {
	target, err := p.Resolve(raw)
	if err != nil {
		return Image{}, err
	}
	upstream := target.String()

	if p.cache != nil {
		if img, ok := p.cache.Get(upstream); ok {
			return img, nil
		}
	}

	img, err := p.fetch(ctx, upstream)
	if err != nil {
		return Image{}, err
	}
	if p.cache != nil {
		p.cache.Add(upstream, img)
	}
	return img, nil
}

func (p *Proxy) fetch(ctx context.Context, upstream string) (Image, error) {
	resp, err := p.client.Do(ctx, resty.MethodGet, upstream, func(r *resty.Request) {
		r.SetDoNotParseResponse(true)
		r.SetHeader("Accept", scrape.AcceptImage)
		r.SetHeader("Referer", referer)
	})
	var status *domain.StatusError
	if err != nil && !errors.As(err, &status) {
		return Image{}, err
	}
	body := resp.RawBody()
	defer body.Close()

	data, readErr := p.read(body)
	if status != nil {
		text := ""
		if readErr == nil {
			text = string(data)
		}
		return Image{}, &UpstreamError{Status: status.Status, Body: text, URL: upstream}
	}
	if readErr != nil {
		return Image{}, readErr
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}
	return Image{Body: data, ContentType: contentType, UpstreamURL: upstream}, nil
}

func (p *Proxy) read(body io.Reader) ([]byte, error) {
	if p.maxBytes <= 0 {
		return io.ReadAll(body)
	}
	data, err := io.ReadAll(io.LimitReader(body, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading image: %v", domain.ErrUpstreamFailure, err)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, domain.ErrImageTooLarge
	}
	return data, nil
}
