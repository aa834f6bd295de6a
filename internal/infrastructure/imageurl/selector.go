package imageurl

import (
	"net/url"
	"strings"

	"github.com/pricescout/backend/internal/infrastructure/scrape"
)

// ProxyHosts are the vendor domains whose referrer policy blocks hotlinking
var ProxyHosts = []string{"assets.diy.com", "www.diy.com", "media.diy.com", "images.diy.com", "scene7.com"}

// Selector routes vendor images through the image proxy
type Selector struct {
	// ProxyURL is the proxy endpoint; an empty value disables proxying
	ProxyURL string
	Hosts    []string
}

// NewSelector creates a selector for the given proxy endpoint
func NewSelector(proxyURL string, hosts []string) Selector {
	if len(hosts) == 0 {
		hosts = ProxyHosts
	}
	return Selector{ProxyURL: proxyURL, Hosts: hosts}
}

// Apply returns the proxied form of raw when its host needs it, raw otherwise
func (s Selector) Apply(raw string) string {
	if raw == "" || s.ProxyURL == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	if !HostMatches(u.Hostname(), s.Hosts) {
		return raw
	}
	return s.ProxyURL + "?url=" + url.QueryEscape(u.String())
}

// HostMatches reports whether host equals one of hosts or is a subdomain of one
func HostMatches(host string, hosts []string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, h := range hosts {
		h = strings.ToLower(h)
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Resolver derives a result image from a product object
type Resolver struct {
	Origin   string
	Selector Selector
}

// Resolve reads the first present field among keys, falls back to a bounded scan
// of the object, normalizes the result and applies the proxy selector.
func (r Resolver) Resolve(n scrape.Node, keys ...string) string {
	var raw any
	for _, key := range keys {
		if v, ok := n[key]; ok && v != nil && v != "" {
			raw = v
			break
		}
	}
	if Normalize(raw, r.Origin) == "" {
		raw = FindAny(n)
	}
	return r.Selector.Apply(Normalize(raw, r.Origin))
}
