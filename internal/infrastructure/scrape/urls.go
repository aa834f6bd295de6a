package scrape

import (
	"net/url"
	"strings"
)

// EnsureAbsolute resolves a retailer link against origin. Root-relative links get the
// origin prepended, protocol-relative links get https, absolute links pass through.
func EnsureAbsolute(raw, origin string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	origin = strings.TrimRight(origin, "/")
	if strings.HasPrefix(raw, "/") {
		return origin + raw
	}
	return origin + "/" + raw
}

// SearchPageURL builds a link to a retailer's own search page for term
func SearchPageURL(origin, path, param, term string) string {
	return strings.TrimRight(origin, "/") + path + "?" + param + "=" + url.QueryEscape(term)
}
