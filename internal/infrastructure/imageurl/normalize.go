// Package imageurl turns the loosely shaped image fields retailers return into
// canonical absolute URLs and decides which of them must go through the proxy.
package imageurl

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pricescout/backend/internal/infrastructure/scrape"
)

// Scene7 presets used when the caller did not ask for explicit dimensions
const (
	DefaultWidth   = "300"
	DefaultHeight  = "300"
	DefaultFormat  = "jpg"
	DefaultQuality = "80"
)

// scanDepth bounds the recursive search for an image-looking string
const scanDepth = 3

var (
	imagePathPattern = regexp.MustCompile(`(?i)/(is|media)/image/`)
	imageExtPattern  = regexp.MustCompile(`(?i)\.(png|jpe?g|webp)(\?|$)`)

	// preferredKeys are checked before any other string field of an object
	preferredKeys = []string{"imageUrl", "image", "thumbnail", "thumbnailUrl", "img", "uri", "url"}
	// wrapperKeys are the fields an image object may carry its URL in
	wrapperKeys = []string{"url", "src", "href", "link", "image"}
)

// Normalize resolves an image value into an absolute URL. The value may be a string,
// an array of candidates or an object wrapping the URL. Relative paths resolve
// against origin. Returns "" when no URL can be derived.
func Normalize(input any, origin string) string {
	src := unwrap(input)
	if src == "" {
		return ""
	}

	var absolute string
	switch {
	case strings.HasPrefix(src, "//"):
		absolute = "https:" + src
	case hasScheme(src):
		absolute = src
	default:
		absolute = scrape.EnsureAbsolute(src, origin)
	}

	u, err := url.Parse(absolute)
	if err != nil || u.Host == "" {
		return absolute
	}
	if IsImageService(u) {
		Sanitize(u)
		return u.String()
	}
	return absolute
}

// IsImageService reports whether u points at the B&Q Scene7 image service.
// Other retailers serve Scene7 paths from their own hosts with presets that
// must survive untouched, so only the vendor hosts qualify.
func IsImageService(u *url.URL) bool {
	if !HostMatches(u.Hostname(), ProxyHosts) {
		return false
	}
	return strings.HasPrefix(u.Path, "/is/image/") || HostMatches(u.Hostname(), []string{"scene7.com"})
}

// Sanitize rewrites an image-service query in place: HTML entity artifacts are
// decoded, $macro parameters are dropped and explicit dimensions, format and
// quality are enforced.
func Sanitize(u *url.URL) {
	raw := strings.ReplaceAll(u.RawQuery, "&amp;", "&")
	q, err := url.ParseQuery(raw)
	if err != nil {
		q = lenientQuery(raw)
	}

	wid := firstNonEmpty(q.Get("wid"), q.Get("$width"), DefaultWidth)
	hei := firstNonEmpty(q.Get("hei"), q.Get("$height"), DefaultHeight)
	for key := range q {
		if strings.HasPrefix(key, "$") {
			q.Del(key)
		}
	}
	q.Set("wid", wid)
	q.Set("hei", hei)
	if !q.Has("fmt") {
		q.Set("fmt", DefaultFormat)
	}
	if !q.Has("qlt") {
		q.Set("qlt", DefaultQuality)
	}
	u.RawQuery = q.Encode()
}

// FindAny scans node for the first string that looks like an image URL. Preferred
// keys of an object are checked before its other fields, and nesting is bounded.
func FindAny(node any) string {
	var found string
	scrape.Walk(node, scanDepth, func(v any, _ int) bool {
		switch t := v.(type) {
		case map[string]any:
			if s := imageField(t); s != "" {
				found = s
				return false
			}
		case string:
			if LooksLikeImage(t) {
				found = strings.TrimSpace(t)
				return false
			}
		}
		return true
	})
	return found
}

// LooksLikeImage reports whether s matches an image path or extension
func LooksLikeImage(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && (imagePathPattern.MatchString(s) || imageExtPattern.MatchString(s))
}

func imageField(n scrape.Node) string {
	for _, key := range preferredKeys {
		if s, ok := n[key].(string); ok && LooksLikeImage(s) {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func unwrap(input any) string {
	switch t := input.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				return strings.TrimSpace(s)
			}
		}
		if len(t) > 0 {
			return unwrap(t[0])
		}
	case map[string]any:
		for _, key := range wrapperKeys {
			if v, ok := t[key]; ok && v != nil {
				if s, ok := v.(string); ok {
					return strings.TrimSpace(s)
				}
				return ""
			}
		}
	}
	return ""
}

func hasScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// lenientQuery splits a query that url.ParseQuery rejects, keeping what it can
func lenientQuery(raw string) url.Values {
	q := url.Values{}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		q.Add(key, value)
	}
	return q
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
