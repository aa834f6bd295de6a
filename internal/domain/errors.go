package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTerm is returned when the search term is missing or empty after cleaning
	ErrInvalidTerm = errors.New("missing search term")

	// ErrUnknownRetailer is returned for an unrecognised retailer slug
	ErrUnknownRetailer = errors.New("unknown retailer")

	// ErrUpstreamFailure is returned when a retailer request fails or returns unusable data
	ErrUpstreamFailure = errors.New("upstream request failed")

	// ErrNoSession is returned when the token handshake yields no bearer token
	ErrNoSession = errors.New("session token not obtained")

	// ErrAllProvidersFailed is returned when every retailer failed for a search
	ErrAllProvidersFailed = errors.New("all retailers failed")

	// ErrHostNotAllowed is returned when the image proxy target is outside the allow-list
	ErrHostNotAllowed = errors.New("host not allowed")

	// ErrInvalidURL is returned when the image proxy target cannot be parsed
	ErrInvalidURL = errors.New("invalid url")

	// ErrImageTooLarge is returned when a proxied image exceeds the configured size
	ErrImageTooLarge = errors.New("image exceeds size limit")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")
)

// StatusError captures a non-2xx upstream response
type StatusError struct {
	Retailer Retailer
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s upstream status %d", e.Retailer, e.Status)
}

// Unwrap lets errors.Is match ErrUpstreamFailure
func (e *StatusError) Unwrap() error {
	return ErrUpstreamFailure
}

// IsAuthFailure reports whether err is an upstream 401/403
func IsAuthFailure(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == 401 || se.Status == 403
	}
	return false
}
