package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Provider searches a single retailer and returns normalized results.
// Implementations fall back to placeholders where the retailer supports it;
// a returned error means the retailer produced nothing usable.
type Provider interface {
	Retailer() Retailer
	Search(ctx context.Context, term string, limit int) ([]ProviderResult, error)
}

// SessionSource hands out the current credential bundle for the authenticated retailer
type SessionSource interface {
	Current(ctx context.Context, term string) (*Session, error)
	Refresh(ctx context.Context, term string, stale *Session) (*Session, error)
}
