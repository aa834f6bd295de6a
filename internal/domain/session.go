package domain

import "time"

// Session is the bearer token and cookie bundle needed by the authenticated retailer API.
// A Session is never mutated after creation; refreshing replaces it wholesale.
type Session struct {
	Token        string    `json:"token"`
	CookieHeader string    `json:"cookieHeader"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// FreshAt reports whether the session is still usable at now with the given safety margin
func (s *Session) FreshAt(now time.Time, margin time.Duration) bool {
	if s == nil || s.Token == "" {
		return false
	}
	return s.ExpiresAt.After(now.Add(margin))
}
