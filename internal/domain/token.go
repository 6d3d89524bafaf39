package domain

import "time"

// ExtendedTokenLifetime is the heuristic cutoff beyond which a token is
// considered long-lived and not worth extending again.
const ExtendedTokenLifetime = 30 * 24 * time.Hour

// OAuthToken is the credential used to query the Graph API on behalf of a
// user. Token values are unbounded; Facebook gives no length guarantee.
type OAuthToken struct {
	ID        int64
	Token     string
	IssuedAt  time.Time
	ExpiresAt *time.Time
}

// Expired reports whether the token's expiry has passed. Tokens without an
// expiry never expire.
func (t OAuthToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}

// Extended reports whether the token was granted a long lifetime.
func (t OAuthToken) Extended() bool {
	if t.ExpiresAt == nil {
		return true
	}
	return t.ExpiresAt.Sub(t.IssuedAt) > ExtendedTokenLifetime
}
