package models

import (
	"time"
)

// OAuthTokenSet holds the credentials for the user's linked external
// calendar account. Stored as a whole and overwritten as a whole: partial
// field merges would let a stale refresh token survive a re-link.
type OAuthTokenSet struct {
	AccessToken string

	// Empty if the provider issued no refresh token
	RefreshToken string

	// Server-asserted expiry moment. Zero if the provider omitted
	// 'expires_in'; a zero expiry is treated as already stale, never
	// estimated client-side.
	ExpiresAt time.Time

	Scope string
}

// FreshAt reports whether the access token is still usable at 'now' with the
// given safety margin left before expiry.
func (t OAuthTokenSet) FreshAt(now time.Time, margin time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return t.ExpiresAt.After(now.Add(margin))
}
