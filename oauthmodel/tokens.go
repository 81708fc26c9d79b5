package oauthmodel

import "time"

// AuthTokens is the token endpoint response as defined in RFC 6749 section 5.1.
// It is consumed immediately: the relative ExpiresIn is turned into an absolute
// expiry and only that is persisted.
type AuthTokens struct {
	// AccessToken is the short-lived bearer credential.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Only present: when the server issued or rotated one.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// TokenType indicates how to use the access token (normally "bearer").
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Zero means the server did not say.
	ExpiresIn int64 `json:"expires_in"`

	// Scope is the space-separated list of granted scopes.
	Scope *string `json:"scope,omitempty"`
}

// TTL returns the access token lifetime, or fallback when the server gave none.
func (t AuthTokens) TTL(fallback time.Duration) time.Duration {
	if t.ExpiresIn <= 0 {
		return fallback
	}
	return time.Duration(t.ExpiresIn) * time.Second
}

// HasRefreshToken reports whether the response carried a non-empty refresh token.
func (t AuthTokens) HasRefreshToken() bool {
	return t.RefreshToken != nil && *t.RefreshToken != ""
}
