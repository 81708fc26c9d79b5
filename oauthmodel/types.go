package oauthmodel

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
type GrantType string

const (
	// PasswordGrant exchanges a username and password for tokens.
	// Token request includes: username, password, client_id, client_secret, scope
	PasswordGrant GrantType = "password"

	// RefreshTokenGrant exchanges a refresh token for a new access token.
	// Token request includes: refresh_token, client_id, client_secret
	RefreshTokenGrant GrantType = "refresh_token"
)

// Credentials are what a user types into the login form.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
