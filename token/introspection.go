// Package token reads the claims of the access tokens held by the session. Nothing
// here verifies a signature: the client has no verification keys, and the values are
// only used for display and diagnostics.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/jrsteele09/go-session-client/internal/utils"
)

// ErrNotJWT is returned for opaque access tokens.
var ErrNotJWT = errors.New("token is not a JWT")

// Introspection describes an access token as the client sees it.
type Introspection struct {
	Active    bool      `json:"active"`              // exp is in the future
	Subject   string    `json:"sub,omitempty"`       // Users unique ID
	Issuer    string    `json:"iss,omitempty"`       // Issuer of the token
	Audience  []string  `json:"aud,omitempty"`       // Audience
	Scope     []string  `json:"scope,omitempty"`     // Granted scopes
	Roles     []string  `json:"roles,omitempty"`     // Roles assigned to the User
	JTI       string    `json:"jti,omitempty"`       // Token ID
	IssuedAt  time.Time `json:"iat,omitempty"`       // Issued at time
	ExpiresAt time.Time `json:"exp,omitempty"`       // Expiration
	Algorithm string    `json:"algorithm,omitempty"` // Header alg
}

// Introspect decodes rawToken without verifying it. now decides Active.
func Introspect(rawToken string, now time.Time) (*Introspection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &Introspection{Active: false}, nil
	}
	if strings.Count(rawToken, ".") != 2 {
		return nil, ErrNotJWT
	}

	unverifiedToken, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := unverifiedToken.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims")
	}

	out := &Introspection{
		Algorithm: unverifiedToken.Method.Alg(),
	}
	out.Subject, _ = claims.GetSubject()
	out.Issuer, _ = claims.GetIssuer()
	if aud, err := claims.GetAudience(); err == nil {
		out.Audience = aud
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	out.JTI, _ = claims["jti"].(string)

	out.Scope = utils.Strings(claims["scope"])
	if roles := utils.Strings(claims["roles"]); len(roles) > 0 {
		out.Roles = roles
	}

	out.Active = !out.ExpiresAt.IsZero() && now.Before(out.ExpiresAt)
	return out, nil
}

// ExpiresIn is the time left before exp, zero once passed.
func (i *Introspection) ExpiresIn(now time.Time) time.Duration {
	if i.ExpiresAt.IsZero() || !now.Before(i.ExpiresAt) {
		return 0
	}
	return i.ExpiresAt.Sub(now)
}
