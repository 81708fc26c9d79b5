package config

import (
	"strings"
	"time"
)

type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetScopes() []string
	GetIssuer() string
	GetTokenPath() string
	GetProbePath() string
	GetHTTPTimeout() time.Duration
}

var defaultScopes = []string{
	"user",
	"organization",
	"namespace",
	"project",
	"role",
	"todo",
	"notification",
}

type OAuth struct {
	values values
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetClientID() string {
	return o.values.get("ELEMO_CLIENT_ID", "")
}

func (o OAuth) GetClientSecret() string {
	return o.values.get("ELEMO_CLIENT_SECRET", "")
}

func (o OAuth) GetScopes() []string {
	raw := o.values.get("ELEMO_SCOPES", "")
	if raw == "" {
		return append([]string(nil), defaultScopes...)
	}
	return splitList(raw)
}

// GetIssuer returns the OIDC issuer used for discovery. Empty disables discovery and
// the token endpoint is built from the base URL instead.
func (o OAuth) GetIssuer() string {
	return o.values.get("ELEMO_ISSUER", "")
}

func (o OAuth) GetTokenPath() string {
	return o.values.get("ELEMO_TOKEN_PATH", "/oauth/token")
}

func (o OAuth) GetProbePath() string {
	return o.values.get("ELEMO_PROBE_PATH", "/api/v1/users")
}

func (o OAuth) GetHTTPTimeout() time.Duration {
	return getDuration(o.values, "ELEMO_HTTP_TIMEOUT", 30*time.Second)
}

func splitList(raw string) []string {
	var cleaned []string
	for _, p := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' }) {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

func getDuration(v values, envVar string, def time.Duration) time.Duration {
	if raw := v.get(envVar, ""); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return def
}
