package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-session-client/internal/config"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/oauthmodel"
	"github.com/jrsteele09/go-session-client/sessions"
)

// Settings locate the token endpoint and identify the client to it.
type Settings struct {
	BaseURL      string   // e.g. "https://api.elemo.app"
	ClientID     string   // OAuth client id
	ClientSecret string   // OAuth client secret, sent in the form body
	Scopes       []string // requested on the password grant
	TokenPath    string   // default "/oauth/token"
	ProbePath    string   // default "/api/v1/users"
}

// Client performs the token endpoint calls. It holds no session state.
type Client struct {
	oauth      *oauth2.Config
	probeURL   string
	httpClient *http.Client
	provider   *oidc.Provider
	validate   *validator.Validate
	logger     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithProvider takes the token endpoint from an OIDC discovery document and enables
// UserInfo.
func WithProvider(provider *oidc.Provider) Option {
	return func(c *Client) {
		c.provider = provider
	}
}

func New(settings Settings, options ...Option) (*Client, error) {
	base := strings.TrimRight(settings.BaseURL, "/")
	if base == "" {
		return nil, errors.New("[auth.New] base URL is required")
	}
	if settings.ClientID == "" {
		return nil, errors.New("[auth.New] client ID is required")
	}
	if settings.TokenPath == "" {
		settings.TokenPath = "/oauth/token"
	}
	if settings.ProbePath == "" {
		settings.ProbePath = "/api/v1/users"
	}

	c := &Client{
		probeURL:   base + settings.ProbePath,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		validate:   validator.New(),
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}

	endpoint := oauth2.Endpoint{TokenURL: base + settings.TokenPath}
	if c.provider != nil {
		endpoint = c.provider.Endpoint()
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	c.oauth = &oauth2.Config{
		ClientID:     settings.ClientID,
		ClientSecret: settings.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       settings.Scopes,
	}
	return c, nil
}

// NewFromConfig builds a Client from the application configuration. When an issuer
// is configured its discovery document is fetched first.
func NewFromConfig(ctx context.Context, cfg config.Config, options ...Option) (*Client, error) {
	httpClient := &http.Client{Timeout: cfg.GetHTTPTimeout()}
	opts := append([]Option{WithHTTPClient(httpClient)}, options...)

	if issuer := cfg.GetIssuer(); issuer != "" {
		provider, err := oidc.NewProvider(oidc.ClientContext(ctx, httpClient), issuer)
		if err != nil {
			return nil, errors.Wrapf(err, "[auth.NewFromConfig] discovery for %s", issuer)
		}
		opts = append(opts, WithProvider(provider))
	}

	return New(Settings{
		BaseURL:      cfg.GetBaseURL(),
		ClientID:     cfg.GetClientID(),
		ClientSecret: cfg.GetClientSecret(),
		Scopes:       cfg.GetScopes(),
		TokenPath:    cfg.GetTokenPath(),
		ProbePath:    cfg.GetProbePath(),
	}, opts...)
}

// TokenURL is the endpoint the grants are posted to.
func (c *Client) TokenURL() string {
	return c.oauth.Endpoint.TokenURL
}

// Login performs the password grant.
func (c *Client) Login(ctx context.Context, credentials oauthmodel.Credentials) (*oauthmodel.AuthTokens, error) {
	if err := c.validate.Struct(credentials); err != nil {
		return nil, &Error{
			Op:      "login",
			Message: "username and password are required",
			Err:     errors.Wrap(apperrors.ErrInvalidCredentials, err.Error()),
		}
	}

	tok, err := c.oauth.PasswordCredentialsToken(c.clientContext(ctx), credentials.Username, credentials.Password)
	if err != nil {
		authErr := translateError("login", loginFailedMsg, err)
		c.logger.Debug().Int("status", authErr.StatusCode).Msg(authErr.Detail())
		return nil, authErr
	}

	c.logger.Debug().Str("username", credentials.Username).Msg("password grant succeeded")
	return toAuthTokens(tok), nil
}

// RefreshToken performs the refresh grant. The refresh token is only included in
// the result when the server rotated it.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*oauthmodel.AuthTokens, error) {
	if refreshToken == "" {
		return nil, &Error{Op: "refresh", Message: refreshFailedMsg, Err: apperrors.ErrNoRefreshToken}
	}

	tok, err := c.oauth.TokenSource(c.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		authErr := translateError("refresh", refreshFailedMsg, err)
		c.logger.Debug().Int("status", authErr.StatusCode).Msg(authErr.Detail())
		return nil, authErr
	}
	return toAuthTokens(tok), nil
}

// ValidateToken probes a protected resource with accessToken. Any transport error
// counts as invalid.
func (c *Client) ValidateToken(ctx context.Context, accessToken string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.probeURL, nil)
	if err != nil {
		c.logger.Debug().Err(err).Msg("building validation request failed")
		return false
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Msg("token validation request failed")
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// UserInfo loads the profile from the OIDC userinfo endpoint. It needs WithProvider.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*sessions.User, error) {
	if c.provider == nil {
		return nil, apperrors.ErrUnsupported
	}

	info, err := c.provider.UserInfo(c.clientContext(ctx), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	if err != nil {
		return nil, fmt.Errorf("[UserInfo] %w", err)
	}

	var claims struct {
		Sub               string `json:"sub"`
		Email             string `json:"email"`
		PreferredUsername string `json:"preferred_username"`
		GivenName         string `json:"given_name"`
		FamilyName        string `json:"family_name"`
		Picture           string `json:"picture"`
	}
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("[UserInfo] claims: %w", err)
	}

	return &sessions.User{
		ID:        claims.Sub,
		Username:  claims.PreferredUsername,
		Email:     claims.Email,
		FirstName: claims.GivenName,
		LastName:  claims.FamilyName,
		Picture:   claims.Picture,
	}, nil
}

func (c *Client) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func toAuthTokens(tok *oauth2.Token) *oauthmodel.AuthTokens {
	out := &oauthmodel.AuthTokens{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresIn:   int64Value(tok.Extra("expires_in")),
	}
	if rt := stringValue(tok.Extra("refresh_token")); rt != "" {
		out.RefreshToken = &rt
	}
	if scope := stringValue(tok.Extra("scope")); scope != "" {
		out.Scope = &scope
	}
	return out
}

func stringValue(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func int64Value(input any) int64 {
	switch v := input.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
