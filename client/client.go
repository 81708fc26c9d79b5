// Package client wires the session layer together: storage, cookies, the session
// manager, the auth client, the refresh scheduler and its events.
package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-session-client/auth"
	"github.com/jrsteele09/go-session-client/cookies"
	"github.com/jrsteele09/go-session-client/diagnostics"
	"github.com/jrsteele09/go-session-client/events"
	"github.com/jrsteele09/go-session-client/events/redisbridge"
	"github.com/jrsteele09/go-session-client/internal/config"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/oauthmodel"
	"github.com/jrsteele09/go-session-client/sessions"
	"github.com/jrsteele09/go-session-client/storage"
	"github.com/jrsteele09/go-session-client/storage/secure"
	"github.com/jrsteele09/go-session-client/token/refresh"
)

type Client struct {
	store      storage.Store
	jar        *cookies.Jar
	session    *sessions.Manager
	auth       *auth.Client
	bus        *events.Bus
	bridge     *redisbridge.Bridge
	scheduler  *refresh.Scheduler
	inspector  *diagnostics.Inspector
	httpClient *http.Client
	closers    []func() error
	logger     zerolog.Logger
}

// New builds a Client from cfg. Auto refresh is not started; call Start to resume a
// stored session or Login to create one.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	base, err := url.Parse(cfg.GetBaseURL())
	if err != nil || base.Host == "" {
		return nil, errors.Errorf("[client.New] invalid base URL %q", cfg.GetBaseURL())
	}

	c := &Client{logger: o.logger}
	c.httpClient = o.httpClient
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: cfg.GetHTTPTimeout()}
	}
	if cfg.GetEnv() == "DEV" {
		c.httpClient = withRequestLogging(c.httpClient, o.logger)
	}

	c.store, err = c.openStore(ctx, cfg, o)
	if err != nil {
		_ = c.Close()
		return nil, errors.Wrap(err, "[client.New] storage")
	}

	fingerprint := secure.HostFingerprint(cfg.GetUserAgent())
	if cfg.GetStableFingerprint() {
		fingerprint = secure.WithoutKeyCount(fingerprint)
	}
	secureOpts := append([]secure.Option{
		secure.WithFingerprint(fingerprint),
		secure.WithLogger(o.logger),
	}, o.secureOptions...)
	encrypted := secure.New(c.store, secureOpts...)

	c.jar = cookies.New(c.store,
		cookies.WithHost(base.Hostname()),
		cookies.WithClock(o.clock),
		cookies.WithLogger(o.logger),
	)
	c.session = sessions.New(encrypted, c.jar,
		sessions.WithClock(o.clock),
		sessions.WithSecureCookies(base.Scheme == "https"),
		sessions.WithConfig(cfg),
		sessions.WithLogger(o.logger),
	)

	c.auth, err = auth.NewFromConfig(ctx, cfg, auth.WithHTTPClient(c.httpClient), auth.WithLogger(o.logger))
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	c.bus = events.NewBus(events.WithLogger(o.logger))
	if cfg.GetEventsViaRedis() {
		c.bridge = redisbridge.New(c.redisClient(cfg, o), c.bus, redisbridge.WithLogger(o.logger))
		if err := c.bridge.Start(ctx); err != nil {
			_ = c.Close()
			return nil, errors.Wrap(err, "[client.New] event bridge")
		}
	}

	c.scheduler = refresh.NewScheduler(c.session, c.auth,
		refresh.WithBus(c.bus),
		refresh.WithClock(o.clock),
		refresh.WithConfig(cfg),
		refresh.WithMetrics(refresh.NewMetrics(o.registerer)),
		refresh.WithLogger(o.logger),
	)
	c.inspector = diagnostics.New(c.session, c.scheduler, c.store,
		diagnostics.WithClock(o.clock),
		diagnostics.WithLogger(o.logger),
	)
	return c, nil
}

func (c *Client) Session() *sessions.Manager {
	return c.session
}

func (c *Client) Scheduler() *refresh.Scheduler {
	return c.scheduler
}

// Inspector only works in builds made with -tags authdebug.
func (c *Client) Inspector() *diagnostics.Inspector {
	return c.inspector
}

func (c *Client) Subscribe(handler events.Handler) (unsubscribe func()) {
	return c.bus.Subscribe(handler)
}

// Start resumes auto refresh for a stored session.
func (c *Client) Start(ctx context.Context) {
	c.scheduler.Start(ctx)
}

// Login exchanges credentials for tokens, stores them and starts auto refresh. The
// profile is stored too when the server offers a userinfo endpoint.
func (c *Client) Login(ctx context.Context, credentials oauthmodel.Credentials) (*oauthmodel.AuthTokens, error) {
	tokens, err := c.auth.Login(ctx, credentials)
	if err != nil {
		return nil, err
	}
	if err := c.session.StoreTokens(ctx, tokens); err != nil {
		return nil, errors.Wrap(err, "[Login] store tokens")
	}

	user, err := c.auth.UserInfo(ctx, tokens.AccessToken)
	switch {
	case err == nil:
		if err := c.session.StoreUser(ctx, user); err != nil {
			c.logger.Warn().Err(err).Msg("storing user profile failed")
		}
	case !apperrors.Is(err, apperrors.ErrUnsupported):
		c.logger.Warn().Err(err).Msg("fetching user profile failed")
	}

	c.scheduler.Start(ctx)
	c.logger.Info().Str("username", credentials.Username).Msg("logged in")
	return tokens, nil
}

// Logout stops auto refresh and removes the session. Nothing is sent to the server.
func (c *Client) Logout(ctx context.Context) {
	c.scheduler.Stop()
	c.session.ClearSession(ctx)
	c.logger.Info().Msg("logged out")
}

// AccessToken returns a usable access token, refreshing it first when it has expired
// and a refresh token is available.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if at := c.session.AccessToken(ctx); at != "" {
		return at, nil
	}
	if !c.session.HasValidSession(ctx) {
		return "", apperrors.ErrNoSession
	}
	tokens, err := c.scheduler.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return tokens.AccessToken, nil
}

// TokenSource adapts the client for oauth2.Transport.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, client: c}
}

type tokenSource struct {
	ctx    context.Context
	client *Client
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	at, err := ts.client.AccessToken(ts.ctx)
	if err != nil {
		return nil, err
	}
	expiry, _ := ts.client.session.TokenExpiry(ts.ctx)
	return &oauth2.Token{
		AccessToken: at,
		TokenType:   "Bearer",
		Expiry:      expiry.Add(-ts.client.session.ExpiryBuffer()),
	}, nil
}

// HTTPClient returns a client that authorizes every request with the session's access
// token and carries the session cookies.
func (c *Client) HTTPClient(ctx context.Context) *http.Client {
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: c.TokenSource(ctx), Base: base},
		Jar:       c.jar,
		Timeout:   c.httpClient.Timeout,
	}
}

// Validate probes the API with the current access token.
func (c *Client) Validate(ctx context.Context) (bool, error) {
	at, err := c.AccessToken(ctx)
	if err != nil {
		return false, err
	}
	return c.auth.ValidateToken(ctx, at), nil
}

// Close stops auto refresh and releases the storage and Redis connections. The
// stored session is kept.
func (c *Client) Close() error {
	if c.scheduler != nil {
		c.scheduler.Stop()
	}
	var firstErr error
	if c.bridge != nil {
		firstErr = c.bridge.Close()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closers = nil
	return firstErr
}
