// Package sessions manages the locally stored session: access token, its expiry, the
// refresh token cookie and the cached user profile.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-session-client/cookies"
	"github.com/jrsteele09/go-session-client/internal/config"
	"github.com/jrsteele09/go-session-client/oauthmodel"
	"github.com/jrsteele09/go-session-client/storage"
)

const (
	defaultAccessTokenTTL   = time.Hour
	defaultRefreshCookieTTL = 30 * 24 * time.Hour
	defaultExpiryBuffer     = 5 * time.Minute
)

// Manager reads and writes the session. A Manager without a store or a jar is
// headless: every read returns its zero value and every write is a no-op, the same
// way the session layer behaves while rendering on a server.
type Manager struct {
	store            storage.Store
	jar              *cookies.Jar
	clock            clockwork.Clock
	secureCookies    bool
	defaultTTL       time.Duration
	refreshCookieTTL time.Duration
	expiryBuffer     time.Duration
	logger           zerolog.Logger
}

type Option func(*Manager)

func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithSecureCookies sets the Secure attribute on the session cookies. The client
// enables it when the API base URL is https.
func WithSecureCookies(secure bool) Option {
	return func(m *Manager) {
		m.secureCookies = secure
	}
}

func WithConfig(cfg config.SessionConfig) Option {
	return func(m *Manager) {
		m.defaultTTL = cfg.GetDefaultAccessTokenTTL()
		m.refreshCookieTTL = cfg.GetRefreshCookieTTL()
		m.expiryBuffer = cfg.GetExpiryBuffer()
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func New(store storage.Store, jar *cookies.Jar, options ...Option) *Manager {
	m := &Manager{
		store:            store,
		jar:              jar,
		clock:            clockwork.NewRealClock(),
		defaultTTL:       defaultAccessTokenTTL,
		refreshCookieTTL: defaultRefreshCookieTTL,
		expiryBuffer:     defaultExpiryBuffer,
		logger:           log.Logger,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Headless returns a Manager with no local state at all.
func Headless() *Manager {
	return New(nil, nil)
}

func (m *Manager) IsHeadless() bool {
	return m.store == nil || m.jar == nil
}

// ExpiryBuffer is how long before the recorded expiry the access token is already
// considered expired.
func (m *Manager) ExpiryBuffer() time.Duration {
	return m.expiryBuffer
}

// StoreTokens persists a token response. The absolute expiry is computed from
// expires_in (or the default TTL) and stored instead of the relative lifetime. The
// refresh token cookie is only written when the response carried one.
func (m *Manager) StoreTokens(ctx context.Context, tokens *oauthmodel.AuthTokens) error {
	if m.IsHeadless() || tokens == nil {
		return nil
	}

	ttl := tokens.TTL(m.defaultTTL)
	expiry := m.clock.Now().Add(ttl)

	if err := m.store.Set(ctx, AccessTokenKey, tokens.AccessToken); err != nil {
		return fmt.Errorf("[StoreTokens] access token: %w", err)
	}
	if err := m.store.Set(ctx, AccessTokenExpiryKey, strconv.FormatInt(expiry.UnixMilli(), 10)); err != nil {
		return fmt.Errorf("[StoreTokens] expiry: %w", err)
	}

	if err := m.jar.Set(ctx, m.cookie(AccessTokenCookie, tokens.AccessToken, ttl)); err != nil {
		return fmt.Errorf("[StoreTokens] access token cookie: %w", err)
	}

	if tokens.HasRefreshToken() {
		if err := m.jar.Set(ctx, m.cookie(RefreshTokenCookie, *tokens.RefreshToken, m.refreshCookieTTL)); err != nil {
			return fmt.Errorf("[StoreTokens] refresh token cookie: %w", err)
		}
	}

	m.logger.Debug().Time("expires_at", expiry).Bool("refresh_token", tokens.HasRefreshToken()).Msg("session tokens stored")
	return nil
}

func (m *Manager) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		Secure:   m.secureCookies,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	}
}

// AccessToken returns the stored access token, or "" when there is none or it is
// inside the expiry buffer. An expired token is cleared before returning.
func (m *Manager) AccessToken(ctx context.Context) string {
	if m.IsHeadless() {
		return ""
	}
	if m.IsAccessTokenExpired(ctx) {
		m.ClearAccessToken(ctx)
		return ""
	}
	return m.read(ctx, AccessTokenKey)
}

// IsAccessTokenExpired is true when no expiry is recorded or the current time is
// within the expiry buffer of it.
func (m *Manager) IsAccessTokenExpired(ctx context.Context) bool {
	expiry, err := m.TokenExpiry(ctx)
	if err != nil || expiry.IsZero() {
		return true
	}
	return !m.clock.Now().Before(expiry.Add(-m.expiryBuffer))
}

// TokenExpiry returns the recorded absolute expiry, or the zero time when none is
// recorded. Only storage failures are returned as errors.
func (m *Manager) TokenExpiry(ctx context.Context) (time.Time, error) {
	if m.IsHeadless() {
		return time.Time{}, nil
	}

	raw, err := m.store.Get(ctx, AccessTokenExpiryKey)
	if errors.Is(err, storage.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("[TokenExpiry] %w", err)
	}

	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		m.logger.Warn().Err(err).Msg("stored token expiry is not a number, ignoring")
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}

// TimeUntilExpiry returns how long the access token has left, ignoring the buffer.
// It is zero or negative when the token has expired or no expiry is recorded.
func (m *Manager) TimeUntilExpiry(ctx context.Context) (time.Duration, error) {
	expiry, err := m.TokenExpiry(ctx)
	if err != nil {
		return 0, err
	}
	if expiry.IsZero() {
		return 0, nil
	}
	return expiry.Sub(m.clock.Now()), nil
}

// HasValidSession is true iff a refresh token cookie exists. The access token is not
// consulted: an expired access token with a refresh token is still a session.
func (m *Manager) HasValidSession(ctx context.Context) bool {
	return m.RefreshToken(ctx) != ""
}

func (m *Manager) RefreshToken(ctx context.Context) string {
	if m.IsHeadless() {
		return ""
	}
	v, _ := m.jar.Value(ctx, RefreshTokenCookie)
	return v
}

// User returns the cached profile, or nil.
func (m *Manager) User(ctx context.Context) *User {
	if m.IsHeadless() {
		return nil
	}
	raw := m.read(ctx, UserKey)
	if raw == "" {
		return nil
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		m.logger.Warn().Err(err).Msg("stored user profile unreadable")
		return nil
	}
	return &u
}

func (m *Manager) StoreUser(ctx context.Context, user *User) error {
	if m.IsHeadless() || user == nil {
		return nil
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("[StoreUser] encode: %w", err)
	}
	if err := m.store.Set(ctx, UserKey, string(raw)); err != nil {
		return fmt.Errorf("[StoreUser] %w", err)
	}
	return nil
}

// ClearAccessToken removes the access token and its expiry, leaving the refresh token
// and profile in place.
func (m *Manager) ClearAccessToken(ctx context.Context) {
	if m.IsHeadless() {
		return
	}
	m.deleteKeys(ctx, AccessTokenKey, AccessTokenExpiryKey)
	m.deleteCookies(ctx, AccessTokenCookie)
}

// ClearSession removes every key and cookie the session layer writes.
func (m *Manager) ClearSession(ctx context.Context) {
	if m.IsHeadless() {
		return
	}
	m.deleteKeys(ctx, AccessTokenKey, AccessTokenExpiryKey, UserKey)
	m.deleteCookies(ctx, AccessTokenCookie, RefreshTokenCookie)
	m.logger.Debug().Msg("session cleared")
}

// ClearAllAuthData goes further than ClearSession: it also removes any key or cookie
// with the auth prefix and the keys used by older client versions.
func (m *Manager) ClearAllAuthData(ctx context.Context) {
	if m.IsHeadless() {
		return
	}
	m.ClearSession(ctx)

	keys, err := m.store.Keys(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("listing keys for auth cleanup failed")
	}
	var stale []string
	for _, k := range keys {
		if strings.HasPrefix(k, AuthKeyPrefix) {
			stale = append(stale, k)
		}
	}
	m.deleteKeys(ctx, append(stale, legacyKeys...)...)

	for _, c := range m.jar.All(ctx) {
		if strings.HasPrefix(c.Name, AuthKeyPrefix) {
			m.deleteCookies(ctx, c.Name)
		}
	}
	m.logger.Info().Int("prefixed_keys", len(stale)).Msg("all auth data cleared")
}

func (m *Manager) read(ctx context.Context, key string) string {
	v, err := m.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn().Err(err).Str("key", key).Msg("session read failed")
		}
		return ""
	}
	return v
}

func (m *Manager) deleteKeys(ctx context.Context, keys ...string) {
	for _, k := range keys {
		if err := m.store.Delete(ctx, k); err != nil {
			m.logger.Warn().Err(err).Str("key", k).Msg("session delete failed")
		}
	}
}

func (m *Manager) deleteCookies(ctx context.Context, names ...string) {
	for _, n := range names {
		if err := m.jar.Delete(ctx, n); err != nil {
			m.logger.Warn().Err(err).Str("cookie", n).Msg("cookie delete failed")
		}
	}
}
