// Package cookies keeps the session cookies in a storage.Store so they survive
// restarts, and exposes them as an http.CookieJar for API calls.
package cookies

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-session-client/storage"
)

// KeyPrefix is prepended to cookie names when they are written to the store.
const KeyPrefix = "cookie:"

type record struct {
	Value    string        `json:"value"`
	Path     string        `json:"path,omitempty"`
	Expires  time.Time     `json:"expires,omitempty"`
	Secure   bool          `json:"secure,omitempty"`
	HTTPOnly bool          `json:"http_only,omitempty"`
	SameSite http.SameSite `json:"same_site,omitempty"`
}

var _ http.CookieJar = (*Jar)(nil)

// Jar stores cookies by name. It is host-only: every cookie belongs to the single
// API host the jar was created for.
type Jar struct {
	store  storage.Store
	host   string
	clock  clockwork.Clock
	logger zerolog.Logger
}

type Option func(*Jar)

// WithHost restricts Cookies to requests for host.
func WithHost(host string) Option {
	return func(j *Jar) {
		j.host = host
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(j *Jar) {
		j.clock = clock
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(j *Jar) {
		j.logger = logger
	}
}

func New(store storage.Store, options ...Option) *Jar {
	j := &Jar{
		store:  store,
		clock:  clockwork.NewRealClock(),
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(j)
	}
	return j
}

// Set stores c. MaxAge takes precedence over Expires; a negative MaxAge deletes the
// cookie. A cookie with neither is kept until deleted.
func (j *Jar) Set(ctx context.Context, c *http.Cookie) error {
	if c.MaxAge < 0 {
		return j.Delete(ctx, c.Name)
	}

	r := record{
		Value:    c.Value,
		Path:     c.Path,
		Expires:  c.Expires,
		Secure:   c.Secure,
		HTTPOnly: c.HttpOnly,
		SameSite: c.SameSite,
	}
	if c.MaxAge > 0 {
		r.Expires = j.clock.Now().Add(time.Duration(c.MaxAge) * time.Second)
	}

	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return j.store.Set(ctx, KeyPrefix+c.Name, string(raw))
}

// Get returns the live cookie called name. Expired cookies are removed on read.
func (j *Jar) Get(ctx context.Context, name string) (*http.Cookie, bool) {
	raw, err := j.store.Get(ctx, KeyPrefix+name)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			j.logger.Warn().Err(err).Str("cookie", name).Msg("cookie read failed")
		}
		return nil, false
	}

	var r record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		j.logger.Warn().Err(err).Str("cookie", name).Msg("cookie record corrupt, dropping")
		_ = j.store.Delete(ctx, KeyPrefix+name)
		return nil, false
	}

	if !r.Expires.IsZero() && !j.clock.Now().Before(r.Expires) {
		_ = j.store.Delete(ctx, KeyPrefix+name)
		return nil, false
	}

	return &http.Cookie{
		Name:     name,
		Value:    r.Value,
		Path:     r.Path,
		Expires:  r.Expires,
		Secure:   r.Secure,
		HttpOnly: r.HTTPOnly,
		SameSite: r.SameSite,
	}, true
}

// Value is Get without the metadata.
func (j *Jar) Value(ctx context.Context, name string) (string, bool) {
	c, ok := j.Get(ctx, name)
	if !ok {
		return "", false
	}
	return c.Value, true
}

func (j *Jar) Delete(ctx context.Context, name string) error {
	return j.store.Delete(ctx, KeyPrefix+name)
}

// All returns every live cookie ordered by name.
func (j *Jar) All(ctx context.Context) []*http.Cookie {
	keys, err := j.store.Keys(ctx)
	if err != nil {
		j.logger.Warn().Err(err).Msg("cookie listing failed")
		return nil
	}

	var out []*http.Cookie
	for _, k := range keys {
		if !strings.HasPrefix(k, KeyPrefix) {
			continue
		}
		if c, ok := j.Get(ctx, strings.TrimPrefix(k, KeyPrefix)); ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// SetCookies implements http.CookieJar for Set-Cookie headers sent by the API.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if !j.matchesHost(u) {
		return
	}
	ctx := context.Background()
	for _, c := range cookies {
		if err := j.Set(ctx, c); err != nil {
			j.logger.Warn().Err(err).Str("cookie", c.Name).Msg("storing response cookie failed")
		}
	}
}

// Cookies implements http.CookieJar. Secure cookies are only sent over https.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	if !j.matchesHost(u) {
		return nil
	}

	var out []*http.Cookie
	for _, c := range j.All(context.Background()) {
		if c.Secure && u.Scheme != "https" {
			continue
		}
		if c.Path != "" && !strings.HasPrefix(pathOrRoot(u.Path), c.Path) {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

func (j *Jar) matchesHost(u *url.URL) bool {
	return j.host == "" || strings.EqualFold(u.Hostname(), j.host)
}

func pathOrRoot(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
