// Package diagnostics exposes the session state for troubleshooting. Everything here
// returns ErrDisabled unless the binary was built with -tags authdebug.
package diagnostics

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/sessions"
	"github.com/jrsteele09/go-session-client/storage"
	"github.com/jrsteele09/go-session-client/token"
	"github.com/jrsteele09/go-session-client/token/refresh"
)

var ErrDisabled = apperrors.ErrDisabled

// Snapshot is the session as seen by the client at one instant. Token values are
// never included.
type Snapshot struct {
	HasSession      bool                 `json:"has_session"`
	HasAccessToken  bool                 `json:"has_access_token"`
	Expired         bool                 `json:"expired"`
	ExpiresAt       time.Time            `json:"expires_at"`
	TimeUntilExpiry time.Duration        `json:"time_until_expiry"`
	Scheduler       string               `json:"scheduler"`
	NextRefreshAt   time.Time            `json:"next_refresh_at"`
	Claims          *token.Introspection `json:"claims,omitempty"`
	User            *sessions.User       `json:"user,omitempty"`
	StoreKeys       []string             `json:"store_keys"`
}

type Inspector struct {
	session   *sessions.Manager
	scheduler *refresh.Scheduler
	store     storage.Store
	clock     clockwork.Clock
	logger    zerolog.Logger
}

type Option func(*Inspector)

func WithClock(clock clockwork.Clock) Option {
	return func(i *Inspector) {
		i.clock = clock
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(i *Inspector) {
		i.logger = logger
	}
}

// New builds an Inspector. store is the raw store underneath the session, used only
// to list key names.
func New(session *sessions.Manager, scheduler *refresh.Scheduler, store storage.Store, options ...Option) *Inspector {
	i := &Inspector{
		session:   session,
		scheduler: scheduler,
		store:     store,
		clock:     clockwork.NewRealClock(),
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// State reports the session without changing it. Reading the access token would
// clear an expired one, so the expiry is checked first.
func (i *Inspector) State(ctx context.Context) (*Snapshot, error) {
	if !Enabled {
		return nil, ErrDisabled
	}

	snap := &Snapshot{
		HasSession: i.session.HasValidSession(ctx),
		Expired:    i.session.IsAccessTokenExpired(ctx),
		User:       i.session.User(ctx),
		Scheduler:  refresh.Idle.String(),
	}

	expiry, err := i.session.TokenExpiry(ctx)
	if err != nil {
		return nil, err
	}
	snap.ExpiresAt = expiry
	if !expiry.IsZero() {
		snap.TimeUntilExpiry = expiry.Sub(i.clock.Now())
	}

	if !snap.Expired {
		if at := i.session.AccessToken(ctx); at != "" {
			snap.HasAccessToken = true
			if claims, err := token.Introspect(at, i.clock.Now()); err == nil {
				snap.Claims = claims
			}
		}
	}

	if i.scheduler != nil {
		snap.Scheduler = i.scheduler.State().String()
		snap.NextRefreshAt = i.scheduler.NextRefreshAt()
	}

	if i.store != nil {
		keys, err := i.store.Keys(ctx)
		if err != nil {
			return nil, err
		}
		snap.StoreKeys = keys
	}
	return snap, nil
}

// ManualCleanup stops auto refresh and removes all auth data, including keys left by
// older client versions.
func (i *Inspector) ManualCleanup(ctx context.Context) error {
	if !Enabled {
		return ErrDisabled
	}
	if i.scheduler != nil {
		i.scheduler.Stop()
	}
	i.session.ClearAllAuthData(ctx)
	i.logger.Info().Msg("manual auth cleanup done")
	return nil
}
