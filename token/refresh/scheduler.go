// Package refresh keeps the access token fresh in the background. A Scheduler arms a
// timer shortly before the access token expires, performs the refresh grant when it
// fires and tells subscribers how it went.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-session-client/events"
	"github.com/jrsteele09/go-session-client/internal/config"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/oauthmodel"
)

const (
	defaultExpiryBuffer       = 5 * time.Minute
	defaultMinRefreshDelay    = time.Minute
	defaultScheduleRetryDelay = 5 * time.Minute

	refreshKey = "refresh"
)

// Session is the part of sessions.Manager the scheduler needs.
type Session interface {
	HasValidSession(ctx context.Context) bool
	RefreshToken(ctx context.Context) string
	TimeUntilExpiry(ctx context.Context) (time.Duration, error)
	StoreTokens(ctx context.Context, tokens *oauthmodel.AuthTokens) error
	ClearSession(ctx context.Context)
}

// Refresher performs the refresh grant. auth.Client implements it.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*oauthmodel.AuthTokens, error)
}

type State int

const (
	Idle State = iota
	Scheduled
	Refreshing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Refreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Scheduler refreshes the session's access token. At most one refresh grant is in
// flight at a time; concurrent Refresh calls share its result.
type Scheduler struct {
	session   Session
	refresher Refresher
	bus       *events.Bus
	clock     clockwork.Clock
	metrics   *Metrics
	logger    zerolog.Logger

	expiryBuffer  time.Duration
	minDelay      time.Duration
	retryDelay    time.Duration
	group         singleflight.Group
	mu            sync.Mutex
	state         State
	timer         clockwork.Timer
	generation    uint64
	stopped       bool
	pending       int
	nextRefreshAt time.Time
}

// outcome is what a refresh flight hands back to its leader. The event is published
// once the flight has ended so handlers may call Refresh again.
type outcome struct {
	tokens *oauthmodel.AuthTokens
	event  events.Event
}

type Option func(*Scheduler)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithBus publishes to an existing bus instead of a private one.
func WithBus(bus *events.Bus) Option {
	return func(s *Scheduler) {
		s.bus = bus
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = metrics
	}
}

func WithConfig(cfg config.SessionConfig) Option {
	return func(s *Scheduler) {
		s.expiryBuffer = cfg.GetExpiryBuffer()
		s.minDelay = cfg.GetMinRefreshDelay()
		s.retryDelay = cfg.GetScheduleRetryDelay()
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func NewScheduler(session Session, refresher Refresher, options ...Option) *Scheduler {
	s := &Scheduler{
		session:      session,
		refresher:    refresher,
		clock:        clockwork.NewRealClock(),
		logger:       log.Logger,
		expiryBuffer: defaultExpiryBuffer,
		minDelay:     defaultMinRefreshDelay,
		retryDelay:   defaultScheduleRetryDelay,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.bus == nil {
		s.bus = events.NewBus(events.WithLogger(s.logger))
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s
}

// Bus is where TokenRefreshed and TokenRefreshFailed are published.
func (s *Scheduler) Bus() *events.Bus {
	return s.bus
}

// Subscribe registers handler for refresh events.
func (s *Scheduler) Subscribe(handler events.Handler) (unsubscribe func()) {
	return s.bus.Subscribe(handler)
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending > 0 {
		return Refreshing
	}
	return s.state
}

// NextRefreshAt is when the pending timer fires, or the zero time.
func (s *Scheduler) NextRefreshAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Scheduled {
		return time.Time{}
	}
	return s.nextRefreshAt
}

// Start (re)arms the refresh timer from the stored expiry. Without a session the
// scheduler stays idle. An already expired token is refreshed right away on a
// separate goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.stopped = false
	s.mu.Unlock()
	s.schedule(ctx)
}

// schedule arms the timer unless the scheduler has been stopped.
func (s *Scheduler) schedule(ctx context.Context) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.cancelTimerLocked()
	if s.state != Refreshing {
		s.state = Idle
	}
	s.mu.Unlock()

	if !s.session.HasValidSession(ctx) {
		s.logger.Debug().Msg("no session, auto refresh idle")
		return
	}

	remaining, err := s.session.TimeUntilExpiry(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Dur("retry_in", s.retryDelay).Msg("cannot compute token expiry, retrying later")
		s.arm(s.retryDelay, func() { s.schedule(context.Background()) })
		return
	}
	s.metrics.Expiry.Set(remaining.Seconds())

	if remaining <= 0 {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.pending++
		s.mu.Unlock()

		s.logger.Debug().Msg("access token already expired, refreshing now")
		go func() {
			defer func() {
				s.mu.Lock()
				s.pending--
				s.mu.Unlock()
			}()
			_, _ = s.Refresh(context.WithoutCancel(ctx))
		}()
		return
	}

	delay := max(remaining-s.expiryBuffer, s.minDelay)
	s.arm(delay, func() { _, _ = s.Refresh(context.Background()) })
	s.logger.Debug().Dur("in", delay).Msg("token refresh scheduled")
}

// Stop cancels the pending timer. A refresh already in flight completes but does not
// reschedule. Stop may be called any number of times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.cancelTimerLocked()
	if s.state == Scheduled {
		s.state = Idle
	}
}

// Refresh performs the refresh grant, or joins the one in flight. The grant itself is
// not cancelled with ctx; ctx only bounds how long this caller waits. Subscribers are
// notified after the grant has finished, so a handler may call Refresh itself.
func (s *Scheduler) Refresh(ctx context.Context) (*oauthmodel.AuthTokens, error) {
	leader := false
	background := context.WithoutCancel(ctx)
	ch := s.group.DoChan(refreshKey, func() (any, error) {
		leader = true
		return s.refresh(background)
	})

	select {
	case res := <-ch:
		if leader {
			s.finish(background, res)
		} else {
			s.metrics.Deduplicated.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*outcome).tokens, nil
	case <-ctx.Done():
		go func() {
			res := <-ch
			if leader {
				s.finish(background, res)
			}
		}()
		return nil, ctx.Err()
	}
}

// finish runs on the leader once the flight is over: it rearms the timer after a
// success and publishes the outcome.
func (s *Scheduler) finish(ctx context.Context, res singleflight.Result) {
	out, _ := res.Val.(*outcome)
	if res.Err == nil {
		s.schedule(ctx)
	}
	if out != nil && out.event != nil {
		s.bus.Publish(out.event)
	}
}

func (s *Scheduler) refresh(ctx context.Context) (*outcome, error) {
	s.mu.Lock()
	s.cancelTimerLocked()
	s.state = Refreshing
	s.mu.Unlock()

	refreshToken := s.session.RefreshToken(ctx)
	if refreshToken == "" {
		return s.fail(ctx, apperrors.ErrNoRefreshToken)
	}

	tokens, err := s.refresher.RefreshToken(ctx, refreshToken)
	if err != nil {
		return s.fail(ctx, err)
	}
	if err := s.session.StoreTokens(ctx, tokens); err != nil {
		return s.fail(ctx, err)
	}

	s.metrics.Refreshes.WithLabelValues("success").Inc()
	s.logger.Info().Int64("expires_in", tokens.ExpiresIn).Bool("rotated", tokens.HasRefreshToken()).Msg("access token refreshed")

	s.mu.Lock()
	s.state = Idle
	s.mu.Unlock()
	return &outcome{tokens: tokens, event: events.TokenRefreshed{Tokens: tokens}}, nil
}

func (s *Scheduler) fail(ctx context.Context, err error) (*outcome, error) {
	s.session.ClearSession(ctx)

	s.mu.Lock()
	s.state = Idle
	s.mu.Unlock()

	s.metrics.Refreshes.WithLabelValues("failure").Inc()
	s.logger.Warn().Err(err).Msg("token refresh failed, session cleared")
	return &outcome{event: events.TokenRefreshFailed{Err: err}}, err
}

func (s *Scheduler) arm(delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.state == Refreshing {
		return
	}
	s.cancelTimerLocked()

	gen := s.generation
	s.timer = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		if gen != s.generation {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		fn()
	})
	s.state = Scheduled
	s.nextRefreshAt = s.clock.Now().Add(delay)
}

func (s *Scheduler) cancelTimerLocked() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
