// Package redisbridge relays session events between processes sharing one session
// through Redis pub/sub. Token values never leave the process.
package redisbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-session-client/events"
	"github.com/jrsteele09/go-session-client/oauthmodel"
)

// DefaultChannel is the pub/sub channel shared by all bridges of one deployment.
const DefaultChannel = "elemo:session:events"

type envelope struct {
	Instance  string      `json:"instance"`
	Type      events.Type `json:"type"`
	TokenType string      `json:"token_type,omitempty"`
	ExpiresIn int64       `json:"expires_in,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Bridge forwards local events to Redis and republishes remote ones on the local bus
// with Origin set to the sender's instance id.
type Bridge struct {
	client   redis.UniversalClient
	bus      *events.Bus
	channel  string
	instance string
	logger   zerolog.Logger

	mu          sync.Mutex
	pubsub      *redis.PubSub
	unsubscribe func()
	cancel      context.CancelFunc
	done        chan struct{}
}

type Option func(*Bridge)

func WithChannel(channel string) Option {
	return func(b *Bridge) {
		b.channel = channel
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

func New(client redis.UniversalClient, bus *events.Bus, options ...Option) *Bridge {
	b := &Bridge{
		client:   client,
		bus:      bus,
		channel:  DefaultChannel,
		instance: uuid.NewString(),
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(b)
	}
	b.logger = b.logger.With().Str("instance", b.instance).Logger()
	return b
}

// Instance identifies this bridge in relayed events.
func (b *Bridge) Instance() string {
	return b.instance
}

// Start subscribes to the channel and begins relaying in both directions. It returns
// once the subscription is confirmed.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return errors.New("bridge already started")
	}

	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.pubsub = pubsub
	b.cancel = cancel
	b.done = make(chan struct{})
	b.unsubscribe = b.bus.Subscribe(func(e events.Event) { b.forward(runCtx, e) })

	go b.listen(pubsub.Channel(), b.done)
	b.logger.Debug().Str("channel", b.channel).Msg("event bridge started")
	return nil
}

// Close stops relaying. It is safe to call on a bridge that was never started.
func (b *Bridge) Close() error {
	b.mu.Lock()
	pubsub, done := b.pubsub, b.done
	if pubsub == nil {
		b.mu.Unlock()
		return nil
	}
	b.unsubscribe()
	b.cancel()
	b.pubsub = nil
	b.mu.Unlock()

	err := pubsub.Close()
	<-done
	return err
}

func (b *Bridge) forward(ctx context.Context, e events.Event) {
	if e.Source() != "" {
		return
	}

	env := envelope{Instance: b.instance, Type: e.Type()}
	switch ev := e.(type) {
	case events.TokenRefreshed:
		if ev.Tokens != nil {
			env.TokenType = ev.Tokens.TokenType
			env.ExpiresIn = ev.Tokens.ExpiresIn
		}
	case events.TokenRefreshFailed:
		if ev.Err != nil {
			env.Error = ev.Err.Error()
		}
	}

	payload, err := json.Marshal(env)
	if err != nil {
		b.logger.Error().Err(err).Msg("encode event")
		return
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Warn().Err(err).Str("event", string(env.Type)).Msg("publish event failed")
	}
}

func (b *Bridge) listen(messages <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for msg := range messages {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			b.logger.Warn().Err(err).Msg("ignoring malformed event")
			continue
		}
		if env.Instance == b.instance {
			continue
		}

		switch env.Type {
		case events.TypeTokenRefreshed:
			b.bus.Publish(events.TokenRefreshed{
				Tokens: &oauthmodel.AuthTokens{TokenType: env.TokenType, ExpiresIn: env.ExpiresIn},
				Origin: env.Instance,
			})
		case events.TypeTokenRefreshFailed:
			b.bus.Publish(events.TokenRefreshFailed{Err: errors.New(env.Error), Origin: env.Instance})
		default:
			b.logger.Debug().Str("event", string(env.Type)).Msg("ignoring unknown event")
		}
	}
}
