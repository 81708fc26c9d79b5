package client

import (
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-session-client/storage"
	"github.com/jrsteele09/go-session-client/storage/secure"
)

type options struct {
	store         storage.Store
	redis         redis.UniversalClient
	httpClient    *http.Client
	clock         clockwork.Clock
	registerer    prometheus.Registerer
	logger        zerolog.Logger
	secureOptions []secure.Option
}

type Option func(*options)

// WithStore uses store instead of the backend named in the configuration.
func WithStore(store storage.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithRedisClient is used for the redis backend and the event bridge instead of a
// client built from REDIS_ADDR.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		o.redis = client
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithRegisterer registers the refresh metrics. They are not registered by default.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSecureStoreOptions is passed on to the encrypted storage wrapper.
func WithSecureStoreOptions(opts ...secure.Option) Option {
	return func(o *options) {
		o.secureOptions = append(o.secureOptions, opts...)
	}
}

func defaultOptions() *options {
	return &options{
		clock:  clockwork.NewRealClock(),
		logger: log.Logger,
	}
}
