package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type subscription struct {
	id      uuid.UUID
	handler Handler
}

// Bus fans events out to subscribers in subscription order.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	logger zerolog.Logger
}

type Option func(*Bus)

func WithLogger(logger zerolog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

func NewBus(options ...Option) *Bus {
	b := &Bus{logger: log.Logger}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Subscribe registers handler. The returned function removes it and may be called
// more than once.
func (b *Bus) Subscribe(handler Handler) (unsubscribe func()) {
	id := uuid.New()

	b.mu.Lock()
	b.subs = append(b.subs, subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish calls every current subscriber. A panicking handler is logged and does not
// stop delivery to the others.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, event)
	}
}

func (b *Bus) deliver(s subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event", string(event.Type())).
				Str("subscriber", s.id.String()).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	s.handler(event)
}

// Len reports the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
