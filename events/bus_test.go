package events_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-client/events"
	"github.com/jrsteele09/go-session-client/oauthmodel"
)

func TestBus_PublishInOrder(t *testing.T) {
	bus := events.NewBus()

	var got []string
	bus.Subscribe(func(e events.Event) { got = append(got, "first:"+string(e.Type())) })
	bus.Subscribe(func(e events.Event) { got = append(got, "second:"+string(e.Type())) })

	bus.Publish(events.TokenRefreshed{Tokens: &oauthmodel.AuthTokens{AccessToken: "a2"}})
	bus.Publish(events.TokenRefreshFailed{Err: errors.New("boom")})

	require.Equal(t, []string{
		"first:token_refreshed",
		"second:token_refreshed",
		"first:token_refresh_failed",
		"second:token_refresh_failed",
	}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := events.NewBus()

	calls := 0
	unsubscribe := bus.Subscribe(func(events.Event) { calls++ })
	other := bus.Subscribe(func(events.Event) {})
	require.Equal(t, 2, bus.Len())

	bus.Publish(events.TokenRefreshed{})
	unsubscribe()
	unsubscribe()
	bus.Publish(events.TokenRefreshed{})

	require.Equal(t, 1, calls)
	require.Equal(t, 1, bus.Len())
	other()
	require.Zero(t, bus.Len())
}

func TestBus_PanickingHandler(t *testing.T) {
	bus := events.NewBus()

	delivered := false
	bus.Subscribe(func(events.Event) { panic("bad subscriber") })
	bus.Subscribe(func(events.Event) { delivered = true })

	require.NotPanics(t, func() { bus.Publish(events.TokenRefreshFailed{Err: errors.New("x")}) })
	require.True(t, delivered)
}

func TestEvent_Source(t *testing.T) {
	require.Empty(t, events.TokenRefreshed{}.Source())
	require.Equal(t, "peer", events.TokenRefreshFailed{Origin: "peer"}.Source())
}
