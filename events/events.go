// Package events delivers session notifications to in-process subscribers.
package events

import (
	"github.com/jrsteele09/go-session-client/oauthmodel"
)

type Type string

const (
	TypeTokenRefreshed     Type = "token_refreshed"
	TypeTokenRefreshFailed Type = "token_refresh_failed"
)

// Event is one of TokenRefreshed or TokenRefreshFailed.
type Event interface {
	Type() Type
	// Source is empty for events raised in this process and holds the publishing
	// instance id for events relayed from another process.
	Source() string
}

// TokenRefreshed is published after refreshed tokens were stored. Tokens relayed
// from another process carry no token values.
type TokenRefreshed struct {
	Tokens *oauthmodel.AuthTokens
	Origin string
}

func (TokenRefreshed) Type() Type       { return TypeTokenRefreshed }
func (e TokenRefreshed) Source() string { return e.Origin }

// TokenRefreshFailed is published after a failed refresh cleared the session.
type TokenRefreshFailed struct {
	Err    error
	Origin string
}

func (TokenRefreshFailed) Type() Type       { return TypeTokenRefreshFailed }
func (e TokenRefreshFailed) Source() string { return e.Origin }

// Handler receives events synchronously on the publishing goroutine.
type Handler func(Event)
