package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-session-client/oauthmodel"
)

const (
	loginFailedMsg   = "Login failed"
	refreshFailedMsg = "Token refresh failed"
)

// Error is returned by the token operations. Message is suitable for showing to the
// user: the server's error_description or message when it sent one, a generic text
// otherwise.
type Error struct {
	Op         string // "login" or "refresh"
	StatusCode int    // zero when no response was received
	Message    string
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detail includes the underlying cause, for logs.
func (e *Error) Detail() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Message, e.StatusCode, e.Err)
}

// translateError maps an oauth2 library error onto Error.
func translateError(op, fallback string, err error) *Error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return &Error{Op: op, Message: fallback, Err: err}
	}

	var body oauthmodel.ErrorResponse
	_ = json.Unmarshal(re.Body, &body)
	if body.ErrorDescription == "" {
		body.ErrorDescription = re.ErrorDescription
	}

	status := 0
	if re.Response != nil {
		status = re.Response.StatusCode
	}
	return &Error{Op: op, StatusCode: status, Message: body.Text(fallback), Err: err}
}
