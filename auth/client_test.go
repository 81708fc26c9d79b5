package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-client/auth"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/oauthmodel"
)

const (
	testClientID     = "elemo-web"
	testClientSecret = "elemo-secret"
	testUsername     = "john.doe@example.com"
	testPassword     = "password123"
)

type tokenServer struct {
	*httptest.Server
	calls   atomic.Int32
	handler func(w http.ResponseWriter, r *http.Request)
}

func newTokenServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *tokenServer {
	t.Helper()
	ts := &tokenServer{handler: handler}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		ts.handler(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newClient(t *testing.T, baseURL string) *auth.Client {
	t.Helper()
	c, err := auth.New(auth.Settings{
		BaseURL:      baseURL,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		Scopes:       []string{"user", "todo"},
	})
	require.NoError(t, err)
	return c
}

func TestClient_Login(t *testing.T) {
	ts := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/oauth/token", r.URL.Path)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		require.Equal(t, "password", r.PostForm.Get("grant_type"))
		require.Equal(t, testUsername, r.PostForm.Get("username"))
		require.Equal(t, testPassword, r.PostForm.Get("password"))
		require.Equal(t, testClientID, r.PostForm.Get("client_id"))
		require.Equal(t, testClientSecret, r.PostForm.Get("client_secret"))
		require.Equal(t, "user todo", r.PostForm.Get("scope"))

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "a1",
			"refresh_token": "r1",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"scope":         "user todo",
		})
	})

	tokens, err := newClient(t, ts.URL).Login(context.Background(), oauthmodel.Credentials{Username: testUsername, Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, "a1", tokens.AccessToken)
	require.True(t, tokens.HasRefreshToken())
	require.Equal(t, "r1", *tokens.RefreshToken)
	require.Equal(t, "Bearer", tokens.TokenType)
	require.EqualValues(t, 3600, tokens.ExpiresIn)
	require.Equal(t, "user todo", *tokens.Scope)
}

func TestClient_LoginErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		message string
	}{
		{"error_description", http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "invalid username or password"}, "invalid username or password"},
		{"message", http.StatusUnauthorized, map[string]string{"message": "account locked"}, "account locked"},
		{"generic", http.StatusInternalServerError, map[string]string{}, "Login failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := newClient(t, ts.URL).Login(context.Background(), oauthmodel.Credentials{Username: testUsername, Password: "wrong"})
			require.Error(t, err)
			require.Equal(t, tt.message, err.Error())

			var authErr *auth.Error
			require.True(t, errors.As(err, &authErr))
			require.Equal(t, tt.status, authErr.StatusCode)
			require.Equal(t, "login", authErr.Op)
		})
	}
}

func TestClient_LoginValidation(t *testing.T) {
	ts := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "a1"})
	})

	_, err := newClient(t, ts.URL).Login(context.Background(), oauthmodel.Credentials{Username: testUsername})
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	require.Zero(t, ts.calls.Load())
}

func TestClient_LoginNetworkError(t *testing.T) {
	ts := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {})
	url := ts.URL
	ts.Close()

	_, err := newClient(t, url).Login(context.Background(), oauthmodel.Credentials{Username: testUsername, Password: testPassword})
	require.Error(t, err)
	require.Equal(t, "Login failed", err.Error())
}

func TestClient_RefreshToken(t *testing.T) {
	ts := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "r1", r.PostForm.Get("refresh_token"))
		require.Equal(t, testClientID, r.PostForm.Get("client_id"))

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "a2",
			"token_type":   "Bearer",
			"expires_in":   1800,
		})
	})

	tokens, err := newClient(t, ts.URL).RefreshToken(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, "a2", tokens.AccessToken)
	require.EqualValues(t, 1800, tokens.ExpiresIn)
	require.False(t, tokens.HasRefreshToken(), "refresh token was not rotated")
	require.Nil(t, tokens.Scope)
}

func TestClient_RefreshTokenErrors(t *testing.T) {
	ts := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
	})
	c := newClient(t, ts.URL)

	_, err := c.RefreshToken(context.Background(), "r1")
	require.Error(t, err)
	require.Equal(t, "Token refresh failed", err.Error())

	_, err = c.RefreshToken(context.Background(), "")
	require.ErrorIs(t, err, apperrors.ErrNoRefreshToken)
	require.EqualValues(t, 1, ts.calls.Load())
}

func TestClient_ValidateToken(t *testing.T) {
	ts := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		require.Equal(t, "/api/v1/users", r.URL.Path)
		if r.Header.Get("Authorization") == "Bearer good" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})
	c := newClient(t, ts.URL)

	require.True(t, c.ValidateToken(context.Background(), "good"))
	require.False(t, c.ValidateToken(context.Background(), "bad"))

	ts.Close()
	require.False(t, c.ValidateToken(context.Background(), "good"))
}

func TestClient_UserInfoNeedsProvider(t *testing.T) {
	_, err := newClient(t, "http://localhost").UserInfo(context.Background(), "a1")
	require.ErrorIs(t, err, apperrors.ErrUnsupported)
}

func TestNew_Validation(t *testing.T) {
	_, err := auth.New(auth.Settings{ClientID: "x"})
	require.Error(t, err)

	_, err = auth.New(auth.Settings{BaseURL: "http://localhost"})
	require.Error(t, err)

	c, err := auth.New(auth.Settings{BaseURL: "http://localhost/", ClientID: "x"})
	require.NoError(t, err)
	require.Equal(t, "http://localhost/oauth/token", c.TokenURL())
}
