package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-session-client/client"
	"github.com/jrsteele09/go-session-client/diagnostics"
	"github.com/jrsteele09/go-session-client/events"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/internal/utils"
	"github.com/jrsteele09/go-session-client/oauthmodel"
)

type command struct {
	name   string
	help   string
	banner bool
	run    func(ctx context.Context, c *client.Client, args []string) error
}

func commands() []command {
	cmds := []command{
		{name: "login", help: "log in with -u and -p and store the session", banner: true, run: loginCmd},
		{name: "status", help: "show the stored session", run: statusCmd},
		{name: "refresh", help: "refresh the access token now", run: refreshCmd},
		{name: "validate", help: "check the access token against the API", run: validateCmd},
		{name: "logout", help: "remove the stored session", run: logoutCmd},
		{name: "watch", help: "keep the session fresh until interrupted", banner: true, run: watchCmd},
	}
	if diagnostics.Enabled {
		cmds = append(cmds,
			command{name: "debug", help: "dump the session state as JSON", run: debugCmd},
			command{name: "cleanup", help: "remove all auth data, including legacy keys", run: cleanupCmd},
		)
	}
	return cmds
}

func lookup(name string) (command, bool) {
	for _, cmd := range commands() {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

func loginCmd(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("u", "", "username or email")
	password := fs.String("p", os.Getenv("ELEMO_PASSWORD"), "password (default $ELEMO_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tokens, err := c.Login(ctx, oauthmodel.Credentials{Username: *username, Password: *password})
	if err != nil {
		return err
	}
	fmt.Printf("logged in, access token valid for %s\n", tokens.TTL(time.Hour))
	return nil
}

func statusCmd(ctx context.Context, c *client.Client, _ []string) error {
	s := c.Session()
	if !s.HasValidSession(ctx) {
		fmt.Println("no session")
		return nil
	}

	fmt.Println("session: active")
	if u := s.User(ctx); u != nil {
		fmt.Printf("user: %s <%s>\n", u.Username, u.Email)
	}
	if s.IsAccessTokenExpired(ctx) {
		fmt.Println("access token: expired (will refresh on next use)")
		return nil
	}
	left, err := s.TimeUntilExpiry(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("access token: expires in %s\n", left.Round(time.Second))
	return nil
}

func refreshCmd(ctx context.Context, c *client.Client, _ []string) error {
	tokens, err := c.Scheduler().Refresh(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("refreshed, access token valid for %s\n", tokens.TTL(time.Hour))
	return nil
}

func validateCmd(ctx context.Context, c *client.Client, _ []string) error {
	ok, err := c.Validate(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrInvalidToken
	}
	fmt.Println("access token accepted")
	return nil
}

func logoutCmd(ctx context.Context, c *client.Client, _ []string) error {
	c.Logout(ctx)
	fmt.Println("logged out")
	return nil
}

func watchCmd(ctx context.Context, c *client.Client, _ []string) error {
	unsubscribe := c.Subscribe(func(e events.Event) {
		switch ev := e.(type) {
		case events.TokenRefreshed:
			log.Info().Str("source", sourceName(ev.Origin)).Int64("expires_in", utils.Value(ev.Tokens).ExpiresIn).Msg("token refreshed")
		case events.TokenRefreshFailed:
			log.Warn().Str("source", sourceName(ev.Origin)).Err(ev.Err).Msg("token refresh failed, session ended")
		}
	})
	defer unsubscribe()

	c.Start(ctx)
	log.Info().Str("state", c.Scheduler().State().String()).Time("next_refresh", c.Scheduler().NextRefreshAt()).Msg("watching session")

	<-ctx.Done()
	log.Info().Msg("stopped watching")
	return nil
}

func debugCmd(ctx context.Context, c *client.Client, _ []string) error {
	snap, err := c.Inspector().State(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func cleanupCmd(ctx context.Context, c *client.Client, _ []string) error {
	if err := c.Inspector().ManualCleanup(ctx); err != nil {
		return err
	}
	fmt.Println("all auth data removed")
	return nil
}

func sourceName(origin string) string {
	if origin == "" {
		return "local"
	}
	return origin
}
