package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-session-client/auth"
	"github.com/jrsteele09/go-session-client/client"
	"github.com/jrsteele09/go-session-client/internal/config"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
)

func main() {
	configFile := flag.String("config", "", "YAML configuration file (default $ELEMO_CONFIG_FILE)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	if err := run(*configFile, flag.Arg(0), flag.Args()[1:]); err != nil {
		ev := log.Error().Err(err)
		var authErr *auth.Error
		if apperrors.As(err, &authErr) {
			ev = ev.Str("detail", authErr.Detail())
		}
		ev.Msg(flag.Arg(0) + " failed")
		os.Exit(1)
	}
}

func run(configFile, name string, args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cmd, ok := lookup(name)
	if !ok {
		usage()
		return fmt.Errorf("unknown command %q", name)
	}

	c, err := config.Load(configFile)
	if err != nil {
		return err
	}
	setupLogging(c)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sc, err := client.New(ctx, c, client.WithLogger(log.Logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := sc.Close(); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}()

	if cmd.banner {
		displayAppname(c.GetAppName())
	}
	return cmd.run(ctx, sc, args)
}

func setupLogging(c config.EnvConfig) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: elemo-session [-config file] <command> [flags]\n\ncommands:\n")
	for _, cmd := range commands() {
		fmt.Fprintf(out, "  %-9s %s\n", cmd.name, cmd.help)
	}
}
