package client

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	green      = "\033[32m"
	blue       = "\033[34m"
	cyan       = "\033[36m"
	yellow     = "\033[33m"
	magenta    = "\033[35m"
	gray       = "\033[90m"
	resetColor = "\033[0m"
)

var methodColors = map[string]string{
	http.MethodGet:    green,
	http.MethodPost:   blue,
	http.MethodPut:    cyan,
	http.MethodDelete: yellow,
	http.MethodPatch:  magenta,
}

// loggingTransport logs every outgoing request in DEV. Headers are never logged.
type loggingTransport struct {
	base   http.RoundTripper
	logger zerolog.Logger
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(r)

	ev := t.logger.Debug().Str("method", colorMethod(r.Method)).Str("path", r.URL.Path).Dur("took", time.Since(start))
	if err != nil {
		ev.Err(err).Msg("request failed")
		return nil, err
	}
	ev.Int("status", resp.StatusCode).Msg("request")
	return resp, nil
}

func colorMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + resetColor
	}
	return gray + paddedMethod + resetColor
}

// withRequestLogging returns a copy of hc that logs through logger.
func withRequestLogging(hc *http.Client, logger zerolog.Logger) *http.Client {
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	out := *hc
	out.Transport = &loggingTransport{base: base, logger: logger}
	return &out
}
