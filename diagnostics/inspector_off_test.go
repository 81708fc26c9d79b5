//go:build !authdebug

package diagnostics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-client/diagnostics"
	"github.com/jrsteele09/go-session-client/sessions"
)

func TestInspector_DisabledByDefault(t *testing.T) {
	require.False(t, diagnostics.Enabled)

	inspector := diagnostics.New(sessions.Headless(), nil, nil)

	_, err := inspector.State(context.Background())
	require.ErrorIs(t, err, diagnostics.ErrDisabled)
	require.ErrorIs(t, inspector.ManualCleanup(context.Background()), diagnostics.ErrDisabled)
}
