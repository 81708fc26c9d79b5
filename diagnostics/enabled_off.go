//go:build !authdebug

package diagnostics

// Enabled is true in builds made with -tags authdebug.
const Enabled = false
