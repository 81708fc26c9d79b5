package secure

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-session-client/storage"
)

// Fingerprint is a locally computed, non-cryptographic identifier of the device.
// Anything running as the same user can recompute it.
type Fingerprint struct {
	UserAgent      string
	Language       string
	Host           string
	TimezoneOffset int // minutes west of UTC
	MachineHash    string
	KeyCount       int // keys in the backing store when the fingerprint was taken
}

func (f Fingerprint) String() string {
	return strings.Join([]string{
		f.UserAgent,
		f.Language,
		f.Host,
		strconv.Itoa(f.TimezoneOffset),
		f.MachineHash,
		strconv.Itoa(f.KeyCount),
	}, "|")
}

// FingerprintFunc computes the fingerprint the encryption key is derived from.
type FingerprintFunc func(ctx context.Context, store storage.Store) (Fingerprint, error)

var machineIDFiles = []string{"/etc/machine-id", "/var/lib/dbus/machine-id"}

// HostFingerprint fingerprints the current host. The key count component makes the
// value drift as the store fills up, so a key derived in one process may not decrypt
// values written by another.
func HostFingerprint(userAgent string) FingerprintFunc {
	return func(ctx context.Context, store storage.Store) (Fingerprint, error) {
		keys, err := store.Keys(ctx)
		if err != nil {
			return Fingerprint{}, fmt.Errorf("fingerprint key count: %w", err)
		}

		host, _ := os.Hostname()
		_, offset := time.Now().Zone()

		return Fingerprint{
			UserAgent:      userAgent,
			Language:       language(),
			Host:           host,
			TimezoneOffset: -offset / 60,
			MachineHash:    machineHash(host),
			KeyCount:       len(keys),
		}, nil
	}
}

// StaticFingerprint always returns f. Useful when the key must stay stable.
func StaticFingerprint(f Fingerprint) FingerprintFunc {
	return func(context.Context, storage.Store) (Fingerprint, error) {
		return f, nil
	}
}

// WithoutKeyCount drops the key count component from f, so the key survives across
// processes as long as the host does not change.
func WithoutKeyCount(f FingerprintFunc) FingerprintFunc {
	return func(ctx context.Context, store storage.Store) (Fingerprint, error) {
		fp, err := f(ctx, store)
		fp.KeyCount = 0
		return fp, err
	}
}

func language() string {
	for _, v := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if lang := os.Getenv(v); lang != "" {
			return strings.SplitN(lang, ".", 2)[0]
		}
	}
	return "en_US"
}

func machineHash(fallback string) string {
	seed := fallback
	for _, f := range machineIDFiles {
		if raw, err := os.ReadFile(f); err == nil && len(strings.TrimSpace(string(raw))) > 0 {
			seed = strings.TrimSpace(string(raw))
			break
		}
	}
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:8])
}
