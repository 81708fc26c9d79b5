package secure_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-client/storage"
	"github.com/jrsteele09/go-session-client/storage/memstore"
	"github.com/jrsteele09/go-session-client/storage/secure"
)

var testFingerprint = secure.Fingerprint{
	UserAgent:      "test-agent",
	Language:       "en_GB",
	Host:           "test-host",
	TimezoneOffset: -60,
	MachineHash:    "abc123",
}

func newStore(inner storage.Store, fp secure.Fingerprint) *secure.Store {
	return secure.New(inner,
		secure.WithFingerprint(secure.StaticFingerprint(fp)),
		secure.WithIterations(1000),
	)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	inner := memstore.New()
	s := newStore(inner, testFingerprint)

	for _, value := range []string{"", "a1", "eyJhbGciOiJIUzI1NiJ9.payload.sig", `{"id":"u1","email":"a@b.c"}`, "ünïcödé ✓"} {
		require.NoError(t, s.Set(ctx, "elemo_at", value))

		stored, err := inner.Get(ctx, "elemo_at")
		require.NoError(t, err)
		if len(value) > 8 {
			require.NotContains(t, stored, value)
		}

		got, err := s.Get(ctx, "elemo_at")
		require.NoError(t, err)
		require.Equal(t, value, got)
	}
}

func TestStore_CiphertextDiffersPerWrite(t *testing.T) {
	ctx := context.Background()
	inner := memstore.New()
	s := newStore(inner, testFingerprint)

	require.NoError(t, s.Set(ctx, "a", "same"))
	require.NoError(t, s.Set(ctx, "b", "same"))

	a, _ := inner.Get(ctx, "a")
	b, _ := inner.Get(ctx, "b")
	require.NotEqual(t, a, b)
}

func TestStore_MissingKey(t *testing.T) {
	s := newStore(memstore.New(), testFingerprint)
	_, err := s.Get(context.Background(), "nothing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_PlainBase64Fallback(t *testing.T) {
	ctx := context.Background()
	inner := memstore.New()
	require.NoError(t, inner.Set(ctx, "elemo_at", base64.StdEncoding.EncodeToString([]byte("legacy-token"))))

	got, err := newStore(inner, testFingerprint).Get(ctx, "elemo_at")
	require.NoError(t, err)
	require.Equal(t, "legacy-token", got)
}

func TestStore_FingerprintDriftLosesData(t *testing.T) {
	ctx := context.Background()
	inner := memstore.New()
	require.NoError(t, newStore(inner, testFingerprint).Set(ctx, "elemo_at", "a1"))

	drifted := testFingerprint
	drifted.KeyCount = 7

	_, err := newStore(inner, drifted).Get(ctx, "elemo_at")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_GarbageIsAbsent(t *testing.T) {
	ctx := context.Background()
	inner := memstore.New()
	require.NoError(t, inner.Set(ctx, "elemo_at", "%%% not base64 %%%"))

	_, err := newStore(inner, testFingerprint).Get(ctx, "elemo_at")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_EncryptionFailureFallsBackToBase64(t *testing.T) {
	ctx := context.Background()
	inner := memstore.New()
	s := secure.New(inner, secure.WithFingerprint(func(context.Context, storage.Store) (secure.Fingerprint, error) {
		return secure.Fingerprint{}, errors.New("no fingerprint")
	}))

	require.NoError(t, s.Set(ctx, "elemo_user", `{"id":"1"}`))

	stored, err := inner.Get(ctx, "elemo_user")
	require.NoError(t, err)
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte(`{"id":"1"}`)), stored)

	got, err := s.Get(ctx, "elemo_user")
	require.NoError(t, err)
	require.Equal(t, `{"id":"1"}`, got)
}

func TestStore_FallbackDropsNonUTF8(t *testing.T) {
	ctx := context.Background()
	inner := memstore.New()
	s := secure.New(inner, secure.WithFingerprint(func(context.Context, storage.Store) (secure.Fingerprint, error) {
		return secure.Fingerprint{}, errors.New("no fingerprint")
	}))

	value := string([]byte{0xff, 0xfe, 0x00, 0x41})
	require.NoError(t, s.Set(ctx, "elemo_blob", value))

	stored, err := inner.Get(ctx, "elemo_blob")
	require.NoError(t, err)
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte(value)), stored)

	_, err = s.Get(ctx, "elemo_blob")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_KeyDerivedOnce(t *testing.T) {
	ctx := context.Background()
	inner := memstore.New()
	// The host fingerprint includes the key count, so a cached key is what keeps
	// values written earlier in the same process readable.
	s := secure.New(inner, secure.WithFingerprint(secure.HostFingerprint("ua")), secure.WithIterations(1000))

	require.NoError(t, s.Set(ctx, "one", "1"))
	require.NoError(t, s.Set(ctx, "two", "2"))

	got, err := s.Get(ctx, "one")
	require.NoError(t, err)
	require.Equal(t, "1", got)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two"}, keys)

	require.NoError(t, s.Delete(ctx, "one"))
	_, err = s.Get(ctx, "one")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFingerprint_String(t *testing.T) {
	fp := testFingerprint
	fp.KeyCount = 3
	require.Equal(t, "test-agent|en_GB|test-host|-60|abc123|3", fp.String())
}

func TestStore_StableFingerprintAcrossInstances(t *testing.T) {
	ctx := context.Background()
	inner := memstore.New()
	fingerprint := secure.WithoutKeyCount(secure.HostFingerprint("ua"))

	first := secure.New(inner, secure.WithFingerprint(fingerprint), secure.WithIterations(1000))
	require.NoError(t, first.Set(ctx, "elemo_at", "a1"))

	second := secure.New(inner, secure.WithFingerprint(fingerprint), secure.WithIterations(1000))
	got, err := second.Get(ctx, "elemo_at")
	require.NoError(t, err)
	require.Equal(t, "a1", got)
}
