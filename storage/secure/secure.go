// Package secure wraps a storage.Store with AES-GCM encryption under a key derived
// from a device fingerprint.
//
// This is obfuscation, not confidentiality: the fingerprint can be recomputed by any
// code running as the same user, so the key offers no protection against a local
// attacker. Values also become unreadable when the fingerprint drifts, and callers
// must treat such values as absent.
package secure

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"

	"github.com/jrsteele09/go-session-client/storage"
)

const (
	DefaultIterations = 100_000
	keyLength         = 32
	ivLength          = 12
)

var defaultSalt = []byte("elemo-secure-storage-salt-v1")

var _ storage.Store = (*Store)(nil)

// Store encrypts values on the way into the wrapped store and decrypts them on the
// way out.
type Store struct {
	inner       storage.Store
	fingerprint FingerprintFunc
	salt        []byte
	iterations  int
	random      io.Reader
	logger      zerolog.Logger

	mu   sync.Mutex
	aead cipher.AEAD
}

type Option func(*Store)

func WithFingerprint(f FingerprintFunc) Option {
	return func(s *Store) {
		s.fingerprint = f
	}
}

func WithSalt(salt []byte) Option {
	return func(s *Store) {
		s.salt = salt
	}
}

// WithIterations overrides the PBKDF2 iteration count.
func WithIterations(n int) Option {
	return func(s *Store) {
		s.iterations = n
	}
}

func WithRandom(r io.Reader) Option {
	return func(s *Store) {
		s.random = r
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New wraps inner. Without WithFingerprint the host fingerprint is used.
func New(inner storage.Store, options ...Option) *Store {
	s := &Store{
		inner:       inner,
		fingerprint: HostFingerprint(""),
		salt:        defaultSalt,
		iterations:  DefaultIterations,
		random:      rand.Reader,
		logger:      log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Get returns the decrypted value. A value that decrypts under neither the current
// key nor as plain base64 of valid UTF-8 is reported as storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	stored, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}

	plain, err := s.decrypt(ctx, stored)
	if err == nil {
		return plain, nil
	}

	if fallback, ok := decodePlain(stored); ok {
		s.logger.Debug().Str("key", key).Msg("secure storage: value read as plain base64")
		return fallback, nil
	}

	s.logger.Warn().Err(err).Str("key", key).Msg("secure storage: value unreadable, treating as absent")
	return "", storage.ErrNotFound
}

// Set encrypts value before storing it. If encryption fails the value is stored as
// plain base64 instead. Only valid UTF-8 survives that fallback: Get cannot tell other
// bytes from stale ciphertext and reports them as storage.ErrNotFound.
func (s *Store) Set(ctx context.Context, key, value string) error {
	encoded, err := s.encrypt(ctx, value)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Bool("utf8", utf8.ValidString(value)).
			Msg("secure storage: encryption failed, storing as plain base64")
		encoded = base64.StdEncoding.EncodeToString([]byte(value))
	}
	return s.inner.Set(ctx, key, encoded)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	return s.inner.Keys(ctx)
}

func (s *Store) encrypt(ctx context.Context, value string) (string, error) {
	aead, err := s.cipher(ctx)
	if err != nil {
		return "", err
	}

	iv := make([]byte, ivLength)
	if _, err := io.ReadFull(s.random, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	out := aead.Seal(iv, iv, []byte(value), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *Store) decrypt(ctx context.Context, stored string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}

	aead, err := s.cipher(ctx)
	if err != nil {
		return "", err
	}
	if len(raw) < ivLength+aead.Overhead() {
		return "", errors.New("ciphertext too short")
	}

	plain, err := aead.Open(nil, raw[:ivLength], raw[ivLength:], nil)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	return string(plain), nil
}

// cipher derives the key on first use and caches it for the lifetime of the Store.
func (s *Store) cipher(ctx context.Context) (cipher.AEAD, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aead != nil {
		return s.aead, nil
	}

	fp, err := s.fingerprint(ctx, s.inner)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}

	key := pbkdf2.Key([]byte(fp.String()), s.salt, s.iterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}

	s.aead = aead
	return aead, nil
}

func decodePlain(stored string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil || !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}
