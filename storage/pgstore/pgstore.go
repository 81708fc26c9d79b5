package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jrsteele09/go-session-client/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS elemo_session_store (
	namespace  TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	value      TEXT        NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, key)
)`

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DB = (*pgxpool.Pool)(nil)
var _ storage.Store = (*PGStore)(nil)

// PGStore keeps session keys in a Postgres table, partitioned by namespace so that
// several clients can share one database.
type PGStore struct {
	db        DB
	namespace string
}

// Connect opens a pool for databaseURL and makes sure the table exists.
func Connect(ctx context.Context, databaseURL, namespace string) (*PGStore, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("pgstore connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pgstore ping: %w", err)
	}

	s := New(pool, namespace)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool, nil
}

func New(db DB, namespace string) *PGStore {
	if namespace == "" {
		namespace = "default"
	}
	return &PGStore{db: db, namespace: namespace}
}

func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("pgstore schema: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRow(ctx,
		`SELECT value FROM elemo_session_store WHERE namespace = $1 AND key = $2`,
		s.namespace, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("pgstore get %s: %w", key, err)
	}
	return value, nil
}

func (s *PGStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO elemo_session_store (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		s.namespace, key, value,
	)
	if err != nil {
		return fmt.Errorf("pgstore set %s: %w", key, err)
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM elemo_session_store WHERE namespace = $1 AND key = $2`,
		s.namespace, key,
	)
	if err != nil {
		return fmt.Errorf("pgstore delete %s: %w", key, err)
	}
	return nil
}

func (s *PGStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT key FROM elemo_session_store WHERE namespace = $1 ORDER BY key`,
		s.namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("pgstore keys scan: %w", err)
	}
	return keys, nil
}
