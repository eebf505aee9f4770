// Package postgres implements storage.Store on a PostgreSQL table.
package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/db"
	"github.com/xenking/storefront/internal/storage"
)

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database config")
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}
	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return nil
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Pinger = (*Store)(nil)
)

// Store keeps snapshots in the client_state table, one row per key.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store using pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM client_state WHERE key = $1`, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrapf(err, "load %q", key)
	}
	return payload, nil
}

func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO client_state (key, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		key, data,
	)
	if err != nil {
		return errors.Wrapf(err, "save %q", key)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM client_state WHERE key = $1`, key); err != nil {
		return errors.Wrapf(err, "delete %q", key)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// PurgeBefore deletes snapshots not written since cutoff and reports how
// many rows were removed.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM client_state WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "purge snapshots")
	}
	return tag.RowsAffected(), nil
}

// CartSummary aggregates one persisted cart.
type CartSummary struct {
	Session   string
	Lines     int
	Units     int
	Subtotal  decimal.Decimal
	Total     decimal.Decimal
	UpdatedAt time.Time
}

// Savings is Subtotal minus Total.
func (c CartSummary) Savings() decimal.Decimal {
	return c.Subtotal.Sub(c.Total)
}

// CartSummaries aggregates every session snapshot stored under cartKey
// (scoped as "<session>:<cartKey>"). Totals are computed in NUMERIC so no
// float rounding is involved. A zero or missing finalPrice counts at the
// catalog price.
func (s *Store) CartSummaries(ctx context.Context, cartKey string) ([]CartSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			left(cs.key, length(cs.key) - length($1::text) - 1) AS session,
			count(i.item)::int AS lines,
			COALESCE(sum((i.item->>'quantity')::int), 0)::int AS units,
			COALESCE(sum((i.item->>'price')::numeric * (i.item->>'quantity')::int), 0) AS subtotal,
			COALESCE(sum(
				COALESCE(NULLIF((i.item->>'finalPrice')::numeric, 0), (i.item->>'price')::numeric)
				* (i.item->>'quantity')::int
			), 0) AS total,
			cs.updated_at
		FROM client_state cs
		LEFT JOIN LATERAL jsonb_array_elements(
			CASE WHEN jsonb_typeof(cs.payload->'items') = 'array' THEN cs.payload->'items' ELSE '[]'::jsonb END
		) AS i(item) ON true
		WHERE cs.key LIKE '%:' || $1::text
		GROUP BY cs.key, cs.updated_at
		ORDER BY cs.updated_at DESC`,
		cartKey,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query cart summaries")
	}
	defer rows.Close()

	var out []CartSummary
	for rows.Next() {
		var c CartSummary
		if err := rows.Scan(&c.Session, &c.Lines, &c.Units, &c.Subtotal, &c.Total, &c.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan cart summary")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate cart summaries")
	}
	return out, nil
}
