package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pool with the settings used behind PgBouncer/Supabase poolers.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pgstore: DATABASE_URL is empty")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse dsn: %w", err)
	}
	// Avoid "prepared statement already exists" with transaction poolers: no server-side prepared statements.
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 4 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS jackpot (
	id              SMALLINT PRIMARY KEY,
	amount          NUMERIC(14,2) NOT NULL,
	last_won_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
	last_won_date   TEXT NOT NULL DEFAULT '',
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS accounts (
	username      TEXT PRIMARY KEY,
	id            TEXT NOT NULL,
	total_wagered NUMERIC(14,2) NOT NULL DEFAULT 0,
	total_won     NUMERIC(14,2) NOT NULL DEFAULT 0,
	bankroll      NUMERIC(14,2) NOT NULL DEFAULT 0,
	last_played   TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS leaderboard (
	id         SMALLINT PRIMARY KEY,
	top_winner TEXT NOT NULL,
	most_won   NUMERIC(14,2) NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS spins (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	username      TEXT NOT NULL,
	stake         NUMERIC(14,2) NOT NULL,
	stops         TEXT NOT NULL,
	grid          TEXT NOT NULL,
	lines         TEXT NOT NULL,
	win_amount    NUMERIC(14,2) NOT NULL,
	paid          NUMERIC(14,2) NOT NULL,
	jackpot_won   BOOLEAN NOT NULL,
	special       TEXT NOT NULL DEFAULT '',
	credits_after NUMERIC(14,2) NOT NULL,
	pool_after    NUMERIC(14,2) NOT NULL,
	settled_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS spins_username_idx ON spins (username, settled_at DESC);
`

// Migrate creates the tables when missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("pgstore: migrate: %w", err)
	}
	return nil
}
