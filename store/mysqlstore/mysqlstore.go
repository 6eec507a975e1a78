// Package mysqlstore is the MySQL backend built on sqlx.
package mysqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/Ashenafi-pixel/jackpot-royale/money"
	"github.com/Ashenafi-pixel/jackpot-royale/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const singletonID = 1

var schema = []string{
	`CREATE TABLE IF NOT EXISTS jackpot (
		id TINYINT PRIMARY KEY,
		amount DECIMAL(14,2) NOT NULL,
		last_won_amount DECIMAL(14,2) NOT NULL DEFAULT 0,
		last_won_date VARCHAR(32) NOT NULL DEFAULT '',
		updated_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		username VARCHAR(64) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin PRIMARY KEY,
		id VARCHAR(64) NOT NULL,
		total_wagered DECIMAL(14,2) NOT NULL DEFAULT 0,
		total_won DECIMAL(14,2) NOT NULL DEFAULT 0,
		bankroll DECIMAL(14,2) NOT NULL DEFAULT 0,
		last_played DATETIME(6) NULL
	)`,
	`CREATE TABLE IF NOT EXISTS leaderboard (
		id TINYINT PRIMARY KEY,
		top_winner VARCHAR(64) NOT NULL,
		most_won DECIMAL(14,2) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS spins (
		id VARCHAR(64) PRIMARY KEY,
		session_id VARCHAR(64) NOT NULL,
		username VARCHAR(64) NOT NULL,
		stake DECIMAL(14,2) NOT NULL,
		stops TEXT NOT NULL,
		grid TEXT NOT NULL,
		win_lines TEXT NOT NULL,
		win_amount DECIMAL(14,2) NOT NULL,
		paid DECIMAL(14,2) NOT NULL,
		jackpot_won BOOLEAN NOT NULL,
		special VARCHAR(32) NOT NULL DEFAULT '',
		credits_after DECIMAL(14,2) NOT NULL,
		pool_after DECIMAL(14,2) NOT NULL,
		settled_at DATETIME(6) NOT NULL,
		KEY spins_username_idx (username, settled_at)
	)`,
}

// execer is satisfied by *sqlx.DB and *sqlx.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store { return &Store{db: db} }

// withParseTime forces the driver options the store relies on.
func withParseTime(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Open connects, pings and migrates.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("mysqlstore: MYSQL_DSN is empty")
	}
	dsn, err := withParseTime(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysqlstore: parse dsn: %w", err)
	}
	db, err := sqlx.ConnectContext(ctx, "mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysqlstore: connect: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(4 * time.Minute)
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mysqlstore: migrate: %w", err)
		}
	}
	return nil
}

func amount(d decimal.Decimal) string { return money.String(d) }

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func run(ctx context.Context, ex execer, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, query, args...)
	return err
}

type jackpotRow struct {
	Amount        string    `db:"amount"`
	LastWonAmount string    `db:"last_won_amount"`
	LastWonDate   string    `db:"last_won_date"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (s *Store) LoadJackpot(ctx context.Context) (store.Jackpot, error) {
	query, args, err := sq.Select("amount", "last_won_amount", "last_won_date", "updated_at").
		From("jackpot").Where(sq.Eq{"id": singletonID}).ToSql()
	if err != nil {
		return store.Jackpot{}, err
	}
	var row jackpotRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Jackpot{}, store.ErrNotFound
		}
		return store.Jackpot{}, err
	}
	return store.Jackpot{
		Amount:        money.Parse(row.Amount, decimal.Zero),
		LastWonAmount: money.Parse(row.LastWonAmount, decimal.Zero),
		LastWonDate:   row.LastWonDate,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

func upsertJackpot(j store.Jackpot) sq.InsertBuilder {
	return sq.Insert("jackpot").
		Columns("id", "amount", "last_won_amount", "last_won_date", "updated_at").
		Values(singletonID, amount(j.Amount), amount(j.LastWonAmount), j.LastWonDate, utc(j.UpdatedAt)).
		Suffix("ON DUPLICATE KEY UPDATE amount = VALUES(amount), last_won_amount = VALUES(last_won_amount), " +
			"last_won_date = VALUES(last_won_date), updated_at = VALUES(updated_at)")
}

func (s *Store) SaveJackpot(ctx context.Context, j store.Jackpot) error {
	return run(ctx, s.db, upsertJackpot(j))
}

type accountRow struct {
	Username     string       `db:"username"`
	ID           string       `db:"id"`
	TotalWagered string       `db:"total_wagered"`
	TotalWon     string       `db:"total_won"`
	Bankroll     string       `db:"bankroll"`
	LastPlayed   sql.NullTime `db:"last_played"`
}

func (r accountRow) account() store.Account {
	a := store.Account{
		ID:           r.ID,
		Username:     r.Username,
		TotalWagered: money.Parse(r.TotalWagered, decimal.Zero),
		TotalWon:     money.Parse(r.TotalWon, decimal.Zero),
		Bankroll:     money.Parse(r.Bankroll, decimal.Zero),
	}
	if r.LastPlayed.Valid {
		a.LastPlayed = r.LastPlayed.Time
	}
	return a
}

var accountColumns = []string{"username", "id", "total_wagered", "total_won", "bankroll", "last_played"}

func (s *Store) LoadAccount(ctx context.Context, username string) (store.Account, error) {
	query, args, err := sq.Select(accountColumns...).From("accounts").Where(sq.Eq{"username": username}).ToSql()
	if err != nil {
		return store.Account{}, err
	}
	var row accountRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Account{}, store.ErrNotFound
		}
		return store.Account{}, err
	}
	return row.account(), nil
}

func upsertAccount(a store.Account) sq.InsertBuilder {
	lastPlayed := sql.NullTime{Time: a.LastPlayed.UTC(), Valid: !a.LastPlayed.IsZero()}
	return sq.Insert("accounts").
		Columns(accountColumns...).
		Values(a.Username, a.ID, amount(a.TotalWagered), amount(a.TotalWon), amount(a.Bankroll), lastPlayed).
		Suffix("ON DUPLICATE KEY UPDATE id = VALUES(id), total_wagered = VALUES(total_wagered), " +
			"total_won = VALUES(total_won), bankroll = VALUES(bankroll), last_played = VALUES(last_played)")
}

func (s *Store) SaveAccount(ctx context.Context, a store.Account) error {
	return run(ctx, s.db, upsertAccount(a))
}

func (s *Store) ListAccounts(ctx context.Context) ([]store.Account, error) {
	query, args, err := sq.Select(accountColumns...).From("accounts").OrderBy("username").ToSql()
	if err != nil {
		return nil, err
	}
	var rows []accountRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]store.Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.account())
	}
	return out, nil
}

func insertSpin(sp store.Spin) (sq.InsertBuilder, error) {
	stops, err := json.Marshal(sp.Stops)
	if err != nil {
		return sq.InsertBuilder{}, err
	}
	grid, err := json.Marshal(sp.Grid)
	if err != nil {
		return sq.InsertBuilder{}, err
	}
	lines, err := json.Marshal(sp.Lines)
	if err != nil {
		return sq.InsertBuilder{}, err
	}
	return sq.Insert("spins").
		Columns("id", "session_id", "username", "stake", "stops", "grid", "win_lines", "win_amount", "paid",
			"jackpot_won", "special", "credits_after", "pool_after", "settled_at").
		Values(sp.ID, sp.SessionID, sp.Username, amount(sp.Stake), string(stops), string(grid), string(lines),
			amount(sp.WinAmount), amount(sp.Paid), sp.JackpotWon, sp.Special, amount(sp.CreditsAfter),
			amount(sp.PoolAfter), utc(sp.SettledAt)).
		Options("IGNORE"), nil
}

func (s *Store) RecordSpin(ctx context.Context, sp store.Spin) error {
	b, err := insertSpin(sp)
	if err != nil {
		return err
	}
	return run(ctx, s.db, b)
}

type leaderboardRow struct {
	TopWinner string    `db:"top_winner"`
	MostWon   string    `db:"most_won"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (s *Store) LoadLeaderboard(ctx context.Context) (store.Leaderboard, error) {
	query, args, err := sq.Select("top_winner", "most_won", "updated_at").
		From("leaderboard").Where(sq.Eq{"id": singletonID}).ToSql()
	if err != nil {
		return store.Leaderboard{}, err
	}
	var row leaderboardRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Leaderboard{}, store.ErrNotFound
		}
		return store.Leaderboard{}, err
	}
	return store.Leaderboard{
		TopWinner: row.TopWinner,
		MostWon:   money.Parse(row.MostWon, decimal.Zero),
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func upsertLeaderboard(l store.Leaderboard) sq.InsertBuilder {
	return sq.Insert("leaderboard").
		Columns("id", "top_winner", "most_won", "updated_at").
		Values(singletonID, l.TopWinner, amount(l.MostWon), utc(l.UpdatedAt)).
		Suffix("ON DUPLICATE KEY UPDATE top_winner = VALUES(top_winner), most_won = VALUES(most_won), " +
			"updated_at = VALUES(updated_at)")
}

func (s *Store) SaveLeaderboard(ctx context.Context, l store.Leaderboard) error {
	return run(ctx, s.db, upsertLeaderboard(l))
}

// SaveSettlement writes every record of one spin in a single transaction.
func (s *Store) SaveSettlement(ctx context.Context, set store.Settlement) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = run(ctx, tx, upsertAccount(set.Account)); err != nil {
		return err
	}
	if err = run(ctx, tx, upsertJackpot(set.Jackpot)); err != nil {
		return err
	}
	spin, err := insertSpin(set.Spin)
	if err != nil {
		return err
	}
	if err = run(ctx, tx, spin); err != nil {
		return err
	}
	if set.Leaderboard != nil {
		if err = run(ctx, tx, upsertLeaderboard(*set.Leaderboard)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Close() error { return s.db.Close() }
