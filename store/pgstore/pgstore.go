// Package pgstore is the Postgres backend. Queries are built with squirrel and
// settlement writes share one transaction through the transaction manager.
package pgstore

import (
	"context"
	"errors"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/Ashenafi-pixel/jackpot-royale/money"
	"github.com/Ashenafi-pixel/jackpot-royale/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	tableJackpot     = "jackpot"
	tableAccounts    = "accounts"
	tableLeaderboard = "leaderboard"
	tableSpins       = "spins"

	singletonID = 1
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Store struct {
	pool      *pgxpool.Pool
	getter    *trmpgx.CtxGetter
	txManager trm.Manager
}

func New(pool *pgxpool.Pool) (*Store, error) {
	m, err := manager.New(trmpgx.NewDefaultFactory(pool))
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, getter: trmpgx.DefaultCtxGetter, txManager: m}, nil
}

// Open connects, migrates and returns a ready store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	s, err := New(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// conn returns the transaction bound to ctx, or the pool.
func (s *Store) conn(ctx context.Context) trmpgx.Tr {
	return s.getter.DefaultTrOrDB(ctx, s.pool)
}

func amount(d decimal.Decimal) string { return money.String(d) }

func (s *Store) LoadJackpot(ctx context.Context) (store.Jackpot, error) {
	sqlStr, args, err := psql.Select("amount::text", "last_won_amount::text", "last_won_date", "updated_at").
		From(tableJackpot).
		Where(sq.Eq{"id": singletonID}).
		ToSql()
	if err != nil {
		return store.Jackpot{}, err
	}
	var amt, lastWon string
	var j store.Jackpot
	err = s.conn(ctx).QueryRow(ctx, sqlStr, args...).Scan(&amt, &lastWon, &j.LastWonDate, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Jackpot{}, store.ErrNotFound
	}
	if err != nil {
		return store.Jackpot{}, err
	}
	j.Amount = money.Parse(amt, decimal.Zero)
	j.LastWonAmount = money.Parse(lastWon, decimal.Zero)
	return j, nil
}

func upsertJackpot(j store.Jackpot) sq.InsertBuilder {
	updated := j.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return psql.Insert(tableJackpot).
		Columns("id", "amount", "last_won_amount", "last_won_date", "updated_at").
		Values(singletonID, amount(j.Amount), amount(j.LastWonAmount), j.LastWonDate, updated).
		Suffix("ON CONFLICT (id) DO UPDATE SET amount = EXCLUDED.amount, last_won_amount = EXCLUDED.last_won_amount, " +
			"last_won_date = EXCLUDED.last_won_date, updated_at = EXCLUDED.updated_at")
}

func (s *Store) exec(ctx context.Context, b sq.Sqlizer) error {
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = s.conn(ctx).Exec(ctx, sqlStr, args...)
	return err
}

func (s *Store) SaveJackpot(ctx context.Context, j store.Jackpot) error {
	return s.exec(ctx, upsertJackpot(j))
}

var accountColumns = []string{"username", "id", "total_wagered::text", "total_won::text", "bankroll::text", "last_played"}

func scanAccount(row pgx.Row) (store.Account, error) {
	var a store.Account
	var wagered, won, bankroll string
	var lastPlayed *time.Time
	if err := row.Scan(&a.Username, &a.ID, &wagered, &won, &bankroll, &lastPlayed); err != nil {
		return store.Account{}, err
	}
	a.TotalWagered = money.Parse(wagered, decimal.Zero)
	a.TotalWon = money.Parse(won, decimal.Zero)
	a.Bankroll = money.Parse(bankroll, decimal.Zero)
	if lastPlayed != nil {
		a.LastPlayed = *lastPlayed
	}
	return a, nil
}

func (s *Store) LoadAccount(ctx context.Context, username string) (store.Account, error) {
	sqlStr, args, err := psql.Select(accountColumns...).
		From(tableAccounts).
		Where(sq.Eq{"username": username}).
		ToSql()
	if err != nil {
		return store.Account{}, err
	}
	a, err := scanAccount(s.conn(ctx).QueryRow(ctx, sqlStr, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Account{}, store.ErrNotFound
	}
	return a, err
}

func upsertAccount(a store.Account) sq.InsertBuilder {
	var lastPlayed any
	if !a.LastPlayed.IsZero() {
		lastPlayed = a.LastPlayed
	}
	return psql.Insert(tableAccounts).
		Columns("username", "id", "total_wagered", "total_won", "bankroll", "last_played").
		Values(a.Username, a.ID, amount(a.TotalWagered), amount(a.TotalWon), amount(a.Bankroll), lastPlayed).
		Suffix("ON CONFLICT (username) DO UPDATE SET id = EXCLUDED.id, total_wagered = EXCLUDED.total_wagered, " +
			"total_won = EXCLUDED.total_won, bankroll = EXCLUDED.bankroll, last_played = EXCLUDED.last_played")
}

func (s *Store) SaveAccount(ctx context.Context, a store.Account) error {
	return s.exec(ctx, upsertAccount(a))
}

func (s *Store) ListAccounts(ctx context.Context) ([]store.Account, error) {
	sqlStr, args, err := psql.Select(accountColumns...).From(tableAccounts).OrderBy("username").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
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
	return psql.Insert(tableSpins).
		Columns("id", "session_id", "username", "stake", "stops", "grid", "lines", "win_amount", "paid",
			"jackpot_won", "special", "credits_after", "pool_after", "settled_at").
		Values(sp.ID, sp.SessionID, sp.Username, amount(sp.Stake), string(stops), string(grid), string(lines),
			amount(sp.WinAmount), amount(sp.Paid), sp.JackpotWon, sp.Special, amount(sp.CreditsAfter),
			amount(sp.PoolAfter), sp.SettledAt).
		Suffix("ON CONFLICT (id) DO NOTHING"), nil
}

func (s *Store) RecordSpin(ctx context.Context, sp store.Spin) error {
	b, err := insertSpin(sp)
	if err != nil {
		return err
	}
	return s.exec(ctx, b)
}

func (s *Store) LoadLeaderboard(ctx context.Context) (store.Leaderboard, error) {
	sqlStr, args, err := psql.Select("top_winner", "most_won::text", "updated_at").
		From(tableLeaderboard).
		Where(sq.Eq{"id": singletonID}).
		ToSql()
	if err != nil {
		return store.Leaderboard{}, err
	}
	var l store.Leaderboard
	var mostWon string
	err = s.conn(ctx).QueryRow(ctx, sqlStr, args...).Scan(&l.TopWinner, &mostWon, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Leaderboard{}, store.ErrNotFound
	}
	if err != nil {
		return store.Leaderboard{}, err
	}
	l.MostWon = money.Parse(mostWon, decimal.Zero)
	return l, nil
}

func upsertLeaderboard(l store.Leaderboard) sq.InsertBuilder {
	updated := l.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return psql.Insert(tableLeaderboard).
		Columns("id", "top_winner", "most_won", "updated_at").
		Values(singletonID, l.TopWinner, amount(l.MostWon), updated).
		Suffix("ON CONFLICT (id) DO UPDATE SET top_winner = EXCLUDED.top_winner, most_won = EXCLUDED.most_won, " +
			"updated_at = EXCLUDED.updated_at")
}

func (s *Store) SaveLeaderboard(ctx context.Context, l store.Leaderboard) error {
	return s.exec(ctx, upsertLeaderboard(l))
}

// SaveSettlement writes all records of one spin in a single transaction.
func (s *Store) SaveSettlement(ctx context.Context, set store.Settlement) error {
	return s.txManager.Do(ctx, func(txCtx context.Context) error {
		if err := s.SaveAccount(txCtx, set.Account); err != nil {
			return err
		}
		if err := s.SaveJackpot(txCtx, set.Jackpot); err != nil {
			return err
		}
		if err := s.RecordSpin(txCtx, set.Spin); err != nil {
			return err
		}
		if set.Leaderboard != nil {
			return s.SaveLeaderboard(txCtx, *set.Leaderboard)
		}
		return nil
	})
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
