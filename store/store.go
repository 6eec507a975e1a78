// Package store defines the persistence collaborator of the spin engine and
// the records it exchanges. Backends live in the sub-packages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ashenafi-pixel/jackpot-royale/games/slots"
)

// ErrNotFound is returned by loads when nothing has been saved yet.
var ErrNotFound = errors.New("store: not found")

// Jackpot is the shared progressive pool.
type Jackpot struct {
	Amount        decimal.Decimal `json:"amount"`
	LastWonAmount decimal.Decimal `json:"lastWonAmount"`
	LastWonDate   string          `json:"lastWonDate"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	// Seq orders snapshots taken from one pool. Zero is unsequenced.
	Seq uint64 `json:"-"`
}

// Account holds the statistics that survive across sessions. Credits are session scoped and not stored.
type Account struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	TotalWagered decimal.Decimal `json:"totalWagered"`
	TotalWon     decimal.Decimal `json:"totalWon"`
	Bankroll     decimal.Decimal `json:"bankroll"`
	LastPlayed   time.Time       `json:"lastPlayed"`
}

// Leaderboard tracks the single biggest lifetime winner.
type Leaderboard struct {
	TopWinner string          `json:"topWinner"`
	MostWon   decimal.Decimal `json:"mostWon"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Spin is the audit record of one settled spin.
type Spin struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"sessionId"`
	Username     string          `json:"username"`
	Stake        decimal.Decimal `json:"stake"`
	Stops        []int           `json:"stops"`
	Grid         slots.Grid      `json:"grid"`
	Lines        []slots.Line    `json:"winningLines"`
	WinAmount    decimal.Decimal `json:"winAmount"`
	Paid         decimal.Decimal `json:"paid"`
	JackpotWon   bool            `json:"jackpotWon"`
	Special      string          `json:"special,omitempty"`
	CreditsAfter decimal.Decimal `json:"creditsAfter"`
	PoolAfter    decimal.Decimal `json:"poolAfter"`
	SettledAt    time.Time       `json:"settledAt"`
}

// Store is implemented by every backend. Implementations must be safe for concurrent use.
// Monetary values that cannot be decoded come back as zero; the caller owns defaults and floors.
type Store interface {
	LoadJackpot(ctx context.Context) (Jackpot, error)
	SaveJackpot(ctx context.Context, j Jackpot) error
	LoadAccount(ctx context.Context, username string) (Account, error)
	SaveAccount(ctx context.Context, a Account) error
	ListAccounts(ctx context.Context) ([]Account, error)
	RecordSpin(ctx context.Context, s Spin) error
	LoadLeaderboard(ctx context.Context) (Leaderboard, error)
	SaveLeaderboard(ctx context.Context, l Leaderboard) error
	Close() error
}

// Settlement is everything one settled spin writes.
type Settlement struct {
	Jackpot     Jackpot
	Account     Account
	Spin        Spin
	Leaderboard *Leaderboard
}

// Settler is implemented by backends that can write a whole settlement atomically.
type Settler interface {
	SaveSettlement(ctx context.Context, s Settlement) error
}

// SaveSettlement writes s through Settler when the backend has it, else record by record.
func SaveSettlement(ctx context.Context, st Store, s Settlement) error {
	if tx, ok := st.(Settler); ok {
		return tx.SaveSettlement(ctx, s)
	}
	if err := st.SaveAccount(ctx, s.Account); err != nil {
		return err
	}
	if err := st.SaveJackpot(ctx, s.Jackpot); err != nil {
		return err
	}
	if err := st.RecordSpin(ctx, s.Spin); err != nil {
		return err
	}
	if s.Leaderboard != nil {
		return st.SaveLeaderboard(ctx, *s.Leaderboard)
	}
	return nil
}
