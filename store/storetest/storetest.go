// Package storetest is a behaviour suite shared by every store backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashenafi-pixel/jackpot-royale/games/slots"
	"github.com/Ashenafi-pixel/jackpot-royale/store"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Run exercises a backend. open must return an empty store.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("JackpotNotFound", func(t *testing.T) {
		s := open(t)
		_, err := s.LoadJackpot(context.Background())
		assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
	})

	t.Run("JackpotRoundTrip", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		in := store.Jackpot{
			Amount:        dec("12345.67"),
			LastWonAmount: dec("10000.50"),
			LastWonDate:   "03/14/2025",
			UpdatedAt:     time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		}
		require.NoError(t, s.SaveJackpot(ctx, in))
		out, err := s.LoadJackpot(ctx)
		require.NoError(t, err)
		assert.True(t, in.Amount.Equal(out.Amount), "amount %s", out.Amount)
		assert.True(t, in.LastWonAmount.Equal(out.LastWonAmount), "last won %s", out.LastWonAmount)
		assert.Equal(t, in.LastWonDate, out.LastWonDate)

		in.Amount = dec("20000.01")
		require.NoError(t, s.SaveJackpot(ctx, in))
		out, err = s.LoadJackpot(ctx)
		require.NoError(t, err)
		assert.True(t, dec("20000.01").Equal(out.Amount), "overwrite amount %s", out.Amount)
	})

	t.Run("AccountRoundTrip", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		_, err := s.LoadAccount(ctx, "alice")
		assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)

		in := store.Account{
			ID:           "acc-1",
			Username:     "alice",
			TotalWagered: dec("12.25"),
			TotalWon:     dec("50.00"),
			Bankroll:     dec("37.75"),
			LastPlayed:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		}
		require.NoError(t, s.SaveAccount(ctx, in))
		out, err := s.LoadAccount(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", out.Username)
		assert.True(t, in.TotalWagered.Equal(out.TotalWagered), "wagered %s", out.TotalWagered)
		assert.True(t, in.TotalWon.Equal(out.TotalWon), "won %s", out.TotalWon)
		assert.True(t, in.Bankroll.Equal(out.Bankroll), "bankroll %s", out.Bankroll)
		assert.True(t, in.LastPlayed.Equal(out.LastPlayed.UTC()), "last played %s", out.LastPlayed)

		in.TotalWon = dec("75.50")
		require.NoError(t, s.SaveAccount(ctx, in))
		require.NoError(t, s.SaveAccount(ctx, store.Account{ID: "acc-2", Username: "bob", Bankroll: dec("-1.00")}))
		list, err := s.ListAccounts(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)
		byName := map[string]store.Account{}
		for _, a := range list {
			byName[a.Username] = a
		}
		assert.True(t, dec("75.50").Equal(byName["alice"].TotalWon))
		assert.True(t, dec("-1").Equal(byName["bob"].Bankroll))
	})

	t.Run("UsernamesAreCaseSensitive", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.SaveAccount(ctx, store.Account{ID: "acc-up", Username: "Alice", TotalWon: dec("1.00")}))
		require.NoError(t, s.SaveAccount(ctx, store.Account{ID: "acc-low", Username: "alice", TotalWon: dec("2.00")}))

		up, err := s.LoadAccount(ctx, "Alice")
		require.NoError(t, err)
		assert.Equal(t, "acc-up", up.ID)
		low, err := s.LoadAccount(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "acc-low", low.ID)
		_, err = s.LoadAccount(ctx, "ALICE")
		assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)

		list, err := s.ListAccounts(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("LeaderboardRoundTrip", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		_, err := s.LoadLeaderboard(ctx)
		assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
		require.NoError(t, s.SaveLeaderboard(ctx, store.Leaderboard{TopWinner: "alice", MostWon: dec("10050.00")}))
		l, err := s.LoadLeaderboard(ctx)
		require.NoError(t, err)
		assert.Equal(t, "alice", l.TopWinner)
		assert.True(t, dec("10050").Equal(l.MostWon))
	})

	t.Run("Settlement", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		set := store.Settlement{
			Jackpot: store.Jackpot{Amount: dec("10000.25")},
			Account: store.Account{ID: "acc-9", Username: "carol", TotalWagered: dec("0.25"), Bankroll: dec("-0.25")},
			Spin: store.Spin{
				ID:        "spin-1",
				SessionID: "sess-1",
				Username:  "carol",
				Stake:     dec("0.25"),
				Stops:     []int{1, 2, 3},
				Grid:      slots.Grid{{"lemon", "plum", "bell"}, {"star", "plum", "bell"}, {"grape", "lemon", "bell"}},
				Lines:     []slots.Line{},
				WinAmount: decimal.Zero,
				Paid:      decimal.Zero,
				SettledAt: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
			},
			Leaderboard: &store.Leaderboard{TopWinner: "carol", MostWon: dec("1.00")},
		}
		require.NoError(t, store.SaveSettlement(ctx, s, set))
		j, err := s.LoadJackpot(ctx)
		require.NoError(t, err)
		assert.True(t, dec("10000.25").Equal(j.Amount))
		a, err := s.LoadAccount(ctx, "carol")
		require.NoError(t, err)
		assert.True(t, dec("0.25").Equal(a.TotalWagered))
		l, err := s.LoadLeaderboard(ctx)
		require.NoError(t, err)
		assert.Equal(t, "carol", l.TopWinner)
	})
}
