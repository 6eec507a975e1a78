package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashenafi-pixel/jackpot-royale/store"
	"github.com/Ashenafi-pixel/jackpot-royale/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New(t.TempDir()) })
}

func TestLoadJackpot_LegacyDocument(t *testing.T) {
	dir := t.TempDir()
	doc := `{"jackpotRoyale": "15234.5", "lastJackpotWon": 10234.99, "lastJackpotDate": "04/01/2025", "lastUpdated": "2025-04-01T10:00:00Z"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, jackpotFile), []byte(doc), 0644))

	j, err := New(dir).LoadJackpot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "15234.50", j.Amount.StringFixed(2))
	assert.Equal(t, "10234.99", j.LastWonAmount.StringFixed(2))
	assert.Equal(t, "04/01/2025", j.LastWonDate)
	assert.False(t, j.UpdatedAt.IsZero())
}

func TestLoadJackpot_InvalidNumbersBecomeZero(t *testing.T) {
	dir := t.TempDir()
	doc := `{"jackpotRoyale": "NaN", "lastJackpotWon": null}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, jackpotFile), []byte(doc), 0644))

	j, err := New(dir).LoadJackpot(context.Background())
	require.NoError(t, err)
	assert.True(t, j.Amount.IsZero())
	assert.True(t, j.LastWonAmount.IsZero())
}

func TestLoadAccount_LegacyUsersDocument(t *testing.T) {
	dir := t.TempDir()
	doc := `{
  "users": {
    "Guest": {"totalWon": 12.5, "totalWagered": "x", "bankroll": -3.25, "lastPlayed": "2025-02-03T04:05:06.000Z"}
  },
  "leaderboard": {"topWinner": "Guest", "mostWon": 12.5},
  "lastUpdated": "2025-02-03T04:05:06.000Z"
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, usersFile), []byte(doc), 0644))
	s := New(dir)

	a, err := s.LoadAccount(context.Background(), "Guest")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.5").Equal(a.TotalWon))
	assert.True(t, a.TotalWagered.IsZero(), "unparsable stat should sanitise to zero")
	assert.True(t, decimal.RequireFromString("-3.25").Equal(a.Bankroll))

	l, err := s.LoadLeaderboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Guest", l.TopWinner)
}

func TestCorruptDocumentIsAnError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, jackpotFile), []byte("{not json"), 0644))
	_, err := New(dir).LoadJackpot(context.Background())
	assert.Error(t, err)
}

func TestRecordSpin_BoundedLog(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordSpin(ctx, store.Spin{ID: string(rune('a' + i))}))
	}
	list, err := s.Spins()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "c", list[2].ID)
}
