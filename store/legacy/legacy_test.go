package legacy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ashenafi-pixel/jackpot-royale/money"
	"github.com/Ashenafi-pixel/jackpot-royale/store"
)

func TestJackpotDoc_SanitisesLooseValues(t *testing.T) {
	j := JackpotDoc{JackpotRoyale: "12000.5", LastJackpotWon: nil, LastJackpotDate: "03/07/2024", LastUpdated: "garbage"}.Jackpot()
	assert.Equal(t, "12000.50", money.String(j.Amount))
	assert.True(t, j.LastWonAmount.IsZero())
	assert.Equal(t, "03/07/2024", j.LastWonDate)
	assert.True(t, j.UpdatedAt.IsZero())

	j = JackpotDoc{JackpotRoyale: "NaN"}.Jackpot()
	assert.True(t, j.Amount.IsZero())
}

func TestUsersDoc(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	accounts := []store.Account{
		{Username: "zed", TotalWon: money.Must("3")},
		{Username: "amy", TotalWon: money.Must("9.5"), LastPlayed: now},
	}
	doc := NewUsersDoc(accounts, nil, now)
	assert.Len(t, doc.Users, 2)
	assert.NotNil(t, doc.Leaderboard)

	list := doc.Accounts()
	assert.Equal(t, "amy", list[0].Username)
	assert.Equal(t, "9.50", money.String(list[0].TotalWon))
	assert.Equal(t, now, list[0].LastPlayed)

	board, ok := UsersDoc{}.Board()
	assert.False(t, ok)
	assert.Empty(t, board.TopWinner)
}

func TestSaveUserRequest_Apply(t *testing.T) {
	a := store.Account{Username: "amy", TotalWon: money.Must("5"), TotalWagered: money.Must("7"), Bankroll: money.Must("-2")}
	got := SaveUserRequest{Username: "amy", TotalWon: 12.345}.Apply(a)
	assert.Equal(t, "12.35", money.String(got.TotalWon))
	assert.Equal(t, "7.00", money.String(got.TotalWagered))
	assert.Equal(t, "-2.00", money.String(got.Bankroll))

	got = SaveUserRequest{Username: "amy", Bankroll: "bogus"}.Apply(a)
	assert.Equal(t, "-2.00", money.String(got.Bankroll))
}
