// Package legacy holds the jackpot-data.json and users.json document layouts
// shared by the file backend, the remote client and the compatibility endpoints.
package legacy

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ashenafi-pixel/jackpot-royale/money"
	"github.com/Ashenafi-pixel/jackpot-royale/store"
)

// JackpotDoc is jackpot-data.json. Numbers may arrive as strings from older writers.
type JackpotDoc struct {
	JackpotRoyale   any    `json:"jackpotRoyale"`
	LastJackpotWon  any    `json:"lastJackpotWon"`
	LastJackpotDate string `json:"lastJackpotDate"`
	LastUpdated     string `json:"lastUpdated"`
}

type UserDoc struct {
	ID           string `json:"id,omitempty"`
	TotalWon     any    `json:"totalWon"`
	TotalWagered any    `json:"totalWagered"`
	Bankroll     any    `json:"bankroll"`
	LastPlayed   string `json:"lastPlayed"`
}

type LeaderboardDoc struct {
	TopWinner string `json:"topWinner"`
	MostWon   any    `json:"mostWon"`
}

// UsersDoc is users.json.
type UsersDoc struct {
	Users       map[string]UserDoc `json:"users"`
	Leaderboard *LeaderboardDoc    `json:"leaderboard,omitempty"`
	LastUpdated string             `json:"lastUpdated"`
}

// SaveUserRequest is the ?data= payload of /save-user. Missing stats keep their stored value.
type SaveUserRequest struct {
	Username     string `json:"username"`
	TotalWon     any    `json:"totalWon,omitempty"`
	TotalWagered any    `json:"totalWagered,omitempty"`
	Bankroll     any    `json:"bankroll,omitempty"`
}

func Stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func ParseStamp(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (d JackpotDoc) Jackpot() store.Jackpot {
	return store.Jackpot{
		Amount:        money.Sanitize(d.JackpotRoyale, decimal.Zero),
		LastWonAmount: money.Sanitize(d.LastJackpotWon, decimal.Zero),
		LastWonDate:   d.LastJackpotDate,
		UpdatedAt:     ParseStamp(d.LastUpdated),
	}
}

func FromJackpot(j store.Jackpot) JackpotDoc {
	return JackpotDoc{
		JackpotRoyale:   money.Float(j.Amount),
		LastJackpotWon:  money.Float(j.LastWonAmount),
		LastJackpotDate: j.LastWonDate,
		LastUpdated:     Stamp(j.UpdatedAt),
	}
}

func (u UserDoc) Account(name string) store.Account {
	return store.Account{
		ID:           u.ID,
		Username:     name,
		TotalWagered: money.Sanitize(u.TotalWagered, decimal.Zero),
		TotalWon:     money.Sanitize(u.TotalWon, decimal.Zero),
		Bankroll:     money.Sanitize(u.Bankroll, decimal.Zero),
		LastPlayed:   ParseStamp(u.LastPlayed),
	}
}

func FromAccount(a store.Account) UserDoc {
	return UserDoc{
		ID:           a.ID,
		TotalWon:     money.Float(a.TotalWon),
		TotalWagered: money.Float(a.TotalWagered),
		Bankroll:     money.Float(a.Bankroll),
		LastPlayed:   Stamp(a.LastPlayed),
	}
}

func FromLeaderboard(l store.Leaderboard) *LeaderboardDoc {
	return &LeaderboardDoc{TopWinner: l.TopWinner, MostWon: money.Float(l.MostWon)}
}

// Leaderboard returns the board and false when the document has none.
func (d UsersDoc) Board() (store.Leaderboard, bool) {
	if d.Leaderboard == nil {
		return store.Leaderboard{}, false
	}
	return store.Leaderboard{
		TopWinner: d.Leaderboard.TopWinner,
		MostWon:   money.Sanitize(d.Leaderboard.MostWon, decimal.Zero),
		UpdatedAt: ParseStamp(d.LastUpdated),
	}, true
}

// Accounts lists the users sorted by name.
func (d UsersDoc) Accounts() []store.Account {
	out := make([]store.Account, 0, len(d.Users))
	for name, u := range d.Users {
		out = append(out, u.Account(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// NewUsersDoc builds the document from accounts and an optional board.
func NewUsersDoc(accounts []store.Account, board *store.Leaderboard, now time.Time) UsersDoc {
	doc := UsersDoc{Users: make(map[string]UserDoc, len(accounts)), LastUpdated: Stamp(now)}
	for _, a := range accounts {
		doc.Users[a.Username] = FromAccount(a)
	}
	if board != nil {
		doc.Leaderboard = FromLeaderboard(*board)
	} else {
		doc.Leaderboard = &LeaderboardDoc{TopWinner: "", MostWon: 0}
	}
	return doc
}

// Apply merges the request into a, keeping stored values for omitted stats.
func (r SaveUserRequest) Apply(a store.Account) store.Account {
	if r.TotalWon != nil {
		a.TotalWon = money.Sanitize(r.TotalWon, a.TotalWon)
	}
	if r.TotalWagered != nil {
		a.TotalWagered = money.Sanitize(r.TotalWagered, a.TotalWagered)
	}
	if r.Bankroll != nil {
		a.Bankroll = money.Sanitize(r.Bankroll, a.Bankroll)
	}
	return a
}
