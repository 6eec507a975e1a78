// Package session runs login, stake selection and spins for each player and
// settles them against the shared jackpot pool.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Ashenafi-pixel/jackpot-royale/gamemath"
	"github.com/Ashenafi-pixel/jackpot-royale/games/slots"
	"github.com/Ashenafi-pixel/jackpot-royale/jackpot"
	"github.com/Ashenafi-pixel/jackpot-royale/money"
	"github.com/Ashenafi-pixel/jackpot-royale/persist"
	"github.com/Ashenafi-pixel/jackpot-royale/reel"
	"github.com/Ashenafi-pixel/jackpot-royale/store"
)

var (
	ErrSpinInProgress      = errors.New("session: spin in progress")
	ErrInsufficientCredits = errors.New("session: insufficient credits")
	ErrInvalidStake        = errors.New("session: invalid stake")
	ErrInvalidUsername     = errors.New("session: username must be at least 3 characters")
	ErrSessionNotFound     = errors.New("session: not found")
)

const (
	GuestName      = "Guest"
	minUsernameLen = 3
)

type Settings struct {
	StartCredits decimal.Decimal
	MinStake     decimal.Decimal
	MaxStake     decimal.Decimal
	StakeStep    decimal.Decimal
	DefaultStake decimal.Decimal

	SpecialPrizes bool
	// PersistTimeout bounds how long a spin waits for its store write.
	PersistTimeout time.Duration
	// FrameInterval paces spins that stream frames to a view.
	FrameInterval time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		StartCredits:   money.Must("100"),
		MinStake:       money.Must("0.25"),
		MaxStake:       money.Must("10"),
		StakeStep:      money.Must("0.25"),
		DefaultStake:   money.Must("1"),
		PersistTimeout: 2 * time.Second,
		FrameInterval:  time.Duration(reel.FrameMs) * time.Millisecond,
	}
}

// Session is one logged in player with their own reels.
type Session struct {
	ID        string
	CreatedAt time.Time

	gate     *semaphore.Weighted
	spinning atomic.Bool

	mu      sync.Mutex
	account store.Account
	credits decimal.Decimal
	stake   decimal.Decimal
	reels   []*reel.Reel
	visible slots.Grid
	last    *Outcome
}

// State is a point in time view of a session.
type State struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Credits  decimal.Decimal `json:"credits"`
	Stake    decimal.Decimal `json:"stake"`
	Spinning bool            `json:"spinning"`
	Account  store.Account   `json:"account"`
	Visible  slots.Grid      `json:"visible"`
	Last     *Outcome        `json:"lastOutcome,omitempty"`
}

// Outcome is the settled result of one spin.
type Outcome struct {
	SpinID     string           `json:"spinId"`
	Stake      decimal.Decimal  `json:"stake"`
	Stops      [slots.Reels]int `json:"stops"`
	Grid       slots.Grid       `json:"grid"`
	Evaluation slots.Evaluation `json:"evaluation"`
	Paid       decimal.Decimal  `json:"paid"`
	Credits    decimal.Decimal  `json:"credits"`
	Jackpot    store.Jackpot    `json:"jackpot"`
	// Persisted is false when the store write failed or timed out.
	Persisted bool `json:"persisted"`
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:       s.ID,
		Username: s.account.Username,
		Credits:  s.credits,
		Stake:    s.stake,
		Spinning: s.spinning.Load(),
		Account:  s.account,
		Visible:  s.visible,
		Last:     s.last,
	}
}

func gridOf(reels []*reel.Reel) slots.Grid {
	var g slots.Grid
	for i := 0; i < slots.Reels && i < len(reels); i++ {
		g[i] = reels[i].VisibleNames()
	}
	return g
}

// lockedRNG serialises access to a source that is not safe for concurrent use.
type lockedRNG struct {
	mu  sync.Mutex
	rng gamemath.RNG
}

func (l *lockedRNG) Int64N(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Int64N(n)
}

type Engine struct {
	pt       *gamemath.Paytable
	pool     *jackpot.Pool
	writer   *persist.Writer
	rng      gamemath.RNG
	settings Settings
	log      *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	boardMu sync.Mutex
	board   store.Leaderboard
}

func NewEngine(pt *gamemath.Paytable, pool *jackpot.Pool, writer *persist.Writer, rng gamemath.RNG, settings Settings, log *zap.Logger) *Engine {
	if rng == nil {
		rng = gamemath.SecureRNG{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		pt:       pt,
		pool:     pool,
		writer:   writer,
		rng:      &lockedRNG{rng: rng},
		settings: settings,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

func (e *Engine) Paytable() *gamemath.Paytable { return e.pt }
func (e *Engine) Pool() *jackpot.Pool          { return e.pool }
func (e *Engine) Settings() Settings           { return e.settings }

// LoadLeaderboard primes the in-memory board from the store. A missing board starts empty.
func (e *Engine) LoadLeaderboard(ctx context.Context) error {
	l, err := e.writer.Store().LoadLeaderboard(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load leaderboard: %w", err)
	}
	e.boardMu.Lock()
	e.board = l
	e.boardMu.Unlock()
	return nil
}

func (e *Engine) Leaderboard() store.Leaderboard {
	e.boardMu.Lock()
	defer e.boardMu.Unlock()
	return e.board
}

// ObserveAccount promotes a to top winner when its lifetime winnings beat the
// record. It returns the new board, or nil when nothing changed.
func (e *Engine) ObserveAccount(a store.Account) *store.Leaderboard {
	e.boardMu.Lock()
	defer e.boardMu.Unlock()
	if !a.TotalWon.GreaterThan(e.board.MostWon) {
		return nil
	}
	e.board = store.Leaderboard{TopWinner: a.Username, MostWon: a.TotalWon, UpdatedAt: e.now()}
	l := e.board
	return &l
}

// normaliseUsername trims surrounding space only. Names are case sensitive in
// every store, so "Alice" and "alice" are two accounts.
func normaliseUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return GuestName, nil
	}
	if len([]rune(name)) < minUsernameLen {
		return "", ErrInvalidUsername
	}
	return name, nil
}

// Login opens a session for username, loading or creating the account.
// Credits always start fresh; lifetime statistics carry over.
func (e *Engine) Login(ctx context.Context, username string) (*Session, error) {
	name, err := normaliseUsername(username)
	if err != nil {
		return nil, err
	}
	acct, err := e.writer.Store().LoadAccount(ctx, name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		acct = store.Account{ID: uuid.New().String(), Username: name}
	case err != nil:
		return nil, fmt.Errorf("load account %s: %w", name, err)
	}
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	acct.Username = name
	acct.LastPlayed = e.now()

	reels, err := NewReels(e.pt, e.rng)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: e.now(),
		gate:      semaphore.NewWeighted(1),
		account:   acct,
		credits:   e.settings.StartCredits,
		stake:     e.settings.DefaultStake,
		reels:     reels,
		visible:   gridOf(reels),
	}
	e.mu.Lock()
	e.sessions[s.ID] = s
	e.mu.Unlock()

	if err := e.writer.SaveAccount(ctx, acct); err != nil {
		e.log.Warn("account save failed", zap.String("username", name), zap.Error(err))
	}
	e.log.Info("session opened", zap.String("session_id", s.ID), zap.String("username", name))
	return s, nil
}

func (e *Engine) Session(id string) (*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// End forgets a session. A spin in flight still settles.
func (e *Engine) End(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(e.sessions, id)
	return nil
}
