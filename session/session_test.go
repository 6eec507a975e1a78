package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ashenafi-pixel/jackpot-royale/gamemath"
	"github.com/Ashenafi-pixel/jackpot-royale/games/slots"
	"github.com/Ashenafi-pixel/jackpot-royale/jackpot"
	"github.com/Ashenafi-pixel/jackpot-royale/money"
	"github.com/Ashenafi-pixel/jackpot-royale/persist"
	"github.com/Ashenafi-pixel/jackpot-royale/reel"
	"github.com/Ashenafi-pixel/jackpot-royale/store"
	"github.com/Ashenafi-pixel/jackpot-royale/store/memstore"
)

// firstRNG always returns 0, so every draw picks the first symbol.
type firstRNG struct{}

func (firstRNG) Int64N(int64) int64 { return 0 }

func startWriter(t *testing.T, st store.Store) *persist.Writer {
	t.Helper()
	w := persist.New(st, nil, zap.NewNop(), persist.Options{QueueSize: 64, Retries: 1, Backoff: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func newEngine(t *testing.T, pt *gamemath.Paytable, rng gamemath.RNG, st store.Store) *Engine {
	t.Helper()
	if pt == nil {
		pt = gamemath.Default()
	}
	if st == nil {
		st = memstore.New()
	}
	pool := jackpot.NewPool(jackpot.DefaultSettings(), jackpot.Fresh(jackpot.DefaultSettings()))
	settings := DefaultSettings()
	settings.PersistTimeout = time.Second
	e := NewEngine(pt, pool, startWriter(t, st), rng, settings, zap.NewNop())
	require.NoError(t, e.LoadLeaderboard(context.Background()))
	return e
}

func singleSymbolTable(name string, value float64) *gamemath.Paytable {
	pt := gamemath.Default()
	pt.Symbols = []gamemath.Symbol{{Name: name, Value: value, Weight: 1}}
	return pt
}

func TestLogin(t *testing.T) {
	e := newEngine(t, nil, gamemath.NewSeededRNG(1), nil)
	ctx := context.Background()

	s, err := e.Login(ctx, "  ")
	require.NoError(t, err)
	st := s.State()
	assert.Equal(t, GuestName, st.Username)
	assert.Equal(t, "100.00", money.String(st.Credits))
	assert.Equal(t, "1.00", money.String(st.Stake))
	assert.NotEmpty(t, st.Account.ID)

	_, err = e.Login(ctx, "ab")
	assert.ErrorIs(t, err, ErrInvalidUsername)

	got, err := e.Session(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, e.End(s.ID))
	_, err = e.Session(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, e.End(s.ID), ErrSessionNotFound)
}

func TestLogin_CarriesStatsButResetsCredits(t *testing.T) {
	st := memstore.New()
	require.NoError(t, st.SaveAccount(context.Background(), store.Account{
		ID: "acct-1", Username: "alice", TotalWon: money.Must("42"), TotalWagered: money.Must("60"), Bankroll: money.Must("-18"),
	}))
	e := newEngine(t, nil, gamemath.NewSeededRNG(1), st)
	s, err := e.Login(context.Background(), "alice")
	require.NoError(t, err)
	state := s.State()
	assert.Equal(t, "acct-1", state.Account.ID)
	assert.Equal(t, "42.00", money.String(state.Account.TotalWon))
	assert.Equal(t, "100.00", money.String(state.Credits))
}

func TestLogin_UsernamesAreCaseSensitive(t *testing.T) {
	st := memstore.New()
	e := newEngine(t, nil, gamemath.NewSeededRNG(1), st)
	up, err := e.Login(context.Background(), " Alice ")
	require.NoError(t, err)
	low, err := e.Login(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", up.State().Username)
	assert.NotEqual(t, up.State().Account.ID, low.State().Account.ID)

	list, err := st.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestStake(t *testing.T) {
	e := newEngine(t, nil, gamemath.NewSeededRNG(1), nil)
	s, err := e.Login(context.Background(), "bob")
	require.NoError(t, err)

	v, err := e.AdjustStake(s.ID, StakeIncrease)
	require.NoError(t, err)
	assert.Equal(t, "1.25", money.String(v))

	v, err = e.SetStake(s.ID, money.Must("0.25"))
	require.NoError(t, err)
	assert.Equal(t, "0.25", money.String(v))
	v, err = e.AdjustStake(s.ID, StakeDecrease)
	require.NoError(t, err)
	assert.Equal(t, "0.25", money.String(v))

	v, err = e.SetStake(s.ID, money.Must("10"))
	require.NoError(t, err)
	v, err = e.AdjustStake(s.ID, StakeIncrease)
	require.NoError(t, err)
	assert.Equal(t, "10.00", money.String(v))

	for _, bad := range []string{"0", "0.30", "10.25", "-1"} {
		_, err = e.SetStake(s.ID, money.Must(bad))
		assert.ErrorIs(t, err, ErrInvalidStake, bad)
	}
	_, err = e.AdjustStake(s.ID, "double")
	assert.ErrorIs(t, err, ErrInvalidStake)
	_, err = e.AdjustStake("missing", StakeIncrease)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSpin_SettlesAndPersists(t *testing.T) {
	st := memstore.New()
	e := newEngine(t, nil, gamemath.NewSeededRNG(7), st)
	s, err := e.Login(context.Background(), "carol")
	require.NoError(t, err)

	out, err := e.Spin(context.Background(), s.ID, nil)
	require.NoError(t, err)
	assert.True(t, out.Persisted)
	assert.Equal(t, "1.00", money.String(out.Stake))

	// The middle row shows the drawn stop of every reel.
	for i, r := range s.reels {
		assert.Equal(t, r.Symbols()[out.Stops[i]].Name, out.Grid[i][1], "reel %d", i)
	}
	want := money.Must("99").Add(out.Paid)
	assert.True(t, want.Equal(out.Credits), "credits %s, want %s", out.Credits, want)

	acct, err := st.LoadAccount(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, "1.00", money.String(acct.TotalWagered))
	assert.True(t, acct.TotalWon.Equal(out.Paid))
	require.Len(t, st.Spins(), 1)
	assert.Equal(t, out.SpinID, st.Spins()[0].ID)

	j, err := st.LoadJackpot(context.Background())
	require.NoError(t, err)
	assert.True(t, j.Amount.Equal(e.Pool().Amount()))
	require.NotNil(t, s.State().Last)
	assert.Equal(t, out.SpinID, s.State().Last.SpinID)
}

func TestSpin_LossFeedsPool(t *testing.T) {
	e := newEngine(t, nil, gamemath.NewSeededRNG(3), nil)
	s, err := e.Login(context.Background(), "dave")
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		before := e.Pool().Amount()
		out, err := e.Spin(context.Background(), s.ID, nil)
		require.NoError(t, err)
		if !out.Evaluation.Won() {
			assert.Equal(t, money.String(before.Add(out.Stake)), money.String(out.Jackpot.Amount))
			return
		}
	}
	t.Fatal("no losing spin in 50 attempts")
}

func TestSpin_MinStakeLoss(t *testing.T) {
	e := newEngine(t, nil, gamemath.NewSeededRNG(3), nil)
	s, err := e.Login(context.Background(), "dora")
	require.NoError(t, err)
	_, err = e.SetStake(s.ID, money.Must("0.25"))
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		credits, pool := s.Credits(), e.Pool().Amount()
		out, err := e.Spin(context.Background(), s.ID, nil)
		require.NoError(t, err)
		if out.Evaluation.Won() {
			continue
		}
		assert.True(t, out.Paid.IsZero())
		assert.Equal(t, money.String(credits.Sub(money.Must("0.25"))), money.String(out.Credits))
		assert.Equal(t, money.String(pool.Add(money.Must("0.25"))), money.String(out.Jackpot.Amount))
		return
	}
	t.Fatal("no losing spin in 50 attempts")
}

func TestSpin_SettlementHoldsOverManySpins(t *testing.T) {
	e := newEngine(t, nil, gamemath.NewSeededRNG(21), nil)
	s, err := e.Login(context.Background(), "otto")
	require.NoError(t, err)
	s.mu.Lock()
	s.credits = money.Must("100000")
	s.mu.Unlock()
	stakes := []string{"0.25", "1", "2.50", "10"}
	seed := jackpot.DefaultSettings().Seed
	floor := jackpot.DefaultSettings().Floor

	losses := 0
	for i := 0; i < 400; i++ {
		_, err := e.SetStake(s.ID, money.Must(stakes[i%len(stakes)]))
		require.NoError(t, err)
		credits, pool := s.Credits(), e.Pool().Amount()

		out, err := e.Spin(context.Background(), s.ID, nil)
		require.NoError(t, err)
		assert.True(t, credits.Sub(out.Stake).Add(out.Paid).Equal(out.Credits), "spin %d credits", i)
		assert.False(t, out.Jackpot.Amount.IsNegative(), "spin %d pool", i)
		assert.True(t, out.Jackpot.Amount.GreaterThanOrEqual(floor), "spin %d pool under floor", i)

		switch {
		case out.Evaluation.JackpotWon:
			assert.True(t, out.Paid.Equal(pool), "spin %d jackpot pays the pool", i)
			assert.True(t, out.Jackpot.Amount.Equal(seed))
		case out.Evaluation.Won():
			assert.True(t, out.Paid.LessThanOrEqual(pool))
			left := pool.Sub(out.Paid)
			if left.LessThan(floor) {
				left = seed
			}
			assert.True(t, left.Equal(out.Jackpot.Amount), "spin %d win", i)
		default:
			losses++
			assert.True(t, out.Paid.IsZero())
			assert.True(t, pool.Add(out.Stake).Equal(out.Jackpot.Amount), "spin %d loss feeds the pool", i)
		}
	}
	assert.Greater(t, losses, 0)
}

func TestSpin_StripsStayBetweenSpins(t *testing.T) {
	e := newEngine(t, nil, gamemath.NewSeededRNG(4), nil)
	s, err := e.Login(context.Background(), "pia")
	require.NoError(t, err)
	strips := make([][]gamemath.Symbol, len(s.reels))
	for i, r := range s.reels {
		strips[i] = r.Symbols()
	}
	assert.Equal(t, gridOf(s.reels), s.State().Visible)

	for i := 0; i < 3; i++ {
		out, err := e.Spin(context.Background(), s.ID, nil)
		require.NoError(t, err)
		// The next spin starts from exactly what the player sees.
		assert.Equal(t, out.Grid, s.State().Visible)
		assert.Equal(t, gridOf(s.reels), s.State().Visible)
	}
	for i, r := range s.reels {
		assert.Equal(t, strips[i], r.Symbols(), "reel %d", i)
	}
}

func TestRules_PlayRejectsWrongReelCount(t *testing.T) {
	reels, err := NewReels(gamemath.Default(), gamemath.NewSeededRNG(1))
	require.NoError(t, err)
	_, err = Rules{Paytable: gamemath.Default()}.Play(context.Background(), gamemath.NewSeededRNG(1), reels[:2], money.Must("1"), nil, 0)
	assert.Error(t, err)
}

func TestSpin_RegularWin(t *testing.T) {
	e := newEngine(t, singleSymbolTable("lemon", 5), firstRNG{}, nil)
	s, err := e.Login(context.Background(), "erin")
	require.NoError(t, err)

	out, err := e.Spin(context.Background(), s.ID, nil)
	require.NoError(t, err)
	assert.Len(t, out.Evaluation.Lines, 3)
	assert.Equal(t, "15.00", money.String(out.Paid))
	assert.Equal(t, "114.00", money.String(out.Credits))
	assert.Equal(t, "9985.00", money.String(out.Jackpot.Amount))

	board := e.Leaderboard()
	assert.Equal(t, "erin", board.TopWinner)
	assert.Equal(t, "15.00", money.String(board.MostWon))
}

func TestSpin_JackpotPaysWholePool(t *testing.T) {
	e := newEngine(t, singleSymbolTable("star", 50), firstRNG{}, nil)
	s, err := e.Login(context.Background(), "frank")
	require.NoError(t, err)

	out, err := e.Spin(context.Background(), s.ID, nil)
	require.NoError(t, err)
	assert.True(t, out.Evaluation.JackpotWon)
	assert.Equal(t, "10000.00", money.String(out.Paid))
	assert.Equal(t, "10099.00", money.String(out.Credits))
	assert.Equal(t, "10000.00", money.String(out.Jackpot.Amount))
	assert.Equal(t, "10000.00", money.String(out.Jackpot.LastWonAmount))
	assert.NotEmpty(t, out.Jackpot.LastWonDate)
}

func TestEvaluate_SpecialPrizeOnlyWhenEnabled(t *testing.T) {
	e := newEngine(t, nil, gamemath.NewSeededRNG(11), nil)
	// Five stars, no matching row.
	grid := slots.Grid{
		{"star", "star", "lemon"},
		{"plum", "star", "star"},
		{"star", "bell", "cherry"},
	}
	ev, win := e.evaluate(grid, money.Must("2"))
	assert.Nil(t, ev.Special)
	assert.True(t, win.IsZero())

	e.settings.SpecialPrizes = true
	ev, win = e.evaluate(grid, money.Must("2"))
	require.NotNil(t, ev.Special)
	assert.Equal(t, "300.00", money.String(win))

	// A line win takes precedence.
	grid[0][0], grid[1][0], grid[2][0] = "lemon", "lemon", "lemon"
	ev, win = e.evaluate(grid, money.Must("2"))
	assert.Nil(t, ev.Special)
	assert.Equal(t, "10.00", money.String(win))
}

func TestSpin_InsufficientCredits(t *testing.T) {
	st := memstore.New()
	e := newEngine(t, nil, gamemath.NewSeededRNG(1), st)
	s, err := e.Login(context.Background(), "gina")
	require.NoError(t, err)
	s.mu.Lock()
	s.credits = money.Must("0.50")
	s.mu.Unlock()

	before := e.Pool().Amount()
	_, err = e.Spin(context.Background(), s.ID, nil)
	assert.ErrorIs(t, err, ErrInsufficientCredits)
	assert.Equal(t, "0.50", money.String(s.Credits()))
	assert.True(t, before.Equal(e.Pool().Amount()))
	assert.Empty(t, st.Spins())
	assert.False(t, e.Pool().Held())
}

func TestSpin_InProgress(t *testing.T) {
	e := newEngine(t, nil, gamemath.NewSeededRNG(1), nil)
	s, err := e.Login(context.Background(), "hank")
	require.NoError(t, err)
	require.True(t, s.gate.TryAcquire(1))

	_, err = e.Spin(context.Background(), s.ID, nil)
	assert.ErrorIs(t, err, ErrSpinInProgress)
	_, err = e.AdjustStake(s.ID, StakeIncrease)
	assert.ErrorIs(t, err, ErrSpinInProgress)

	s.gate.Release(1)
	_, err = e.Spin(context.Background(), s.ID, nil)
	assert.NoError(t, err)
}

func TestSpin_CancelledViewFinishesHeadless(t *testing.T) {
	e := newEngine(t, nil, gamemath.NewSeededRNG(5), nil)
	s, err := e.Login(context.Background(), "ivan")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frames := 0
	out, err := e.Spin(ctx, s.ID, reel.ViewFunc(func(reel.Frame) { frames++ }))
	require.NoError(t, err)
	assert.LessOrEqual(t, frames, 1)
	for i, r := range s.reels {
		assert.True(t, r.Settled())
		assert.Equal(t, r.Symbols()[out.Stops[i]].Name, out.Grid[i][1])
	}
}

func TestSpin_StreamsFrames(t *testing.T) {
	if testing.Short() {
		t.Skip("real time spin")
	}
	e := newEngine(t, nil, gamemath.NewSeededRNG(5), nil)
	s, err := e.Login(context.Background(), "judy")
	require.NoError(t, err)

	var last reel.Frame
	frames := 0
	_, err = e.Spin(context.Background(), s.ID, reel.ViewFunc(func(f reel.Frame) {
		frames++
		last = f
	}))
	require.NoError(t, err)
	assert.Greater(t, frames, 10)
	assert.True(t, last.Settled)
}

func TestSpin_ConcurrentSessions(t *testing.T) {
	st := memstore.New()
	e := newEngine(t, nil, gamemath.NewSeededRNG(9), st)
	const players, spins = 8, 5

	var wg sync.WaitGroup
	errs := make(chan error, players*spins)
	for p := 0; p < players; p++ {
		s, err := e.Login(context.Background(), "player"+string(rune('a'+p)))
		require.NoError(t, err)
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < spins; i++ {
				if _, err := e.Spin(context.Background(), id, nil); err != nil {
					errs <- err
				}
			}
		}(s.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.Len(t, st.Spins(), players*spins)
	assert.False(t, e.Pool().Held())
}

type failingStore struct {
	mock.Mock
}

func (m *failingStore) LoadJackpot(ctx context.Context) (store.Jackpot, error) {
	args := m.Called(ctx)
	return args.Get(0).(store.Jackpot), args.Error(1)
}
func (m *failingStore) SaveJackpot(ctx context.Context, j store.Jackpot) error {
	return m.Called(ctx, j).Error(0)
}
func (m *failingStore) LoadAccount(ctx context.Context, username string) (store.Account, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(store.Account), args.Error(1)
}
func (m *failingStore) SaveAccount(ctx context.Context, a store.Account) error {
	return m.Called(ctx, a).Error(0)
}
func (m *failingStore) ListAccounts(ctx context.Context) ([]store.Account, error) {
	args := m.Called(ctx)
	return args.Get(0).([]store.Account), args.Error(1)
}
func (m *failingStore) RecordSpin(ctx context.Context, s store.Spin) error {
	return m.Called(ctx, s).Error(0)
}
func (m *failingStore) LoadLeaderboard(ctx context.Context) (store.Leaderboard, error) {
	args := m.Called(ctx)
	return args.Get(0).(store.Leaderboard), args.Error(1)
}
func (m *failingStore) SaveLeaderboard(ctx context.Context, l store.Leaderboard) error {
	return m.Called(ctx, l).Error(0)
}
func (m *failingStore) Close() error { return nil }

func TestSpin_StoreFailureDoesNotFailSpin(t *testing.T) {
	st := &failingStore{}
	down := errors.New("disk full")
	st.On("LoadLeaderboard", mock.Anything).Return(store.Leaderboard{}, store.ErrNotFound)
	st.On("LoadAccount", mock.Anything, "kate").Return(store.Account{}, store.ErrNotFound)
	st.On("SaveAccount", mock.Anything, mock.Anything).Return(down)

	e := newEngine(t, nil, gamemath.NewSeededRNG(2), st)
	s, err := e.Login(context.Background(), "kate")
	require.NoError(t, err)

	out, err := e.Spin(context.Background(), s.ID, nil)
	require.NoError(t, err)
	assert.False(t, out.Persisted)
	assert.False(t, e.Pool().Held())
	st.AssertNotCalled(t, "RecordSpin", mock.Anything, mock.Anything)
}

func TestLogin_StoreReadFailure(t *testing.T) {
	st := &failingStore{}
	st.On("LoadLeaderboard", mock.Anything).Return(store.Leaderboard{}, nil)
	st.On("LoadAccount", mock.Anything, "liam").Return(store.Account{}, errors.New("timeout"))
	e := newEngine(t, nil, gamemath.NewSeededRNG(2), st)
	_, err := e.Login(context.Background(), "liam")
	assert.Error(t, err)
}
