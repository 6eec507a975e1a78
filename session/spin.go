package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ashenafi-pixel/jackpot-royale/games/slots"
	"github.com/Ashenafi-pixel/jackpot-royale/money"
	"github.com/Ashenafi-pixel/jackpot-royale/persist"
	"github.com/Ashenafi-pixel/jackpot-royale/reel"
	"github.com/Ashenafi-pixel/jackpot-royale/store"
)

// Spin plays one round for session id. With a nil view the reels are
// simulated headless; otherwise frames are rendered in real time. The call
// returns once the outcome is settled and its store write has resolved.
func (e *Engine) Spin(ctx context.Context, id string, view reel.View) (Outcome, error) {
	s, err := e.Session(id)
	if err != nil {
		return Outcome{}, err
	}
	if !s.gate.TryAcquire(1) {
		return Outcome{}, ErrSpinInProgress
	}
	defer s.gate.Release(1)
	s.spinning.Store(true)
	defer s.spinning.Store(false)

	stake, err := s.debit()
	if err != nil {
		return Outcome{}, err
	}

	release := e.pool.Hold()
	defer release()

	rd, err := e.rules().Play(ctx, e.rng, s.reels, stake, view, e.settings.FrameInterval)
	if err != nil {
		s.refund(stake)
		return Outcome{}, fmt.Errorf("spin %s: %w", id, err)
	}
	stops, grid, ev, win := rd.Stops, rd.Grid, rd.Evaluation, rd.Win
	settled := e.pool.Settle(win, ev.JackpotWon, stake)

	out := Outcome{
		SpinID:     uuid.New().String(),
		Stake:      stake,
		Stops:      stops,
		Grid:       grid,
		Evaluation: ev,
		Paid:       settled.Paid,
		Jackpot:    settled.Jackpot,
	}
	acct, credits := s.credit(settled.Paid, e.now())
	out.Credits = credits
	board := e.ObserveAccount(acct)

	rec := store.Spin{
		ID:           out.SpinID,
		SessionID:    s.ID,
		Username:     acct.Username,
		Stake:        stake,
		Stops:        stops[:],
		Grid:         grid,
		Lines:        ev.Lines,
		WinAmount:    win,
		Paid:         settled.Paid,
		JackpotWon:   ev.JackpotWon,
		CreditsAfter: out.Credits,
		PoolAfter:    settled.Jackpot.Amount,
		SettledAt:    e.now(),
	}
	if ev.Special != nil {
		rec.Special = ev.Special.Rule
	}
	out.Persisted = e.persist(store.Settlement{Jackpot: settled.Jackpot, Account: acct, Spin: rec, Leaderboard: board})

	s.mu.Lock()
	s.last = &out
	s.visible = grid
	s.mu.Unlock()

	fields := []zap.Field{
		zap.String("session_id", s.ID),
		zap.String("spin_id", out.SpinID),
		zap.String("stake", money.String(stake)),
		zap.String("paid", money.String(out.Paid)),
		zap.String("pool", money.String(out.Jackpot.Amount)),
	}
	if ev.JackpotWon {
		e.log.Info("jackpot won", append(fields, zap.String("username", acct.Username))...)
	} else {
		e.log.Debug("spin settled", fields...)
	}
	return out, nil
}

func (e *Engine) rules() Rules {
	return Rules{Paytable: e.pt, SpecialPrizes: e.settings.SpecialPrizes}
}

func (e *Engine) evaluate(grid slots.Grid, stake decimal.Decimal) (slots.Evaluation, decimal.Decimal) {
	return e.rules().Evaluate(grid, stake)
}

// persist waits for the settlement write, bounded by PersistTimeout. It never fails the spin.
func (e *Engine) persist(set store.Settlement) bool {
	timeout := e.settings.PersistTimeout
	if timeout <= 0 {
		timeout = DefaultSettings().PersistTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := persist.Wait(ctx, e.writer.Settle(set)); err != nil {
		e.log.Warn("settlement not persisted", zap.String("spin_id", set.Spin.ID), zap.Error(err))
		return false
	}
	return true
}

func (s *Session) debit() (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stake := s.stake
	if s.credits.LessThan(stake) {
		return decimal.Zero, ErrInsufficientCredits
	}
	s.credits = money.Round(s.credits.Sub(stake))
	s.account.TotalWagered = money.Round(s.account.TotalWagered.Add(stake))
	s.account.Bankroll = money.Round(s.account.Bankroll.Sub(stake))
	return stake, nil
}

func (s *Session) refund(stake decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits = money.Round(s.credits.Add(stake))
	s.account.TotalWagered = money.Round(s.account.TotalWagered.Sub(stake))
	s.account.Bankroll = money.Round(s.account.Bankroll.Add(stake))
}

// credit pays out and returns the updated account and credits.
func (s *Session) credit(paid decimal.Decimal, at time.Time) (store.Account, decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits = money.Round(s.credits.Add(paid))
	s.account.TotalWon = money.Round(s.account.TotalWon.Add(paid))
	s.account.Bankroll = money.Round(s.account.Bankroll.Add(paid))
	s.account.LastPlayed = at
	return s.account, s.credits
}

func (s *Session) Credits() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credits
}
