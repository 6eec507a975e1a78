// Package memstore keeps everything in process memory. Used for tests and the "memory" driver.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/Ashenafi-pixel/jackpot-royale/store"
)

type Store struct {
	mu          sync.Mutex
	jackpot     *store.Jackpot
	accounts    map[string]store.Account
	leaderboard *store.Leaderboard
	spins       []store.Spin
}

func New() *Store {
	return &Store{accounts: make(map[string]store.Account)}
}

func (s *Store) LoadJackpot(ctx context.Context) (store.Jackpot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jackpot == nil {
		return store.Jackpot{}, store.ErrNotFound
	}
	return *s.jackpot, nil
}

func (s *Store) SaveJackpot(ctx context.Context, j store.Jackpot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jackpot = &j
	return nil
}

func (s *Store) LoadAccount(ctx context.Context, username string) (store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[username]
	if !ok {
		return store.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) SaveAccount(ctx context.Context, a store.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.Username] = a
	return nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) RecordSpin(ctx context.Context, sp store.Spin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spins = append(s.spins, sp)
	return nil
}

// Spins returns recorded spins in order.
func (s *Store) Spins() []store.Spin {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Spin(nil), s.spins...)
}

func (s *Store) LoadLeaderboard(ctx context.Context) (store.Leaderboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.leaderboard == nil {
		return store.Leaderboard{}, store.ErrNotFound
	}
	return *s.leaderboard, nil
}

func (s *Store) SaveLeaderboard(ctx context.Context, l store.Leaderboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaderboard = &l
	return nil
}

func (s *Store) Close() error { return nil }
