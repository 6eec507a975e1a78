// Package filestore persists the legacy JSON documents: jackpot-data.json,
// users.json and an append-only spins.json audit log.
package filestore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/Ashenafi-pixel/jackpot-royale/store"
	"github.com/Ashenafi-pixel/jackpot-royale/store/legacy"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	jackpotFile = "jackpot-data.json"
	usersFile   = "users.json"
	spinsFile   = "spins.json"

	// maxSpins bounds the audit log; older entries are dropped first.
	maxSpins = 5000
)

// Store is safe for concurrent use; one mutex covers all three files.
type Store struct {
	mu      sync.Mutex
	dataDir string
	now     func() time.Time
}

func New(dataDir string) *Store {
	if dataDir == "" {
		dataDir = "data"
	}
	return &Store{dataDir: dataDir, now: time.Now}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dataDir, name)
}

func (s *Store) ensureDir() error {
	return os.MkdirAll(s.dataDir, 0755)
}

// readLocked decodes name into v. It reports false when the file does not exist.
func (s *Store) readLocked(name string, v any) (bool, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) writeLocked(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := s.ensureDir(); err != nil {
		return err
	}
	return os.WriteFile(s.path(name), data, 0644)
}

func (s *Store) LoadJackpot(ctx context.Context) (store.Jackpot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var doc legacy.JackpotDoc
	ok, err := s.readLocked(jackpotFile, &doc)
	if err != nil {
		return store.Jackpot{}, err
	}
	if !ok {
		return store.Jackpot{}, store.ErrNotFound
	}
	return doc.Jackpot(), nil
}

func (s *Store) SaveJackpot(ctx context.Context, j store.Jackpot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveJackpotLocked(j)
}

func (s *Store) saveJackpotLocked(j store.Jackpot) error {
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = s.now()
	}
	return s.writeLocked(jackpotFile, legacy.FromJackpot(j))
}

func (s *Store) loadUsersLocked() (legacy.UsersDoc, error) {
	var doc legacy.UsersDoc
	if _, err := s.readLocked(usersFile, &doc); err != nil {
		return legacy.UsersDoc{}, err
	}
	if doc.Users == nil {
		doc.Users = make(map[string]legacy.UserDoc)
	}
	return doc, nil
}

func (s *Store) LoadAccount(ctx context.Context, username string) (store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadUsersLocked()
	if err != nil {
		return store.Account{}, err
	}
	u, ok := doc.Users[username]
	if !ok {
		return store.Account{}, store.ErrNotFound
	}
	return u.Account(username), nil
}

func (s *Store) SaveAccount(ctx context.Context, a store.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadUsersLocked()
	if err != nil {
		return err
	}
	doc.Users[a.Username] = legacy.FromAccount(a)
	doc.LastUpdated = legacy.Stamp(s.now())
	return s.writeLocked(usersFile, doc)
}

func (s *Store) ListAccounts(ctx context.Context) ([]store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadUsersLocked()
	if err != nil {
		return nil, err
	}
	return doc.Accounts(), nil
}

func (s *Store) LoadLeaderboard(ctx context.Context) (store.Leaderboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadUsersLocked()
	if err != nil {
		return store.Leaderboard{}, err
	}
	l, ok := doc.Board()
	if !ok {
		return store.Leaderboard{}, store.ErrNotFound
	}
	return l, nil
}

func (s *Store) SaveLeaderboard(ctx context.Context, l store.Leaderboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadUsersLocked()
	if err != nil {
		return err
	}
	doc.Leaderboard = legacy.FromLeaderboard(l)
	doc.LastUpdated = legacy.Stamp(s.now())
	return s.writeLocked(usersFile, doc)
}

// RecordSpin appends to spins.json, same as the round results ledger.
func (s *Store) RecordSpin(ctx context.Context, sp store.Spin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendSpinLocked(sp)
}

func (s *Store) appendSpinLocked(sp store.Spin) error {
	var list []store.Spin
	if _, err := s.readLocked(spinsFile, &list); err != nil {
		// A corrupt log is restarted rather than blocking new records.
		list = nil
	}
	list = append(list, sp)
	if len(list) > maxSpins {
		list = list[len(list)-maxSpins:]
	}
	return s.writeLocked(spinsFile, list)
}

// Spins returns the audit log, oldest first.
func (s *Store) Spins() ([]store.Spin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []store.Spin
	if _, err := s.readLocked(spinsFile, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SaveSettlement writes all documents of one spin under a single lock.
func (s *Store) SaveSettlement(ctx context.Context, set store.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadUsersLocked()
	if err != nil {
		return err
	}
	doc.Users[set.Account.Username] = legacy.FromAccount(set.Account)
	if set.Leaderboard != nil {
		doc.Leaderboard = legacy.FromLeaderboard(*set.Leaderboard)
	}
	doc.LastUpdated = legacy.Stamp(s.now())
	if err := s.writeLocked(usersFile, doc); err != nil {
		return err
	}
	if err := s.saveJackpotLocked(set.Jackpot); err != nil {
		return err
	}
	return s.appendSpinLocked(set.Spin)
}

func (s *Store) Close() error { return nil }
