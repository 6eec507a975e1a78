// Package redisstore keeps records as JSON values under a key prefix.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/Ashenafi-pixel/jackpot-royale/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultPrefix = "jackpot-royale:"
	maxSpins      = 5000
)

type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

// Open connects to addr and pings it.
func Open(ctx context.Context, addr, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return New(rdb, DefaultPrefix), nil
}

func New(rdb redis.UniversalClient, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) key(name string) string { return s.prefix + name }

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *Store) LoadJackpot(ctx context.Context) (store.Jackpot, error) {
	var j store.Jackpot
	err := s.getJSON(ctx, s.key("jackpot"), &j)
	return j, err
}

func (s *Store) SaveJackpot(ctx context.Context, j store.Jackpot) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key("jackpot"), data, 0).Err()
}

func (s *Store) LoadAccount(ctx context.Context, username string) (store.Account, error) {
	data, err := s.rdb.HGet(ctx, s.key("accounts"), username).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.Account{}, store.ErrNotFound
	}
	if err != nil {
		return store.Account{}, err
	}
	var a store.Account
	if err := json.Unmarshal(data, &a); err != nil {
		return store.Account{}, err
	}
	return a, nil
}

func (s *Store) SaveAccount(ctx context.Context, a store.Account) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, s.key("accounts"), a.Username, data).Err()
}

func (s *Store) ListAccounts(ctx context.Context) ([]store.Account, error) {
	all, err := s.rdb.HGetAll(ctx, s.key("accounts")).Result()
	if err != nil {
		return nil, err
	}
	out := make([]store.Account, 0, len(all))
	for _, raw := range all {
		var a store.Account
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) RecordSpin(ctx context.Context, sp store.Spin) error {
	data, err := json.Marshal(sp)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, s.key("spins"), data)
		p.LTrim(ctx, s.key("spins"), 0, maxSpins-1)
		return nil
	})
	return err
}

func (s *Store) LoadLeaderboard(ctx context.Context) (store.Leaderboard, error) {
	var l store.Leaderboard
	err := s.getJSON(ctx, s.key("leaderboard"), &l)
	return l, err
}

func (s *Store) SaveLeaderboard(ctx context.Context, l store.Leaderboard) error {
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key("leaderboard"), data, 0).Err()
}

// SaveSettlement writes one spin's records in a single MULTI/EXEC.
func (s *Store) SaveSettlement(ctx context.Context, set store.Settlement) error {
	account, err := json.Marshal(set.Account)
	if err != nil {
		return err
	}
	jackpot, err := json.Marshal(set.Jackpot)
	if err != nil {
		return err
	}
	spin, err := json.Marshal(set.Spin)
	if err != nil {
		return err
	}
	var board []byte
	if set.Leaderboard != nil {
		if board, err = json.Marshal(set.Leaderboard); err != nil {
			return err
		}
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.key("accounts"), set.Account.Username, account)
		p.Set(ctx, s.key("jackpot"), jackpot, 0)
		p.LPush(ctx, s.key("spins"), spin)
		p.LTrim(ctx, s.key("spins"), 0, maxSpins-1)
		if board != nil {
			p.Set(ctx, s.key("leaderboard"), board, 0)
		}
		return nil
	})
	return err
}

// RecentSpins returns up to n spins, newest first.
func (s *Store) RecentSpins(ctx context.Context, n int64) ([]store.Spin, error) {
	raw, err := s.rdb.LRange(ctx, s.key("spins"), 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]store.Spin, 0, len(raw))
	for _, r := range raw {
		var sp store.Spin
		if err := json.Unmarshal([]byte(r), &sp); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

func (s *Store) Close() error { return s.rdb.Close() }
