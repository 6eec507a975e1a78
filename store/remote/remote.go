// Package remote talks to a legacy jackpot server over its four JSON
// endpoints. Spins and the leaderboard are kept by the server itself.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/Ashenafi-pixel/jackpot-royale/money"
	"github.com/Ashenafi-pixel/jackpot-royale/store"
	"github.com/Ashenafi-pixel/jackpot-royale/store/legacy"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrLocked is returned when the server refuses a jackpot write while a spin holds it.
var ErrLocked = errors.New("remote: jackpot locked")

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// get issues GET path with an optional data payload and decodes the body into out.
func (c *Client) get(ctx context.Context, path string, payload any, out any) (int, error) {
	u := c.baseURL + path
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		u += "?data=" + url.QueryEscape(string(raw))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("remote: read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		var data struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &data)
		if resp.StatusCode == http.StatusConflict {
			return resp.StatusCode, ErrLocked
		}
		return resp.StatusCode, fmt.Errorf("remote: %s", data.Error)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("remote: decode %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) LoadJackpot(ctx context.Context) (store.Jackpot, error) {
	var doc legacy.JackpotDoc
	if _, err := c.get(ctx, "/load-jackpot", nil, &doc); err != nil {
		return store.Jackpot{}, err
	}
	return doc.Jackpot(), nil
}

// SaveJackpot sends only the amount; the server owns the last-win fields.
func (c *Client) SaveJackpot(ctx context.Context, j store.Jackpot) error {
	_, err := c.get(ctx, "/save-jackpot", money.Float(j.Amount), nil)
	return err
}

func (c *Client) loadUsers(ctx context.Context) (legacy.UsersDoc, error) {
	var doc legacy.UsersDoc
	if _, err := c.get(ctx, "/load-users", nil, &doc); err != nil {
		return legacy.UsersDoc{}, err
	}
	return doc, nil
}

func (c *Client) LoadAccount(ctx context.Context, username string) (store.Account, error) {
	doc, err := c.loadUsers(ctx)
	if err != nil {
		return store.Account{}, err
	}
	u, ok := doc.Users[username]
	if !ok {
		return store.Account{}, store.ErrNotFound
	}
	return u.Account(username), nil
}

func (c *Client) ListAccounts(ctx context.Context) ([]store.Account, error) {
	doc, err := c.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Accounts(), nil
}

func (c *Client) SaveAccount(ctx context.Context, a store.Account) error {
	req := legacy.SaveUserRequest{
		Username:     a.Username,
		TotalWon:     money.Float(a.TotalWon),
		TotalWagered: money.Float(a.TotalWagered),
		Bankroll:     money.Float(a.Bankroll),
	}
	_, err := c.get(ctx, "/save-user", req, nil)
	return err
}

func (c *Client) LoadLeaderboard(ctx context.Context) (store.Leaderboard, error) {
	doc, err := c.loadUsers(ctx)
	if err != nil {
		return store.Leaderboard{}, err
	}
	l, ok := doc.Board()
	if !ok {
		return store.Leaderboard{}, store.ErrNotFound
	}
	return l, nil
}

// SaveLeaderboard is a no-op: the server derives the board from save-user calls.
func (c *Client) SaveLeaderboard(ctx context.Context, l store.Leaderboard) error { return nil }

// RecordSpin is a no-op: the legacy protocol has no spin log.
func (c *Client) RecordSpin(ctx context.Context, sp store.Spin) error { return nil }

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
