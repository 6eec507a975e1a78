package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ashenafi-pixel/jackpot-royale/config"
	"github.com/Ashenafi-pixel/jackpot-royale/gamemath"
	"github.com/Ashenafi-pixel/jackpot-royale/jackpot"
	"github.com/Ashenafi-pixel/jackpot-royale/money"
	"github.com/Ashenafi-pixel/jackpot-royale/persist"
	"github.com/Ashenafi-pixel/jackpot-royale/session"
	"github.com/Ashenafi-pixel/jackpot-royale/store"
	"github.com/Ashenafi-pixel/jackpot-royale/store/memstore"
)

type testEnv struct {
	srv    *Server
	h      http.Handler
	store  *memstore.Store
	engine *session.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, gamemath.Default())
}

func newTestEnvWith(t *testing.T, pt *gamemath.Paytable) *testEnv {
	t.Helper()
	st := memstore.New()
	w := persist.New(st, nil, zap.NewNop(), persist.Options{QueueSize: 32, Retries: 1, Backoff: time.Millisecond})
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
	pool := jackpot.NewPool(jackpot.DefaultSettings(), jackpot.Fresh(jackpot.DefaultSettings()))
	engine := session.NewEngine(pt, pool, w, gamemath.NewSeededRNG(42), session.DefaultSettings(), zap.NewNop())
	cfg := &config.Config{Port: 0, StoreDriver: "memory"}
	srv := New(cfg, engine, w, zap.NewNop())
	return &testEnv{srv: srv, h: srv.Handler(), store: st, engine: engine}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (e *testEnv) login(t *testing.T, name string) session.State {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/sessions", `{"username":"`+name+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var st session.State
	decode(t, rec, &st)
	return st
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestLoginAndGetSession(t *testing.T) {
	env := newTestEnv(t)
	st := env.login(t, "alice")
	assert.Equal(t, "alice", st.Username)
	assert.Equal(t, "100.00", money.String(st.Credits))

	rec := env.do(t, http.MethodGet, "/api/sessions/"+st.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/sessions", `{"username":"al"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var apiErr APIError
	decode(t, rec, &apiErr)
	assert.Equal(t, "INVALID_USERNAME", apiErr.Code)

	rec = env.do(t, http.MethodGet, "/api/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/sessions/"+st.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStakeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	st := env.login(t, "bob")

	rec := env.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/stake", `{"action":"increase"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp stakeResponse
	decode(t, rec, &resp)
	assert.Equal(t, "1.25", money.String(resp.Stake))

	rec = env.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/stake", `{"stake":"5.5"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.Equal(t, "5.50", money.String(resp.Stake))

	rec = env.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/stake", `{"stake":42}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/stake", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSpinEndpoint(t *testing.T) {
	env := newTestEnv(t)
	st := env.login(t, "carol")

	rec := env.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/spin", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out session.Outcome
	decode(t, rec, &out)
	assert.NotEmpty(t, out.SpinID)
	assert.True(t, out.Persisted)
	assert.True(t, money.Must("99").Add(out.Paid).Equal(out.Credits))
	assert.Len(t, env.store.Spins(), 1)

	rec = env.do(t, http.MethodGet, "/api/jackpot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var jp jackpotResponse
	decode(t, rec, &jp)
	assert.True(t, jp.Amount.Equal(out.Jackpot.Amount))
	assert.False(t, jp.Held)
}

func TestSpinEndpoint_InsufficientCredits(t *testing.T) {
	// Every row matches a symbol worth nothing, so each spin just costs the stake.
	pt := gamemath.Default()
	pt.Symbols = []gamemath.Symbol{{Name: "lemon", Value: 0, Weight: 1}}
	env := newTestEnvWith(t, pt)
	st := env.login(t, "dave")
	rec := env.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/stake", `{"stake":10}`)
	require.Equal(t, http.StatusOK, rec.Code)

	for i := 0; i < 10; i++ {
		rec = env.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/spin", "")
		require.Equal(t, http.StatusOK, rec.Code, "spin %d", i)
	}
	rec = env.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/spin", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var apiErr APIError
	decode(t, rec, &apiErr)
	assert.Equal(t, "INSUFFICIENT_CREDITS", apiErr.Code)
}

func TestPaytableAndLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/paytable", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pt gamemath.Paytable
	decode(t, rec, &pt)
	assert.Len(t, pt.Symbols, 7)

	env.engine.ObserveAccount(store.Account{Username: "erin", TotalWon: money.Must("12")})
	rec = env.do(t, http.MethodGet, "/api/leaderboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var board store.Leaderboard
	decode(t, rec, &board)
	assert.Equal(t, "erin", board.TopWinner)
}

func TestLegacyJackpot(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/load-jackpot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"jackpotRoyale":10000`)

	rec = env.do(t, http.MethodGet, "/save-jackpot", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No data provided")

	for _, bad := range []string{`"abc"`, `-5`, `{}`} {
		rec = env.do(t, http.MethodGet, "/save-jackpot?data="+url.QueryEscape(bad), "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}

	rec = env.do(t, http.MethodGet, "/save-jackpot?data=12500.5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12500.50", money.String(env.engine.Pool().Amount()))
	saved, err := env.store.LoadJackpot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12500.50", money.String(saved.Amount))

	// Smaller values never pull the pool down; under 1000 is treated as the seed.
	rec = env.do(t, http.MethodGet, "/save-jackpot?data=500", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12500.50", money.String(env.engine.Pool().Amount()))

	release := env.engine.Pool().Hold()
	rec = env.do(t, http.MethodGet, "/save-jackpot?data=20000", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	release()
}

func TestLegacyUsers(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/save-user?data="+url.QueryEscape(`{"totalWon":5}`), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username is required")

	rec = env.do(t, http.MethodGet, "/save-user?data="+url.QueryEscape(`{"username":"frank","totalWon":25,"totalWagered":"40"}`), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Omitted fields keep their value.
	rec = env.do(t, http.MethodPost, "/save-user", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	req := httptest.NewRequest(http.MethodPost, "/save-user", strings.NewReader("data="+url.QueryEscape(`{"username":"frank","bankroll":-15}`)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	env.h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	a, err := env.store.LoadAccount(context.Background(), "frank")
	require.NoError(t, err)
	assert.Equal(t, "25.00", money.String(a.TotalWon))
	assert.Equal(t, "40.00", money.String(a.TotalWagered))
	assert.Equal(t, "-15.00", money.String(a.Bankroll))

	rec = env.do(t, http.MethodGet, "/load-users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		Users       map[string]map[string]any `json:"users"`
		Leaderboard struct {
			TopWinner string  `json:"topWinner"`
			MostWon   float64 `json:"mostWon"`
		} `json:"leaderboard"`
	}
	decode(t, rec, &doc)
	assert.Contains(t, doc.Users, "frank")
	assert.Equal(t, "frank", doc.Leaderboard.TopWinner)
	assert.Equal(t, 25.0, doc.Leaderboard.MostWon)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/load-jackpot", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	env.h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSpinStream(t *testing.T) {
	if testing.Short() {
		t.Skip("real time spin")
	}
	env := newTestEnv(t)
	st := env.login(t, "gina")
	ts := httptest.NewServer(env.h)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + st.ID + "/spin/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	frames := 0
	for {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == "frame" {
			frames++
			continue
		}
		require.Equal(t, "outcome", msg.Type)
		require.NotNil(t, msg.Outcome)
		assert.NotEmpty(t, msg.Outcome.SpinID)
		break
	}
	assert.Greater(t, frames, 10)
}

func TestSpinStream_UnknownSession(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/sessions/missing/spin/ws", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
