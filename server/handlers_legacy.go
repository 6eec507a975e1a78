package server

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ashenafi-pixel/jackpot-royale/jackpot"
	"github.com/Ashenafi-pixel/jackpot-royale/money"
	"github.com/Ashenafi-pixel/jackpot-royale/store"
	"github.com/Ashenafi-pixel/jackpot-royale/store/legacy"
)

type legacyResult struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type legacyError struct {
	Error string `json:"error"`
}

func writeLegacyError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, legacyError{Error: msg})
}

// loadJackpot serves the in-process pool in the jackpot-data.json layout.
func (s *Server) loadJackpot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, legacy.FromJackpot(s.engine.Pool().Snapshot()))
}

// saveJackpot accepts an external pool value. It is merged like a refresh:
// only a larger value is adopted, and never while a spin is in flight.
func (s *Server) saveJackpot(w http.ResponseWriter, r *http.Request) {
	pool := s.engine.Pool()
	if pool.Held() {
		writeLegacyError(w, http.StatusConflict, "Jackpot is being updated, try again")
		return
	}
	raw := r.FormValue("data")
	if raw == "" {
		writeLegacyError(w, http.StatusBadRequest, "No data provided")
		return
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		writeLegacyError(w, http.StatusBadRequest, "Invalid jackpot data")
		return
	}
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || f < 0 {
		writeLegacyError(w, http.StatusBadRequest, "Invalid jackpot data")
		return
	}
	d, j := pool.Reconcile(store.Jackpot{Amount: money.FromFloat(f, pool.Settings().Seed)})
	switch d {
	case jackpot.Skipped:
		writeLegacyError(w, http.StatusConflict, "Jackpot is being updated, try again")
		return
	case jackpot.Applied, jackpot.PushLocal:
		if err := s.writer.SaveJackpot(r.Context(), j); err != nil {
			s.log.Warn("legacy jackpot save failed", zap.Error(err))
		}
	}
	s.log.Info("legacy jackpot push", zap.Float64("value", f), zap.Stringer("decision", d))
	writeJSON(w, http.StatusOK, legacyResult{Success: true, Data: legacy.FromJackpot(j)})
}

func (s *Server) loadUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.writer.Store().ListAccounts(r.Context())
	if err != nil {
		s.log.Error("list accounts failed", zap.Error(err))
		writeLegacyError(w, http.StatusInternalServerError, "Failed to load users")
		return
	}
	board := s.engine.Leaderboard()
	writeJSON(w, http.StatusOK, legacy.NewUsersDoc(accounts, &board, s.now()))
}

// saveUser upserts the statistics named in the payload. Omitted fields keep
// their stored values.
func (s *Server) saveUser(w http.ResponseWriter, r *http.Request) {
	raw := r.FormValue("data")
	if raw == "" {
		writeLegacyError(w, http.StatusBadRequest, "No data provided")
		return
	}
	var req legacy.SaveUserRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		writeLegacyError(w, http.StatusBadRequest, "Invalid user data")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeLegacyError(w, http.StatusBadRequest, "Username is required")
		return
	}
	a, err := s.upsertAccount(r.Context(), req)
	if err != nil {
		s.log.Error("legacy user save failed", zap.String("username", req.Username), zap.Error(err))
		writeLegacyError(w, http.StatusInternalServerError, "Failed to save user")
		return
	}
	doc := legacy.FromAccount(a)
	writeJSON(w, http.StatusOK, legacyResult{Success: true, Data: doc})
}

func (s *Server) upsertAccount(ctx context.Context, req legacy.SaveUserRequest) (store.Account, error) {
	a, err := s.writer.Store().LoadAccount(ctx, req.Username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		a = store.Account{ID: uuid.New().String(), Username: req.Username}
	case err != nil:
		return store.Account{}, err
	}
	a = req.Apply(a)
	a.LastPlayed = s.now()
	if err := s.writer.SaveAccount(ctx, a); err != nil {
		return store.Account{}, err
	}
	if board := s.engine.ObserveAccount(a); board != nil {
		if err := s.writer.SaveLeaderboard(ctx, *board); err != nil {
			s.log.Warn("leaderboard save failed", zap.Error(err))
		}
	}
	return a, nil
}
