package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Ashenafi-pixel/jackpot-royale/session"
)

type loginRequest struct {
	Username string `json:"username"`
}

type stakeRequest struct {
	Action string           `json:"action,omitempty"` // "increase" or "decrease"
	Stake  *decimal.Decimal `json:"stake,omitempty"`
}

type stakeResponse struct {
	Stake decimal.Decimal `json:"stake"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body", "INVALID_BODY")
			return
		}
	}
	sess, err := s.engine.Login(r.Context(), req.Username)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.State())
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.End(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) changeStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "INVALID_BODY")
		return
	}
	id := chi.URLParam(r, "id")
	var (
		stake decimal.Decimal
		err   error
	)
	switch {
	case req.Stake != nil:
		stake, err = s.engine.SetStake(id, *req.Stake)
	case req.Action != "":
		stake, err = s.engine.AdjustStake(id, req.Action)
	default:
		writeError(w, http.StatusBadRequest, "action or stake required", "INVALID_STAKE")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stakeResponse{Stake: stake})
}

// spin runs a headless spin and returns the settled outcome.
func (s *Server) spin(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.Spin(r.Context(), chi.URLParam(r, "id"), nil)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func sessionOrError(w http.ResponseWriter, e *session.Engine, id string) (*session.Session, bool) {
	sess, err := e.Session(id)
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return sess, true
}
