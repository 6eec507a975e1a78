package server

import (
	"net/http"

	"github.com/Ashenafi-pixel/jackpot-royale/store"
)

type jackpotResponse struct {
	store.Jackpot
	Held bool `json:"held"`
}

func (s *Server) getJackpot(w http.ResponseWriter, r *http.Request) {
	pool := s.engine.Pool()
	writeJSON(w, http.StatusOK, jackpotResponse{Jackpot: pool.Snapshot(), Held: pool.Held()})
}

func (s *Server) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Leaderboard())
}

func (s *Server) getPaytable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Paytable())
}
