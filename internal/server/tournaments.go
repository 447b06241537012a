package server

import (
	"net/http"

	"gamecenter/internal/bracket"

	"github.com/gorilla/mux"
)

func (s *Server) listTournaments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Tournaments.List())
}

func (s *Server) createTournament(w http.ResponseWriter, r *http.Request) {
	var req bracket.NewTournament
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.app.CreateTournament(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) getTournament(w http.ResponseWriter, r *http.Request) {
	t, err := s.app.Tournaments.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTournament(w http.ResponseWriter, r *http.Request) {
	if err := s.app.DeleteTournament(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type standingsResponse struct {
	Podium     bracket.Standings      `json:"podium"`
	Prizes     bracket.Prizes         `json:"prizes"`
	Results    []bracket.PlayerResult `json:"results"`
	RoundNames []string               `json:"roundNames"`
}

func (s *Server) tournamentStandings(w http.ResponseWriter, r *http.Request) {
	t, err := s.app.Tournaments.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	names := make([]string, len(t.Rounds))
	for i := range t.Rounds {
		names[i] = bracket.RoundName(i, len(t.Rounds))
	}
	writeJSON(w, http.StatusOK, standingsResponse{
		Podium:     t.Podium(),
		Prizes:     t.Prizes(),
		Results:    t.Results(),
		RoundNames: names,
	})
}

type winnerRequest struct {
	Winner string `json:"winner"`
}

func (s *Server) selectWinner(w http.ResponseWriter, r *http.Request) {
	round, err := pathInt(r, "round")
	if err != nil {
		writeError(w, r, err)
		return
	}
	match, err := pathInt(r, "match")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req winnerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.app.SelectWinner(r.Context(), mux.Vars(r)["id"], round, match, req.Winner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) revertMatch(w http.ResponseWriter, r *http.Request) {
	round, err := pathInt(r, "round")
	if err != nil {
		writeError(w, r, err)
		return
	}
	match, err := pathInt(r, "match")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.app.RevertMatch(r.Context(), mux.Vars(r)["id"], round, match)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
