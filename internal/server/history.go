package server

import (
	"net/http"

	"gamecenter/internal/checkout"
	"gamecenter/internal/station"

	"github.com/gorilla/mux"
)

func (s *Server) listHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.History.List())
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	item, err := s.app.History.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) editHistory(w http.ResponseWriter, r *http.Request) {
	var patch checkout.CustomerPatch
	if err := decode(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := s.app.History.EditCustomerInfo(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) deleteHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.app.History.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type paymentEntry struct {
	Amount int64  `json:"amount"`
	Note   string `json:"note"`
}

func (s *Server) addPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentEntry
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := s.app.History.AddPayment(r.Context(), mux.Vars(r)["id"], req.Amount, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) listClients(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Clients.List())
}

type addClientRequest struct {
	checkout.NewClient
	Stable bool `json:"stable"`
}

type addClientResponse struct {
	Client checkout.Client  `json:"client"`
	Seat   *station.Station `json:"seat,omitempty"`
}

// addClient registers a client. With stable set the client also gets a
// stable seat.
func (s *Server) addClient(w http.ResponseWriter, r *http.Request) {
	var req addClientRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !req.Stable {
		c, err := s.app.Clients.Add(r.Context(), req.NewClient)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, addClientResponse{Client: c})
		return
	}
	c, seat, err := s.app.AddStableClient(r.Context(), req.NewClient)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, addClientResponse{Client: c, Seat: &seat})
}

func (s *Server) updateClient(w http.ResponseWriter, r *http.Request) {
	var patch checkout.ClientPatch
	if err := decode(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.app.UpdateClient(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) removeClient(w http.ResponseWriter, r *http.Request) {
	if err := s.app.RemoveClient(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// matchClient answers with the client a checkout form would link, or null.
func (s *Server) matchClient(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c, ok := s.app.MatchClient(checkout.Lookup{
		FullName:    q.Get("name"),
		PhoneNumber: q.Get("phone"),
		Code:        q.Get("code"),
	})
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) suggestCustomers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.SuggestCustomers(r.URL.Query().Get("q")))
}
