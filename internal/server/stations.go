package server

import (
	"net/http"
	"strconv"
	"time"

	"gamecenter/internal/checkout"
	"gamecenter/internal/station"

	"github.com/gorilla/mux"
)

// listStations filters by q when present. byName and byCode pick the fields
// the query is matched against.
func (s *Server) listStations(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	var list []station.Station
	if query := q.Get("q"); query != "" {
		byCode, _ := strconv.ParseBool(q.Get("byCode"))
		byName, _ := strconv.ParseBool(q.Get("byName"))
		list, err = s.app.Search(kind, station.Filter{Query: query, ByCode: byCode, ByName: byName})
	} else {
		list, err = s.app.Stations(kind)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type addStationRequest struct {
	Title     string            `json:"title"`
	ClientID  string            `json:"clientId"`
	TableKind station.TableKind `json:"tableKind"`
	Date      *time.Time        `json:"date"`
}

func (s *Server) addStation(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req addStationRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.app.AddStation(r.Context(), kind, station.NewStation{
		Title:     req.Title,
		ClientID:  req.ClientID,
		TableKind: req.TableKind,
		Date:      req.Date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

type renameRequest struct {
	Title string `json:"title"`
}

func (s *Server) renameStation(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req renameRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.app.Rename(r.Context(), kind, mux.Vars(r)["id"], req.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) removeStation(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.app.RemoveStation(r.Context(), kind, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type startRequest struct {
	Players          []string `json:"players"`
	CustomerFullName string   `json:"customerFullName"`
}

// startStation accepts an empty body for cards and stable seats.
func (s *Server) startStation(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req startRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	st, err := s.app.Start(r.Context(), kind, mux.Vars(r)["id"], station.StartOptions{
		Players:          req.Players,
		CustomerFullName: req.CustomerFullName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// stopStation returns the stop draft, or null when the station was idle.
func (s *Server) stopStation(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	draft, err := s.app.Stop(r.Context(), kind, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) resumeStation(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.app.Resume(r.Context(), kind, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) restartStation(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.app.Restart(r.Context(), kind, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type customerRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
	FullName    string `json:"fullName"`
	ClientID    string `json:"clientId"`
	WinnerCode  string `json:"winnerCode"`
}

type paymentRequest struct {
	PaidFully  bool  `json:"paidFully"`
	PaidAmount int64 `json:"paidAmount"`
}

type checkoutRequest struct {
	Draft    *station.StopDraft `json:"draft,omitempty"`
	Customer customerRequest    `json:"customer"`
	Payment  paymentRequest     `json:"payment"`
}

// customer resolves the operator's pick of a client, if any.
func (s *Server) customer(req customerRequest) (checkout.Customer, error) {
	c := checkout.Customer{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		FullName:    req.FullName,
		WinnerCode:  req.WinnerCode,
	}
	if req.ClientID != "" {
		client, err := s.app.Clients.Get(req.ClientID)
		if err != nil {
			return checkout.Customer{}, err
		}
		c.MatchedClient = &client
	}
	return c, nil
}

func (p paymentRequest) payment() checkout.Payment {
	return checkout.Payment{PaidFully: p.PaidFully, PaidAmount: p.PaidAmount}
}

func (s *Server) stopAndCheckout(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req checkoutRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.customer(req.Customer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := s.app.StopAndCheckout(r.Context(), kind, mux.Vars(r)["id"], c, req.Payment.payment())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// checkout records a draft returned by an earlier stop.
func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Draft == nil {
		writeError(w, r, badRequest("draft is required"))
		return
	}
	c, err := s.customer(req.Customer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := s.app.Checkout(r.Context(), *req.Draft, c, req.Payment.payment())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}
