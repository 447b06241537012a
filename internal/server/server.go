package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gamecenter/config"
	"gamecenter/internal/gamecenter"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// Server serves the REST API and the live event feed for one App.
type Server struct {
	app    *gamecenter.App
	hub    *LiveHub
	router *mux.Router
	http   *http.Server
	unsub  func()
}

func NewServer(cfg *config.ServerConfig, app *gamecenter.App) *Server {
	s := &Server{
		app:    app,
		hub:    NewLiveHub(cfg.AllowedOrigins),
		router: mux.NewRouter(),
	}
	s.routes()
	s.unsub = app.Bus.Subscribe(">", s.hub.Publish)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	s.http = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(s.router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) routes() {
	r := s.router
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	// Keep API routes on the root router; a mux subrouter reports a method
	// mismatch as 404.
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.ServeWS)

	r.HandleFunc("/api/db", s.loadDocument).Methods(http.MethodGet)
	r.HandleFunc("/api/db", s.saveDocument).Methods(http.MethodPost)

	r.HandleFunc("/api/stations/{kind}", s.listStations).Methods(http.MethodGet)
	r.HandleFunc("/api/stations/{kind}", s.addStation).Methods(http.MethodPost)
	r.HandleFunc("/api/stations/{kind}/{id}", s.renameStation).Methods(http.MethodPatch)
	r.HandleFunc("/api/stations/{kind}/{id}", s.removeStation).Methods(http.MethodDelete)
	r.HandleFunc("/api/stations/{kind}/{id}/start", s.startStation).Methods(http.MethodPost)
	r.HandleFunc("/api/stations/{kind}/{id}/stop", s.stopStation).Methods(http.MethodPost)
	r.HandleFunc("/api/stations/{kind}/{id}/resume", s.resumeStation).Methods(http.MethodPost)
	r.HandleFunc("/api/stations/{kind}/{id}/restart", s.restartStation).Methods(http.MethodPost)
	r.HandleFunc("/api/stations/{kind}/{id}/checkout", s.stopAndCheckout).Methods(http.MethodPost)

	r.HandleFunc("/api/checkout", s.checkout).Methods(http.MethodPost)
	r.HandleFunc("/api/history", s.listHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/history/{id}", s.getHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/history/{id}", s.editHistory).Methods(http.MethodPatch)
	r.HandleFunc("/api/history/{id}", s.deleteHistory).Methods(http.MethodDelete)
	r.HandleFunc("/api/history/{id}/payments", s.addPayment).Methods(http.MethodPost)

	r.HandleFunc("/api/clients", s.listClients).Methods(http.MethodGet)
	r.HandleFunc("/api/clients", s.addClient).Methods(http.MethodPost)
	r.HandleFunc("/api/clients/match", s.matchClient).Methods(http.MethodGet)
	r.HandleFunc("/api/clients/{id}", s.updateClient).Methods(http.MethodPatch)
	r.HandleFunc("/api/clients/{id}", s.removeClient).Methods(http.MethodDelete)
	r.HandleFunc("/api/customers/suggest", s.suggestCustomers).Methods(http.MethodGet)

	r.HandleFunc("/api/tournaments", s.listTournaments).Methods(http.MethodGet)
	r.HandleFunc("/api/tournaments", s.createTournament).Methods(http.MethodPost)
	r.HandleFunc("/api/tournaments/{id}", s.getTournament).Methods(http.MethodGet)
	r.HandleFunc("/api/tournaments/{id}", s.deleteTournament).Methods(http.MethodDelete)
	r.HandleFunc("/api/tournaments/{id}/standings", s.tournamentStandings).Methods(http.MethodGet)
	r.HandleFunc("/api/tournaments/{id}/rounds/{round}/matches/{match}/winner", s.selectWinner).Methods(http.MethodPut)
	r.HandleFunc("/api/tournaments/{id}/rounds/{round}/matches/{match}/winner", s.revertMatch).Methods(http.MethodDelete)

	r.HandleFunc("/api/reports/daily", s.dailyReport).Methods(http.MethodGet)
	r.HandleFunc("/api/reports/customers", s.leaderboard).Methods(http.MethodGet)
	r.HandleFunc("/api/reports/tables", s.tableTotals).Methods(http.MethodGet)

	r.HandleFunc("/api/settings", s.getSettings).Methods(http.MethodGet)
	r.HandleFunc("/api/settings/app", s.patchAppSettings).Methods(http.MethodPatch)
	r.HandleFunc("/api/settings/table", s.patchTableSettings).Methods(http.MethodPatch)
	r.HandleFunc("/api/settings/table/{tableKind}/timing", s.setTiming).Methods(http.MethodPut)

	r.HandleFunc("/api/backup", s.exportBackup).Methods(http.MethodGet)
	r.HandleFunc("/api/backup", s.importBackup).Methods(http.MethodPost)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StartServer blocks serving HTTP until Shutdown is called.
func (s *Server) StartServer() error {
	log.Info().Str("addr", s.http.Addr).Msg("server is listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, drops the live connections and waits
// for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.unsub()
	s.hub.Close()
	return s.http.Shutdown(ctx)
}
