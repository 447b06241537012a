package server

import (
	"encoding/json"
	"net/http"
	"time"

	"gamecenter/internal/backup"
	"gamecenter/internal/settings"
	"gamecenter/internal/station"

	"github.com/gorilla/mux"
)

// dailyReport reads ?day=YYYY-MM-DD in the app's time zone, today by default.
func (s *Server) dailyReport(w http.ResponseWriter, r *http.Request) {
	day := s.app.Now().In(s.app.Location())
	if v := r.URL.Query().Get("day"); v != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, v, s.app.Location())
		if err != nil {
			writeError(w, r, badRequest("day must be YYYY-MM-DD"))
			return
		}
		day = parsed
	}
	writeJSON(w, http.StatusOK, s.app.DailyReport(day))
}

func (s *Server) leaderboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Leaderboard())
}

func (s *Server) tableTotals(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.TableTotals())
}

type settingsResponse struct {
	App   settings.AppSettings   `json:"app"`
	Table settings.TableSettings `json:"table"`
}

func (s *Server) getSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, settingsResponse{App: s.app.Settings.App(), Table: s.app.Settings.Table()})
}

func (s *Server) patchAppSettings(w http.ResponseWriter, r *http.Request) {
	var patch json.RawMessage
	if err := decode(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.app.Settings.SaveAppPartial(r.Context(), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) patchTableSettings(w http.ResponseWriter, r *http.Request) {
	var patch json.RawMessage
	if err := decode(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.app.Settings.SaveTablePartial(r.Context(), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type timingRequest struct {
	Timing settings.Timing `json:"timing"`
}

func (s *Server) setTiming(w http.ResponseWriter, r *http.Request) {
	var req timingRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	kind := station.TableKind(mux.Vars(r)["tableKind"])
	out, err := s.app.Settings.SetAskCustomerTiming(r.Context(), kind, req.Timing)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// exportBackup writes the snapshot as JSON, or as CSV with ?format=csv.
func (s *Server) exportBackup(w http.ResponseWriter, r *http.Request) {
	snap, err := s.app.Export()
	if err != nil {
		writeError(w, r, err)
		return
	}
	stamp := snap.ExportDate.In(s.app.Location()).Format(time.DateOnly)
	switch r.URL.Query().Get("format") {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="gamecenter-backup-`+stamp+`.json"`)
		if err := backup.WriteJSON(w, snap); err != nil {
			writeError(w, r, err)
		}
	case "csv":
		body, err := backup.CSV(snap, s.app.Location())
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="gamecenter-export-`+stamp+`.csv"`)
		_, _ = w.Write(body)
	default:
		writeError(w, r, badRequest("format must be json or csv"))
	}
}

func (s *Server) importBackup(w http.ResponseWriter, r *http.Request) {
	snap, err := backup.ReadJSON(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, r, badRequest("%v", err))
		return
	}
	if err := s.app.Import(r.Context(), snap); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
