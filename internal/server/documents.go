package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"gamecenter/internal/store"
)

// loadDocument answers GET /api/db?key=. A key that was never saved reads
// as null.
func (s *Server) loadDocument(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, r, badRequest("key is required"))
		return
	}
	raw, err := s.app.Store().Load(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

type saveDocumentRequest struct {
	Key  string          `json:"key"`
	Data json.RawMessage `json:"data"`
}

// saveDocument answers POST /api/db with {key, data}. It writes straight to
// the store and does not touch in-memory state.
func (s *Server) saveDocument(w http.ResponseWriter, r *http.Request) {
	var req saveDocumentRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Key == "" || len(req.Data) == 0 {
		writeError(w, r, badRequest("key and data are required"))
		return
	}
	if err := s.app.Store().Save(r.Context(), req.Key, req.Data); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
