package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"gamecenter/internal/bracket"
	"gamecenter/internal/checkout"
	"gamecenter/internal/gamecenter"
	"gamecenter/internal/settings"
	"gamecenter/internal/station"
	"gamecenter/internal/store"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// maxBody bounds request bodies; backups with many cards stay well below it.
const maxBody = 8 << 20

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func statusFor(err error) int {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr), errors.As(err, &syntaxErr):
		return http.StatusBadRequest
	case errors.Is(err, errBadRequest),
		errors.Is(err, gamecenter.ErrUnknownKind),
		errors.Is(err, store.ErrInvalidKey),
		errors.Is(err, station.ErrInvalidKind),
		errors.Is(err, station.ErrTooFewPlayers),
		errors.Is(err, checkout.ErrNameRequired),
		errors.Is(err, checkout.ErrUnknownWinner),
		errors.Is(err, bracket.ErrTooFewPlayers),
		errors.Is(err, bracket.ErrDuplicatePlayer),
		errors.Is(err, bracket.ErrReservedName),
		errors.Is(err, bracket.ErrNameRequired),
		errors.Is(err, bracket.ErrInvalidWinner),
		errors.Is(err, bracket.ErrNoSuchMatch),
		errors.Is(err, settings.ErrInvalidTiming),
		errors.Is(err, settings.ErrInvalidRate):
		return http.StatusBadRequest
	case errors.Is(err, station.ErrNotFound),
		errors.Is(err, checkout.ErrNotFound),
		errors.Is(err, checkout.ErrClientNotFound),
		errors.Is(err, bracket.ErrNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, bracket.ErrMatchDecided),
		errors.Is(err, bracket.ErrMatchPending),
		errors.Is(err, bracket.ErrMatchNotReady),
		errors.Is(err, bracket.ErrNoContest),
		errors.Is(err, gamecenter.ErrCustomerRequired),
		errors.Is(err, gamecenter.ErrNotRunning):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

func pathKind(r *http.Request) (station.Kind, error) {
	kind := station.Kind(mux.Vars(r)["kind"])
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", gamecenter.ErrUnknownKind, kind)
	}
	return kind, nil
}

func pathInt(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || n < 0 {
		return 0, badRequest("%s must be a non-negative integer", name)
	}
	return n, nil
}
