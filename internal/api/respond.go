package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"slotbook/internal/admin"
	"slotbook/internal/booking"
	"slotbook/internal/sheets"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": message})
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses:
// validation 400, conflicts 409, unknown ids 404, rate limit 429, transient
// store failures 503.
func writeServiceError(w http.ResponseWriter, log *zerolog.Logger, err error) {
	var verr *booking.ValidationError
	var cerr *booking.ConflictError
	var derr *admin.DeleteBlockedError

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Msg)
	case errors.As(err, &cerr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"ok":         false,
			"error":      cerr.Error(),
			"slotStatus": map[string]any{"reason": cerr.Reason, "slotIds": cerr.SlotIDs},
		})
	case errors.As(err, &derr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"ok":      false,
			"error":   derr.Error(),
			"blocked": derr.SlotIDs,
		})
	case errors.Is(err, booking.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, sheets.ErrUnavailable):
		log.Error().Err(err).Msg("tabular store unavailable")
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable, please retry")
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
