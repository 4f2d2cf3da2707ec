package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"slotbook/internal/metrics"
)

// handleLogin checks the admin password and sets the session cookie.
// POST /admin/login
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_login")

	var req LoginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, err := s.cfg.Sessions.Login(r.Context(), req.Password)
	if err != nil {
		s.log.Warn().Msg("admin login rejected")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "logged in"})
}

// handleLogout drops the session and clears the cookie.
// POST /admin/logout
func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_logout")

	if cookie, err := r.Cookie(SessionCookie); err == nil {
		s.cfg.Sessions.Logout(r.Context(), cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "logged out"})
}

// handleAdminSlots serves the flat slot listing for the admin surface.
// GET /admin/slots
func (s *server) handleAdminSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_slots")

	slots, err := s.cfg.Catalog.ListAllSlots(r.Context())
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	out := make([]SlotResponse, 0, len(slots))
	for _, sl := range slots {
		out = append(out, toSlotResponse(sl))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "slots": out})
}

// handleAdminMutateSlots dispatches batch slot creation and deletion.
// POST /admin/slots {action:"addSlots", newSlotsData}
// DELETE /admin/slots {action:"deleteSlots", rowIds}
func (s *server) handleAdminMutateSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_mutate_slots")

	var req AdminSlotsRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch req.Action {
	case "addSlots":
		added, err := s.cfg.Admin.AddSlots(r.Context(), req.NewSlotsData)
		if err != nil {
			writeServiceError(w, s.log, err)
			return
		}
		details := make([]SlotResponse, 0, len(added))
		for _, sl := range added {
			details = append(details, toSlotResponse(sl))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"message": fmt.Sprintf("added %d slot(s)", len(added)),
			"details": details,
		})

	case "deleteSlots":
		if err := s.cfg.Admin.DeleteSlots(r.Context(), req.RowIDs); err != nil {
			writeServiceError(w, s.log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"message": fmt.Sprintf("deleted %d slot(s)", len(req.RowIDs)),
		})

	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

// handleExport streams the xlsx audit dump.
// GET /admin/export
func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_export")

	filename := fmt.Sprintf("slotbook_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := s.cfg.Exporter.Export(r.Context(), w); err != nil {
		s.log.Error().Err(err).Msg("export failed")
	}
}
