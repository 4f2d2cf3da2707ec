package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"slotbook/internal/booking"
	"slotbook/internal/metrics"
)

// handleSlots serves the public slot catalog, or the caller's active bookings
// when a contact query parameter is given.
// GET /slots[?contact=<value>]
func (s *server) handleSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")

	if contact := r.URL.Query().Get("contact"); contact != "" {
		signups, err := s.cfg.Booking.ActiveBookings(r.Context(), contact)
		if err != nil {
			writeServiceError(w, s.log, err)
			return
		}
		bookings := make([]BookingLookupResponse, 0, len(signups))
		for _, su := range signups {
			bookings = append(bookings, toBookingLookupResponse(su))
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "bookings": bookings})
		return
	}

	grouped, err := s.cfg.Catalog.ListAvailableSlots(r.Context())
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	dates := make(map[string][]SlotResponse, len(grouped))
	for date, slots := range grouped {
		day := make([]SlotResponse, 0, len(slots))
		for _, sl := range slots {
			day = append(day, toSlotResponse(sl))
		}
		dates[date] = day
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "dates": dates})
}

// handleBook commits a booking across one or more slots.
// POST /book
func (s *server) handleBook(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("book")

	var req BookRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.cfg.Booking.Book(r.Context(), booking.Request{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Notes:    req.Notes,
		Category: req.Category,
		SlotIDs:  req.SlotIDs,
	})
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": result.Message})
}

// handleCancel soft-cancels a signup.
// PATCH /book
func (s *server) handleCancel(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel")

	var req CancelRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.cfg.Booking.Cancel(r.Context(), req.SignupID, req.SlotID, req.Contact)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": result.Message})
}

func (s *server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := s.cfg.Ready(ctx); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
