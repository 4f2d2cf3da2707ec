package api

import (
	"slotbook/internal/admin"
	"slotbook/internal/models"
)

// SlotResponse is the public wire shape of a slot.
type SlotResponse struct {
	ID        int64  `json:"id"`
	Date      string `json:"date"`
	SlotLabel string `json:"slotLabel"`
	Capacity  int    `json:"capacity"`
	Taken     int    `json:"taken"`
	Available int    `json:"available"`
}

func toSlotResponse(sl models.Slot) SlotResponse {
	return SlotResponse{
		ID:        sl.ID,
		Date:      sl.Date,
		SlotLabel: sl.Label,
		Capacity:  sl.Capacity,
		Taken:     sl.Taken,
		Available: sl.Available(),
	}
}

// BookingLookupResponse is the wire shape of one active signup in a contact
// lookup.
type BookingLookupResponse struct {
	SignupRowID int64  `json:"signupRowId"`
	SlotRowID   int64  `json:"slotRowId"`
	Date        string `json:"date"`
	SlotLabel   string `json:"slotLabel"`
	Name        string `json:"name"`
	Contact     string `json:"contact"`
	Notes       string `json:"notes,omitempty"`
	Category    string `json:"category,omitempty"`
}

func toBookingLookupResponse(su models.Signup) BookingLookupResponse {
	return BookingLookupResponse{
		SignupRowID: su.ID,
		SlotRowID:   su.SlotID,
		Date:        su.Date,
		SlotLabel:   su.SlotLabel,
		Name:        su.Name,
		Contact:     su.Contact,
		Notes:       su.Notes,
		Category:    su.Category,
	}
}

// BookRequest is the body of POST /book.
type BookRequest struct {
	Name     string  `json:"name"`
	Phone    string  `json:"phone,omitempty"`
	Email    string  `json:"email,omitempty"`
	Notes    string  `json:"notes,omitempty"`
	Category string  `json:"category,omitempty"`
	SlotIDs  []int64 `json:"slotIds"`
}

// CancelRequest is the body of PATCH /book.
type CancelRequest struct {
	SignupID int64  `json:"signupId"`
	SlotID   int64  `json:"slotId,omitempty"`
	Contact  string `json:"contact,omitempty"`
}

// LoginRequest is the body of POST /admin/login.
type LoginRequest struct {
	Password string `json:"password"`
}

// AdminSlotsRequest is the body of POST/DELETE /admin/slots. Action selects
// the operation; the matching payload field must be present.
type AdminSlotsRequest struct {
	Action       string          `json:"action"`
	NewSlotsData []admin.NewSlot `json:"newSlotsData,omitempty"`
	RowIDs       []int64         `json:"rowIds,omitempty"`
}
