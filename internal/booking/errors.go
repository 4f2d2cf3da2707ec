package booking

import (
	"errors"
	"fmt"
	"strings"
)

// Conflict reasons surfaced to the caller so the client can refresh and retry.
const (
	ReasonDuplicate = "duplicate_booking"
	ReasonSlotFull  = "slot_full"
	ReasonRaceLost  = "slot_became_full"
)

var (
	// ErrNotFound is returned when a referenced slot or signup does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyCancelled is returned when cancelling a signup that is no
	// longer active. Status transitions are one-way.
	ErrAlreadyCancelled = errors.New("signup is already cancelled")

	// ErrRateLimited is returned when a contact exceeds the booking rate
	// limit.
	ErrRateLimited = errors.New("too many booking attempts; please wait")
)

// ValidationError reports malformed input. Nothing is written to the store
// when one is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports a booking that cannot proceed against the current
// store state. SlotIDs enumerates the offending slots so the client can offer
// removing them and retrying.
type ConflictError struct {
	Reason  string
	SlotIDs []int64
}

func (e *ConflictError) Error() string {
	var what string
	switch e.Reason {
	case ReasonDuplicate:
		what = "you already have an active booking for"
	case ReasonSlotFull:
		what = "no seats left in"
	case ReasonRaceLost:
		what = "seats were taken while processing"
	default:
		what = "conflict on"
	}
	ids := make([]string, len(e.SlotIDs))
	for i, id := range e.SlotIDs {
		ids[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("%s slot(s) %s", what, strings.Join(ids, ", "))
}
