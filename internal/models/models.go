package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the calendar date layout used across both sheets.
const DateFormat = "2006-01-02"

// TimestampFormat is the layout for signup timestamps and status suffixes.
const TimestampFormat = "2006-01-02 15:04:05"

const (
	StatusActive          = "ACTIVE"
	statusCancelledPrefix = "CANCELLED:"
	statusFailedPrefix    = "FAILED:"
)

// Slot is one bookable date+time-range with finite capacity.
type Slot struct {
	ID       int64  `json:"id"`
	Date     string `json:"date"` // YYYY-MM-DD
	Label    string `json:"slotLabel"`
	Capacity int    `json:"capacity"`
	Taken    int    `json:"taken"`
}

// Available returns the number of free seats, never negative.
func (s Slot) Available() int {
	if s.Taken >= s.Capacity {
		return 0
	}
	return s.Capacity - s.Taken
}

// Key identifies a slot by its (date, label) pair for duplicate checks.
func (s Slot) Key() string {
	return s.Date + "|" + strings.TrimSpace(s.Label)
}

// Signup is one contact's reservation against one slot. Date and SlotLabel are
// write-once snapshots of the slot at booking time; they must not be re-joined
// against the live slot row.
type Signup struct {
	ID        int64     `json:"signupRowId"`
	CreatedAt time.Time `json:"timestamp"`
	Date      string    `json:"date"`
	SlotLabel string    `json:"slotLabel"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact"`
	Notes     string    `json:"notes,omitempty"`
	Category  string    `json:"category,omitempty"`
	SlotID    int64     `json:"slotRowId"`
	BatchID   string    `json:"-"`
	Status    string    `json:"-"`
}

// IsActive reports whether the signup still counts toward its slot's taken
// counter.
func (s Signup) IsActive() bool {
	return s.Status == StatusActive
}

// IsCancelled reports whether the signup was cancelled by its owner.
func (s Signup) IsCancelled() bool {
	return strings.HasPrefix(s.Status, statusCancelledPrefix)
}

// IsFailed reports whether the signup was compensated after losing a capacity
// race.
func (s Signup) IsFailed() bool {
	return strings.HasPrefix(s.Status, statusFailedPrefix)
}

// CancelledStatus builds the one-way CANCELLED status value.
func CancelledStatus(ts time.Time) string {
	return statusCancelledPrefix + ts.Format(TimestampFormat)
}

// FailedStatus builds the one-way FAILED status value.
func FailedStatus(ts time.Time) string {
	return statusFailedPrefix + ts.Format(TimestampFormat)
}

var labelStartRe = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)`)

// LabelStartMinutes parses the leading "H[:MM] am|pm" of a slot label and
// returns minutes since midnight for intra-day ordering. Unparsable labels sort
// to zero; that is a tolerance, not an error.
func LabelStartMinutes(label string) int {
	m := labelStartRe.FindStringSubmatch(label)
	if m == nil {
		return 0
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 12 {
		return 0
	}
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if hour == 12 {
		hour = 0
	}
	if strings.EqualFold(m[3], "pm") {
		hour += 12
	}
	return hour*60 + minute
}

// ParseDate parses a calendar date in the application format.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q; expected YYYY-MM-DD", s)
	}
	return t, nil
}
