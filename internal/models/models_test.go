package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlot_Available(t *testing.T) {
	assert.Equal(t, 2, Slot{Capacity: 3, Taken: 1}.Available())
	assert.Equal(t, 0, Slot{Capacity: 2, Taken: 2}.Available())

	// Defensive: an inconsistent counter must never surface as negative.
	assert.Equal(t, 0, Slot{Capacity: 1, Taken: 5}.Available())
}

func TestSignup_StatusTransitions(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	s := Signup{Status: StatusActive}
	assert.True(t, s.IsActive())
	assert.False(t, s.IsCancelled())
	assert.False(t, s.IsFailed())

	s.Status = CancelledStatus(ts)
	assert.False(t, s.IsActive())
	assert.True(t, s.IsCancelled())
	assert.Equal(t, "CANCELLED:2025-06-01 12:30:00", s.Status)

	s.Status = FailedStatus(ts)
	assert.True(t, s.IsFailed())
	assert.Equal(t, "FAILED:2025-06-01 12:30:00", s.Status)
}

func TestLabelStartMinutes(t *testing.T) {
	cases := []struct {
		label string
		want  int
	}{
		{"9 am - 10 am", 9 * 60},
		{"9:30 am", 9*60 + 30},
		{"1 pm - 2 pm", 13 * 60},
		{"12 pm (noon)", 12 * 60},
		{"12 am", 0},
		{"  10:15 AM  ", 10*60 + 15},
		{"afternoon walk-in", 0},
		{"", 0},
	}

	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			assert.Equal(t, tc.want, LabelStartMinutes(tc.label))
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-12-31")
	assert.NoError(t, err)
	assert.Equal(t, 2025, d.Year())

	_, err = ParseDate("31.12.2025")
	assert.Error(t, err)
}
