package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"slotbook/internal/booking"
	"slotbook/internal/events"
	"slotbook/internal/metrics"
	"slotbook/internal/models"
)

// SlotStore is the slice of the tabular store the admin surface needs.
type SlotStore interface {
	ListSlots(ctx context.Context) ([]models.Slot, error)
	ListSignups(ctx context.Context) ([]models.Signup, error)
	AppendSlots(ctx context.Context, slots []models.Slot) ([]models.Slot, error)
	DeleteSlots(ctx context.Context, slotIDs []int64) error
}

// DeleteBlockedError lists slots that still carry active bookings. The whole
// delete batch is rejected; slots are never deleted out from under a booker.
type DeleteBlockedError struct {
	SlotIDs []int64
}

func (e *DeleteBlockedError) Error() string {
	ids := make([]string, len(e.SlotIDs))
	for i, id := range e.SlotIDs {
		ids[i] = fmt.Sprintf("%d", id)
	}
	return "slots with active bookings cannot be deleted: " + strings.Join(ids, ", ")
}

// NewSlot is one row of an admin slot-creation batch.
type NewSlot struct {
	Date     string `json:"date"`
	Label    string `json:"slotLabel"`
	Capacity int    `json:"capacity"`
}

// Service implements batch slot creation and deletion.
type Service struct {
	store SlotStore
	bus   *events.EventBus
	log   *zerolog.Logger
	now   func() time.Time
}

func NewService(store SlotStore, bus *events.EventBus, logger *zerolog.Logger) *Service {
	return &Service{
		store: store,
		bus:   bus,
		log:   logger,
		now:   time.Now,
	}
}

// AddSlots validates the whole batch and appends it with taken=0. Any invalid
// row rejects the entire batch; no partial inserts.
func (s *Service) AddSlots(ctx context.Context, batch []NewSlot) ([]models.Slot, error) {
	if len(batch) == 0 {
		return nil, &booking.ValidationError{Msg: "no slots in batch"}
	}

	existing, err := s.store.ListSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("read slots: %w", err)
	}
	taken := make(map[string]bool, len(existing))
	for _, sl := range existing {
		taken[sl.Key()] = true
	}

	today := s.now().Format(models.DateFormat)
	rows := make([]models.Slot, 0, len(batch))
	for i, ns := range batch {
		label := strings.TrimSpace(ns.Label)
		if label == "" {
			return nil, &booking.ValidationError{Msg: fmt.Sprintf("row %d: slot label is required", i+1)}
		}
		if _, err := models.ParseDate(ns.Date); err != nil {
			return nil, &booking.ValidationError{Msg: fmt.Sprintf("row %d: %v", i+1, err)}
		}
		if ns.Date < today {
			return nil, &booking.ValidationError{Msg: fmt.Sprintf("row %d: date %s is in the past", i+1, ns.Date)}
		}
		if ns.Capacity < 1 {
			return nil, &booking.ValidationError{Msg: fmt.Sprintf("row %d: capacity must be at least 1", i+1)}
		}

		sl := models.Slot{Date: ns.Date, Label: label, Capacity: ns.Capacity}
		if taken[sl.Key()] {
			return nil, &booking.ValidationError{Msg: fmt.Sprintf("row %d: slot %s %q already exists", i+1, ns.Date, label)}
		}
		taken[sl.Key()] = true
		rows = append(rows, sl)
	}

	added, err := s.store.AppendSlots(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("append slots: %w", err)
	}

	metrics.IncSlotsMutated("add")
	s.bus.Publish(events.Event{Type: events.TypeSlotsAdded, Payload: len(added)})
	s.log.Info().Int("count", len(added)).Msg("slots added")
	return added, nil
}

// DeleteSlots removes the requested slots unless any of them still has an
// active signup, in which case the whole batch is rejected with the blocking
// slot ids.
func (s *Service) DeleteSlots(ctx context.Context, slotIDs []int64) error {
	if len(slotIDs) == 0 {
		return &booking.ValidationError{Msg: "no slot ids given"}
	}

	slots, err := s.store.ListSlots(ctx)
	if err != nil {
		return fmt.Errorf("read slots: %w", err)
	}
	known := make(map[int64]bool, len(slots))
	for _, sl := range slots {
		known[sl.ID] = true
	}
	for _, id := range slotIDs {
		if !known[id] {
			return fmt.Errorf("slot %d: %w", id, booking.ErrNotFound)
		}
	}

	signups, err := s.store.ListSignups(ctx)
	if err != nil {
		return fmt.Errorf("read signups: %w", err)
	}
	requested := make(map[int64]bool, len(slotIDs))
	for _, id := range slotIDs {
		requested[id] = true
	}
	blockedSet := make(map[int64]bool)
	for _, su := range signups {
		if su.IsActive() && requested[su.SlotID] {
			blockedSet[su.SlotID] = true
		}
	}
	if len(blockedSet) > 0 {
		blocked := make([]int64, 0, len(blockedSet))
		for _, id := range slotIDs {
			if blockedSet[id] {
				blocked = append(blocked, id)
			}
		}
		return &DeleteBlockedError{SlotIDs: blocked}
	}

	if err := s.store.DeleteSlots(ctx, slotIDs); err != nil {
		return fmt.Errorf("delete slots: %w", err)
	}

	metrics.IncSlotsMutated("delete")
	s.bus.Publish(events.Event{Type: events.TypeSlotsDeleted, Payload: slotIDs})
	s.log.Info().Ints64("slot_ids", slotIDs).Msg("slots deleted")
	return nil
}
