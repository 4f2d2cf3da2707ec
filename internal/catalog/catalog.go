package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"slotbook/internal/events"
	"slotbook/internal/models"
)

// SlotSource is the read side of the tabular store.
type SlotSource interface {
	ListSlots(ctx context.Context) ([]models.Slot, error)
}

// Service is a read-only view over the Slots table with a last-value TTL
// cache. A single in-flight refresh is shared by concurrent callers so a cold
// cache cannot stampede the store.
type Service struct {
	store SlotSource
	ttl   time.Duration
	log   *zerolog.Logger
	now   func() time.Time

	mu        sync.Mutex
	slots     []models.Slot
	fetchedAt time.Time
	inflight  chan struct{}
}

func NewService(store SlotSource, ttl time.Duration, logger *zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{
		store: store,
		ttl:   ttl,
		log:   logger,
		now:   time.Now,
	}
}

// SubscribeInvalidation drops the cached listing whenever a booking or admin
// mutation goes through.
func (s *Service) SubscribeInvalidation(bus *events.EventBus) {
	handler := func(events.Event) error {
		s.Invalidate()
		return nil
	}
	bus.Subscribe(events.TypeBookingCreated, handler)
	bus.Subscribe(events.TypeBookingCancelled, handler)
	bus.Subscribe(events.TypeSlotsAdded, handler)
	bus.Subscribe(events.TypeSlotsDeleted, handler)
}

// Invalidate forces the next read to hit the store.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
}

// ListAvailableSlots returns future slots with free seats, grouped by date and
// ordered within a date by parsed label start time.
func (s *Service) ListAvailableSlots(ctx context.Context) (map[string][]models.Slot, error) {
	slots, err := s.cachedSlots(ctx)
	if err != nil {
		return nil, err
	}

	today := s.now().Format(models.DateFormat)
	grouped := make(map[string][]models.Slot)
	for _, sl := range slots {
		if sl.Date < today || sl.Available() == 0 {
			continue
		}
		grouped[sl.Date] = append(grouped[sl.Date], sl)
	}
	for date := range grouped {
		day := grouped[date]
		sort.SliceStable(day, func(i, j int) bool {
			return models.LabelStartMinutes(day[i].Label) < models.LabelStartMinutes(day[j].Label)
		})
	}
	return grouped, nil
}

// ListAllSlots returns the flat listing used by the admin surface, past and
// full slots included.
func (s *Service) ListAllSlots(ctx context.Context) ([]models.Slot, error) {
	return s.cachedSlots(ctx)
}

func (s *Service) cachedSlots(ctx context.Context) ([]models.Slot, error) {
	for {
		s.mu.Lock()
		if s.slots != nil && s.now().Sub(s.fetchedAt) < s.ttl {
			cached := s.slots
			s.mu.Unlock()
			return cached, nil
		}
		if ch := s.inflight; ch != nil {
			s.mu.Unlock()
			select {
			case <-ch:
				continue // re-check the cache filled by the refresher
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		ch := make(chan struct{})
		s.inflight = ch
		s.mu.Unlock()

		slots, err := s.store.ListSlots(ctx)

		s.mu.Lock()
		s.inflight = nil
		if err == nil {
			s.slots = slots
			s.fetchedAt = s.now()
		}
		s.mu.Unlock()
		close(ch)

		if err != nil {
			return nil, fmt.Errorf("refresh slot catalog: %w", err)
		}
		return slots, nil
	}
}
