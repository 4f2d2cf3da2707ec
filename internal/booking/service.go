package booking

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"slotbook/internal/events"
	"slotbook/internal/metrics"
	"slotbook/internal/models"
)

// Store is the tabular persistence the engine runs against. The backing
// spreadsheet has no multi-row transactions; every multi-step sequence here is
// optimistic write + post-hoc verification + compensation.
type Store interface {
	ListSlots(ctx context.Context) ([]models.Slot, error)
	ListSignups(ctx context.Context) ([]models.Signup, error)
	AppendSignups(ctx context.Context, signups []models.Signup) ([]models.Signup, error)
	// IncrementTaken bumps each slot's taken counter by one, clamped at the
	// slot's capacity so racing writers can never push it past the cap.
	IncrementTaken(ctx context.Context, slots []models.Slot) error
	SetTaken(ctx context.Context, slotID int64, taken int) error
	UpdateSignupStatus(ctx context.Context, signupID int64, status string) error
	MarkBatchFailed(ctx context.Context, batchID string, status string) error
}

// Publisher decouples the engine from the event bus.
type Publisher interface {
	Publish(event events.Event)
}

type Config struct {
	MaxSlotsPerRequest int
	MinNameLength      int
	RatePerMinute      int
	RateBurst          int
}

// Service is the reservation engine and cancellation service.
type Service struct {
	store   Store
	bus     Publisher
	cfg     Config
	limiter *ContactLimiter
	log     *zerolog.Logger
	now     func() time.Time
}

func NewService(store Store, bus Publisher, cfg Config, logger *zerolog.Logger) *Service {
	if cfg.MaxSlotsPerRequest <= 0 {
		cfg.MaxSlotsPerRequest = 10
	}
	if cfg.MinNameLength <= 0 {
		cfg.MinNameLength = 2
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 6
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 3
	}
	return &Service{
		store:   store,
		bus:     bus,
		cfg:     cfg,
		limiter: NewContactLimiter(cfg.RatePerMinute, cfg.RateBurst),
		log:     logger,
		now:     time.Now,
	}
}

// Request carries one visitor booking covering one or more slots.
type Request struct {
	Name     string
	Phone    string
	Email    string
	Notes    string
	Category string
	SlotIDs  []int64
}

// Result is returned on a confirmed booking or cancellation.
type Result struct {
	Message string
	SlotIDs []int64
	BatchID string
}

// Book validates and commits a booking across the requested slots.
//
// The sequence is: fresh read, all-or-nothing validation, append signup rows
// tagged with a batch id, clamped counter update, verification re-read. A
// booker that lost a capacity race between the read and the counter update is
// detected during verification and compensated by marking the whole batch
// FAILED. Partial bookings are never left behind.
func (s *Service) Book(ctx context.Context, req Request) (*Result, error) {
	name := strings.TrimSpace(req.Name)
	if len([]rune(name)) < s.cfg.MinNameLength {
		return nil, validationf("name must be at least %d characters", s.cfg.MinNameLength)
	}

	phone, email, err := normalizeContact(req.Phone, req.Email)
	if err != nil {
		return nil, err
	}
	contact := contactString(phone, email)

	slotIDs, err := normalizeSlotIDs(req.SlotIDs, s.cfg.MaxSlotsPerRequest)
	if err != nil {
		return nil, err
	}

	if !s.limiter.Allow(contact) {
		return nil, ErrRateLimited
	}

	// Step 1: fresh read of slots and the full signups table.
	slots, err := s.store.ListSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("read slots: %w", err)
	}
	signups, err := s.store.ListSignups(ctx)
	if err != nil {
		return nil, fmt.Errorf("read signups: %w", err)
	}

	slotByID := make(map[int64]models.Slot, len(slots))
	for _, sl := range slots {
		slotByID[sl.ID] = sl
	}

	// Step 2: all-or-nothing validation. Any failing slot aborts the batch
	// before a single write happens.
	var dup, full []int64
	targets := make([]models.Slot, 0, len(slotIDs))
	for _, id := range slotIDs {
		sl, ok := slotByID[id]
		if !ok {
			return nil, fmt.Errorf("slot %d: %w", id, ErrNotFound)
		}
		if hasActiveSignup(signups, id, phone, email) {
			dup = append(dup, id)
			continue
		}
		if sl.Taken >= sl.Capacity {
			full = append(full, id)
			continue
		}
		targets = append(targets, sl)
	}
	if len(dup) > 0 {
		metrics.IncBookingConflict(ReasonDuplicate)
		return nil, &ConflictError{Reason: ReasonDuplicate, SlotIDs: dup}
	}
	if len(full) > 0 {
		metrics.IncBookingConflict(ReasonSlotFull)
		return nil, &ConflictError{Reason: ReasonSlotFull, SlotIDs: full}
	}

	// Step 3: append one signup row per slot, all tagged with the batch id so
	// a later rollback is exact, not heuristic.
	batchID := uuid.NewString()
	now := s.now()
	rows := make([]models.Signup, 0, len(targets))
	for _, sl := range targets {
		rows = append(rows, models.Signup{
			CreatedAt: now,
			Date:      sl.Date,
			SlotLabel: sl.Label,
			Name:      name,
			Contact:   contact,
			Notes:     strings.TrimSpace(req.Notes),
			Category:  strings.TrimSpace(req.Category),
			SlotID:    sl.ID,
			BatchID:   batchID,
			Status:    models.StatusActive,
		})
	}
	if _, err := s.store.AppendSignups(ctx, rows); err != nil {
		return nil, fmt.Errorf("write signups: %w", err)
	}

	// Step 4: capacity-clamped counter update.
	if err := s.store.IncrementTaken(ctx, targets); err != nil {
		s.rollback(ctx, batchID)
		return nil, fmt.Errorf("update counters: %w", err)
	}

	// Step 5: post-write verification.
	if conflictIDs, err := s.verify(ctx, batchID, slotIDs); err != nil {
		s.rollback(ctx, batchID)
		return nil, fmt.Errorf("verify booking: %w", err)
	} else if len(conflictIDs) > 0 {
		s.rollback(ctx, batchID)
		metrics.IncBookingRolledBack()
		metrics.IncBookingConflict(ReasonRaceLost)
		s.log.Warn().
			Str("batch_id", batchID).
			Ints64("slot_ids", conflictIDs).
			Msg("booking lost capacity race, batch rolled back")
		return nil, &ConflictError{Reason: ReasonRaceLost, SlotIDs: conflictIDs}
	}

	metrics.IncBookingCreated()
	s.bus.Publish(events.Event{Type: events.TypeBookingCreated, Payload: batchID})
	s.log.Info().
		Str("batch_id", batchID).
		Str("contact", contact).
		Ints64("slot_ids", slotIDs).
		Msg("booking confirmed")

	return &Result{
		Message: fmt.Sprintf("Booked %d slot(s), see you there!", len(slotIDs)),
		SlotIDs: slotIDs,
		BatchID: batchID,
	}, nil
}

// verify re-reads the touched slots and signups and decides whether this batch
// lost a capacity race. Seats are awarded in append order: for an overfull
// slot, the active signups beyond capacity are the losers. While here the
// stored counter is repaired to match the surviving active count, since
// last-write-wins between racing clamped updates can leave it low.
func (s *Service) verify(ctx context.Context, batchID string, slotIDs []int64) ([]int64, error) {
	slots, err := s.store.ListSlots(ctx)
	if err != nil {
		return nil, err
	}
	signups, err := s.store.ListSignups(ctx)
	if err != nil {
		return nil, err
	}

	slotByID := make(map[int64]models.Slot, len(slots))
	for _, sl := range slots {
		slotByID[sl.ID] = sl
	}

	var conflictIDs []int64
	type repair struct {
		slotID int64
		taken  int
	}
	var repairs []repair

	for _, id := range slotIDs {
		sl, ok := slotByID[id]
		if !ok {
			// The slot was deleted while we were writing. A booking must not
			// confirm against a row that no longer exists.
			conflictIDs = append(conflictIDs, id)
			continue
		}

		active := activeForSlot(signups, id)
		lostHere := false
		if len(active) > sl.Capacity {
			for _, loser := range active[sl.Capacity:] {
				if loser.BatchID == batchID {
					lostHere = true
					break
				}
			}
		}
		if lostHere {
			conflictIDs = append(conflictIDs, id)
			continue
		}

		survivors := len(active)
		if survivors > sl.Capacity {
			survivors = sl.Capacity
		}
		if sl.Taken != survivors {
			repairs = append(repairs, repair{slotID: id, taken: survivors})
		}
	}

	// Any slot lost fails the whole batch, so only repair counters when the
	// batch survives; losers are subtracted by the rollback path instead.
	if len(conflictIDs) == 0 {
		for _, r := range repairs {
			if err := s.store.SetTaken(ctx, r.slotID, r.taken); err != nil {
				s.log.Warn().Err(err).Int64("slot_id", r.slotID).Msg("counter read-repair failed")
			}
		}
	}
	return conflictIDs, nil
}

// rollback compensates a partially-applied or race-losing booking by marking
// every signup row of the batch FAILED. The store has no rollback primitive,
// so this is the best available approximation of an abort.
func (s *Service) rollback(ctx context.Context, batchID string) {
	status := models.FailedStatus(s.now())
	if err := s.store.MarkBatchFailed(ctx, batchID, status); err != nil {
		s.log.Error().Err(err).Str("batch_id", batchID).Msg("rollback failed, signups left dangling")
		return
	}

	// FAILED rows no longer count toward taken; reconcile the touched
	// counters against the surviving active signups.
	slots, slotErr := s.store.ListSlots(ctx)
	signups, signupErr := s.store.ListSignups(ctx)
	if slotErr != nil || signupErr != nil {
		s.log.Warn().Str("batch_id", batchID).Msg("skip counter reconcile after rollback")
		return
	}
	touched := make(map[int64]bool)
	for _, su := range signups {
		if su.BatchID == batchID {
			touched[su.SlotID] = true
		}
	}
	for _, sl := range slots {
		if !touched[sl.ID] {
			continue
		}
		active := len(activeForSlot(signups, sl.ID))
		if active > sl.Capacity {
			active = sl.Capacity
		}
		if sl.Taken != active {
			if err := s.store.SetTaken(ctx, sl.ID, active); err != nil {
				s.log.Warn().Err(err).Int64("slot_id", sl.ID).Msg("counter reconcile failed")
			}
		}
	}
}

// Cancel soft-cancels a signup and decrements the slot counter, floored at
// zero. Cancelling an already-cancelled signup is rejected without touching
// the counter, so repeated cancels cannot drain a slot.
func (s *Service) Cancel(ctx context.Context, signupID, slotID int64, contact string) (*Result, error) {
	if signupID <= 0 {
		return nil, validationf("signupId must be a positive integer")
	}

	signups, err := s.store.ListSignups(ctx)
	if err != nil {
		return nil, fmt.Errorf("read signups: %w", err)
	}

	var target *models.Signup
	for i := range signups {
		if signups[i].ID == signupID {
			target = &signups[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("signup %d: %w", signupID, ErrNotFound)
	}
	if slotID != 0 && target.SlotID != slotID {
		return nil, fmt.Errorf("signup %d: %w", signupID, ErrNotFound)
	}
	// Ownership check for unauthenticated public cancellation. A mismatch is
	// reported as not-found to avoid confirming someone else's booking.
	if contact != "" && !contactTokenMatch(target.Contact, contact) {
		return nil, fmt.Errorf("signup %d: %w", signupID, ErrNotFound)
	}
	if !target.IsActive() {
		return nil, ErrAlreadyCancelled
	}

	if err := s.store.UpdateSignupStatus(ctx, target.ID, models.CancelledStatus(s.now())); err != nil {
		return nil, fmt.Errorf("cancel signup: %w", err)
	}

	// Counter decrement is best-effort: if it fails the signup stays
	// cancelled and the counter is stale until the next read-repair.
	slots, err := s.store.ListSlots(ctx)
	if err != nil {
		s.log.Warn().Err(err).Int64("signup_id", signupID).Msg("counter decrement skipped")
	} else {
		for _, sl := range slots {
			if sl.ID != target.SlotID {
				continue
			}
			if sl.Taken > 0 {
				if err := s.store.SetTaken(ctx, sl.ID, sl.Taken-1); err != nil {
					s.log.Warn().Err(err).Int64("slot_id", sl.ID).Msg("counter decrement failed")
				}
			}
			break
		}
	}

	metrics.IncBookingCancelled()
	s.bus.Publish(events.Event{Type: events.TypeBookingCancelled, Payload: signupID})
	s.log.Info().Int64("signup_id", signupID).Int64("slot_id", target.SlotID).Msg("booking cancelled")

	return &Result{Message: "Booking cancelled.", SlotIDs: []int64{target.SlotID}}, nil
}

// ActiveBookings returns the caller's active signups, matched by phone or
// email token.
func (s *Service) ActiveBookings(ctx context.Context, contact string) ([]models.Signup, error) {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return nil, validationf("contact is required")
	}

	signups, err := s.store.ListSignups(ctx)
	if err != nil {
		return nil, fmt.Errorf("read signups: %w", err)
	}

	var out []models.Signup
	for _, su := range signups {
		if su.IsActive() && contactTokenMatch(su.Contact, contact) {
			out = append(out, su)
		}
	}
	return out, nil
}

var (
	phoneRe      = regexp.MustCompile(`^\+?\d{7,15}$`)
	emailRe      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneStripRe = regexp.MustCompile(`[\s()\-.]`)
)

func normalizeContact(phone, email string) (string, string, error) {
	phone = phoneStripRe.ReplaceAllString(strings.TrimSpace(phone), "")
	email = strings.ToLower(strings.TrimSpace(email))

	if phone == "" && email == "" {
		return "", "", validationf("a phone number or email is required")
	}
	if phone != "" && !phoneRe.MatchString(phone) {
		return "", "", validationf("phone number looks invalid")
	}
	if email != "" && !emailRe.MatchString(email) {
		return "", "", validationf("email address looks invalid")
	}
	return phone, email, nil
}

func contactString(phone, email string) string {
	switch {
	case phone == "":
		return email
	case email == "":
		return phone
	default:
		return phone + " " + email
	}
}

func normalizeSlotIDs(ids []int64, max int) ([]int64, error) {
	if len(ids) == 0 {
		return nil, validationf("pick at least one slot")
	}
	if len(ids) > max {
		return nil, validationf("at most %d slots per booking", max)
	}
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, validationf("slot ids must be positive integers")
		}
		if seen[id] {
			return nil, validationf("slot %d is listed twice", id)
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

func hasActiveSignup(signups []models.Signup, slotID int64, phone, email string) bool {
	for _, su := range signups {
		if su.SlotID != slotID || !su.IsActive() {
			continue
		}
		for _, tok := range contactTokens(su.Contact) {
			if (phone != "" && tok == phone) || (email != "" && tok == email) {
				return true
			}
		}
	}
	return false
}

func contactTokens(contact string) []string {
	fields := strings.FieldsFunc(contact, func(r rune) bool {
		return r == ' ' || r == '/' || r == ',' || r == ';'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			out = append(out, phoneStripRe.ReplaceAllString(f, ""))
		}
	}
	return out
}

func contactTokenMatch(stored, given string) bool {
	given = strings.ToLower(phoneStripRe.ReplaceAllString(strings.TrimSpace(given), ""))
	if given == "" {
		return false
	}
	for _, tok := range contactTokens(stored) {
		if tok == given {
			return true
		}
	}
	return false
}

func activeForSlot(signups []models.Signup, slotID int64) []models.Signup {
	var active []models.Signup
	for _, su := range signups {
		if su.SlotID == slotID && su.IsActive() {
			active = append(active, su)
		}
	}
	// Append order decides race winners; row ids are monotonic.
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active
}
