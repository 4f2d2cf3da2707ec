package booking

import (
	"context"
	"sort"
	"sync"

	"slotbook/internal/models"
)

// fakeStore is an in-memory stand-in for the spreadsheet adapter. Its
// IncrementTaken mirrors the clamped formula: the written value is
// min(capacity, staleTaken+1) computed from the caller's stale read, so tests
// can reproduce the capacity race exactly.
type fakeStore struct {
	mu           sync.Mutex
	slots        map[int64]*models.Slot
	signups      []*models.Signup
	nextSignupID int64

	// test hooks, invoked outside the lock
	beforeAppend  func(f *fakeStore)
	incrementErr  error
	listSlotsErrs []error // popped per call; nil entries mean success
}

func newFakeStore(slots ...models.Slot) *fakeStore {
	f := &fakeStore{slots: make(map[int64]*models.Slot)}
	for i := range slots {
		sl := slots[i]
		f.slots[sl.ID] = &sl
	}
	return f
}

func (f *fakeStore) seedSignup(su models.Signup) *models.Signup {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSignupID++
	su.ID = f.nextSignupID
	f.signups = append(f.signups, &su)
	return f.signups[len(f.signups)-1]
}

func (f *fakeStore) ListSlots(context.Context) ([]models.Slot, error) {
	f.mu.Lock()
	if len(f.listSlotsErrs) > 0 {
		err := f.listSlotsErrs[0]
		f.listSlotsErrs = f.listSlotsErrs[1:]
		if err != nil {
			f.mu.Unlock()
			return nil, err
		}
	}
	out := make([]models.Slot, 0, len(f.slots))
	for _, sl := range f.slots {
		out = append(out, *sl)
	}
	f.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListSignups(context.Context) ([]models.Signup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Signup, 0, len(f.signups))
	for _, su := range f.signups {
		out = append(out, *su)
	}
	return out, nil
}

func (f *fakeStore) AppendSignups(_ context.Context, signups []models.Signup) ([]models.Signup, error) {
	if f.beforeAppend != nil {
		hook := f.beforeAppend
		f.beforeAppend = nil
		hook(f)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Signup, 0, len(signups))
	for _, su := range signups {
		f.nextSignupID++
		su.ID = f.nextSignupID
		copied := su
		f.signups = append(f.signups, &copied)
		out = append(out, su)
	}
	return out, nil
}

func (f *fakeStore) IncrementTaken(_ context.Context, slots []models.Slot) error {
	if f.incrementErr != nil {
		return f.incrementErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stale := range slots {
		live, ok := f.slots[stale.ID]
		if !ok {
			continue
		}
		next := stale.Taken + 1
		if next > live.Capacity {
			next = live.Capacity
		}
		live.Taken = next
	}
	return nil
}

func (f *fakeStore) SetTaken(_ context.Context, slotID int64, taken int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sl, ok := f.slots[slotID]; ok {
		sl.Taken = taken
	}
	return nil
}

func (f *fakeStore) UpdateSignupStatus(_ context.Context, signupID int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, su := range f.signups {
		if su.ID == signupID {
			su.Status = status
			return nil
		}
	}
	return nil
}

func (f *fakeStore) MarkBatchFailed(_ context.Context, batchID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, su := range f.signups {
		if su.BatchID == batchID {
			su.Status = status
		}
	}
	return nil
}

func (f *fakeStore) slot(id int64) models.Slot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.slots[id]
}

func (f *fakeStore) signupsForSlot(slotID int64) []models.Signup {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Signup
	for _, su := range f.signups {
		if su.SlotID == slotID {
			out = append(out, *su)
		}
	}
	return out
}
