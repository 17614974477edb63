package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/cinebook-inventory/internal/model"
)

// MemoryStore keeps the inventory in process memory.  Every transaction
// holds the store mutex from begin to commit, so transactions are fully
// serialized.  Writes record an undo step and a failed transaction
// replays the undo log in reverse.  It is used by tests and by
// STORE_DRIVER=memory.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID uint64
	shows  map[uint64]model.Show
	holds  map[string]model.Hold
	order  []string                       // hold IDs in insertion order
	seats  map[uint64]map[string][]string // show -> seat -> hold IDs

	// BeforeCommit, when set, runs after fn succeeded and before the
	// transaction commits.  A non-nil error rolls the transaction back.
	BeforeCommit func() error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shows: make(map[uint64]model.Show),
		holds: make(map[string]model.Hold),
		seats: make(map[uint64]map[string][]string),
	}
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{s: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	if s.BeforeCommit != nil {
		if err := s.BeforeCommit(); err != nil {
			tx.rollback()
			return err
		}
	}
	return nil
}

func (s *MemoryStore) CreateShow(ctx context.Context, show *model.Show) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if show.AvailableSeats > show.TotalSeats {
		return ErrCounterOutOfRange
	}
	s.nextID++
	show.ID = s.nextID
	if show.CreatedAt.IsZero() {
		show.CreatedAt = time.Now().UTC()
	}
	s.shows[show.ID] = *show
	return nil
}

func (s *MemoryStore) CountShows(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shows), nil
}

func (s *MemoryStore) GetShow(ctx context.Context, id uint64) (*model.Show, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	show, ok := s.shows[id]
	if !ok {
		return nil, ErrShowNotFound
	}
	return &show, nil
}

func (s *MemoryStore) GetHold(ctx context.Context, id string) (*model.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holds[id]
	if !ok {
		return nil, ErrHoldNotFound
	}
	return copyHold(h), nil
}

func (s *MemoryStore) FindActiveHoldsForShow(ctx context.Context, showID uint64, now time.Time) ([]model.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Hold
	for _, id := range s.order {
		h := s.holds[id]
		if h.ShowID == showID && h.Active(now) {
			out = append(out, *copyHold(h))
		}
	}
	return out, nil
}

func (s *MemoryStore) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]model.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Hold
	for _, id := range s.order {
		h := s.holds[id]
		if h.Expired(now) {
			out = append(out, *copyHold(h))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (model.HoldStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st model.HoldStats
	st.Shows = len(s.shows)
	for _, show := range s.shows {
		st.TotalSeats += uint64(show.TotalSeats)
	}
	for _, h := range s.holds {
		switch h.Status {
		case model.HoldStatusPending:
			st.Pending++
		case model.HoldStatusConfirmed:
			st.Confirmed++
			st.ConfirmedRevenueCents += h.TotalAmountCents
		case model.HoldStatusFailed:
			st.Failed++
		}
	}
	return st, nil
}

func copyHold(h model.Hold) *model.Hold {
	h.Seats = append([]string(nil), h.Seats...)
	if h.ConfirmedAt != nil {
		t := *h.ConfirmedAt
		h.ConfirmedAt = &t
	}
	return &h
}

// memoryTx runs with MemoryStore.mu held for writing.
type memoryTx struct {
	s    *MemoryStore
	undo []func()
}

func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memoryTx) GetShowForUpdate(ctx context.Context, id uint64) (*model.Show, error) {
	show, ok := t.s.shows[id]
	if !ok {
		return nil, ErrShowNotFound
	}
	return &show, nil
}

func (t *memoryTx) UpdateAvailableSeats(ctx context.Context, id uint64, delta int) error {
	show, ok := t.s.shows[id]
	if !ok {
		return ErrShowNotFound
	}
	next := int64(show.AvailableSeats) + int64(delta)
	if next < 0 || next > int64(show.TotalSeats) {
		return ErrCounterOutOfRange
	}
	prev := show
	show.AvailableSeats = uint32(next)
	t.s.shows[id] = show
	t.undo = append(t.undo, func() { t.s.shows[id] = prev })
	return nil
}

func (t *memoryTx) ClaimedSeats(ctx context.Context, showID uint64, seats []string, now time.Time) ([]string, error) {
	index := t.s.seats[showID]
	var claimed []string
	for _, seat := range seats {
		for _, holdID := range index[seat] {
			if t.s.holds[holdID].Active(now) {
				claimed = append(claimed, seat)
				break
			}
		}
	}
	return claimed, nil
}

func (t *memoryTx) ExpiredHoldsCovering(ctx context.Context, showID uint64, seats []string, now time.Time) ([]model.Hold, error) {
	index := t.s.seats[showID]
	seen := make(map[string]struct{})
	var out []model.Hold
	for _, seat := range seats {
		for _, holdID := range index[seat] {
			if _, ok := seen[holdID]; ok {
				continue
			}
			if h := t.s.holds[holdID]; h.Expired(now) {
				seen[holdID] = struct{}{}
				out = append(out, *copyHold(h))
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (t *memoryTx) InsertHold(ctx context.Context, h *model.Hold) error {
	if _, exists := t.s.holds[h.ID]; exists {
		return ErrDuplicateHold
	}
	seen := make(map[string]struct{}, len(h.Seats))
	for _, seat := range h.Seats {
		if _, dup := seen[seat]; dup {
			return ErrDuplicateHold
		}
		seen[seat] = struct{}{}
	}

	t.s.holds[h.ID] = *copyHold(*h)
	t.s.order = append(t.s.order, h.ID)
	index, ok := t.s.seats[h.ShowID]
	if !ok {
		index = make(map[string][]string)
		t.s.seats[h.ShowID] = index
	}
	for _, seat := range h.Seats {
		index[seat] = append(index[seat], h.ID)
	}

	id, showID, seats := h.ID, h.ShowID, append([]string(nil), h.Seats...)
	t.undo = append(t.undo, func() {
		delete(t.s.holds, id)
		t.s.order = t.s.order[:len(t.s.order)-1]
		idx := t.s.seats[showID]
		for _, seat := range seats {
			ids := idx[seat]
			idx[seat] = ids[:len(ids)-1]
			if len(idx[seat]) == 0 {
				delete(idx, seat)
			}
		}
	})
	return nil
}

func (t *memoryTx) GetHoldForUpdate(ctx context.Context, id string) (*model.Hold, error) {
	h, ok := t.s.holds[id]
	if !ok {
		return nil, ErrHoldNotFound
	}
	return copyHold(h), nil
}

func (t *memoryTx) UpdateHoldStatus(ctx context.Context, id string, from, to model.HoldStatus, cond StatusCondition) (bool, error) {
	h, ok := t.s.holds[id]
	if !ok || h.Status != from || !cond.allows(h.ExpiresAt) {
		return false, nil
	}
	prev := h
	h.Status = to
	if to == model.HoldStatusConfirmed {
		at := cond.Now
		h.ConfirmedAt = &at
	}
	t.s.holds[id] = h
	t.undo = append(t.undo, func() { t.s.holds[id] = prev })
	return true, nil
}
