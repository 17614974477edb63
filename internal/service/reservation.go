// Package service implements the seat-inventory reservation engine: hold
// creation with conflict detection, confirmation, cancellation, the
// expiry sweep and the seat map projection.  All state lives in a
// repository.Store; the engine owns the check-then-write sequences that
// keep the available-seat counter in step with the set of active holds.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinebook-inventory/internal/clock"
	"github.com/iliyamo/cinebook-inventory/internal/model"
	"github.com/iliyamo/cinebook-inventory/internal/queue"
	"github.com/iliyamo/cinebook-inventory/internal/repository"
)

const (
	defaultHoldDuration   = 120 * time.Second
	defaultMaxSeats       = 6
	defaultRetryAttempts  = 3
	defaultRetryBackoff   = 50 * time.Millisecond
	defaultSweepBatchSize = 500

	defaultContactName  = "Guest"
	defaultContactEmail = "guest@example.com"
)

// ReservationEngine converts seat requests into time-bounded holds and
// settles them.  It is safe for concurrent use.
type ReservationEngine struct {
	store  repository.Store
	clock  clock.Clock
	events EventPublisher
	layout SeatLayout

	holdDuration  time.Duration
	maxSeats      int
	retryAttempts int
	retryBackoff  time.Duration

	// per-show mutexes held across CreateHold's check-and-write
	locks sync.Map
}

// EngineOption customises a ReservationEngine.
type EngineOption func(*ReservationEngine)

// WithHoldDuration overrides the lifetime of new holds.
func WithHoldDuration(d time.Duration) EngineOption {
	return func(e *ReservationEngine) {
		if d > 0 {
			e.holdDuration = d
		}
	}
}

// WithMaxSeatsPerBooking overrides the request size limit.
func WithMaxSeatsPerBooking(n int) EngineOption {
	return func(e *ReservationEngine) {
		if n > 0 {
			e.maxSeats = n
		}
	}
}

func WithLayout(l SeatLayout) EngineOption {
	return func(e *ReservationEngine) { e.layout = l }
}

// WithRetry sets how many times an operation is attempted when the store
// fails, and the base delay between attempts.
func WithRetry(attempts int, backoff time.Duration) EngineOption {
	return func(e *ReservationEngine) {
		if attempts > 0 {
			e.retryAttempts = attempts
		}
		if backoff >= 0 {
			e.retryBackoff = backoff
		}
	}
}

// NewReservationEngine wires the engine to its store.  A nil publisher
// disables events.
func NewReservationEngine(store repository.Store, clk clock.Clock, events EventPublisher, opts ...EngineOption) *ReservationEngine {
	if store == nil {
		panic("nil store passed to NewReservationEngine")
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if events == nil {
		events = NopPublisher{}
	}
	e := &ReservationEngine{
		store:         store,
		clock:         clk,
		events:        events,
		layout:        DefaultLayout(),
		holdDuration:  defaultHoldDuration,
		maxSeats:      defaultMaxSeats,
		retryAttempts: defaultRetryAttempts,
		retryBackoff:  defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HoldDuration returns the lifetime of new holds.
func (e *ReservationEngine) HoldDuration() time.Duration { return e.holdDuration }

// Layout returns the seat layout used to validate requests.
func (e *ReservationEngine) Layout() SeatLayout { return e.layout }

// CreateHoldInput is a request for a set of seats of one show.
type CreateHoldInput struct {
	ShowID  uint64
	Seats   []string
	Contact model.Contact
}

// CreateHold claims the requested seats with a PENDING hold.  Expired
// PENDING holds overlapping the request are failed first and their seats
// credited back.  The count check, the conflict check, the counter
// decrement and the insert then run in the same transaction while the
// show row is locked; either all of them apply or none does.
func (e *ReservationEngine) CreateHold(ctx context.Context, in CreateHoldInput) (*model.Hold, error) {
	seats, err := e.normalizeSeats(in.Seats)
	if err != nil {
		return nil, err
	}

	var show *model.Show
	err = e.retry(ctx, func() error {
		var err error
		show, err = e.store.GetShow(ctx, in.ShowID)
		return mapStoreError(err)
	})
	if err != nil {
		return nil, err
	}
	for _, seat := range seats {
		if !e.layout.Valid(seat, int(show.TotalSeats)) {
			return nil, fmt.Errorf("%w: seat %s does not exist for show %d", ErrInvalidRequest, seat, show.ID)
		}
	}

	contact := in.Contact
	if contact.Name == "" {
		contact.Name = defaultContactName
	}
	if contact.Email == "" {
		contact.Email = defaultContactEmail
	}

	mu := e.showLock(in.ShowID)
	mu.Lock()
	defer mu.Unlock()

	var (
		hold      *model.Hold
		reclaimed []model.Hold
	)
	err = e.retry(ctx, func() error {
		hold, reclaimed = nil, nil
		return e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			show, err := tx.GetShowForUpdate(ctx, in.ShowID)
			if err != nil {
				return mapStoreError(err)
			}
			now := e.clock.Now()

			expired, err := tx.ExpiredHoldsCovering(ctx, in.ShowID, seats, now)
			if err != nil {
				return err
			}
			for i := range expired {
				ok, err := expireInTx(ctx, tx, &expired[i], now)
				if err != nil {
					return err
				}
				if ok {
					show.AvailableSeats += uint32(len(expired[i].Seats))
					reclaimed = append(reclaimed, expired[i])
				}
			}

			if int(show.AvailableSeats) < len(seats) {
				return ErrInsufficientInventory
			}
			claimed, err := tx.ClaimedSeats(ctx, in.ShowID, seats, now)
			if err != nil {
				return err
			}
			if len(claimed) > 0 {
				return &SeatConflictError{Seats: inRequestOrder(seats, claimed)}
			}

			if err := tx.UpdateAvailableSeats(ctx, in.ShowID, -len(seats)); err != nil {
				if errors.Is(err, repository.ErrCounterOutOfRange) {
					return ErrInsufficientInventory
				}
				return err
			}
			h := &model.Hold{
				ID:               uuid.NewString(),
				ShowID:           in.ShowID,
				Seats:            seats,
				Status:           model.HoldStatusPending,
				TotalAmountCents: uint64(len(seats)) * uint64(show.PriceCents),
				Contact:          contact,
				CreatedAt:        now,
				ExpiresAt:        now.Add(e.holdDuration),
			}
			if err := tx.InsertHold(ctx, h); err != nil {
				return err
			}
			hold = h
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	for i := range reclaimed {
		e.publish(ctx, queue.EventHoldExpired, &reclaimed[i])
	}
	e.publish(ctx, queue.EventHoldCreated, hold)
	return hold, nil
}

// ConfirmHold promotes a PENDING, unexpired hold to CONFIRMED.  The
// status and expiry are re-checked by the conditional update itself, so a
// concurrent sweep, cancel or reclaim cannot be overwritten.  Seat counts
// do not change.  Confirming a hold that has already expired fails it,
// gives its seats back and returns ErrHoldNotConfirmable.
func (e *ReservationEngine) ConfirmHold(ctx context.Context, holdID string) (*model.Hold, error) {
	var (
		hold    *model.Hold
		expired bool
	)
	err := e.retry(ctx, func() error {
		hold, expired = nil, false
		return e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			now := e.clock.Now()
			ok, err := tx.UpdateHoldStatus(ctx, holdID, model.HoldStatusPending, model.HoldStatusConfirmed,
				repository.StatusCondition{Now: now, RequireUnexpired: true})
			if err != nil {
				return err
			}
			h, err := tx.GetHoldForUpdate(ctx, holdID)
			if errors.Is(err, repository.ErrHoldNotFound) {
				return ErrHoldNotConfirmable
			}
			if err != nil {
				return err
			}
			if ok {
				hold = h
				return nil
			}
			if !h.Expired(now) {
				return ErrHoldNotConfirmable
			}
			if ok, err = expireInTx(ctx, tx, h, now); err != nil {
				return err
			}
			if !ok {
				return ErrHoldNotConfirmable
			}
			// commit the expiry; the caller still gets ErrHoldNotConfirmable
			h.Status = model.HoldStatusFailed
			hold, expired = h, true
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if expired {
		e.publish(ctx, queue.EventHoldExpired, hold)
		return nil, ErrHoldNotConfirmable
	}
	e.publish(ctx, queue.EventHoldConfirmed, hold)
	return hold, nil
}

// CancelHold moves a PENDING hold to FAILED and gives its seats back.  A
// hold that is already CONFIRMED or FAILED is returned unchanged, so
// repeated calls credit availability at most once.
func (e *ReservationEngine) CancelHold(ctx context.Context, holdID string) (*model.Hold, error) {
	var (
		hold      *model.Hold
		cancelled bool
	)
	err := e.retry(ctx, func() error {
		hold, cancelled = nil, false
		return e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			now := e.clock.Now()
			h, err := tx.GetHoldForUpdate(ctx, holdID)
			if err != nil {
				return mapStoreError(err)
			}
			if h.Status.Terminal() {
				hold = h
				return nil
			}
			ok, err := tx.UpdateHoldStatus(ctx, holdID, model.HoldStatusPending, model.HoldStatusFailed,
				repository.StatusCondition{Now: now})
			if err != nil {
				return err
			}
			if !ok {
				// settled between the read and the write
				h, err = tx.GetHoldForUpdate(ctx, holdID)
				if err != nil {
					return err
				}
				hold = h
				return nil
			}
			if err := tx.UpdateAvailableSeats(ctx, h.ShowID, len(h.Seats)); err != nil {
				return err
			}
			h.Status = model.HoldStatusFailed
			hold = h
			cancelled = true
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if cancelled {
		e.publish(ctx, queue.EventHoldCancelled, hold)
	}
	return hold, nil
}

// GetHold returns the stored hold.
func (e *ReservationEngine) GetHold(ctx context.Context, holdID string) (*model.Hold, error) {
	var hold *model.Hold
	err := e.retry(ctx, func() error {
		var err error
		hold, err = e.store.GetHold(ctx, holdID)
		return mapStoreError(err)
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// SweepExpired fails up to limit PENDING holds whose expiry has passed
// and restores their seats, one transaction per hold.  A hold that fails
// to expire is left for the next run; the error is returned alongside the
// number of holds that were swept.
func (e *ReservationEngine) SweepExpired(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultSweepBatchSize
	}
	now := e.clock.Now()
	var expired []model.Hold
	err := e.retry(ctx, func() error {
		var err error
		expired, err = e.store.ListExpiredPending(ctx, now, limit)
		return err
	})
	if err != nil {
		return 0, err
	}

	swept := 0
	var errs []error
	for i := range expired {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		h := &expired[i]
		ok, err := e.expireHold(ctx, h)
		if err != nil {
			errs = append(errs, fmt.Errorf("expire hold %s: %w", h.ID, err))
			continue
		}
		if ok {
			swept++
			e.publish(ctx, queue.EventHoldExpired, h)
		}
	}
	return swept, errors.Join(errs...)
}

// expireHold reports false when the hold was settled by someone else
// after it was listed.
func (e *ReservationEngine) expireHold(ctx context.Context, h *model.Hold) (bool, error) {
	var expired bool
	err := e.retry(ctx, func() error {
		expired = false
		return e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			ok, err := expireInTx(ctx, tx, h, e.clock.Now())
			expired = ok
			return err
		})
	})
	return expired, err
}

// expireInTx fails a PENDING hold whose expiry has passed at now and
// credits its seats back, inside the caller's transaction.  It reports
// false when the hold is no longer PENDING or not yet expired.
func expireInTx(ctx context.Context, tx repository.Tx, h *model.Hold, now time.Time) (bool, error) {
	ok, err := tx.UpdateHoldStatus(ctx, h.ID, model.HoldStatusPending, model.HoldStatusFailed,
		repository.StatusCondition{Now: now, RequireExpired: true})
	if err != nil || !ok {
		return false, err
	}
	if err := tx.UpdateAvailableSeats(ctx, h.ShowID, len(h.Seats)); err != nil {
		return false, err
	}
	h.Status = model.HoldStatusFailed
	return true, nil
}

// Stats returns hold counts per status and confirmed revenue.
func (e *ReservationEngine) Stats(ctx context.Context) (model.HoldStats, error) {
	var st model.HoldStats
	err := e.retry(ctx, func() error {
		var err error
		st, err = e.store.Stats(ctx)
		return err
	})
	return st, err
}

// normalizeSeats trims and upper-cases the identifiers and enforces the
// request size limit.  The request order is kept.
func (e *ReservationEngine) normalizeSeats(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: at least one seat is required", ErrInvalidRequest)
	}
	if len(raw) > e.maxSeats {
		return nil, fmt.Errorf("%w: at most %d seats per booking", ErrInvalidRequest, e.maxSeats)
	}
	seats := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		seat := NormalizeSeat(s)
		if seat == "" {
			return nil, fmt.Errorf("%w: empty seat identifier", ErrInvalidRequest)
		}
		if _, dup := seen[seat]; dup {
			return nil, fmt.Errorf("%w: seat %s requested twice", ErrInvalidRequest, seat)
		}
		seen[seat] = struct{}{}
		seats = append(seats, seat)
	}
	return seats, nil
}

func (e *ReservationEngine) showLock(showID uint64) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(showID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// retry runs op until it succeeds, fails with a domain error, or the
// attempt budget is spent.  op must be atomic so that re-running it after
// a rolled back attempt is safe.
func (e *ReservationEngine) retry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= e.retryAttempts; attempt++ {
		err = op()
		if err == nil || isDomainError(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrStorageFailure, ctxErr)
		}
		if attempt == e.retryAttempts {
			break
		}
		if repository.IsTransient(err) {
			log.Printf("reservation: attempt %d/%d hit lock contention: %v", attempt, e.retryAttempts, err)
		} else {
			log.Printf("reservation: attempt %d/%d failed: %v", attempt, e.retryAttempts, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrStorageFailure, ctx.Err())
		case <-time.After(time.Duration(attempt) * e.retryBackoff):
		}
	}
	return fmt.Errorf("%w: %w", ErrStorageFailure, err)
}

// publish emits a lifecycle event after commit.  Failures are logged and
// never reach the caller.
func (e *ReservationEngine) publish(ctx context.Context, typ queue.EventType, h *model.Hold) {
	ev := queue.HoldEvent{
		Type:             typ,
		HoldID:           h.ID,
		ShowID:           h.ShowID,
		Seats:            append([]string(nil), h.Seats...),
		Status:           string(h.Status),
		TotalAmountCents: h.TotalAmountCents,
		ContactName:      h.Contact.Name,
		ContactEmail:     h.Contact.Email,
		OccurredAt:       e.clock.Now(),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.events.Publish(pctx, ev); err != nil {
		log.Printf("reservation: publish %s for hold %s failed: %v", typ, h.ID, err)
	}
}

// mapStoreError translates repository lookups into the service taxonomy.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrShowNotFound):
		return ErrShowNotFound
	case errors.Is(err, repository.ErrHoldNotFound):
		return ErrHoldNotFound
	}
	return err
}

// inRequestOrder returns the members of claimed in the order they appear
// in seats.
func inRequestOrder(seats, claimed []string) []string {
	set := make(map[string]struct{}, len(claimed))
	for _, s := range claimed {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(claimed))
	for _, s := range seats {
		if _, ok := set[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
