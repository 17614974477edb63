package repository

import (
	"context"
	"time"

	"github.com/iliyamo/cinebook-inventory/internal/model"
)

// Store is the transactional inventory store.  Reads outside WithTx see
// committed state only and take no locks.
type Store interface {
	// WithTx runs fn inside one transaction.  The transaction commits when
	// fn returns nil and rolls back otherwise; no partial write survives
	// a rollback.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	CreateShow(ctx context.Context, s *model.Show) error
	CountShows(ctx context.Context) (int, error)
	GetShow(ctx context.Context, id uint64) (*model.Show, error)
	GetHold(ctx context.Context, id string) (*model.Hold, error)

	// FindActiveHoldsForShow returns every hold of the show that is active
	// at now (CONFIRMED, or PENDING with expires_at > now).
	FindActiveHoldsForShow(ctx context.Context, showID uint64, now time.Time) ([]model.Hold, error)

	// ListExpiredPending returns at most limit PENDING holds whose
	// expires_at <= now, oldest expiry first.
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]model.Hold, error)

	Stats(ctx context.Context) (model.HoldStats, error)
}

// Tx is the set of reads and writes the engine performs inside a
// transaction.  Methods ending in ForUpdate lock the row until the
// transaction ends.
type Tx interface {
	GetShowForUpdate(ctx context.Context, id uint64) (*model.Show, error)

	// UpdateAvailableSeats adds delta to the show's available_seats.  It
	// returns ErrCounterOutOfRange if the result would leave [0, total].
	UpdateAvailableSeats(ctx context.Context, id uint64, delta int) error

	// ClaimedSeats returns the subset of seats covered by an active hold
	// of the show at now.  Membership is exact, never a pattern match.
	ClaimedSeats(ctx context.Context, showID uint64, seats []string, now time.Time) ([]string, error)

	// ExpiredHoldsCovering returns the PENDING holds of the show that have
	// expired at now and cover at least one of seats, oldest expiry first.
	ExpiredHoldsCovering(ctx context.Context, showID uint64, seats []string, now time.Time) ([]model.Hold, error)

	InsertHold(ctx context.Context, h *model.Hold) error
	GetHoldForUpdate(ctx context.Context, id string) (*model.Hold, error)

	// UpdateHoldStatus moves the hold from one status to another when the
	// stored status still equals from and cond holds.  It reports whether a
	// row changed, so callers get compare-and-swap semantics.
	UpdateHoldStatus(ctx context.Context, id string, from, to model.HoldStatus, cond StatusCondition) (bool, error)
}

// StatusCondition narrows UpdateHoldStatus.  Now is compared against
// expires_at when one of the Require flags is set, and is written to
// confirmed_at when the target status is CONFIRMED.
type StatusCondition struct {
	Now              time.Time
	RequireUnexpired bool // expires_at > Now
	RequireExpired   bool // expires_at <= Now
}

func (c StatusCondition) allows(expiresAt time.Time) bool {
	if c.RequireUnexpired && !expiresAt.After(c.Now) {
		return false
	}
	if c.RequireExpired && expiresAt.After(c.Now) {
		return false
	}
	return true
}
