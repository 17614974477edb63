package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/iliyamo/cinebook-inventory/internal/database"
	"github.com/iliyamo/cinebook-inventory/internal/model"
)

// openTestMySQL returns a migrated store, or skips when TEST_MYSQL_DSN is
// unset or the server cannot be reached.  The DSN must carry
// parseTime=true&loc=UTC.
func openTestMySQL(t *testing.T) *MySQLStore {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("mysql unavailable: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		t.Skipf("mysql unavailable: %v", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewMySQLStore(db)
}

func TestMySQLStoreHoldLifecycle(t *testing.T) {
	s := openTestMySQL(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	show := &model.Show{Title: "Integration", StartsAt: now.Add(time.Hour), TotalSeats: 20, AvailableSeats: 20, PriceCents: 1000}
	if err := s.CreateShow(ctx, show); err != nil {
		t.Fatalf("create show: %v", err)
	}

	hold := &model.Hold{
		ID:               uuid.NewString(),
		ShowID:           show.ID,
		Seats:            []string{"B3", "A10"},
		Status:           model.HoldStatusPending,
		TotalAmountCents: 2000,
		Contact:          model.Contact{Name: "Guest", Email: "guest@example.com"},
		CreatedAt:        now,
		ExpiresAt:        now.Add(2 * time.Minute),
	}
	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetShowForUpdate(ctx, show.ID); err != nil {
			return err
		}
		if err := tx.UpdateAvailableSeats(ctx, show.ID, -2); err != nil {
			return err
		}
		return tx.InsertHold(ctx, hold)
	})
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}

	got, err := s.GetHold(ctx, hold.ID)
	if err != nil {
		t.Fatalf("get hold: %v", err)
	}
	if len(got.Seats) != 2 || got.Seats[0] != "B3" || got.Seats[1] != "A10" {
		t.Fatalf("expected seat order preserved, got %v", got.Seats)
	}

	_ = s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		claimed, err := tx.ClaimedSeats(ctx, show.ID, []string{"A1", "A10"}, now)
		if err != nil {
			t.Fatalf("claimed seats: %v", err)
		}
		if len(claimed) != 1 || claimed[0] != "A10" {
			t.Fatalf("expected [A10], got %v", claimed)
		}
		return nil
	})

	var ok bool
	if err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		ok, err = tx.UpdateHoldStatus(ctx, hold.ID, model.HoldStatusPending, model.HoldStatusConfirmed,
			StatusCondition{Now: now, RequireUnexpired: true})
		return err
	}); err != nil || !ok {
		t.Fatalf("expected confirm to succeed, got ok=%v err=%v", ok, err)
	}

	got, _ = s.GetHold(ctx, hold.ID)
	if got.Status != model.HoldStatusConfirmed || got.ConfirmedAt == nil {
		t.Fatalf("expected CONFIRMED with confirmed_at, got %s %v", got.Status, got.ConfirmedAt)
	}
}

func TestMySQLStoreRollback(t *testing.T) {
	s := openTestMySQL(t)
	ctx := context.Background()
	now := time.Now().UTC()

	show := &model.Show{Title: "Rollback", StartsAt: now.Add(time.Hour), TotalSeats: 5, AvailableSeats: 5, PriceCents: 500}
	if err := s.CreateShow(ctx, show); err != nil {
		t.Fatalf("create show: %v", err)
	}

	id := uuid.NewString()
	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.UpdateAvailableSeats(ctx, show.ID, -1); err != nil {
			return err
		}
		if err := tx.InsertHold(ctx, &model.Hold{ID: id, ShowID: show.ID, Seats: []string{"A1"},
			Status: model.HoldStatusPending, CreatedAt: now, ExpiresAt: now.Add(time.Minute)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.GetHold(ctx, id); !errors.Is(err, ErrHoldNotFound) {
		t.Fatalf("expected ErrHoldNotFound, got %v", err)
	}
	got, _ := s.GetShow(ctx, show.ID)
	if got.AvailableSeats != 5 {
		t.Fatalf("expected 5 available, got %d", got.AvailableSeats)
	}

	err = s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.UpdateAvailableSeats(ctx, show.ID, -6)
	})
	if !errors.Is(err, ErrCounterOutOfRange) {
		t.Fatalf("expected ErrCounterOutOfRange, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&mysql.MySQLError{Number: errLockDeadlock}, true},
		{fmt.Errorf("commit tx: %w", &mysql.MySQLError{Number: errLockWaitTimeout}), true},
		{mysql.ErrInvalidConn, true},
		{&mysql.MySQLError{Number: errDupEntry}, false},
		{errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(3); got != "?,?,?" {
		t.Fatalf("placeholders(3) = %q", got)
	}
	if got := placeholders(0); got != "" {
		t.Fatalf("placeholders(0) = %q", got)
	}
}
