package service

import (
	"context"
	"testing"
	"time"

	"github.com/iliyamo/cinebook-inventory/internal/clock"
	"github.com/iliyamo/cinebook-inventory/internal/repository"
)

func TestSeedSampleShowsOnlyOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	n, err := SeedSampleShows(ctx, store, clk)
	if err != nil || n != 5 {
		t.Fatalf("expected 5 shows seeded, got %d (%v)", n, err)
	}
	n, err = SeedSampleShows(ctx, store, clk)
	if err != nil || n != 0 {
		t.Fatalf("expected second seed to be a no-op, got %d (%v)", n, err)
	}
	show, err := store.GetShow(ctx, 1)
	if err != nil {
		t.Fatalf("get show: %v", err)
	}
	if show.Title != "Avengers: Endgame" || show.AvailableSeats != show.TotalSeats {
		t.Fatalf("unexpected first show %+v", show)
	}
}
