package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/cinebook-inventory/internal/clock"
	"github.com/iliyamo/cinebook-inventory/internal/model"
	"github.com/iliyamo/cinebook-inventory/internal/repository"
)

type sampleShow struct {
	title      string
	category   string
	inDays     int
	totalSeats uint32
	priceCents uint32
}

var sampleShows = []sampleShow{
	{"Avengers: Endgame", "Action", 2, 100, 35000},
	{"Inception", "Sci-Fi", 1, 80, 30000},
	{"Dune: Part Two", "Adventure", 3, 120, 40000},
	{"Interstellar", "Sci-Fi", 4, 90, 32000},
	{"The Dark Knight", "Action", 5, 110, 28000},
}

// SeedSampleShows inserts the sample catalog when the store has no shows
// yet and returns how many shows were created.
func SeedSampleShows(ctx context.Context, store repository.Store, clk clock.Clock) (int, error) {
	n, err := store.CountShows(ctx)
	if err != nil {
		return 0, fmt.Errorf("count shows: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	now := clk.Now()
	for i, s := range sampleShows {
		show := &model.Show{
			Title:          s.title,
			Category:       s.category,
			StartsAt:       now.Add(time.Duration(s.inDays) * 24 * time.Hour).Truncate(time.Minute),
			TotalSeats:     s.totalSeats,
			AvailableSeats: s.totalSeats,
			PriceCents:     s.priceCents,
			CreatedAt:      now,
		}
		if err := store.CreateShow(ctx, show); err != nil {
			return i, fmt.Errorf("create show %q: %w", s.title, err)
		}
	}
	log.Printf("seed: inserted %d sample shows", len(sampleShows))
	return len(sampleShows), nil
}
