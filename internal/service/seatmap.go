package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/cinebook-inventory/internal/clock"
	"github.com/iliyamo/cinebook-inventory/internal/model"
	"github.com/iliyamo/cinebook-inventory/internal/repository"
)

// SeatMapProjector derives per-seat availability from the show's layout
// and its active holds.  It only reads from the store.
type SeatMapProjector struct {
	store  repository.Store
	clock  clock.Clock
	layout SeatLayout
}

func NewSeatMapProjector(store repository.Store, clk clock.Clock, layout SeatLayout) *SeatMapProjector {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &SeatMapProjector{store: store, clock: clk, layout: layout}
}

// ShowSummary is a show together with its projected seat map.
type ShowSummary struct {
	Show    *model.Show    `json:"show"`
	SeatMap *model.SeatMap `json:"seat_map"`
}

// Project returns the seat map of a show as of now.
func (p *SeatMapProjector) Project(ctx context.Context, showID uint64) (*model.SeatMap, error) {
	summary, err := p.Summary(ctx, showID)
	if err != nil {
		return nil, err
	}
	return summary.SeatMap, nil
}

// Summary returns the show and its seat map.
func (p *SeatMapProjector) Summary(ctx context.Context, showID uint64) (*ShowSummary, error) {
	show, err := p.store.GetShow(ctx, showID)
	if err != nil {
		return nil, storageError(mapStoreError(err))
	}
	now := p.clock.Now()
	holds, err := p.store.FindActiveHoldsForShow(ctx, showID, now)
	if err != nil {
		return nil, storageError(err)
	}
	m := ProjectSeats(*show, holds, now, p.layout)
	return &ShowSummary{Show: show, SeatMap: &m}, nil
}

// ProjectSeats marks every seat of the layout BOOKED when an active hold
// covers it at now, and AVAILABLE otherwise.  Holds of other shows and
// inactive holds are ignored.
func ProjectSeats(show model.Show, holds []model.Hold, now time.Time, layout SeatLayout) model.SeatMap {
	booked := make(map[string]struct{})
	for _, h := range holds {
		if h.ShowID != show.ID || !h.Active(now) {
			continue
		}
		for _, seat := range h.Seats {
			booked[seat] = struct{}{}
		}
	}

	seats := layout.Seats(int(show.TotalSeats))
	m := model.SeatMap{
		ShowID: show.ID,
		Total:  len(seats),
		Seats:  seats,
		Rows:   make(map[string][]model.SeatState),
	}
	for i := range seats {
		seats[i].PriceCents = show.PriceCents
		if _, ok := booked[seats[i].Seat]; ok {
			seats[i].Status = model.SeatBooked
		} else {
			seats[i].Status = model.SeatAvailable
			m.Available++
		}
		row := seats[i].Row
		if _, ok := m.Rows[row]; !ok {
			m.RowOrder = append(m.RowOrder, row)
		}
		m.Rows[row] = append(m.Rows[row], seats[i])
	}
	return m
}

// storageError wraps infrastructure errors as ErrStorageFailure and
// leaves domain errors alone.
func storageError(err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	return errors.Join(ErrStorageFailure, err)
}
