package service

import (
	"context"
	"log"
	"time"
)

const defaultSweepInterval = 5 * time.Minute

// Sweeper periodically fails expired PENDING holds and returns their
// seats.  A failed cycle is logged and retried on the next tick; it only
// delays availability and never causes double-booking.
type Sweeper struct {
	engine    *ReservationEngine
	interval  time.Duration
	batchSize int
}

// NewSweeper returns a sweeper running every interval and reaping at most
// batchSize holds per cycle.  Zero values select the defaults.
func NewSweeper(engine *ReservationEngine, interval time.Duration, batchSize int) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &Sweeper{engine: engine, interval: interval, batchSize: batchSize}
}

// SweepOnce runs a single cycle, draining full batches until fewer than
// batchSize holds are swept.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := s.engine.SweepExpired(ctx, s.batchSize)
		total += n
		if err != nil || n < s.batchSize {
			return total, err
		}
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log.Printf("sweeper: started, interval=%s batch=%d", s.interval, s.batchSize)
	for {
		select {
		case <-ctx.Done():
			log.Printf("sweeper: stopped")
			return
		case <-ticker.C:
			n, err := s.SweepOnce(ctx)
			if err != nil {
				log.Printf("sweeper: cycle failed after %d holds: %v", n, err)
				continue
			}
			if n > 0 {
				log.Printf("sweeper: expired %d holds", n)
			}
		}
	}
}
