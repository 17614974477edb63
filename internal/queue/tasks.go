package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// TypeSweepExpired is the asynq task that reaps expired holds.
const TypeSweepExpired = "inventory:sweep_expired"

// Sweeper is the part of the expiry sweeper the task handler needs.
type Sweeper interface {
	SweepOnce(ctx context.Context) (int, error)
}

// NewSweepTask returns a task with no payload; the sweeper reads
// everything it needs from the store.
func NewSweepTask() *asynq.Task {
	return asynq.NewTask(TypeSweepExpired, nil, asynq.MaxRetry(0))
}

// SweepHandler runs one sweep cycle per task.
func SweepHandler(s Sweeper) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		n, err := s.SweepOnce(ctx)
		if err != nil {
			// the next scheduled task catches up
			return fmt.Errorf("sweep after %d holds: %w", n, err)
		}
		if n > 0 {
			log.Printf("asynq-sweeper: expired %d holds", n)
		}
		return nil
	}
}

// SweepCronSpec converts the sweep interval into a scheduler spec.
func SweepCronSpec(interval time.Duration) string {
	if interval < time.Second {
		interval = time.Second
	}
	return "@every " + interval.String()
}

// RunSweepScheduler registers the periodic sweep task and processes it
// with a single worker until ctx is cancelled.
func RunSweepScheduler(ctx context.Context, redisOpt asynq.RedisClientOpt, s Sweeper, interval time.Duration) error {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{"default": 1},
	})
	mux := asynq.NewServeMux()
	mux.Handle(TypeSweepExpired, SweepHandler(s))

	scheduler := asynq.NewScheduler(redisOpt, nil)
	if _, err := scheduler.Register(SweepCronSpec(interval), NewSweepTask()); err != nil {
		return fmt.Errorf("register sweep task: %w", err)
	}

	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer scheduler.Shutdown()
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	defer srv.Shutdown()

	log.Printf("asynq-sweeper: scheduled %s", SweepCronSpec(interval))
	<-ctx.Done()
	return nil
}
