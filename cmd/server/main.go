package main

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/cinebook-inventory/internal/clock"
	"github.com/iliyamo/cinebook-inventory/internal/config"
	"github.com/iliyamo/cinebook-inventory/internal/database"
	"github.com/iliyamo/cinebook-inventory/internal/handler"
	"github.com/iliyamo/cinebook-inventory/internal/middleware"
	"github.com/iliyamo/cinebook-inventory/internal/queue"
	"github.com/iliyamo/cinebook-inventory/internal/repository"
	"github.com/iliyamo/cinebook-inventory/internal/router"
	"github.com/iliyamo/cinebook-inventory/internal/service"
)

func main() {
	// .env is optional; variables already set in the environment win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("env: could not load .env: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, db := openStore(ctx, cfg)
	if db != nil {
		defer db.Close()
	}
	clk := clock.NewSystem()

	if cfg.SeedSampleShows {
		if _, err := service.SeedSampleShows(ctx, store, clk); err != nil {
			log.Fatalf("seed: %v", err)
		}
	}

	publisher, closePublisher := newPublisher(cfg)
	defer closePublisher()

	engine := service.NewReservationEngine(store, clk, publisher,
		service.WithHoldDuration(cfg.HoldDuration),
		service.WithMaxSeatsPerBooking(cfg.MaxSeatsPerBooking),
		service.WithLayout(service.SeatLayout{SeatsPerRow: cfg.SeatsPerRow, VIPRows: cfg.VIPRows}),
		service.WithRetry(cfg.RetryAttempts, 50*time.Millisecond),
	)
	projector := service.NewSeatMapProjector(store, clk, engine.Layout())
	sweeper := service.NewSweeper(engine, cfg.SweepInterval, cfg.SweepBatchSize)
	startSweeper(ctx, cfg, sweeper)

	if cfg.ConsumerEnabled {
		if cfg.EventsBroker != config.BrokerRabbitMQ {
			log.Printf("audit-consumer: EVENTS_CONSUMER_ENABLED needs EVENTS_BROKER=rabbitmq; not started")
		} else {
			consumer := queue.NewAuditConsumer(cfg.RabbitURL, cfg.AuditLogPath)
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("audit-consumer: stopped: %v", err)
				}
			}()
		}
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Printf("redis: unavailable at %s, rate limiting and stats cache disabled", cfg.Redis.Addr)
	} else {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Printf("http: %s %s %d %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	var pinger handler.Pinger
	if db != nil {
		pinger = db
	}
	h := handler.NewReservationHandler(engine, projector, sweeper)
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	statsCache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)
	router.RegisterRoutes(e, h, handler.Health(pinger), limiter, statsCache)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s, store=%s, sweep=%s, events=%s)",
			addr, cfg.Env, cfg.StoreDriver, cfg.SweepMode, cfg.EventsBroker)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// openStore returns the configured inventory store.  db is nil for the
// memory store.
func openStore(ctx context.Context, cfg config.Config) (repository.Store, *sql.DB) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Printf("store: using in-memory inventory; data is lost on restart")
		return repository.NewMemoryStore(), nil
	}
	db, err := database.Open(database.Options{
		User:     cfg.DBUser,
		Pass:     cfg.DBPass,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
		MaxConns: cfg.DBMaxConns,
	})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("db: migrate: %v", err)
	}
	return repository.NewMySQLStore(db), db
}

func newPublisher(cfg config.Config) (service.EventPublisher, func()) {
	switch cfg.EventsBroker {
	case config.BrokerRabbitMQ:
		p := service.NewRabbitPublisher(cfg.RabbitURL)
		return p, func() { _ = p.Close() }
	case config.BrokerKafka:
		p := service.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		return p, func() { _ = p.Close() }
	}
	return service.NopPublisher{}, func() {}
}

func startSweeper(ctx context.Context, cfg config.Config, sweeper *service.Sweeper) {
	if cfg.SweepMode == config.SweepAsynq {
		go func() {
			err := queue.RunSweepScheduler(ctx, cfg.Redis.AsynqOpt(), sweeper, cfg.SweepInterval)
			if err != nil {
				log.Printf("asynq-sweeper: %v; falling back to in-process ticker", err)
				sweeper.Run(ctx)
			}
		}()
		return
	}
	go sweeper.Run(ctx)
}
