package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hackgods/therapy-scheduling/internal/api"
	"github.com/hackgods/therapy-scheduling/internal/appointment"
	"github.com/hackgods/therapy-scheduling/internal/config"
	"github.com/hackgods/therapy-scheduling/internal/db"
	"github.com/hackgods/therapy-scheduling/internal/fixtures"
	"github.com/hackgods/therapy-scheduling/internal/metrics"
	redisclient "github.com/hackgods/therapy-scheduling/internal/redis"
	"github.com/hackgods/therapy-scheduling/internal/worker"
	"github.com/hackgods/therapy-scheduling/pkg/logging"
)

var version = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", "api-server", "env", cfg.Env)
	log.Printf("running in env=%s http_port=%s backend=%s", cfg.Env, cfg.HTTPPort, cfg.Backend)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := fixtures.DefaultOptions()
	opts.Seed = cfg.FixtureSeed
	opts.Anchor = cfg.FixtureAnchor
	store, err := fixtures.Load(opts)
	if err != nil {
		log.Fatalf("fixture load error: %v", err)
	}
	log.Printf("fixtures loaded: %d patients, %d therapists, %d appointments",
		len(store.Patients()), len(store.Therapists()), len(store.Appointments()))

	var (
		repo   appointment.Repository
		checks []api.DependencyCheck
	)
	switch cfg.Backend {
	case config.BackendPostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		if err == nil {
			err = db.EnsureSchema(pgCtx, pgPool)
		}
		cancelPg()
		if err != nil {
			log.Fatalf("postgres setup error: %v", err)
		}
		defer pgPool.Close()
		log.Println("connected to Postgres")

		repo = appointment.NewPgRepository(pgPool)
		checks = append(checks, api.PostgresCheck(pgPool))
	default:
		repo = appointment.NewMemoryRepository(store.Seed())
	}

	locker := redisclient.NewLocalLocker()
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("redis connection error: %v", err)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Printf("error closing redis: %v", err)
			}
		}()
		log.Println("connected to Redis")

		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL)
		checks = append(checks, api.RedisCheck(rdb))
	}

	svc := appointment.NewService(repo, locker, cfg,
		appointment.WithLogger(logger),
		appointment.WithMetrics(metrics.NewBookingMetrics(prometheus.DefaultRegisterer)),
	)

	// postgres deployments run cmd/completion-worker instead
	if cfg.Backend == config.BackendMemory {
		sweeper := worker.NewCompletionSweeper(svc, cfg.SweepInterval, logger.With("component", "sweeper"))
		go sweeper.Run(rootCtx)
	}

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Service:  svc,
			Fixtures: store,
			Logger:   logger,
			Checks:   checks,
			Env:      cfg.Env,
			Version:  version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
