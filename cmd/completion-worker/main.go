package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
	"github.com/hackgods/therapy-scheduling/internal/config"
	"github.com/hackgods/therapy-scheduling/internal/db"
	"github.com/hackgods/therapy-scheduling/internal/metrics"
	"github.com/hackgods/therapy-scheduling/internal/worker"
	"github.com/hackgods/therapy-scheduling/pkg/logging"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("completion-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.Backend != config.BackendPostgres {
		log.Fatalf("completion-worker needs STORE_BACKEND=postgres; the memory backend sweeps inside api-server")
	}

	logger := logging.New(cfg.LogLevel).With("service", "completion-worker", "env", cfg.Env)
	log.Printf("running completion worker in env=%s interval=%s", cfg.Env, cfg.SweepInterval)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	repo := appointment.NewPgRepository(pgPool)
	// completion never takes a calendar lock
	svc := appointment.NewService(repo, nil, cfg,
		appointment.WithLogger(logger),
		appointment.WithMetrics(metrics.NewBookingMetrics(prometheus.DefaultRegisterer)),
	)

	worker.NewCompletionSweeper(svc, cfg.SweepInterval, logger).Run(rootCtx)
	log.Println("shutdown signal received, completion worker stopped")
}
