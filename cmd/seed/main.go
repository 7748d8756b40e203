package main

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
	"github.com/hackgods/therapy-scheduling/internal/config"
	"github.com/hackgods/therapy-scheduling/internal/db"
	"github.com/hackgods/therapy-scheduling/internal/fixtures"
)

const batchSize = 500

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	opts := fixtures.DefaultOptions()
	opts.Seed = cfg.FixtureSeed
	opts.Anchor = cfg.FixtureAnchor
	store, err := fixtures.Load(opts)
	if err != nil {
		log.Fatalf("fixture load error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	seed := store.Seed()

	if err := inTx(ctx, pool, func(repo *appointment.PgRepository) error {
		for _, t := range seed.Therapists {
			if err := repo.UpsertTherapist(ctx, t); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		log.Fatalf("seed therapists: %v", err)
	}
	log.Printf("therapists seeded: %d", len(seed.Therapists))

	if err := seedBatches(ctx, pool, "patients", len(seed.Patients), func(repo *appointment.PgRepository, i int) error {
		return repo.UpsertPatient(ctx, seed.Patients[i])
	}); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	if err := seedBatches(ctx, pool, "appointments", len(seed.Appointments), func(repo *appointment.PgRepository, i int) error {
		return upsertAppointment(ctx, repo, seed.Appointments[i])
	}); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

// upsertAppointment makes reseeding idempotent: rows that already exist are
// left as they are, including any status the app has since changed.
func upsertAppointment(ctx context.Context, repo *appointment.PgRepository, a appointment.Appointment) error {
	if _, err := repo.GetAppointmentByID(ctx, a.ID); err == nil {
		return nil
	}
	_, err := repo.InsertAppointment(ctx, a)
	return err
}

func seedBatches(ctx context.Context, pool *pgxpool.Pool, what string, count int, write func(*appointment.PgRepository, int) error) error {
	log.Printf("seeding %d %s", count, what)

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		err := inTx(ctx, pool, func(repo *appointment.PgRepository) error {
			for i := offset; i < end; i++ {
				if err := write(repo, i); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		log.Printf("%s seeded: %d/%d", what, end, count)
	}
	return nil
}

func inTx(ctx context.Context, pool *pgxpool.Pool, fn func(*appointment.PgRepository) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func(tx pgx.Tx) { _ = tx.Rollback(ctx) }(tx)

	if err := fn(appointment.NewPgRepository(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
