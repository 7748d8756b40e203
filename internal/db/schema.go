package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id                uuid PRIMARY KEY,
		name              text NOT NULL,
		email             text NOT NULL,
		phone             text NOT NULL DEFAULT '',
		date_of_birth     date,
		emergency_contact text NOT NULL DEFAULT '',
		conditions        text[] NOT NULL DEFAULT '{}',
		medications       text[] NOT NULL DEFAULT '{}',
		allergies         text[] NOT NULL DEFAULT '{}',
		history_notes     text NOT NULL DEFAULT '',
		created_at        timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS therapists (
		id                  uuid PRIMARY KEY,
		name                text NOT NULL,
		email               text NOT NULL DEFAULT '',
		phone               text NOT NULL DEFAULT '',
		specialization      text NOT NULL DEFAULT '',
		license_number      text NOT NULL DEFAULT '',
		license_state       text NOT NULL DEFAULT '',
		years_of_experience integer NOT NULL DEFAULT 0,
		rating              double precision NOT NULL DEFAULT 0,
		bio                 text NOT NULL DEFAULT '',
		availability        jsonb NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id               uuid PRIMARY KEY,
		patient_id       uuid NOT NULL REFERENCES patients (id),
		therapist_id     uuid NOT NULL REFERENCES therapists (id),
		starts_at        timestamptz NOT NULL,
		duration_minutes integer NOT NULL CHECK (duration_minutes > 0),
		status           text NOT NULL,
		session_type     text NOT NULL DEFAULT 'video',
		notes            text NOT NULL DEFAULT '',
		created_at       timestamptz NOT NULL DEFAULT now(),
		updated_at       timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS appointments_patient_idx ON appointments (patient_id, starts_at)`,
	`CREATE INDEX IF NOT EXISTS appointments_therapist_idx ON appointments (therapist_id, starts_at)`,
	`CREATE TABLE IF NOT EXISTS waiting_list (
		id             uuid PRIMARY KEY,
		patient_id     uuid NOT NULL REFERENCES patients (id),
		therapist_id   uuid NOT NULL REFERENCES therapists (id),
		preferred_from timestamptz NOT NULL,
		preferred_to   timestamptz NOT NULL,
		status         text NOT NULL DEFAULT 'waiting',
		created_at     timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS feedback (
		id             uuid PRIMARY KEY,
		appointment_id uuid NOT NULL UNIQUE REFERENCES appointments (id),
		rating         integer NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment        text NOT NULL DEFAULT '',
		submitted_at   timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		id             bigserial PRIMARY KEY,
		event_type     text NOT NULL,
		appointment_id uuid,
		payload        jsonb,
		created_at     timestamptz NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates any missing tables. It is safe to run on every start.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
