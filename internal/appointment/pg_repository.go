package appointment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const (
	patientColumns = `id, name, email, phone, date_of_birth, emergency_contact,
		conditions, medications, allergies, history_notes, created_at`
	therapistColumns = `id, name, email, phone, specialization, license_number, license_state,
		years_of_experience, rating, bio, availability`
	appointmentColumns = `id, patient_id, therapist_id, starts_at, duration_minutes,
		status, session_type, notes, created_at, updated_at`
	waitingListColumns = `id, patient_id, therapist_id, preferred_from, preferred_to, status, created_at`
	feedbackColumns    = `id, appointment_id, rating, comment, submitted_at`
)

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var dob sql.NullTime

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&dob,
		&p.EmergencyContact,
		&p.History.Conditions,
		&p.History.Medications,
		&p.History.Allergies,
		&p.History.Notes,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	if dob.Valid {
		p.DateOfBirth = dob.Time
	}
	return &p, nil
}

func scanTherapist(row pgx.Row) (*Therapist, error) {
	var t Therapist
	var availability []byte

	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Email,
		&t.Phone,
		&t.Specialization,
		&t.LicenseNumber,
		&t.LicenseState,
		&t.YearsOfExperience,
		&t.Rating,
		&t.Bio,
		&availability,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTherapistNotFound
		}
		return nil, err
	}

	t.Availability = WeeklyAvailability{}
	if len(availability) > 0 {
		if err := json.Unmarshal(availability, &t.Availability); err != nil {
			return nil, fmt.Errorf("decode availability for therapist %s: %w", t.ID, err)
		}
	}
	return &t, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.TherapistID,
		&a.StartsAt,
		&a.DurationMinutes,
		&a.Status,
		&a.SessionType,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.StartsAt = a.StartsAt.UTC()
	return &a, nil
}

func scanWaitingListEntry(row pgx.Row) (*WaitingListEntry, error) {
	var e WaitingListEntry

	err := row.Scan(
		&e.ID,
		&e.PatientID,
		&e.TherapistID,
		&e.PreferredFrom,
		&e.PreferredTo,
		&e.Status,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWaitingListEntryNotFound
		}
		return nil, err
	}
	return &e, nil
}

func scanFeedback(row pgx.Row) (*Feedback, error) {
	var f Feedback

	err := row.Scan(&f.ID, &f.AppointmentID, &f.Rating, &f.Comment, &f.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFeedbackNotFound
		}
		return nil, err
	}
	return &f, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	result := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Patients

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPatient)
}

func (r *PgRepository) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	return r.upsertPatient(ctx, p, false)
}

// UpsertPatient writes a fixture patient, leaving an existing row untouched.
func (r *PgRepository) UpsertPatient(ctx context.Context, p Patient) error {
	_, err := r.upsertPatient(ctx, p, true)
	if errors.Is(err, ErrPatientNotFound) {
		return nil
	}
	return err
}

func (r *PgRepository) upsertPatient(ctx context.Context, p Patient, ignoreConflict bool) (*Patient, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	conflict := ""
	if ignoreConflict {
		conflict = "ON CONFLICT (id) DO NOTHING"
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO patients (`+patientColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, now()))
		`+conflict+`
		RETURNING `+patientColumns,
		p.ID, p.Name, p.Email, p.Phone, nullableTime(p.DateOfBirth), p.EmergencyContact,
		nonNil(p.History.Conditions), nonNil(p.History.Medications), nonNil(p.History.Allergies),
		p.History.Notes, nullableTime(p.CreatedAt),
	)
	return scanPatient(row)
}

// Therapists

func (r *PgRepository) GetTherapistByID(ctx context.Context, id uuid.UUID) (*Therapist, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+therapistColumns+`
		FROM therapists
		WHERE id = $1
	`, id)
	return scanTherapist(row)
}

func (r *PgRepository) ListTherapists(ctx context.Context) ([]Therapist, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+therapistColumns+`
		FROM therapists
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTherapist)
}

// UpsertTherapist writes a fixture therapist, replacing the profile and hours
// of an existing row with the same id.
func (r *PgRepository) UpsertTherapist(ctx context.Context, t Therapist) error {
	availability, err := json.Marshal(t.Availability)
	if err != nil {
		return fmt.Errorf("encode availability: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO therapists (`+therapistColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    specialization = EXCLUDED.specialization,
		    rating = EXCLUDED.rating,
		    bio = EXCLUDED.bio,
		    availability = EXCLUDED.availability
	`, t.ID, t.Name, t.Email, t.Phone, t.Specialization, t.LicenseNumber, t.LicenseState,
		t.YearsOfExperience, t.Rating, t.Bio, availability)
	if err != nil {
		return fmt.Errorf("upsert therapist: %w", err)
	}
	return nil
}

// Appointments

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1::uuid IS NULL OR patient_id = $1)
		  AND ($2::uuid IS NULL OR therapist_id = $2)
		ORDER BY starts_at, id
	`, nullableID(filter.PatientID), nullableID(filter.TherapistID))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAppointment)
}

func (r *PgRepository) InsertAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()), COALESCE($10, now()))
		ON CONFLICT (id) DO NOTHING
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.TherapistID, a.StartsAt, a.DurationMinutes,
		a.Status, a.SessionType, a.Notes, nullableTime(a.CreatedAt), nullableTime(a.UpdatedAt),
	)
	created, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		// ON CONFLICT swallowed the row
		return nil, fmt.Errorf("appointment %s already exists", a.ID)
	}
	return created, err
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET starts_at = $2,
		    duration_minutes = $3,
		    status = $4,
		    session_type = $5,
		    notes = $6,
		    updated_at = COALESCE($7, now())
		WHERE id = $1
		RETURNING `+appointmentColumns,
		a.ID, a.StartsAt, a.DurationMinutes, a.Status, a.SessionType, a.Notes, nullableTime(a.UpdatedAt),
	)
	return scanAppointment(row)
}

// Waiting list

func (r *PgRepository) InsertWaitingListEntry(ctx context.Context, e WaitingListEntry) (*WaitingListEntry, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO waiting_list (`+waitingListColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
		RETURNING `+waitingListColumns,
		e.ID, e.PatientID, e.TherapistID, e.PreferredFrom, e.PreferredTo, e.Status, nullableTime(e.CreatedAt),
	)
	return scanWaitingListEntry(row)
}

func (r *PgRepository) DeleteWaitingListEntry(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM waiting_list WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete waiting list entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWaitingListEntryNotFound
	}
	return nil
}

func (r *PgRepository) ListWaitingList(ctx context.Context, patientID uuid.UUID) ([]WaitingListEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+waitingListColumns+`
		FROM waiting_list
		WHERE ($1::uuid IS NULL OR patient_id = $1)
		ORDER BY created_at, id
	`, nullableID(patientID))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanWaitingListEntry)
}

// Feedback

func (r *PgRepository) InsertFeedback(ctx context.Context, f Feedback) (*Feedback, error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO feedback (`+feedbackColumns+`)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
		RETURNING `+feedbackColumns,
		f.ID, f.AppointmentID, f.Rating, f.Comment, nullableTime(f.SubmittedAt),
	)
	inserted, err := scanFeedback(row)
	if isUniqueViolation(err) {
		return nil, ErrFeedbackExists
	}
	return inserted, err
}

func (r *PgRepository) GetFeedbackForAppointment(ctx context.Context, appointmentID uuid.UUID) (*Feedback, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+feedbackColumns+`
		FROM feedback
		WHERE appointment_id = $1
	`, appointmentID)
	return scanFeedback(row)
}

// Events

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullableID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
