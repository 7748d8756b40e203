package appointment

import (
	"context"

	"github.com/google/uuid"
)

// AppointmentFilter narrows ListAppointments. Zero-valued ids match everything.
type AppointmentFilter struct {
	PatientID   uuid.UUID
	TherapistID uuid.UUID
}

func (f AppointmentFilter) Match(a Appointment) bool {
	if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
		return false
	}
	if f.TherapistID != uuid.Nil && a.TherapistID != f.TherapistID {
		return false
	}
	return true
}

// Repository contains every storage interaction the booking service needs.
// MemoryRepository is the in-process overlay; PgRepository is the same
// contract backed by Postgres.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListPatients(ctx context.Context) ([]Patient, error)
	CreatePatient(ctx context.Context, p Patient) (*Patient, error)

	GetTherapistByID(ctx context.Context, id uuid.UUID) (*Therapist, error)
	ListTherapists(ctx context.Context) ([]Therapist, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error)
	InsertAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	// UpdateAppointment replaces the stored record with the same id.
	UpdateAppointment(ctx context.Context, a Appointment) (*Appointment, error)

	InsertWaitingListEntry(ctx context.Context, e WaitingListEntry) (*WaitingListEntry, error)
	DeleteWaitingListEntry(ctx context.Context, id uuid.UUID) error
	ListWaitingList(ctx context.Context, patientID uuid.UUID) ([]WaitingListEntry, error)

	InsertFeedback(ctx context.Context, f Feedback) (*Feedback, error)
	GetFeedbackForAppointment(ctx context.Context, appointmentID uuid.UUID) (*Feedback, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
