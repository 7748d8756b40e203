package appointment

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository layers a session overlay on top of immutable seed data.
// Seed records are never modified: updating a seeded appointment stores a
// shadow copy in the overlay which wins on every subsequent read.
type MemoryRepository struct {
	mu sync.RWMutex

	basePatients     map[uuid.UUID]Patient
	baseTherapists   map[uuid.UUID]Therapist
	baseAppointments map[uuid.UUID]Appointment
	patientOrder     []uuid.UUID
	therapistOrder   []uuid.UUID

	patients     map[uuid.UUID]Patient
	appointments map[uuid.UUID]Appointment
	waiting      map[uuid.UUID]WaitingListEntry
	feedback     map[uuid.UUID]Feedback // keyed by appointment id
	events       []EventLog
}

func NewMemoryRepository(seed Seed) *MemoryRepository {
	r := &MemoryRepository{
		basePatients:     make(map[uuid.UUID]Patient, len(seed.Patients)),
		baseTherapists:   make(map[uuid.UUID]Therapist, len(seed.Therapists)),
		baseAppointments: make(map[uuid.UUID]Appointment, len(seed.Appointments)),
		patients:         map[uuid.UUID]Patient{},
		appointments:     map[uuid.UUID]Appointment{},
		waiting:          map[uuid.UUID]WaitingListEntry{},
		feedback:         map[uuid.UUID]Feedback{},
	}
	for _, p := range seed.Patients {
		r.basePatients[p.ID] = ClonePatient(p)
		r.patientOrder = append(r.patientOrder, p.ID)
	}
	for _, t := range seed.Therapists {
		r.baseTherapists[t.ID] = CloneTherapist(t)
		r.therapistOrder = append(r.therapistOrder, t.ID)
	}
	for _, a := range seed.Appointments {
		r.baseAppointments[a.ID] = a
	}
	return r
}

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		p, ok = r.basePatients[id]
	}
	if !ok {
		return nil, ErrPatientNotFound
	}
	p = ClonePatient(p)
	return &p, nil
}

func (r *MemoryRepository) ListPatients(_ context.Context) ([]Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Patient, 0, len(r.basePatients)+len(r.patients))
	for _, id := range r.patientOrder {
		out = append(out, ClonePatient(r.basePatients[id]))
	}
	registered := make([]Patient, 0, len(r.patients))
	for _, p := range r.patients {
		registered = append(registered, ClonePatient(p))
	}
	sort.Slice(registered, func(i, j int) bool {
		return registered[i].CreatedAt.Before(registered[j].CreatedAt)
	})
	return append(out, registered...), nil
}

func (r *MemoryRepository) CreatePatient(_ context.Context, p Patient) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.patients[p.ID] = ClonePatient(p)
	out := ClonePatient(p)
	return &out, nil
}

func (r *MemoryRepository) GetTherapistByID(_ context.Context, id uuid.UUID) (*Therapist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.baseTherapists[id]
	if !ok {
		return nil, ErrTherapistNotFound
	}
	t = CloneTherapist(t)
	return &t, nil
}

func (r *MemoryRepository) ListTherapists(_ context.Context) ([]Therapist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Therapist, 0, len(r.therapistOrder))
	for _, id := range r.therapistOrder {
		out = append(out, CloneTherapist(r.baseTherapists[id]))
	}
	return out, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.lookupAppointment(id)
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) ListAppointments(_ context.Context, filter AppointmentFilter) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []Appointment{}
	for id, a := range r.baseAppointments {
		if shadow, ok := r.appointments[id]; ok {
			a = shadow
		}
		if filter.Match(a) {
			out = append(out, a)
		}
	}
	for id, a := range r.appointments {
		if _, seeded := r.baseAppointments[id]; seeded {
			continue
		}
		if filter.Match(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out, nil
}

func (r *MemoryRepository) InsertAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.appointments[a.ID] = a
	return &a, nil
}

func (r *MemoryRepository) UpdateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lookupAppointment(a.ID); !ok {
		return nil, ErrAppointmentNotFound
	}
	r.appointments[a.ID] = a
	return &a, nil
}

func (r *MemoryRepository) InsertWaitingListEntry(_ context.Context, e WaitingListEntry) (*WaitingListEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	r.waiting[e.ID] = e
	return &e, nil
}

func (r *MemoryRepository) DeleteWaitingListEntry(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.waiting[id]; !ok {
		return ErrWaitingListEntryNotFound
	}
	delete(r.waiting, id)
	return nil
}

func (r *MemoryRepository) ListWaitingList(_ context.Context, patientID uuid.UUID) ([]WaitingListEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []WaitingListEntry{}
	for _, e := range r.waiting {
		if patientID != uuid.Nil && e.PatientID != patientID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) InsertFeedback(_ context.Context, f Feedback) (*Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.feedback[f.AppointmentID]; exists {
		return nil, ErrFeedbackExists
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	r.feedback[f.AppointmentID] = f
	return &f, nil
}

func (r *MemoryRepository) GetFeedbackForAppointment(_ context.Context, appointmentID uuid.UUID) (*Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.feedback[appointmentID]
	if !ok {
		return nil, ErrFeedbackNotFound
	}
	return &f, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	ev.Payload = append([]byte(nil), ev.Payload...)
	if ev.AppointmentID != nil {
		id := *ev.AppointmentID
		ev.AppointmentID = &id
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the event log in insertion order.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]EventLog, len(r.events))
	for i, ev := range r.events {
		ev.Payload = append([]byte(nil), ev.Payload...)
		if ev.AppointmentID != nil {
			id := *ev.AppointmentID
			ev.AppointmentID = &id
		}
		out[i] = ev
	}
	return out
}

func (r *MemoryRepository) lookupAppointment(id uuid.UUID) (Appointment, bool) {
	if a, ok := r.appointments[id]; ok {
		return a, true
	}
	a, ok := r.baseAppointments[id]
	return a, ok
}
