package fixtures

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
)

//go:embed therapists.json
var therapistsJSON []byte

type Options struct {
	Seed uint64
	// Anchor is the instant generated dates are spread around. Zero means
	// the start of the current UTC day.
	Anchor        time.Time
	Patients      int
	Posts         int
	Conversations int
}

func DefaultOptions() Options {
	return Options{
		Seed:          42,
		Patients:      24,
		Posts:         12,
		Conversations: 10,
	}
}

// Store holds the seed data loaded at startup. Nothing in it can be changed
// after Load: every accessor hands out deep copies.
type Store struct {
	patients      []appointment.Patient
	therapists    []appointment.Therapist
	appointments  []appointment.Appointment
	posts         []Post
	conversations []Conversation

	patientIdx   map[uuid.UUID]int
	therapistIdx map[uuid.UUID]int
}

// Load builds the fixture set. Equal options always produce equal stores.
func Load(opts Options) (*Store, error) {
	return load(therapistsJSON, opts)
}

func load(therapistData []byte, opts Options) (*Store, error) {
	if opts.Patients < 0 || opts.Posts < 0 || opts.Conversations < 0 {
		return nil, errors.New("fixtures: counts must not be negative")
	}
	defaults := DefaultOptions()
	if opts.Patients == 0 {
		opts.Patients = defaults.Patients
	}
	if opts.Posts == 0 {
		opts.Posts = defaults.Posts
	}
	if opts.Conversations == 0 {
		opts.Conversations = defaults.Conversations
	}
	if opts.Anchor.IsZero() {
		opts.Anchor = time.Now().UTC().Truncate(24 * time.Hour)
	}

	therapists, err := parseTherapists(therapistData)
	if err != nil {
		return nil, err
	}

	g := newGenerator(opts.Seed, opts.Anchor, therapists)
	patients := g.patients(opts.Patients)
	appts := g.appointments(patients)

	s := &Store{
		patients:      patients,
		therapists:    therapists,
		appointments:  appts,
		posts:         g.posts(opts.Posts),
		conversations: g.conversations(opts.Conversations, patients, appts),
		patientIdx:    make(map[uuid.UUID]int, len(patients)),
		therapistIdx:  make(map[uuid.UUID]int, len(therapists)),
	}
	for i, p := range patients {
		s.patientIdx[p.ID] = i
	}
	for i, t := range therapists {
		s.therapistIdx[t.ID] = i
	}
	return s, nil
}

func parseTherapists(data []byte) ([]appointment.Therapist, error) {
	var therapists []appointment.Therapist
	if err := json.Unmarshal(data, &therapists); err != nil {
		return nil, fmt.Errorf("fixtures: decode therapists: %w", err)
	}
	if len(therapists) == 0 {
		return nil, errors.New("fixtures: no therapists defined")
	}

	seen := make(map[uuid.UUID]bool, len(therapists))
	for i, t := range therapists {
		switch {
		case t.ID == uuid.Nil:
			return nil, fmt.Errorf("fixtures: therapist %d has no id", i)
		case seen[t.ID]:
			return nil, fmt.Errorf("fixtures: duplicate therapist id %s", t.ID)
		case t.Name == "":
			return nil, fmt.Errorf("fixtures: therapist %s has no name", t.ID)
		}
		seen[t.ID] = true
		if therapists[i].Availability == nil {
			therapists[i].Availability = appointment.WeeklyAvailability{}
		}
	}
	return therapists, nil
}

// Seed returns the scheduling subset used to build an overlay repository.
func (s *Store) Seed() appointment.Seed {
	return appointment.Seed{
		Patients:     s.Patients(),
		Therapists:   s.Therapists(),
		Appointments: s.Appointments(),
	}
}

func (s *Store) Patients() []appointment.Patient {
	out := make([]appointment.Patient, len(s.patients))
	for i, p := range s.patients {
		out[i] = appointment.ClonePatient(p)
	}
	return out
}

func (s *Store) Patient(id uuid.UUID) (appointment.Patient, bool) {
	i, ok := s.patientIdx[id]
	if !ok {
		return appointment.Patient{}, false
	}
	return appointment.ClonePatient(s.patients[i]), true
}

func (s *Store) Therapists() []appointment.Therapist {
	out := make([]appointment.Therapist, len(s.therapists))
	for i, t := range s.therapists {
		out[i] = appointment.CloneTherapist(t)
	}
	return out
}

func (s *Store) Therapist(id uuid.UUID) (appointment.Therapist, bool) {
	i, ok := s.therapistIdx[id]
	if !ok {
		return appointment.Therapist{}, false
	}
	return appointment.CloneTherapist(s.therapists[i]), true
}

func (s *Store) Appointments() []appointment.Appointment {
	return append([]appointment.Appointment(nil), s.appointments...)
}

// Posts are newest first.
func (s *Store) Posts() []Post {
	out := make([]Post, len(s.posts))
	for i, p := range s.posts {
		out[i] = clonePost(p)
	}
	return out
}

func (s *Store) Conversations() []Conversation {
	out := make([]Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = cloneConversation(c)
	}
	return out
}

func (s *Store) ConversationsForPatient(patientID uuid.UUID) []Conversation {
	out := []Conversation{}
	for _, c := range s.conversations {
		if c.PatientID == patientID {
			out = append(out, cloneConversation(c))
		}
	}
	return out
}
