package appointment

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending     AppointmentStatus = "pending"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusCompleted   AppointmentStatus = "completed"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusRescheduled:
		return true
	}
	return false
}

type SessionType string

const (
	SessionVideo    SessionType = "video"
	SessionInPerson SessionType = "in_person"
)

type WaitingListStatus string

const (
	WaitingListWaiting WaitingListStatus = "waiting"
)

// Clock is a time of day expressed in minutes from midnight.
type Clock int

func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock parses an "HH:MM" string. "24:00" is accepted as end of day.
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	hour, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(s[3:])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("minute out of range in %q", s)
	}
	if hour < 0 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("hour out of range in %q", s)
	}
	return NewClock(hour, minute), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On places the clock on the calendar day of d, in d's location.
func (c Clock) On(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, int(c)/60, int(c)%60, 0, 0, d.Location())
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

type TimeRange struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

func (r TimeRange) Valid() bool {
	return r.Start >= 0 && r.End <= NewClock(24, 0) && r.Start < r.End
}

// WeeklyAvailability maps a weekday to the ranges a therapist accepts sessions in.
type WeeklyAvailability map[time.Weekday][]TimeRange

// For returns the weekday's ranges sorted by start with overlaps merged.
func (w WeeklyAvailability) For(day time.Weekday) []TimeRange {
	src := w[day]
	if len(src) == 0 {
		return nil
	}
	ranges := make([]TimeRange, len(src))
	copy(ranges, src)
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })

	merged := ranges[:1]
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func (w WeeklyAvailability) Clone() WeeklyAvailability {
	if w == nil {
		return nil
	}
	out := make(WeeklyAvailability, len(w))
	for day, ranges := range w {
		out[day] = append([]TimeRange(nil), ranges...)
	}
	return out
}

var weekdaysByName = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// MarshalJSON keys the week by lowercase weekday name.
func (w WeeklyAvailability) MarshalJSON() ([]byte, error) {
	out := make(map[string][]TimeRange, len(w))
	for day, ranges := range w {
		out[strings.ToLower(day.String())] = ranges
	}
	return json.Marshal(out)
}

func (w *WeeklyAvailability) UnmarshalJSON(data []byte) error {
	var raw map[string][]TimeRange
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(WeeklyAvailability, len(raw))
	for name, ranges := range raw {
		day, ok := weekdaysByName[strings.ToLower(name)]
		if !ok {
			return fmt.Errorf("unknown weekday %q", name)
		}
		for _, r := range ranges {
			if !r.Valid() {
				return fmt.Errorf("invalid range %s-%s on %s", r.Start, r.End, name)
			}
		}
		out[day] = ranges
	}
	*w = out
	return nil
}

type MedicalHistory struct {
	Conditions  []string `json:"conditions"`
	Medications []string `json:"medications"`
	Allergies   []string `json:"allergies"`
	Notes       string   `json:"notes,omitempty"`
}

type Patient struct {
	ID               uuid.UUID      `json:"id"`
	Name             string         `json:"name"`
	Email            string         `json:"email"`
	Phone            string         `json:"phone"`
	DateOfBirth      time.Time      `json:"date_of_birth"`
	EmergencyContact string         `json:"emergency_contact,omitempty"`
	History          MedicalHistory `json:"medical_history"`
	CreatedAt        time.Time      `json:"created_at"`
}

type Therapist struct {
	ID                uuid.UUID          `json:"id"`
	Name              string             `json:"name"`
	Email             string             `json:"email"`
	Phone             string             `json:"phone"`
	Specialization    string             `json:"specialization"`
	LicenseNumber     string             `json:"license_number"`
	LicenseState      string             `json:"license_state"`
	YearsOfExperience int                `json:"years_of_experience"`
	Rating            float64            `json:"rating"`
	Bio               string             `json:"bio,omitempty"`
	Availability      WeeklyAvailability `json:"availability"`
}

type Appointment struct {
	ID              uuid.UUID         `json:"id"`
	PatientID       uuid.UUID         `json:"patient_id"`
	TherapistID     uuid.UUID         `json:"therapist_id"`
	StartsAt        time.Time         `json:"starts_at"`
	DurationMinutes int               `json:"duration_minutes"`
	Status          AppointmentStatus `json:"status"`
	SessionType     SessionType       `json:"session_type"`
	Notes           string            `json:"notes,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (a Appointment) EndsAt() time.Time {
	return a.StartsAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Active reports whether the appointment still occupies the therapist's calendar.
func (a Appointment) Active() bool {
	return a.Status != StatusCancelled
}

type WaitingListEntry struct {
	ID            uuid.UUID         `json:"id"`
	PatientID     uuid.UUID         `json:"patient_id"`
	TherapistID   uuid.UUID         `json:"therapist_id"`
	PreferredFrom time.Time         `json:"preferred_from"`
	PreferredTo   time.Time         `json:"preferred_to"`
	Status        WaitingListStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}

type Feedback struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// Seed is the immutable base data an overlay repository starts from.
type Seed struct {
	Patients     []Patient
	Therapists   []Therapist
	Appointments []Appointment
}

func ClonePatient(p Patient) Patient {
	p.History.Conditions = append([]string(nil), p.History.Conditions...)
	p.History.Medications = append([]string(nil), p.History.Medications...)
	p.History.Allergies = append([]string(nil), p.History.Allergies...)
	return p
}

func CloneTherapist(t Therapist) Therapist {
	t.Availability = t.Availability.Clone()
	return t
}
