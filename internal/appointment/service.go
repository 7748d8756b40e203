package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/therapy-scheduling/internal/config"
	"github.com/hackgods/therapy-scheduling/internal/metrics"
	redisclient "github.com/hackgods/therapy-scheduling/internal/redis"
	"github.com/hackgods/therapy-scheduling/pkg/logging"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventWaitingListAdded       = "WAITING_LIST_ADDED"
	EventWaitingListRemoved     = "WAITING_LIST_REMOVED"
	EventFeedbackSubmitted      = "FEEDBACK_SUBMITTED"
	EventPatientRegistered      = "PATIENT_REGISTERED"
)

// completion reasons recorded on APPOINTMENT_COMPLETED events
const (
	completedManually  = "manual"
	completedBySweeper = "sweeper"
)

const (
	maxSessionMinutes = 8 * 60
	maxCommentLength  = 2000
)

var tracer = otel.Tracer("therapy.internal.appointment")

type Service struct {
	repo    Repository
	locker  redisclient.Locker
	cfg     config.Config
	now     func() time.Time
	newID   func() uuid.UUID
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
}

type Option func(*Service)

// WithClock replaces time.Now as the service's notion of the current instant.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(s *Service) { s.newID = newID }
}

func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, opts ...Option) *Service {
	if repo == nil {
		panic("appointment: repository required")
	}
	if locker == nil {
		locker = redisclient.NewLocalLocker()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SessionMinutes <= 0 {
		cfg.SessionMinutes = DefaultSessionMinutes
	}
	s := &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		now:    time.Now,
		newID:  uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	return s
}

type CreateAppointmentRequest struct {
	PatientID       string `json:"patient_id"`
	TherapistID     string `json:"therapist_id"`
	DateTime        string `json:"date_time"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	SessionType     string `json:"session_type,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

type WaitingListRequest struct {
	PatientID     string `json:"patient_id"`
	TherapistID   string `json:"therapist_id"`
	PreferredFrom string `json:"preferred_from"`
	PreferredTo   string `json:"preferred_to"`
}

type FeedbackRequest struct {
	AppointmentID string `json:"appointment_id"`
	Rating        int    `json:"rating"`
	Comment       string `json:"comment,omitempty"`
}

type RegisterPatientRequest struct {
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	Phone            string   `json:"phone,omitempty"`
	DateOfBirth      string   `json:"date_of_birth,omitempty"`
	EmergencyContact string   `json:"emergency_contact,omitempty"`
	Conditions       []string `json:"conditions,omitempty"`
	Medications      []string `json:"medications,omitempty"`
	Allergies        []string `json:"allergies,omitempty"`
}

// CreateAppointment books a confirmed session for a known patient and therapist.
// The therapist's calendar is locked for the duration of the write so two
// concurrent bookings cannot both pass the availability check.
func (s *Service) CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (appt *Appointment, err error) {
	ctx, finish := s.begin(ctx, "create",
		attribute.String("therapy.patient_id", req.PatientID),
		attribute.String("therapy.therapist_id", req.TherapistID),
	)
	defer func() { finish(err) }()

	patientID, err := parseID("patient_id", req.PatientID)
	if err != nil {
		return nil, err
	}
	therapistID, err := parseID("therapist_id", req.TherapistID)
	if err != nil {
		return nil, err
	}
	startsAt, err := s.parseDateTime("date_time", req.DateTime)
	if err != nil {
		return nil, err
	}
	duration, err := s.sessionMinutes(req.DurationMinutes)
	if err != nil {
		return nil, err
	}
	sessionType, err := parseSessionType(req.SessionType)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if startsAt.Before(now) {
		return nil, validationErrorf("date_time %s is in the past", req.DateTime)
	}
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	therapist, err := s.requireTherapist(ctx, therapistID)
	if err != nil {
		return nil, err
	}

	err = s.withCalendarLock(ctx, therapistID, func(lockCtx context.Context) error {
		if s.cfg.EnforceAvailability {
			if err := s.checkSlotOpen(lockCtx, *therapist, startsAt, duration, uuid.Nil, now); err != nil {
				return err
			}
		}

		created, err := s.repo.InsertAppointment(lockCtx, Appointment{
			ID:              s.newID(),
			PatientID:       patientID,
			TherapistID:     therapistID,
			StartsAt:        startsAt.UTC(),
			DurationMinutes: duration,
			Status:          StatusConfirmed,
			SessionType:     sessionType,
			Notes:           strings.TrimSpace(req.Notes),
			CreatedAt:       now.UTC(),
			UpdatedAt:       now.UTC(),
		})
		if err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		appt = created

		s.logEvent(lockCtx, &created.ID, EventAppointmentCreated, map[string]any{
			"patient_id":   patientID.String(),
			"therapist_id": therapistID.String(),
			"starts_at":    created.StartsAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// CancelAppointment marks an appointment cancelled. Cancelling twice is a no-op.
func (s *Service) CancelAppointment(ctx context.Context, id string) (appt *Appointment, err error) {
	ctx, finish := s.begin(ctx, "cancel", attribute.String("therapy.appointment_id", id))
	defer func() { finish(err) }()

	apptID, err := parseID("appointment_id", id)
	if err != nil {
		return nil, err
	}
	current, err := s.loadAppointment(ctx, apptID)
	if err != nil {
		return nil, err
	}

	err = s.withCalendarLock(ctx, current.TherapistID, func(lockCtx context.Context) error {
		// re-read inside the critical section
		current, err := s.loadAppointment(lockCtx, apptID)
		if err != nil {
			return err
		}
		switch current.Status {
		case StatusCancelled:
			appt = current
			return nil
		case StatusCompleted:
			return invalidStateErrorf("appointment %s is completed and cannot be cancelled", apptID)
		}

		current.Status = StatusCancelled
		current.UpdatedAt = s.now().UTC()
		updated, err := s.repo.UpdateAppointment(lockCtx, *current)
		if err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}
		appt = updated
		s.logEvent(lockCtx, &updated.ID, EventAppointmentCancelled, map[string]any{})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// RescheduleAppointment moves an appointment to a new start time, keeping its id.
// The record passes through the rescheduled status before settling on confirmed.
func (s *Service) RescheduleAppointment(ctx context.Context, id, newDateTime string) (appt *Appointment, err error) {
	ctx, finish := s.begin(ctx, "reschedule", attribute.String("therapy.appointment_id", id))
	defer func() { finish(err) }()

	apptID, err := parseID("appointment_id", id)
	if err != nil {
		return nil, err
	}
	startsAt, err := s.parseDateTime("date_time", newDateTime)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if startsAt.Before(now) {
		return nil, validationErrorf("date_time %s is in the past", newDateTime)
	}

	current, err := s.loadAppointment(ctx, apptID)
	if err != nil {
		return nil, err
	}
	therapist, err := s.requireTherapist(ctx, current.TherapistID)
	if err != nil {
		return nil, err
	}

	err = s.withCalendarLock(ctx, current.TherapistID, func(lockCtx context.Context) error {
		current, err := s.loadAppointment(lockCtx, apptID)
		if err != nil {
			return err
		}
		if current.Status == StatusCancelled || current.Status == StatusCompleted {
			return invalidStateErrorf("appointment %s is %s and cannot be rescheduled", apptID, current.Status)
		}
		if s.cfg.EnforceAvailability {
			if err := s.checkSlotOpen(lockCtx, *therapist, startsAt, current.DurationMinutes, apptID, now); err != nil {
				return err
			}
		}

		previous := current.StartsAt
		current.StartsAt = startsAt.UTC()
		current.Status = StatusRescheduled
		current.UpdatedAt = now.UTC()
		moved, err := s.repo.UpdateAppointment(lockCtx, *current)
		if err != nil {
			return fmt.Errorf("reschedule appointment: %w", err)
		}
		s.logEvent(lockCtx, &moved.ID, EventAppointmentRescheduled, map[string]any{
			"from": previous,
			"to":   moved.StartsAt,
		})

		moved.Status = StatusConfirmed
		confirmed, err := s.repo.UpdateAppointment(lockCtx, *moved)
		if err != nil {
			return fmt.Errorf("confirm rescheduled appointment: %w", err)
		}
		s.logEvent(lockCtx, &confirmed.ID, EventAppointmentConfirmed, map[string]any{
			"reason": "rescheduled",
		})
		appt = confirmed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// CompleteAppointment records that a session took place.
func (s *Service) CompleteAppointment(ctx context.Context, id string) (appt *Appointment, err error) {
	ctx, finish := s.begin(ctx, "complete", attribute.String("therapy.appointment_id", id))
	defer func() { finish(err) }()

	apptID, err := parseID("appointment_id", id)
	if err != nil {
		return nil, err
	}
	current, err := s.loadAppointment(ctx, apptID)
	if err != nil {
		return nil, err
	}
	return s.markCompleted(ctx, apptID, current.TherapistID, s.now(), completedManually)
}

// CompletePastAppointments moves every confirmed appointment whose session has
// ended to completed and reports how many changed.
func (s *Service) CompletePastAppointments(ctx context.Context) (int, error) {
	all, err := s.repo.ListAppointments(ctx, AppointmentFilter{})
	if err != nil {
		return 0, fmt.Errorf("list appointments: %w", err)
	}

	now := s.now()
	completed := 0
	for _, a := range all {
		if a.Status != StatusConfirmed || a.EndsAt().After(now) {
			continue
		}
		if _, err := s.markCompleted(ctx, a.ID, a.TherapistID, now, completedBySweeper); err != nil {
			if KindOf(err) == KindInvalidState {
				// changed since it was listed
				s.logger.Debug("skipping appointment", "appointment_id", a.ID, "reason", err)
				continue
			}
			s.logger.Error("failed to complete appointment", "appointment_id", a.ID, "error", err)
			continue
		}
		completed++
	}
	return completed, nil
}

// markCompleted re-reads the appointment under its therapist's lock so a
// concurrent cancel or reschedule is never overwritten. The sweeper only
// completes sessions that have ended; a manual completion needs the start.
func (s *Service) markCompleted(ctx context.Context, apptID, therapistID uuid.UUID, now time.Time, reason string) (appt *Appointment, err error) {
	err = s.withCalendarLock(ctx, therapistID, func(lockCtx context.Context) error {
		current, err := s.loadAppointment(lockCtx, apptID)
		if err != nil {
			return err
		}
		switch {
		case current.Status == StatusCompleted && reason == completedManually:
			appt = current
			return nil
		case current.Status != StatusConfirmed && current.Status != StatusPending:
			return invalidStateErrorf("appointment %s is %s and cannot be completed", apptID, current.Status)
		case current.StartsAt.After(now):
			return invalidStateErrorf("appointment %s has not started yet", apptID)
		case reason == completedBySweeper && current.EndsAt().After(now):
			return invalidStateErrorf("appointment %s has not ended yet", apptID)
		}

		current.Status = StatusCompleted
		current.UpdatedAt = now.UTC()
		updated, err := s.repo.UpdateAppointment(lockCtx, *current)
		if err != nil {
			return fmt.Errorf("complete appointment: %w", err)
		}
		s.logEvent(lockCtx, &updated.ID, EventAppointmentCompleted, map[string]any{"reason": reason})
		appt = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// AddToWaitingList queues a patient for a therapist within a preferred date range.
func (s *Service) AddToWaitingList(ctx context.Context, req WaitingListRequest) (entry *WaitingListEntry, err error) {
	ctx, finish := s.begin(ctx, "waiting_list_add",
		attribute.String("therapy.patient_id", req.PatientID),
		attribute.String("therapy.therapist_id", req.TherapistID),
	)
	defer func() { finish(err) }()

	patientID, err := parseID("patient_id", req.PatientID)
	if err != nil {
		return nil, err
	}
	therapistID, err := parseID("therapist_id", req.TherapistID)
	if err != nil {
		return nil, err
	}
	from, err := s.parseDateOrTime("preferred_from", req.PreferredFrom)
	if err != nil {
		return nil, err
	}
	to, err := s.parseDateOrTime("preferred_to", req.PreferredTo)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, validationErrorf("preferred_to must not be before preferred_from")
	}
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	if _, err := s.requireTherapist(ctx, therapistID); err != nil {
		return nil, err
	}

	entry, err = s.repo.InsertWaitingListEntry(ctx, WaitingListEntry{
		ID:            s.newID(),
		PatientID:     patientID,
		TherapistID:   therapistID,
		PreferredFrom: from.UTC(),
		PreferredTo:   to.UTC(),
		Status:        WaitingListWaiting,
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("insert waiting list entry: %w", err)
	}
	s.logEvent(ctx, nil, EventWaitingListAdded, map[string]any{
		"entry_id":     entry.ID.String(),
		"patient_id":   patientID.String(),
		"therapist_id": therapistID.String(),
	})
	return entry, nil
}

func (s *Service) RemoveFromWaitingList(ctx context.Context, id string) (err error) {
	ctx, finish := s.begin(ctx, "waiting_list_remove", attribute.String("therapy.entry_id", id))
	defer func() { finish(err) }()

	entryID, err := parseID("entry_id", id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteWaitingListEntry(ctx, entryID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrWaitingListEntryNotFound
		}
		return fmt.Errorf("delete waiting list entry: %w", err)
	}
	s.logEvent(ctx, nil, EventWaitingListRemoved, map[string]any{"entry_id": entryID.String()})
	return nil
}

// SubmitFeedback rates a completed session. Each appointment takes one feedback.
func (s *Service) SubmitFeedback(ctx context.Context, req FeedbackRequest) (fb *Feedback, err error) {
	ctx, finish := s.begin(ctx, "feedback", attribute.String("therapy.appointment_id", req.AppointmentID))
	defer func() { finish(err) }()

	apptID, err := parseID("appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, validationErrorf("rating must be between 1 and 5, got %d", req.Rating)
	}
	comment := strings.TrimSpace(req.Comment)
	if len(comment) > maxCommentLength {
		return nil, validationErrorf("comment exceeds %d characters", maxCommentLength)
	}

	appt, err := s.loadAppointment(ctx, apptID)
	if err != nil {
		return nil, err
	}

	err = s.withCalendarLock(ctx, appt.TherapistID, func(lockCtx context.Context) error {
		appt, err := s.loadAppointment(lockCtx, apptID)
		if err != nil {
			return err
		}
		if appt.Status != StatusCompleted {
			return invalidStateErrorf("feedback requires a completed appointment, %s is %s", apptID, appt.Status)
		}
		if _, err := s.repo.GetFeedbackForAppointment(lockCtx, apptID); err == nil {
			return ErrFeedbackExists
		} else if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("load feedback: %w", err)
		}

		inserted, err := s.repo.InsertFeedback(lockCtx, Feedback{
			ID:            s.newID(),
			AppointmentID: apptID,
			Rating:        req.Rating,
			Comment:       comment,
			SubmittedAt:   s.now().UTC(),
		})
		if errors.Is(err, ErrFeedbackExists) {
			return ErrFeedbackExists
		}
		if err != nil {
			return fmt.Errorf("insert feedback: %w", err)
		}
		fb = inserted
		s.logEvent(lockCtx, &apptID, EventFeedbackSubmitted, map[string]any{"rating": req.Rating})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fb, nil
}

// RegisterPatient adds a patient created during onboarding to the overlay.
func (s *Service) RegisterPatient(ctx context.Context, req RegisterPatientRequest) (p *Patient, err error) {
	ctx, finish := s.begin(ctx, "register_patient")
	defer func() { finish(err) }()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationErrorf("name is required")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !isValidEmail(email) {
		return nil, validationErrorf("email %q is not a valid email address", req.Email)
	}
	var dob time.Time
	if req.DateOfBirth != "" {
		dob, err = time.ParseInLocation("2006-01-02", req.DateOfBirth, time.UTC)
		if err != nil {
			return nil, validationErrorf("date_of_birth must be YYYY-MM-DD")
		}
	}

	p, err = s.repo.CreatePatient(ctx, Patient{
		ID:               s.newID(),
		Name:             name,
		Email:            email,
		Phone:            strings.TrimSpace(req.Phone),
		DateOfBirth:      dob,
		EmergencyContact: strings.TrimSpace(req.EmergencyContact),
		History: MedicalHistory{
			Conditions:  req.Conditions,
			Medications: req.Medications,
			Allergies:   req.Allergies,
		},
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	s.logEvent(ctx, nil, EventPatientRegistered, map[string]any{"patient_id": p.ID.String()})
	return p, nil
}

// Queries

func (s *Service) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	apptID, err := parseID("appointment_id", id)
	if err != nil {
		return nil, err
	}
	return s.loadAppointment(ctx, apptID)
}

func (s *Service) ListAppointments(ctx context.Context, patientID, therapistID string) ([]Appointment, error) {
	var filter AppointmentFilter
	var err error
	if patientID != "" {
		if filter.PatientID, err = parseID("patient_id", patientID); err != nil {
			return nil, err
		}
	}
	if therapistID != "" {
		if filter.TherapistID, err = parseID("therapist_id", therapistID); err != nil {
			return nil, err
		}
	}
	appts, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// Buckets classifies one patient's appointments against the service clock.
func (s *Service) Buckets(ctx context.Context, patientID string) (*Buckets, error) {
	id, err := parseID("patient_id", patientID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetPatientByID(ctx, id); err != nil {
		return nil, err
	}
	appts, err := s.repo.ListAppointments(ctx, AppointmentFilter{PatientID: id})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	waiting, err := s.repo.ListWaitingList(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list waiting list: %w", err)
	}
	b := Classify(appts, waiting, s.now())
	return &b, nil
}

// AvailableSlots lists open slots for a therapist on a YYYY-MM-DD date in the
// configured timezone. minutes <= 0 selects the default session length.
func (s *Service) AvailableSlots(ctx context.Context, therapistID, date string, minutes int) ([]Slot, error) {
	id, err := parseID("therapist_id", therapistID)
	if err != nil {
		return nil, err
	}
	day, err := time.ParseInLocation("2006-01-02", date, s.cfg.Location)
	if err != nil {
		return nil, validationErrorf("date must be YYYY-MM-DD, got %q", date)
	}
	duration, err := s.sessionMinutes(minutes)
	if err != nil {
		return nil, err
	}
	therapist, err := s.repo.GetTherapistByID(ctx, id)
	if err != nil {
		return nil, err
	}
	appts, err := s.repo.ListAppointments(ctx, AppointmentFilter{TherapistID: id})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	slots := AvailableSlots(*therapist, day, time.Duration(duration)*time.Minute, appts, s.now())
	s.metrics.ObserveSlots(len(slots))
	return slots, nil
}

func (s *Service) ListWaitingList(ctx context.Context, patientID string) ([]WaitingListEntry, error) {
	var id uuid.UUID
	if patientID != "" {
		var err error
		if id, err = parseID("patient_id", patientID); err != nil {
			return nil, err
		}
	}
	entries, err := s.repo.ListWaitingList(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list waiting list: %w", err)
	}
	return entries, nil
}

func (s *Service) GetPatient(ctx context.Context, id string) (*Patient, error) {
	patientID, err := parseID("patient_id", id)
	if err != nil {
		return nil, err
	}
	return s.repo.GetPatientByID(ctx, patientID)
}

func (s *Service) ListPatients(ctx context.Context) ([]Patient, error) {
	return s.repo.ListPatients(ctx)
}

func (s *Service) GetTherapist(ctx context.Context, id string) (*Therapist, error) {
	therapistID, err := parseID("therapist_id", id)
	if err != nil {
		return nil, err
	}
	return s.repo.GetTherapistByID(ctx, therapistID)
}

func (s *Service) ListTherapists(ctx context.Context) ([]Therapist, error) {
	return s.repo.ListTherapists(ctx)
}

// Helpers

func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "appointment."+op)
	span.SetAttributes(attrs...)
	start := time.Now()
	return ctx, func(err error) {
		s.finish(span, op, start, err)
	}
}

func (s *Service) finish(span trace.Span, op string, start time.Time, err error) {
	defer span.End()

	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if outcome == string(KindInternal) {
			s.logger.Error("booking command failed", "operation", op, "error", err)
		} else {
			s.logger.Debug("booking command rejected", "operation", op, "kind", outcome, "error", err)
		}
	}
	s.metrics.ObserveCommand(op, outcome, time.Since(start))
}

func (s *Service) withCalendarLock(ctx context.Context, therapistID uuid.UUID, fn func(ctx context.Context) error) error {
	err := s.locker.WithLock(ctx, "therapist:"+therapistID.String(), fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return fmt.Errorf("therapist %s calendar: %w", therapistID, err)
	}
	return err
}

func (s *Service) checkSlotOpen(ctx context.Context, therapist Therapist, startsAt time.Time, minutes int, ignore uuid.UUID, now time.Time) error {
	appts, err := s.repo.ListAppointments(ctx, AppointmentFilter{TherapistID: therapist.ID})
	if err != nil {
		return fmt.Errorf("list therapist appointments: %w", err)
	}
	others := appts[:0:0]
	for _, a := range appts {
		if a.ID != ignore {
			others = append(others, a)
		}
	}
	local := startsAt.In(s.cfg.Location)
	if !SlotOpen(therapist, local, time.Duration(minutes)*time.Minute, others, now) {
		return invalidStateErrorf("therapist has no open slot at %s", local.Format(time.RFC3339))
	}
	return nil
}

func (s *Service) loadAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

// requirePatient maps an unknown patient to a validation failure: the caller
// supplied a bad reference rather than addressing a missing resource.
func (s *Service) requirePatient(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetPatientByID(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return validationErrorf("unknown patient_id %s", id)
		}
		return fmt.Errorf("load patient: %w", err)
	}
	return nil
}

func (s *Service) requireTherapist(ctx context.Context, id uuid.UUID) (*Therapist, error) {
	t, err := s.repo.GetTherapistByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, validationErrorf("unknown therapist_id %s", id)
		}
		return nil, fmt.Errorf("load therapist: %w", err)
	}
	return t, nil
}

func (s *Service) sessionMinutes(requested int) (int, error) {
	if requested == 0 {
		return s.cfg.SessionMinutes, nil
	}
	if requested < 0 || requested > maxSessionMinutes {
		return 0, validationErrorf("duration_minutes must be between 1 and %d", maxSessionMinutes)
	}
	return requested, nil
}

var dateTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04"}

// parseDateTime accepts RFC 3339 or a zone-less local time in the configured timezone.
func (s *Service) parseDateTime(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, validationErrorf("%s is required", field)
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, s.cfg.Location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, validationErrorf("%s %q is not a valid date-time", field, raw)
}

func (s *Service) parseDateOrTime(field, raw string) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), s.cfg.Location); err == nil {
		return t, nil
	}
	return s.parseDateTime(field, raw)
}

func (s *Service) logEvent(ctx context.Context, appointmentID *uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", "event_type", eventType, "error", err)
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     s.now().UTC(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("failed to insert event log", "event_type", eventType, "error", err)
	}
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, validationErrorf("%s must be a valid UUID", field)
	}
	return id, nil
}

func parseSessionType(raw string) (SessionType, error) {
	switch SessionType(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SessionVideo:
		return SessionVideo, nil
	case SessionInPerson:
		return SessionInPerson, nil
	}
	return "", validationErrorf("session_type must be %q or %q", SessionVideo, SessionInPerson)
}

func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}
