package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/therapy-scheduling/internal/config"
)

func createReq(dateTime string) CreateAppointmentRequest {
	return CreateAppointmentRequest{
		PatientID:   testPatientID.String(),
		TherapistID: testTherapistID.String(),
		DateTime:    dateTime,
	}
}

func eventTypes(repo *MemoryRepository) []string {
	var out []string
	for _, ev := range repo.Events() {
		out = append(out, ev.EventType)
	}
	return out
}

func TestCreateAppointment_Confirmed(t *testing.T) {
	svc, repo, _ := newTestService(t, testSeed())
	ctx := context.Background()

	created, err := svc.CreateAppointment(ctx, createReq("2026-03-02T10:00:00Z"))
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, created.Status)
	assert.Equal(t, at(2, 10, 0), created.StartsAt)
	assert.Equal(t, 60, created.DurationMinutes)
	assert.Equal(t, SessionVideo, created.SessionType)
	assert.Equal(t, testNow, created.CreatedAt)
	assert.Equal(t, []string{EventAppointmentCreated}, eventTypes(repo))

	got, err := svc.GetAppointment(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestCreateAppointment_ValidationErrors(t *testing.T) {
	svc, _, _ := newTestService(t, testSeed())
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateAppointmentRequest
	}{
		{"unknown patient", CreateAppointmentRequest{PatientID: uuid.NewString(), TherapistID: testTherapistID.String(), DateTime: "2026-03-02T10:00:00Z"}},
		{"unknown therapist", CreateAppointmentRequest{PatientID: testPatientID.String(), TherapistID: uuid.NewString(), DateTime: "2026-03-02T10:00:00Z"}},
		{"malformed patient id", CreateAppointmentRequest{PatientID: "nope", TherapistID: testTherapistID.String(), DateTime: "2026-03-02T10:00:00Z"}},
		{"unparseable date", createReq("next monday at ten")},
		{"missing date", createReq("")},
		{"in the past", createReq("2026-03-01T10:00:00Z")},
		{"bad session type", CreateAppointmentRequest{PatientID: testPatientID.String(), TherapistID: testTherapistID.String(), DateTime: "2026-03-02T10:00:00Z", SessionType: "carrier pigeon"}},
		{"too long", CreateAppointmentRequest{PatientID: testPatientID.String(), TherapistID: testTherapistID.String(), DateTime: "2026-03-02T10:00:00Z", DurationMinutes: 9 * 60}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAppointment(ctx, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestCreateAppointment_AcceptsLocalLayouts(t *testing.T) {
	svc, _, _ := newTestService(t, testSeed(), func(c *config.Config) {
		c.Location = time.FixedZone("UTC-5", -5*60*60)
	})

	created, err := svc.CreateAppointment(context.Background(), createReq("2026-03-02 10:00"))
	require.NoError(t, err)
	assert.Equal(t, at(2, 15, 0), created.StartsAt)
	assert.Equal(t, time.UTC, created.StartsAt.Location())
}

func TestCreateThenCancel_RoundTrip(t *testing.T) {
	svc, repo, _ := newTestService(t, testSeed())
	ctx := context.Background()

	created, err := svc.CreateAppointment(ctx, createReq("2026-03-02T10:00:00Z"))
	require.NoError(t, err)

	cancelled, err := svc.CancelAppointment(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, created.ID, cancelled.ID)

	got, err := svc.GetAppointment(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)

	// second cancel is a no-op
	again, err := svc.CancelAppointment(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, again.Status)
	assert.Equal(t, []string{EventAppointmentCreated, EventAppointmentCancelled}, eventTypes(repo))
}

func TestCancelAppointment_Errors(t *testing.T) {
	done := appt(at(1, 10, 0), StatusCompleted)
	seed := testSeed()
	seed.Appointments = []Appointment{done}
	svc, _, _ := newTestService(t, seed)
	ctx := context.Background()

	_, err := svc.CancelAppointment(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = svc.CancelAppointment(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CancelAppointment(ctx, done.ID.String())
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelSeededAppointment_LeavesSeedUntouched(t *testing.T) {
	seeded := appt(at(4, 14, 0), StatusConfirmed)
	seed := testSeed()
	seed.Appointments = []Appointment{seeded}
	svc, _, _ := newTestService(t, seed)

	cancelled, err := svc.CancelAppointment(context.Background(), seeded.ID.String())
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, StatusConfirmed, seed.Appointments[0].Status)

	list, err := svc.ListAppointments(context.Background(), testPatientID.String(), "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, StatusCancelled, list[0].Status)
}

func TestRescheduleAppointment(t *testing.T) {
	svc, repo, _ := newTestService(t, testSeed())
	ctx := context.Background()

	created, err := svc.CreateAppointment(ctx, createReq("2026-03-02T10:00:00Z"))
	require.NoError(t, err)

	moved, err := svc.RescheduleAppointment(ctx, created.ID.String(), "2026-03-04T14:00:00Z")
	require.NoError(t, err)

	assert.Equal(t, created.ID, moved.ID)
	assert.Equal(t, at(4, 14, 0), moved.StartsAt)
	assert.Equal(t, StatusConfirmed, moved.Status)
	assert.Equal(t, []string{
		EventAppointmentCreated,
		EventAppointmentRescheduled,
		EventAppointmentConfirmed,
	}, eventTypes(repo))
}

func TestRescheduleAppointment_Errors(t *testing.T) {
	svc, _, _ := newTestService(t, testSeed())
	ctx := context.Background()

	_, err := svc.RescheduleAppointment(ctx, uuid.NewString(), "2026-03-04T14:00:00Z")
	assert.ErrorIs(t, err, ErrNotFound)

	created, err := svc.CreateAppointment(ctx, createReq("2026-03-02T10:00:00Z"))
	require.NoError(t, err)

	_, err = svc.RescheduleAppointment(ctx, created.ID.String(), "whenever")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CancelAppointment(ctx, created.ID.String())
	require.NoError(t, err)
	_, err = svc.RescheduleAppointment(ctx, created.ID.String(), "2026-03-04T14:00:00Z")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSubmitFeedback_RequiresCompleted(t *testing.T) {
	pending := appt(at(5, 10, 0), StatusPending)
	done := appt(at(1, 10, 0), StatusCompleted)
	seed := testSeed()
	seed.Appointments = []Appointment{pending, done}
	svc, _, _ := newTestService(t, seed)
	ctx := context.Background()

	_, err := svc.SubmitFeedback(ctx, FeedbackRequest{AppointmentID: pending.ID.String(), Rating: 4})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, KindInvalidState, KindOf(err))

	fb, err := svc.SubmitFeedback(ctx, FeedbackRequest{AppointmentID: done.ID.String(), Rating: 5, Comment: "  helpful  "})
	require.NoError(t, err)
	assert.Equal(t, 5, fb.Rating)
	assert.Equal(t, "helpful", fb.Comment)
	assert.Equal(t, done.ID, fb.AppointmentID)

	_, err = svc.SubmitFeedback(ctx, FeedbackRequest{AppointmentID: done.ID.String(), Rating: 3})
	assert.ErrorIs(t, err, ErrInvalidState, "only one feedback per appointment")

	_, err = svc.SubmitFeedback(ctx, FeedbackRequest{AppointmentID: done.ID.String(), Rating: 6})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.SubmitFeedback(ctx, FeedbackRequest{AppointmentID: uuid.NewString(), Rating: 3})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWaitingList(t *testing.T) {
	svc, _, _ := newTestService(t, testSeed())
	ctx := context.Background()

	_, err := svc.AddToWaitingList(ctx, WaitingListRequest{
		PatientID:     testPatientID.String(),
		TherapistID:   uuid.NewString(),
		PreferredFrom: "2026-03-02",
		PreferredTo:   "2026-03-09",
	})
	assert.ErrorIs(t, err, ErrValidation, "unknown therapist is a validation failure")

	_, err = svc.AddToWaitingList(ctx, WaitingListRequest{
		PatientID:     testPatientID.String(),
		TherapistID:   testTherapistID.String(),
		PreferredFrom: "2026-03-09",
		PreferredTo:   "2026-03-02",
	})
	assert.ErrorIs(t, err, ErrValidation, "inverted range")

	entry, err := svc.AddToWaitingList(ctx, WaitingListRequest{
		PatientID:     testPatientID.String(),
		TherapistID:   testTherapistID.String(),
		PreferredFrom: "2026-03-02",
		PreferredTo:   "2026-03-09T18:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, WaitingListWaiting, entry.Status)
	assert.Equal(t, at(2, 0, 0), entry.PreferredFrom)

	list, err := svc.ListWaitingList(ctx, testPatientID.String())
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, svc.RemoveFromWaitingList(ctx, entry.ID.String()))
	err = svc.RemoveFromWaitingList(ctx, entry.ID.String())
	assert.ErrorIs(t, err, ErrWaitingListEntryNotFound)

	list, err = svc.ListWaitingList(ctx, testPatientID.String())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBuckets_UsesServiceClock(t *testing.T) {
	svc, _, clock := newTestService(t, testSeed())
	ctx := context.Background()

	created, err := svc.CreateAppointment(ctx, createReq("2026-03-02T10:00:00Z"))
	require.NoError(t, err)
	_, err = svc.AddToWaitingList(ctx, WaitingListRequest{
		PatientID:     testPatientID.String(),
		TherapistID:   otherTherapist.String(),
		PreferredFrom: "2026-03-02",
		PreferredTo:   "2026-03-20",
	})
	require.NoError(t, err)

	b, err := svc.Buckets(ctx, testPatientID.String())
	require.NoError(t, err)
	require.Len(t, b.Upcoming, 1)
	assert.Equal(t, created.ID, b.Upcoming[0].ID)
	assert.Len(t, b.WaitingList, 1)

	clock.now = at(2, 10, 0)
	b, err = svc.Buckets(ctx, testPatientID.String())
	require.NoError(t, err)
	assert.Len(t, b.Upcoming, 1, "start == now is still upcoming")

	clock.now = at(2, 10, 1)
	b, err = svc.Buckets(ctx, testPatientID.String())
	require.NoError(t, err)
	assert.Empty(t, b.Upcoming)
	assert.Len(t, b.Past, 1)

	_, err = svc.Buckets(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestAvailableSlots_ReflectsBookings(t *testing.T) {
	svc, _, _ := newTestService(t, testSeed())
	ctx := context.Background()

	_, err := svc.CreateAppointment(ctx, createReq("2026-03-02T10:00:00Z"))
	require.NoError(t, err)

	slots, err := svc.AvailableSlots(ctx, testTherapistID.String(), "2026-03-02", 0)
	require.NoError(t, err)
	assert.Equal(t, []Slot{
		{Start: at(2, 9, 0), End: at(2, 10, 0)},
		{Start: at(2, 11, 0), End: at(2, 12, 0)},
	}, slots)

	_, err = svc.AvailableSlots(ctx, testTherapistID.String(), "03/02/2026", 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.AvailableSlots(ctx, uuid.NewString(), "2026-03-02", 0)
	assert.ErrorIs(t, err, ErrTherapistNotFound)
}

func TestEnforceAvailability(t *testing.T) {
	svc, _, _ := newTestService(t, testSeed(), func(c *config.Config) {
		c.EnforceAvailability = true
	})
	ctx := context.Background()

	first, err := svc.CreateAppointment(ctx, createReq("2026-03-02T10:00:00Z"))
	require.NoError(t, err)

	_, err = svc.CreateAppointment(ctx, createReq("2026-03-02T10:00:00Z"))
	assert.ErrorIs(t, err, ErrInvalidState, "double booking")

	_, err = svc.CreateAppointment(ctx, createReq("2026-03-03T10:00:00Z"))
	assert.ErrorIs(t, err, ErrInvalidState, "no hours on Tuesday")

	// moving within its own slot's neighbourhood ignores itself
	moved, err := svc.RescheduleAppointment(ctx, first.ID.String(), "2026-03-02T11:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, at(2, 11, 0), moved.StartsAt)
}

func TestCompleteAppointments(t *testing.T) {
	svc, _, clock := newTestService(t, testSeed())
	ctx := context.Background()

	created, err := svc.CreateAppointment(ctx, createReq("2026-03-02T10:00:00Z"))
	require.NoError(t, err)

	_, err = svc.CompleteAppointment(ctx, created.ID.String())
	assert.ErrorIs(t, err, ErrInvalidState, "not started yet")

	clock.now = at(2, 10, 30)
	n, err := svc.CompletePastAppointments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "session still running")

	clock.now = at(2, 11, 0)
	n, err = svc.CompletePastAppointments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.GetAppointment(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	fb, err := svc.SubmitFeedback(ctx, FeedbackRequest{AppointmentID: created.ID.String(), Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, fb.Rating)
}

func TestRegisterPatient_CanBook(t *testing.T) {
	svc, _, _ := newTestService(t, testSeed())
	ctx := context.Background()

	_, err := svc.RegisterPatient(ctx, RegisterPatientRequest{Name: "Kim", Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrValidation)

	p, err := svc.RegisterPatient(ctx, RegisterPatientRequest{
		Name:        "Kim Park",
		Email:       "Kim@Example.com",
		DateOfBirth: "1990-05-17",
		Conditions:  []string{"anxiety"},
	})
	require.NoError(t, err)
	assert.Equal(t, "kim@example.com", p.Email)

	patients, err := svc.ListPatients(ctx)
	require.NoError(t, err)
	assert.Len(t, patients, 2)

	_, err = svc.CreateAppointment(ctx, CreateAppointmentRequest{
		PatientID:   p.ID.String(),
		TherapistID: testTherapistID.String(),
		DateTime:    "2026-03-02T11:00:00Z",
	})
	require.NoError(t, err)
}

func TestDeterministicGivenSameState(t *testing.T) {
	run := func() *Appointment {
		svc, _, _ := newTestService(t, testSeed())
		a, err := svc.CreateAppointment(context.Background(), createReq("2026-03-02T10:00:00Z"))
		require.NoError(t, err)
		return a
	}
	assert.Equal(t, run(), run())
}
