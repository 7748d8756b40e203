package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/therapy-scheduling/internal/config"
	redisclient "github.com/hackgods/therapy-scheduling/internal/redis"
	"github.com/hackgods/therapy-scheduling/pkg/logging"
)

// slowRepository widens the window between a command's read and its write.
type slowRepository struct {
	*MemoryRepository
	delay time.Duration

	gateOnce sync.Once
	listed   chan struct{} // closed after the first ListAppointments
	proceed  chan struct{} // the first ListAppointments returns once closed
}

func (r *slowRepository) InsertAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	time.Sleep(r.delay)
	return r.MemoryRepository.InsertAppointment(ctx, a)
}

func (r *slowRepository) InsertFeedback(ctx context.Context, f Feedback) (*Feedback, error) {
	time.Sleep(r.delay)
	return r.MemoryRepository.InsertFeedback(ctx, f)
}

func (r *slowRepository) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error) {
	out, err := r.MemoryRepository.ListAppointments(ctx, filter)
	if r.listed != nil {
		r.gateOnce.Do(func() {
			close(r.listed)
			<-r.proceed
		})
	}
	return out, err
}

func newServiceOver(repo Repository, clock *testClock, enforce bool) *Service {
	cfg := config.Config{
		Location:            time.UTC,
		SessionMinutes:      60,
		EnforceAvailability: enforce,
	}
	return NewService(repo, redisclient.NewLocalLocker(), cfg,
		WithClock(clock.Now),
		WithIDGenerator(sequentialIDs()),
		WithLogger(logging.Discard()),
	)
}

func TestConcurrentCreates_AllValidBookingsSucceed(t *testing.T) {
	repo := &slowRepository{MemoryRepository: NewMemoryRepository(testSeed()), delay: 2 * time.Millisecond}
	svc := newServiceOver(repo, &testClock{now: testNow}, false)
	ctx := context.Background()

	const n = 20
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := at(3+i/8, 9+i%8, 0)
			_, errs[i] = svc.CreateAppointment(ctx, createReq(start.Format(time.RFC3339)))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "booking %d", i)
	}
	booked, err := svc.ListAppointments(ctx, "", testTherapistID.String())
	require.NoError(t, err)
	assert.Len(t, booked, n)
}

func TestConcurrentCreates_SameSlotBookedOnce(t *testing.T) {
	repo := &slowRepository{MemoryRepository: NewMemoryRepository(testSeed()), delay: 2 * time.Millisecond}
	svc := newServiceOver(repo, &testClock{now: testNow}, true)
	ctx := context.Background()

	// Monday 10:00, inside the 09:00-12:00 window
	slot := at(9, 10, 0).Format(time.RFC3339)

	const n = 10
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateAppointment(ctx, createReq(slot))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidState)
	}
	assert.Equal(t, 1, ok)
}

func TestSweepDoesNotOverwriteConcurrentCancel(t *testing.T) {
	repo := &slowRepository{
		MemoryRepository: NewMemoryRepository(testSeed()),
		listed:           make(chan struct{}),
		proceed:          make(chan struct{}),
	}
	clock := &testClock{now: testNow}
	svc := newServiceOver(repo, clock, false)
	ctx := context.Background()

	created, err := svc.CreateAppointment(ctx, createReq("2026-03-02T10:00:00Z"))
	require.NoError(t, err)
	clock.now = at(2, 11, 0)

	type sweep struct {
		n   int
		err error
	}
	done := make(chan sweep, 1)
	go func() {
		n, err := svc.CompletePastAppointments(ctx)
		done <- sweep{n, err}
	}()

	// the sweeper has listed the appointment as confirmed and ended
	<-repo.listed
	cancelled, err := svc.CancelAppointment(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	close(repo.proceed)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, 0, res.n)

	got, err := svc.GetAppointment(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, []string{EventAppointmentCreated, EventAppointmentCancelled}, eventTypes(repo.MemoryRepository))
}

func TestConcurrentFeedback_OnlyOneAccepted(t *testing.T) {
	done := appt(at(1, 10, 0), StatusCompleted)
	seed := testSeed()
	seed.Appointments = []Appointment{done}
	repo := &slowRepository{MemoryRepository: NewMemoryRepository(seed), delay: 2 * time.Millisecond}
	svc := newServiceOver(repo, &testClock{now: testNow}, false)
	ctx := context.Background()

	const n = 5
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.SubmitFeedback(ctx, FeedbackRequest{AppointmentID: done.ID.String(), Rating: 1 + i})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrFeedbackExists)
	}
	assert.Equal(t, 1, ok)
}
