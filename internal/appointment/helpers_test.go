package appointment

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/therapy-scheduling/internal/config"
	redisclient "github.com/hackgods/therapy-scheduling/internal/redis"
	"github.com/hackgods/therapy-scheduling/pkg/logging"
)

// 2026-03-02 is a Monday.
var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

var (
	testPatientID   = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testTherapistID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	otherTherapist  = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

func testTherapist() Therapist {
	return Therapist{
		ID:             testTherapistID,
		Name:           "Dr. Ada Morgan",
		Specialization: "Anxiety",
		Availability: WeeklyAvailability{
			time.Monday:    {{Start: NewClock(9, 0), End: NewClock(12, 0)}},
			time.Wednesday: {{Start: NewClock(13, 0), End: NewClock(17, 0)}},
		},
	}
}

func testSeed() Seed {
	return Seed{
		Patients: []Patient{{
			ID:      testPatientID,
			Name:    "Sam Rivera",
			Email:   "sam@example.com",
			History: MedicalHistory{Conditions: []string{"insomnia"}},
		}},
		Therapists: []Therapist{
			testTherapist(),
			{ID: otherTherapist, Name: "Dr. Lee", Availability: WeeklyAvailability{}},
		},
	}
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 3, day, hour, minute, 0, 0, time.UTC)
}

func sequentialIDs() func() uuid.UUID {
	var n atomic.Int64
	return func() uuid.UUID {
		return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n.Add(1)))
	}
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, seed Seed, mutate ...func(*config.Config)) (*Service, *MemoryRepository, *testClock) {
	t.Helper()
	cfg := config.Config{
		Location:       time.UTC,
		SessionMinutes: 60,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	repo := NewMemoryRepository(seed)
	clock := &testClock{now: testNow}
	svc := NewService(repo, redisclient.NewLocalLocker(), cfg,
		WithClock(clock.Now),
		WithIDGenerator(sequentialIDs()),
		WithLogger(logging.Discard()),
	)
	return svc, repo, clock
}
