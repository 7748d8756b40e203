package appointment

import (
	"sort"
	"time"
)

// Buckets partitions appointments relative to a reference instant.
type Buckets struct {
	Upcoming    []Appointment      `json:"upcoming"`
	Past        []Appointment      `json:"past"`
	Cancelled   []Appointment      `json:"cancelled"`
	WaitingList []WaitingListEntry `json:"waiting_list"`
}

// IsUpcoming reports whether a is still ahead of now and expected to happen.
// An appointment starting exactly at now is upcoming. Cancelled appointments
// are never upcoming.
func IsUpcoming(a Appointment, now time.Time) bool {
	if a.StartsAt.Before(now) {
		return false
	}
	return a.Status == StatusPending || a.Status == StatusConfirmed
}

// IsPast reports whether a started before now, whatever its status.
func IsPast(a Appointment, now time.Time) bool {
	return a.StartsAt.Before(now)
}

// Classify is the only place appointment buckets are computed. It reads no
// clock and leaves its inputs untouched.
func Classify(appointments []Appointment, waiting []WaitingListEntry, now time.Time) Buckets {
	b := Buckets{
		Upcoming:    []Appointment{},
		Past:        []Appointment{},
		Cancelled:   []Appointment{},
		WaitingList: make([]WaitingListEntry, len(waiting)),
	}

	for _, a := range appointments {
		switch {
		case IsPast(a, now):
			b.Past = append(b.Past, a)
		case IsUpcoming(a, now):
			b.Upcoming = append(b.Upcoming, a)
		}
		if a.Status == StatusCancelled {
			b.Cancelled = append(b.Cancelled, a)
		}
	}

	sort.SliceStable(b.Upcoming, func(i, j int) bool {
		return b.Upcoming[i].StartsAt.Before(b.Upcoming[j].StartsAt)
	})
	sort.SliceStable(b.Past, func(i, j int) bool {
		return b.Past[i].StartsAt.After(b.Past[j].StartsAt)
	})
	sort.SliceStable(b.Cancelled, func(i, j int) bool {
		return b.Cancelled[i].StartsAt.After(b.Cancelled[j].StartsAt)
	})

	copy(b.WaitingList, waiting)
	sort.SliceStable(b.WaitingList, func(i, j int) bool {
		return b.WaitingList[i].CreatedAt.Before(b.WaitingList[j].CreatedAt)
	})

	return b
}
