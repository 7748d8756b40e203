package appointment

import (
	"time"

	"github.com/google/uuid"
)

const DefaultSessionMinutes = 60

// AvailableSlots returns the open fixed-width slots of therapist on the
// calendar day of date (interpreted in date's location), earliest first.
//
// Days before now's calendar day yield nothing, as do slots on the current
// day that start before now. Appointments of other therapists, cancelled
// appointments and appointments on other days are ignored.
func AvailableSlots(therapist Therapist, date time.Time, duration time.Duration, appointments []Appointment, now time.Time) []Slot {
	slots := []Slot{}
	if duration <= 0 {
		return slots
	}

	loc := date.Location()
	day := startOfDay(date)
	today := startOfDay(now.In(loc))
	if day.Before(today) {
		return slots
	}

	ranges := therapist.Availability.For(day.Weekday())
	if len(ranges) == 0 {
		return slots
	}

	busy := busyIntervals(therapist.ID, day, appointments)

	for _, r := range ranges {
		for _, free := range subtract(Slot{Start: r.Start.On(day), End: r.End.On(day)}, busy) {
			for start := free.Start; !start.Add(duration).After(free.End); start = start.Add(duration) {
				if start.Before(now) {
					continue
				}
				slots = append(slots, Slot{Start: start, End: start.Add(duration)})
			}
		}
	}
	return slots
}

// SlotOpen reports whether [start, start+duration) is one of the available slots.
func SlotOpen(therapist Therapist, start time.Time, duration time.Duration, appointments []Appointment, now time.Time) bool {
	for _, s := range AvailableSlots(therapist, start, duration, appointments, now) {
		if s.Start.Equal(start) {
			return true
		}
	}
	return false
}

func busyIntervals(therapistID uuid.UUID, day time.Time, appointments []Appointment) []Slot {
	loc := day.Location()
	next := day.AddDate(0, 0, 1)

	var busy []Slot
	for _, a := range appointments {
		if a.TherapistID != therapistID || !a.Active() {
			continue
		}
		start, end := a.StartsAt.In(loc), a.EndsAt().In(loc)
		if !start.Before(next) || !end.After(day) {
			continue
		}
		busy = append(busy, Slot{Start: start, End: end})
	}
	return busy
}

// subtract removes every busy interval from free and returns what is left in order.
func subtract(free Slot, busy []Slot) []Slot {
	remaining := []Slot{free}
	for _, b := range busy {
		var next []Slot
		for _, r := range remaining {
			if !b.Start.Before(r.End) || !b.End.After(r.Start) {
				next = append(next, r)
				continue
			}
			if b.Start.After(r.Start) {
				next = append(next, Slot{Start: r.Start, End: b.Start})
			}
			if b.End.Before(r.End) {
				next = append(next, Slot{Start: b.End, End: r.End})
			}
		}
		remaining = next
	}
	return remaining
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
