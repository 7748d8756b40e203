package fixtures

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
)

var fixtureNamespace = uuid.MustParse("a3f0c1d2-5e6b-4f70-8a91-b2c3d4e5f607")

var (
	conditions  = []string{"generalized anxiety", "insomnia", "major depression", "panic disorder", "PTSD", "social anxiety", "burnout", "ADHD", "grief"}
	medications = []string{"sertraline", "escitalopram", "bupropion", "melatonin", "propranolol", "trazodone"}
	allergies   = []string{"penicillin", "peanuts", "latex", "shellfish"}

	postTitles = []string{
		"Five grounding techniques for anxious moments",
		"Why sleep and mood are so closely linked",
		"Setting boundaries without guilt",
		"What to expect from your first therapy session",
		"Small habits that protect against burnout",
		"Talking to family about your mental health",
		"Understanding panic attacks",
		"Journaling prompts for difficult weeks",
	}
	postSentences = []string{
		"Start by noticing what your body is telling you before you try to change it.",
		"Progress is rarely linear, and setbacks are part of the process.",
		"Try pairing the exercise with a routine you already have so it sticks.",
		"If a technique feels awkward at first, that is normal.",
		"Consistency matters more than intensity.",
		"Bring what you notice to your next session so we can work on it together.",
		"Rest is not a reward for productivity; it is part of staying well.",
		"Reach out to your care team if symptoms get worse.",
	}
	postTags = []string{"anxiety", "sleep", "self-care", "relationships", "depression", "mindfulness", "work"}

	patientLines = []string{
		"Hi, I wanted to check in before our session.",
		"The breathing exercise helped a bit this week.",
		"I had a rough couple of nights.",
		"Could we talk about work stress next time?",
		"Thanks, that makes sense.",
		"I tried the journaling prompt you suggested.",
	}
	therapistLines = []string{
		"Thanks for letting me know. How are you feeling today?",
		"That sounds really hard. Let's make time for it on Thursday.",
		"Good to hear. Keep going with it and note what changes.",
		"Remember the grounding steps we practiced.",
		"I'll send a worksheet before our next appointment.",
		"We can adjust the plan if it isn't working for you.",
	}
)

type generator struct {
	faker      *gofakeit.Faker
	seed       uint64
	anchor     time.Time
	therapists []appointment.Therapist
	taken      map[uuid.UUID]map[int64]bool
}

func newGenerator(seed uint64, anchor time.Time, therapists []appointment.Therapist) *generator {
	return &generator{
		faker:      gofakeit.New(seed),
		seed:       seed,
		anchor:     anchor,
		therapists: therapists,
		taken:      map[uuid.UUID]map[int64]bool{},
	}
}

// id derives a stable uuid so equal seeds yield equal ids.
func (g *generator) id(kind string, n int) uuid.UUID {
	return uuid.NewSHA1(fixtureNamespace, []byte(fmt.Sprintf("%d/%s/%d", g.seed, kind, n)))
}

func (g *generator) pick(from []string, min, max int) []string {
	count := g.faker.Number(min, max)
	out := make([]string, 0, count)
	start := g.faker.Number(0, len(from)-1)
	for i := 0; i < count; i++ {
		out = append(out, from[(start+i)%len(from)])
	}
	return out
}

func (g *generator) patients(n int) []appointment.Patient {
	out := make([]appointment.Patient, 0, n)
	for i := 0; i < n; i++ {
		first, last := g.faker.FirstName(), g.faker.LastName()
		handle := strings.ToLower(strings.ReplaceAll(first+"."+last, " ", ""))
		out = append(out, appointment.Patient{
			ID:    g.id("patient", i),
			Name:  first + " " + last,
			Email: fmt.Sprintf("%s%d@example.com", handle, i),
			Phone: g.faker.Phone(),
			DateOfBirth: time.Date(g.anchor.Year()-g.faker.Number(19, 72),
				time.Month(g.faker.Number(1, 12)), g.faker.Number(1, 28), 0, 0, 0, 0, time.UTC),
			EmergencyContact: g.faker.Name() + " " + g.faker.Phone(),
			History: appointment.MedicalHistory{
				Conditions:  g.pick(conditions, 1, 2),
				Medications: g.pick(medications, 0, 2),
				Allergies:   g.pick(allergies, 0, 1),
			},
			CreatedAt: g.anchor.AddDate(0, 0, -g.faker.Number(30, 400)).UTC(),
		})
	}
	return out
}

// appointments books every patient two to four sessions spread four weeks
// either side of the anchor, always inside the therapist's weekly hours.
func (g *generator) appointments(patients []appointment.Patient) []appointment.Appointment {
	var out []appointment.Appointment
	n := 0
	for _, p := range patients {
		count := g.faker.Number(2, 4)
		for j := 0; j < count; j++ {
			t := g.therapists[g.faker.Number(0, len(g.therapists)-1)]
			offset := g.faker.Number(-28, 28)
			start, ok := g.openSlot(t, g.anchor.AddDate(0, 0, offset))
			if !ok {
				continue
			}

			past := start.Before(g.anchor)
			roll := g.faker.Number(1, 10)
			status := appointment.StatusConfirmed
			switch {
			case past && roll <= 8:
				status = appointment.StatusCompleted
			case past:
				status = appointment.StatusCancelled
			case roll <= 2:
				status = appointment.StatusPending
			case roll == 10:
				status = appointment.StatusCancelled
			}
			sessionType := appointment.SessionVideo
			if g.faker.Number(1, 3) == 1 {
				sessionType = appointment.SessionInPerson
			}

			created := start.AddDate(0, 0, -g.faker.Number(3, 21)).UTC()
			out = append(out, appointment.Appointment{
				ID:              g.id("appointment", n),
				PatientID:       p.ID,
				TherapistID:     t.ID,
				StartsAt:        start.UTC(),
				DurationMinutes: appointment.DefaultSessionMinutes,
				Status:          status,
				SessionType:     sessionType,
				CreatedAt:       created,
				UpdatedAt:       created,
			})
			n++
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out
}

// openSlot finds an unbooked hour-aligned start on day or within the week after it.
func (g *generator) openSlot(t appointment.Therapist, day time.Time) (time.Time, bool) {
	session := time.Duration(appointment.DefaultSessionMinutes) * time.Minute
	for k := 0; k < 7; k++ {
		d := day.AddDate(0, 0, k)
		var starts []time.Time
		for _, r := range t.Availability.For(d.Weekday()) {
			end := r.End.On(d)
			for s := r.Start.On(d); !s.Add(session).After(end); s = s.Add(time.Hour) {
				starts = append(starts, s)
			}
		}
		if len(starts) == 0 {
			continue
		}
		first := g.faker.Number(0, len(starts)-1)
		for i := range starts {
			s := starts[(first+i)%len(starts)]
			if g.book(t.ID, s) {
				return s, true
			}
		}
	}
	return time.Time{}, false
}

func (g *generator) book(therapistID uuid.UUID, start time.Time) bool {
	slots, ok := g.taken[therapistID]
	if !ok {
		slots = map[int64]bool{}
		g.taken[therapistID] = slots
	}
	if slots[start.Unix()] {
		return false
	}
	slots[start.Unix()] = true
	return true
}

func (g *generator) posts(n int) []Post {
	out := make([]Post, 0, n)
	for i := 0; i < n; i++ {
		author := g.therapists[i%len(g.therapists)]
		published := g.anchor.
			AddDate(0, 0, -g.faker.Number(1, 60)).
			Add(time.Duration(g.faker.Number(7, 20)) * time.Hour)
		out = append(out, Post{
			ID:          g.id("post", i),
			AuthorID:    author.ID,
			Title:       postTitles[g.faker.Number(0, len(postTitles)-1)],
			Body:        strings.Join(g.pick(postSentences, 3, 5), " "),
			Tags:        g.pick(postTags, 1, 3),
			Likes:       g.faker.Number(0, 250),
			PublishedAt: published.UTC(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return out
}

// conversations opens one thread per patient, up to n, with the therapist
// of the patient's earliest appointment when there is one.
func (g *generator) conversations(n int, patients []appointment.Patient, appts []appointment.Appointment) []Conversation {
	therapistOf := map[uuid.UUID]uuid.UUID{}
	for _, a := range appts {
		if _, ok := therapistOf[a.PatientID]; !ok {
			therapistOf[a.PatientID] = a.TherapistID
		}
	}

	if n > len(patients) {
		n = len(patients)
	}
	out := make([]Conversation, 0, n)
	msgN := 0
	for i := 0; i < n; i++ {
		p := patients[i]
		therapistID, ok := therapistOf[p.ID]
		if !ok {
			therapistID = g.therapists[g.faker.Number(0, len(g.therapists)-1)].ID
		}

		sent := g.anchor.
			AddDate(0, 0, -g.faker.Number(1, 14)).
			Add(time.Duration(g.faker.Number(8, 18)) * time.Hour)
		count := g.faker.Number(3, 6)
		messages := make([]Message, 0, count)
		for j := 0; j < count; j++ {
			sender, lines := p.ID, patientLines
			if j%2 == 1 {
				sender, lines = therapistID, therapistLines
			}
			messages = append(messages, Message{
				ID:       g.id("message", msgN),
				SenderID: sender,
				Body:     lines[g.faker.Number(0, len(lines)-1)],
				SentAt:   sent.UTC(),
			})
			msgN++
			sent = sent.Add(time.Duration(g.faker.Number(5, 180)) * time.Minute)
		}

		out = append(out, Conversation{
			ID:          g.id("conversation", i),
			PatientID:   p.ID,
			TherapistID: therapistID,
			Messages:    messages,
			UpdatedAt:   messages[len(messages)-1].SentAt,
		})
	}
	return out
}
