package fixtures

import (
	"time"

	"github.com/google/uuid"
)

// Post is a community article written by a therapist.
type Post struct {
	ID          uuid.UUID `json:"id"`
	AuthorID    uuid.UUID `json:"author_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Tags        []string  `json:"tags"`
	Likes       int       `json:"likes"`
	PublishedAt time.Time `json:"published_at"`
}

type Message struct {
	ID       uuid.UUID `json:"id"`
	SenderID uuid.UUID `json:"sender_id"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

// Conversation is a chat thread between one patient and one therapist.
// Messages are ordered oldest first.
type Conversation struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	TherapistID uuid.UUID `json:"therapist_id"`
	Messages    []Message `json:"messages"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func clonePost(p Post) Post {
	p.Tags = append([]string(nil), p.Tags...)
	return p
}

func cloneConversation(c Conversation) Conversation {
	c.Messages = append([]Message(nil), c.Messages...)
	return c
}
