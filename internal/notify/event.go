package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/provform/internal/profile"
)

// EventProfileSubmitted is the event type and AMQP routing key for a
// finalized profile.
const EventProfileSubmitted = "profile.submitted"

// Event is the message published for a submitted profile. It carries only
// identifying fields; consumers fetch the full profile by ID.
type Event struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	ProfileID   string    `json:"profile_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
}

// NewSubmittedEvent builds the event for p.
func NewSubmittedEvent(p profile.SavedProfile) Event {
	return Event{
		EventID:     uuid.New().String(),
		EventType:   EventProfileSubmitted,
		ProfileID:   p.ID,
		SubmittedAt: p.SubmittedAt,
		Name:        p.Name,
		Email:       p.Email,
	}
}
