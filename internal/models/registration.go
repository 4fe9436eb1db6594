package models

import (
	"time"

	"github.com/google/uuid"
)

// Registration is a user's RSVP to an event or training.
type Registration struct {
	UserID       uuid.UUID   `json:"user_id"`
	TargetID     uuid.UUID   `json:"target_id"`
	Attended     bool        `json:"attended"`
	RegisteredAt time.Time   `json:"registered_at"`
	User         UserSummary `json:"user"`
}

// AttendedEvent is one entry of a user's attendance history.
type AttendedEvent struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	ChapterName string    `json:"chapter_name,omitempty"`
}

// Hours returns the attended duration in hours.
func (a AttendedEvent) Hours() float64 {
	if a.EndTime.Before(a.StartTime) {
		return 0
	}
	return a.EndTime.Sub(a.StartTime).Hours()
}
