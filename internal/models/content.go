package models

import (
	"time"

	"github.com/chapterhub/backend/internal/authz"
)

// Event is a scoped, time-boxed activity members can RSVP to.
type Event struct {
	authz.Content
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	ChapterName string    `json:"chapter_name,omitempty"`
	RegionName  string    `json:"region_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	AttendeeCount int  `json:"attendee_count"`
	IsRegistered  bool `json:"is_registered"`
	CanModify     bool `json:"can_modify"`
}

// Hours returns the event duration in hours.
func (e *Event) Hours() float64 {
	if e.EndTime.Before(e.StartTime) {
		return 0
	}
	return e.EndTime.Sub(e.StartTime).Hours()
}

// Training is an event-like session for skill building. Trainings share the event shape and
// live in their own tables.
type Training = Event

// Announcement is a scoped message.
type Announcement struct {
	authz.Content
	Title       string    `json:"title"`
	Body        string    `json:"content"`
	ChapterName string    `json:"chapter_name,omitempty"`
	RegionName  string    `json:"region_name,omitempty"`
	AuthorName  string    `json:"author_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	CanModify bool `json:"can_modify"`
}
