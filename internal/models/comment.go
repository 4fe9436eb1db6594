package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a message attached to exactly one event or announcement.
type Comment struct {
	ID             uuid.UUID   `json:"id"`
	Content        string      `json:"content"`
	AuthorID       uuid.UUID   `json:"author_id"`
	Author         UserSummary `json:"author"`
	EventID        *uuid.UUID  `json:"event_id,omitempty"`
	AnnouncementID *uuid.UUID  `json:"announcement_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}
