package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chapterhub/backend/internal/authz"
)

// Region is a top-level geographic grouping of chapters.
type Region struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Chapter is a city-level unit belonging to one region.
type Chapter struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	RegionID    *uuid.UUID `json:"region_id,omitempty"`
	RegionName  string     `json:"region_name,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ChapterStats aggregates activity of one chapter.
type ChapterStats struct {
	ChapterID       uuid.UUID `json:"chapter_id"`
	MemberCount     int       `json:"member_count"`
	OrganiserCount  int       `json:"organiser_count"`
	PendingRequests int       `json:"pending_requests"`
	UpcomingEvents  int       `json:"upcoming_events"`
}

// ChapterMembership links a user to a chapter with a per-chapter role.
type ChapterMembership struct {
	UserID    uuid.UUID            `json:"user_id"`
	ChapterID uuid.UUID            `json:"chapter_id"`
	Role      authz.MembershipRole `json:"role"`
	JoinedAt  time.Time            `json:"joined_at"`
}

// ChapterMember is a membership joined with the user's public fields.
type ChapterMember struct {
	User       UserSummary          `json:"user"`
	GlobalRole authz.Role           `json:"global_role"`
	Role       authz.MembershipRole `json:"role"`
	JoinedAt   time.Time            `json:"joined_at"`
}

// JoinRequestStatusPending is the only persisted join request status; resolved requests are deleted.
const JoinRequestStatusPending = "PENDING"

// JoinRequest is a pending request to join a chapter.
type JoinRequest struct {
	ID          uuid.UUID   `json:"id"`
	UserID      uuid.UUID   `json:"user_id"`
	ChapterID   uuid.UUID   `json:"chapter_id"`
	ChapterName string      `json:"chapter_name,omitempty"`
	Status      string      `json:"status"`
	User        UserSummary `json:"user"`
	CreatedAt   time.Time   `json:"created_at"`
}
