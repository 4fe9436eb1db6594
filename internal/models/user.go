package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chapterhub/backend/internal/authz"
)

// User represents a platform user.
type User struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	Password        string     `json:"-"`
	Name            string     `json:"name"`
	Role            authz.Role `json:"role"`
	ManagedRegionID *uuid.UUID `json:"managed_region_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	Role            authz.Role `json:"role"`
	ManagedRegionID *uuid.UUID `json:"managed_region_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		Role:            u.Role,
		ManagedRegionID: u.ManagedRegionID,
		CreatedAt:       u.CreatedAt,
	}
}

// Subject returns the user as the authorization rules see it.
func (u *User) Subject() authz.Subject {
	return authz.Subject{ID: u.ID, Role: u.Role, ManagedRegionID: u.ManagedRegionID}
}

// UserSummary is the minimal user shape embedded in other responses.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
}
