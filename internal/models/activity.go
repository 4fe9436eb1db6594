package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Activity kinds recorded in activity_logs.
const (
	ActivityJoinRequest = "join_request"
	ActivityMembership  = "membership"
	ActivityPromotion   = "promotion"
	ActivityContent     = "content"
)

// ActivityLog is one audit entry written by the worker.
type ActivityLog struct {
	ID        uuid.UUID       `json:"id"`
	Kind      string          `json:"kind"`
	ActorID   *uuid.UUID      `json:"actor_id,omitempty"`
	SubjectID *uuid.UUID      `json:"subject_id,omitempty"`
	ChapterID *uuid.UUID      `json:"chapter_id,omitempty"`
	RegionID  *uuid.UUID      `json:"region_id,omitempty"`
	Detail    json.RawMessage `json:"detail"`
	CreatedAt time.Time       `json:"created_at"`
}
