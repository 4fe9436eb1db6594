// Package content holds what events, trainings and announcements share: the audience fields of
// a create request, the creation check, and the post-create fan-out.
package content

import (
	"context"

	"github.com/google/uuid"

	"github.com/chapterhub/backend/internal/activity"
	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/pkg/queue"
)

// TargetRequest is the audience part of a create request body.
type TargetRequest struct {
	Scope     string     `json:"scope"`
	ChapterID *uuid.UUID `json:"chapter_id"`
	RegionID  *uuid.UUID `json:"region_id"`
}

// Notifier pushes new content to connected clients. *realtime.Hub implements it.
type Notifier interface {
	PublishContent(kind string, c authz.Content, title string)
}

// Authorize validates the requested audience and checks that author may publish to it.
// It returns the authz view of the new item with the author's current role frozen in.
func Authorize(ctx context.Context, eval *authz.Evaluator, author authz.Subject, req TargetRequest) (authz.Content, error) {
	scope, err := authz.ParseScope(req.Scope)
	if err != nil {
		return authz.Content{}, err
	}
	target, err := authz.ValidateTarget(authz.ContentTarget{Scope: scope, ChapterID: req.ChapterID, RegionID: req.RegionID})
	if err != nil {
		return authz.Content{}, err
	}
	d, err := eval.CanCreateContent(ctx, author, target)
	if err != nil {
		return authz.Content{}, err
	}
	if err := d.Err(); err != nil {
		return authz.Content{}, err
	}
	return authz.Content{
		Scope:      target.Scope,
		AuthorID:   author.ID,
		AuthorRole: author.Role,
		ChapterID:  target.ChapterID,
		RegionID:   target.RegionID,
	}, nil
}

// Published notifies live clients and records the activity entry for a new item.
func Published(ctx context.Context, n Notifier, rec *activity.Recorder, kind string, c authz.Content, title string) {
	if n != nil {
		n.PublishContent(kind, c, title)
	}
	actor, subject := c.AuthorID, c.ID
	rec.Record(ctx, queue.ActivityPayload{
		Kind:      models.ActivityContent,
		ActorID:   &actor,
		SubjectID: &subject,
		ChapterID: c.ChapterID,
		RegionID:  c.RegionID,
		Detail:    map[string]any{"type": kind, "title": title, "scope": string(c.Scope)},
	})
}
