package authz

import (
	"fmt"

	"github.com/google/uuid"
)

// Content is the part of an event, training or announcement the rules look at.
// AuthorRole is the author's role when the item was created and is never recomputed.
type Content struct {
	ID         uuid.UUID  `json:"id"`
	Scope      Scope      `json:"scope"`
	AuthorID   uuid.UUID  `json:"author_id"`
	AuthorRole Role       `json:"author_role"`
	ChapterID  *uuid.UUID `json:"chapter_id,omitempty"`
	RegionID   *uuid.UUID `json:"region_id,omitempty"`
}

// Target returns the audience of c.
func (c Content) Target() ContentTarget {
	return ContentTarget{Scope: c.Scope, ChapterID: c.ChapterID, RegionID: c.RegionID}
}

// ContentTarget is the requested audience of new content.
type ContentTarget struct {
	Scope     Scope
	ChapterID *uuid.UUID
	RegionID  *uuid.UUID
}

// ValidateTarget checks that the scope is known and its id is present, and drops the id
// the scope does not use. CITY keeps only the chapter, REGIONAL only the region, GLOBAL neither.
func ValidateTarget(t ContentTarget) (ContentTarget, error) {
	switch t.Scope {
	case ScopeCity:
		if t.ChapterID == nil {
			return ContentTarget{}, fmt.Errorf("%w: chapter_id is required for CITY scope", ErrMissingTarget)
		}
		return ContentTarget{Scope: ScopeCity, ChapterID: t.ChapterID}, nil
	case ScopeRegional:
		if t.RegionID == nil {
			return ContentTarget{}, fmt.Errorf("%w: region_id is required for REGIONAL scope", ErrMissingTarget)
		}
		return ContentTarget{Scope: ScopeRegional, RegionID: t.RegionID}, nil
	case ScopeGlobal:
		return ContentTarget{Scope: ScopeGlobal}, nil
	case "":
		return ContentTarget{}, fmt.Errorf("%w: scope is required", ErrMissingTarget)
	default:
		return ContentTarget{}, fmt.Errorf("%w: unknown scope %q", ErrMissingTarget, t.Scope)
	}
}
