package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Evaluator answers permission questions. A lookup miss on the target is a denial; only
// infrastructure failures come back as errors.
type Evaluator struct {
	dir Directory
}

// NewEvaluator creates an evaluator over dir.
func NewEvaluator(dir Directory) *Evaluator {
	return &Evaluator{dir: dir}
}

// chapterRegion looks up the region of chapterID. found is false when the chapter does not exist.
func (e *Evaluator) chapterRegion(ctx context.Context, chapterID uuid.UUID) (region *uuid.UUID, found bool, err error) {
	region, err = e.dir.ChapterRegion(ctx, chapterID)
	if errors.Is(err, ErrTargetNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("chapter region: %w", err)
	}
	return region, true, nil
}

func (e *Evaluator) holdsOrganiserMembership(ctx context.Context, userID, chapterID uuid.UUID) (bool, error) {
	role, err := e.dir.MembershipRole(ctx, userID, chapterID)
	if errors.Is(err, ErrTargetNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("membership role: %w", err)
	}
	return role == MembershipCityOrganiser, nil
}

// CanCreateContent decides whether user may publish content to target. An incomplete target
// returns ErrMissingTarget before any rule runs.
func (e *Evaluator) CanCreateContent(ctx context.Context, user Subject, target ContentTarget) (Decision, error) {
	t, err := ValidateTarget(target)
	if err != nil {
		return Decision{}, err
	}

	var region *uuid.UUID
	switch t.Scope {
	case ScopeCity:
		r, found, err := e.chapterRegion(ctx, *t.ChapterID)
		if err != nil {
			return Decision{}, err
		}
		if !found {
			return denyMissing("chapter"), nil
		}
		region = r
	case ScopeRegional:
		ok, err := e.dir.RegionExists(ctx, *t.RegionID)
		if err != nil {
			return Decision{}, fmt.Errorf("region exists: %w", err)
		}
		if !ok {
			return denyMissing("region"), nil
		}
	}

	switch user.Role {
	case RoleCofounder:
		return allow(), nil
	case RoleRegionalOrganiser:
		if user.ManagedRegionID == nil {
			return deny("not assigned to a region"), nil
		}
		switch t.Scope {
		case ScopeRegional:
			if *t.RegionID == *user.ManagedRegionID {
				return allow(), nil
			}
		case ScopeCity:
			if user.ManagesRegion(region) {
				return allow(), nil
			}
		}
		return deny(ReasonMismatch), nil
	case RoleCityOrganiser, RoleActivist:
		if t.Scope != ScopeCity {
			return deny(ReasonMismatch), nil
		}
		ok, err := e.holdsOrganiserMembership(ctx, user.ID, *t.ChapterID)
		if err != nil {
			return Decision{}, err
		}
		if ok {
			return allow(), nil
		}
		return deny(ReasonMismatch), nil
	default:
		return deny(ReasonMismatch), nil
	}
}

// CanModifyContent decides whether manager may edit or delete c. Authors always may; nobody
// else may touch content whose frozen author role is at or above their own.
func (e *Evaluator) CanModifyContent(ctx context.Context, manager Subject, c Content) (Decision, error) {
	if manager.ID == c.AuthorID {
		return allow(), nil
	}
	if !manager.Role.Valid() || !c.AuthorRole.Valid() {
		return deny("unknown role"), nil
	}
	if AtLeastAsPowerful(c.AuthorRole, manager.Role) {
		return deny("cannot modify content from a user at or above your level"), nil
	}
	switch manager.Role {
	case RoleCofounder:
		return allow(), nil
	case RoleRegionalOrganiser:
		if c.Scope != ScopeCity || c.ChapterID == nil || manager.ManagedRegionID == nil {
			break
		}
		region, found, err := e.chapterRegion(ctx, *c.ChapterID)
		if err != nil {
			return Decision{}, err
		}
		if !found {
			return denyMissing("chapter"), nil
		}
		if manager.ManagesRegion(region) {
			return allow(), nil
		}
	}
	return deny("insufficient permissions to modify this content"), nil
}

// ModificationFlag runs CanModifyContent for read endpoints. Errors read as false.
func (e *Evaluator) ModificationFlag(ctx context.Context, manager Subject, c Content) bool {
	d, err := e.CanModifyContent(ctx, manager, c)
	return err == nil && d.Allowed
}

// CanView reports whether user may open c by id. Beyond vis, authors always see their own items
// and anyone allowed to modify c sees it too.
func (e *Evaluator) CanView(ctx context.Context, user Subject, vis Visibility, c Content) bool {
	if vis.Visible(c) || c.AuthorID == user.ID {
		return true
	}
	return e.ModificationFlag(ctx, user, c)
}

// CanManageChapterMembers decides whether manager may add, remove or approve members of chapterID.
func (e *Evaluator) CanManageChapterMembers(ctx context.Context, manager Subject, chapterID uuid.UUID) (Decision, error) {
	region, found, err := e.chapterRegion(ctx, chapterID)
	if err != nil {
		return Decision{}, err
	}
	if !found {
		return denyMissing("chapter"), nil
	}
	if manager.Role == RoleCofounder {
		return allow(), nil
	}
	if manager.ManagesRegion(region) {
		return allow(), nil
	}
	if !manager.Role.Valid() {
		return deny("unknown role"), nil
	}
	ok, err := e.holdsOrganiserMembership(ctx, manager.ID, chapterID)
	if err != nil {
		return Decision{}, err
	}
	if ok {
		return allow(), nil
	}
	return deny("you do not have permission to manage members of this chapter"), nil
}

// CanCreateChapter decides whether user may create a chapter in regionID.
func (e *Evaluator) CanCreateChapter(ctx context.Context, user Subject, regionID *uuid.UUID) (Decision, error) {
	if regionID == nil {
		return Decision{}, fmt.Errorf("%w: region_id is required", ErrMissingTarget)
	}
	ok, err := e.dir.RegionExists(ctx, *regionID)
	if err != nil {
		return Decision{}, fmt.Errorf("region exists: %w", err)
	}
	if !ok {
		return denyMissing("region"), nil
	}
	switch {
	case user.Role == RoleCofounder:
		return allow(), nil
	case user.ManagesRegion(regionID):
		return allow(), nil
	case user.Role == RoleRegionalOrganiser:
		return deny("you can only create chapters in your own region"), nil
	default:
		return deny("only co-founders and regional organisers can create chapters"), nil
	}
}
