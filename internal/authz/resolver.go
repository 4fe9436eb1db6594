package authz

import (
	"context"
	"fmt"
)

// Resolver computes the chapters and regions a user reaches.
type Resolver struct {
	dir Directory
}

// NewResolver creates a resolver over dir.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// ExplicitChapterIDs returns chapters where the user holds any membership.
func (r *Resolver) ExplicitChapterIDs(ctx context.Context, user Subject) (IDSet, error) {
	refs, err := r.dir.Memberships(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("memberships: %w", err)
	}
	out := make(IDSet, len(refs))
	for _, m := range refs {
		out.Add(m.ChapterID)
	}
	return out, nil
}

// ExplicitRegionIDs returns the regions of the user's chapters, skipping chapters without one.
func (r *Resolver) ExplicitRegionIDs(ctx context.Context, user Subject) (IDSet, error) {
	refs, err := r.dir.Memberships(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("memberships: %w", err)
	}
	return regionsOf(refs), nil
}

// ImplicitRegionIDs returns the regions granted by the global role alone.
func (r *Resolver) ImplicitRegionIDs(ctx context.Context, user Subject) (IDSet, error) {
	switch user.Role {
	case RoleCofounder:
		ids, err := r.dir.RegionIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("regions: %w", err)
		}
		return NewIDSet(ids...), nil
	case RoleRegionalOrganiser:
		if user.ManagedRegionID != nil {
			return NewIDSet(*user.ManagedRegionID), nil
		}
	}
	return IDSet{}, nil
}

// ReachableRegionIDs is the union of explicit and implicit regions.
func (r *Resolver) ReachableRegionIDs(ctx context.Context, user Subject) (IDSet, error) {
	explicit, err := r.ExplicitRegionIDs(ctx, user)
	if err != nil {
		return nil, err
	}
	implicit, err := r.ImplicitRegionIDs(ctx, user)
	if err != nil {
		return nil, err
	}
	return explicit.Union(implicit), nil
}

// Visibility builds the listing filter for user with a single membership read.
func (r *Resolver) Visibility(ctx context.Context, user Subject) (Visibility, error) {
	refs, err := r.dir.Memberships(ctx, user.ID)
	if err != nil {
		return Visibility{}, fmt.Errorf("memberships: %w", err)
	}
	chapters := make(IDSet, len(refs))
	for _, m := range refs {
		chapters.Add(m.ChapterID)
	}
	implicit, err := r.ImplicitRegionIDs(ctx, user)
	if err != nil {
		return Visibility{}, err
	}
	return Visibility{
		ChapterIDs: chapters,
		RegionIDs:  regionsOf(refs).Union(implicit),
	}, nil
}

func regionsOf(refs []MembershipRef) IDSet {
	out := make(IDSet, len(refs))
	for _, m := range refs {
		if m.RegionID != nil {
			out.Add(*m.RegionID)
		}
	}
	return out
}

