package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// PromotionRequest asks to move TargetUserID to NewRole. TargetID names the chapter for a
// City Organiser promotion or the region for a Regional Organiser promotion.
type PromotionRequest struct {
	ManagerID    uuid.UUID
	TargetUserID uuid.UUID
	NewRole      Role
	TargetID     *uuid.UUID
}

// Promotion is the committed result of a promotion.
type Promotion struct {
	UserID          uuid.UUID  `json:"user_id"`
	PreviousRole    Role       `json:"previous_role"`
	Role            Role       `json:"role"`
	ManagedRegionID *uuid.UUID `json:"managed_region_id,omitempty"`
	// ChapterID is set when a City Organiser membership was upserted.
	ChapterID *uuid.UUID `json:"chapter_id,omitempty"`
}

// Promoter applies promotions.
type Promoter struct {
	store PromotionStore
}

// NewPromoter creates a promoter over store.
func NewPromoter(store PromotionStore) *Promoter {
	return &Promoter{store: store}
}

// Promote checks and applies req in one transaction. Both users are read inside the
// transaction and the target row stays locked until commit, so guards see write-time roles.
func (p *Promoter) Promote(ctx context.Context, req PromotionRequest) (*Promotion, error) {
	var out *Promotion
	err := p.store.InTx(ctx, func(tx PromotionTx) error {
		manager, err := tx.Subject(ctx, req.ManagerID)
		if err != nil {
			return fmt.Errorf("load manager: %w", err)
		}
		target, err := tx.LockSubject(ctx, req.TargetUserID)
		if err != nil {
			return fmt.Errorf("load user to promote: %w", err)
		}
		if err := CheckPromotion(ctx, tx, manager, target, req.NewRole, req.TargetID); err != nil {
			return err
		}

		res := &Promotion{
			UserID:          target.ID,
			PreviousRole:    target.Role,
			Role:            req.NewRole,
			ManagedRegionID: target.ManagedRegionID,
		}
		if req.NewRole == RoleRegionalOrganiser {
			res.ManagedRegionID = req.TargetID
		}
		if err := tx.SetRole(ctx, target.ID, res.Role, res.ManagedRegionID); err != nil {
			return fmt.Errorf("set role: %w", err)
		}
		if req.NewRole == RoleCityOrganiser && req.TargetID != nil {
			if err := tx.UpsertMembership(ctx, target.ID, *req.TargetID, MembershipCityOrganiser); err != nil {
				return fmt.Errorf("upsert membership: %w", err)
			}
			res.ChapterID = req.TargetID
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CheckPromotion runs the promotion guards. Rule failures are *GuardError; a missing or unknown
// chapter/region reference is ErrMissingTarget or ErrTargetNotFound.
func CheckPromotion(ctx context.Context, dir Directory, manager, target Subject, newRole Role, targetID *uuid.UUID) error {
	if !manager.Role.Valid() || !target.Role.Valid() || !newRole.Valid() {
		return &GuardError{Reason: "unknown role"}
	}
	if !Outranks(manager.Role, newRole) {
		return &GuardError{Reason: "You cannot promote a user to a role equal to or greater than your own."}
	}
	if !Outranks(manager.Role, target.Role) {
		return &GuardError{Reason: "You cannot promote a user who is at or above your own hierarchical level."}
	}
	// Equal rank passes so a repeated promotion is a no-op rather than an error.
	if RankOf(newRole) > RankOf(target.Role) {
		return &GuardError{Reason: "Promotion cannot lower a user's role."}
	}

	switch manager.Role {
	case RoleCityOrganiser:
		return &GuardError{Reason: "You do not have permission to promote users."}
	case RoleRegionalOrganiser:
		if target.Role != RoleActivist || newRole != RoleCityOrganiser {
			return &GuardError{Reason: "Regional Organisers can only promote Activists to City Organisers."}
		}
		if targetID == nil {
			return &GuardError{Reason: "You can only promote users to chapters within your own region."}
		}
		region, err := dir.ChapterRegion(ctx, *targetID)
		if err != nil && !errors.Is(err, ErrTargetNotFound) {
			return fmt.Errorf("chapter region: %w", err)
		}
		if err != nil || !manager.ManagesRegion(region) {
			return &GuardError{Reason: "You can only promote users to chapters within your own region."}
		}
	}

	switch newRole {
	case RoleRegionalOrganiser:
		if targetID == nil {
			return fmt.Errorf("%w: target_id must name the region to manage", ErrMissingTarget)
		}
		ok, err := dir.RegionExists(ctx, *targetID)
		if err != nil {
			return fmt.Errorf("region exists: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: region", ErrTargetNotFound)
		}
	case RoleCityOrganiser:
		if targetID == nil {
			return nil
		}
		if _, err := dir.ChapterRegion(ctx, *targetID); err != nil {
			if errors.Is(err, ErrTargetNotFound) {
				return fmt.Errorf("%w: chapter", ErrTargetNotFound)
			}
			return fmt.Errorf("chapter region: %w", err)
		}
	}
	return nil
}
