package authz

import (
	"context"

	"github.com/google/uuid"
)

// MembershipRef is one chapter membership with the chapter's region resolved.
type MembershipRef struct {
	ChapterID uuid.UUID
	RegionID  *uuid.UUID
	Role      MembershipRole
}

// Directory is the read side of the membership, chapter and region stores.
// Lookups of a missing row return an error wrapping ErrTargetNotFound.
type Directory interface {
	ChapterRegion(ctx context.Context, chapterID uuid.UUID) (*uuid.UUID, error)
	MembershipRole(ctx context.Context, userID, chapterID uuid.UUID) (MembershipRole, error)
	Memberships(ctx context.Context, userID uuid.UUID) ([]MembershipRef, error)
	RegionIDs(ctx context.Context) ([]uuid.UUID, error)
	RegionExists(ctx context.Context, regionID uuid.UUID) (bool, error)
}

// PromotionTx is the store view inside a promotion transaction.
type PromotionTx interface {
	Directory
	Subject(ctx context.Context, userID uuid.UUID) (Subject, error)
	// LockSubject reads the user row with a row lock held until commit.
	LockSubject(ctx context.Context, userID uuid.UUID) (Subject, error)
	SetRole(ctx context.Context, userID uuid.UUID, role Role, managedRegionID *uuid.UUID) error
	UpsertMembership(ctx context.Context, userID, chapterID uuid.UUID, role MembershipRole) error
}

// PromotionStore runs fn in one transaction, committing only when fn returns nil.
type PromotionStore interface {
	InTx(ctx context.Context, fn func(tx PromotionTx) error) error
}
