package authz

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingTarget is returned when a scope or its chapter/region id is absent.
	ErrMissingTarget = errors.New("missing required target")
	// ErrTargetNotFound is returned when a referenced user, chapter, region or membership does not exist.
	ErrTargetNotFound = errors.New("target not found")
	// ErrDuplicateMembership covers an existing membership or a pending join request for the same pair.
	ErrDuplicateMembership = errors.New("duplicate membership")
	// ErrDuplicateName is returned when a chapter or region name is already taken.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrUnknownRole is returned when a role string or value is outside the closed set.
	ErrUnknownRole = errors.New("unknown role")
)

// ReasonMismatch is the deny reason for content creation outside the caller's reach.
const ReasonMismatch = "insufficient role/target mismatch"

// ForbiddenError is an authorization denial with a reason the client can render.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string { return "forbidden: " + e.Reason }

// GuardError is a failed promotion guard.
type GuardError struct {
	Reason string
}

func (e *GuardError) Error() string { return "promotion guard failed: " + e.Reason }

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed bool
	Reason  string
	// missing marks a denial caused by a lookup miss on the target.
	missing bool
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

func denyMissing(what string) Decision {
	return Decision{Reason: what + " not found", missing: true}
}

// Err converts a denial into the error handlers surface. It returns nil for an allow.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.missing {
		return fmt.Errorf("%w: %s", ErrTargetNotFound, d.Reason)
	}
	return &ForbiddenError{Reason: d.Reason}
}
