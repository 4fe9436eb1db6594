// Package authz holds the role hierarchy, membership reach, visibility and permission rules
// shared by every HTTP handler. It reads the membership and chapter stores through Directory
// and never writes except through PromotionStore.
package authz

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Role is a global platform role. The zero value is RoleUnknown and carries no power.
type Role int

const (
	RoleUnknown Role = iota
	RoleCofounder
	RoleRegionalOrganiser
	RoleCityOrganiser
	RoleActivist
)

// Roles lists the known roles from most to least powerful.
var Roles = []Role{RoleCofounder, RoleRegionalOrganiser, RoleCityOrganiser, RoleActivist}

// RankOf returns the rank of a role; lower is more powerful. Unknown roles rank 0 and must be
// rejected with Valid before comparing.
func RankOf(r Role) int {
	switch r {
	case RoleCofounder:
		return 1
	case RoleRegionalOrganiser:
		return 2
	case RoleCityOrganiser:
		return 3
	case RoleActivist:
		return 4
	default:
		return 0
	}
}

// Outranks reports whether a is strictly more powerful than b.
func Outranks(a, b Role) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	return RankOf(a) < RankOf(b)
}

// AtLeastAsPowerful reports whether a is as powerful as b or more.
func AtLeastAsPowerful(a, b Role) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	return RankOf(a) <= RankOf(b)
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool { return RankOf(r) > 0 }

func (r Role) String() string {
	switch r {
	case RoleCofounder:
		return "COFOUNDER"
	case RoleRegionalOrganiser:
		return "REGIONAL_ORGANISER"
	case RoleCityOrganiser:
		return "CITY_ORGANISER"
	case RoleActivist:
		return "ACTIVIST"
	default:
		return "UNKNOWN"
	}
}

// ParseRole converts the stored text form of a role.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "COFOUNDER":
		return RoleCofounder, nil
	case "REGIONAL_ORGANISER":
		return RoleRegionalOrganiser, nil
	case "CITY_ORGANISER":
		return RoleCityOrganiser, nil
	case "ACTIVIST":
		return RoleActivist, nil
	default:
		return RoleUnknown, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// MarshalText implements encoding.TextMarshaler so roles travel as text in JSON.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. "UNKNOWN" decodes to the zero role so
// MarshalText output always reads back; Value still refuses to store it.
func (r *Role) UnmarshalText(b []byte) error {
	if string(b) == "UNKNOWN" {
		*r = RoleUnknown
		return nil
	}
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value implements driver.Valuer.
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, int(r))
	}
	return r.String(), nil
}

// Scan implements sql.Scanner.
func (r *Role) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("scan role: unsupported type %T", src)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MembershipRole is the role a user holds inside one chapter, independent of their global role.
type MembershipRole string

const (
	MembershipActivist      MembershipRole = "ACTIVIST"
	MembershipCityOrganiser MembershipRole = "CITY_ORGANISER"
)

// Valid reports whether m is a known membership role.
func (m MembershipRole) Valid() bool {
	return m == MembershipActivist || m == MembershipCityOrganiser
}

// Scope is the audience breadth of a content item.
type Scope string

const (
	ScopeCity     Scope = "CITY"
	ScopeRegional Scope = "REGIONAL"
	ScopeGlobal   Scope = "GLOBAL"
)

// ParseScope normalizes and validates a scope string.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.ToUpper(strings.TrimSpace(s))); sc {
	case ScopeCity, ScopeRegional, ScopeGlobal:
		return sc, nil
	case "":
		return "", fmt.Errorf("%w: scope is required", ErrMissingTarget)
	default:
		return "", fmt.Errorf("%w: unknown scope %q", ErrMissingTarget, s)
	}
}

// Subject is an authenticated principal as the rules see it.
type Subject struct {
	ID              uuid.UUID  `json:"id"`
	Role            Role       `json:"role"`
	ManagedRegionID *uuid.UUID `json:"managed_region_id,omitempty"`
}

// ManagesRegion reports whether s is a Regional Organiser assigned to regionID.
func (s Subject) ManagesRegion(regionID *uuid.UUID) bool {
	if s.Role != RoleRegionalOrganiser || s.ManagedRegionID == nil || regionID == nil {
		return false
	}
	return *s.ManagedRegionID == *regionID
}

// IDSet is an unordered set of ids.
type IDSet map[uuid.UUID]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...uuid.UUID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id.
func (s IDSet) Add(id uuid.UUID) { s[id] = struct{}{} }

// Has reports membership. A nil set has nothing.
func (s IDSet) Has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// Union returns a new set holding the ids of both sets.
func (s IDSet) Union(o IDSet) IDSet {
	out := make(IDSet, len(s)+len(o))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range o {
		out[id] = struct{}{}
	}
	return out
}

// Slice returns the ids in a stable order.
func (s IDSet) Slice() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
