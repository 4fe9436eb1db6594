package authz

import (
	sq "github.com/Masterminds/squirrel"
)

// Visibility is the listing filter for one user. ChapterIDs holds explicit memberships only;
// RegionIDs holds every reachable region, so role-derived reach widens REGIONAL content but
// not CITY content.
type Visibility struct {
	ChapterIDs IDSet
	RegionIDs  IDSet
}

// Visible reports whether c passes the filter.
func (v Visibility) Visible(c Content) bool {
	switch c.Scope {
	case ScopeGlobal:
		return true
	case ScopeRegional:
		return c.RegionID != nil && v.RegionIDs.Has(*c.RegionID)
	case ScopeCity:
		return c.ChapterID != nil && v.ChapterIDs.Has(*c.ChapterID)
	default:
		return false
	}
}

// Predicate returns the filter as a WHERE clause over a table with scope, region_id and
// chapter_id columns. alias qualifies the columns and may be empty.
func (v Visibility) Predicate(alias string) sq.Sqlizer {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}
	return sq.Or{
		sq.Eq{col("scope"): string(ScopeGlobal)},
		sq.And{
			sq.Eq{col("scope"): string(ScopeRegional)},
			sq.Expr(col("region_id")+" = ANY(?)", v.RegionIDs.Slice()),
		},
		sq.And{
			sq.Eq{col("scope"): string(ScopeCity)},
			sq.Expr(col("chapter_id")+" = ANY(?)", v.ChapterIDs.Slice()),
		},
	}
}
