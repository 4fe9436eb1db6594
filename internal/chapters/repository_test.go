package chapters

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/testutil"
)

func TestRepository_Directory(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	spain := testutil.Region(t, db, "Spain")
	madrid := testutil.Chapter(t, db, "Madrid", &spain)
	orphan := testutil.Chapter(t, db, "Nowhere", nil)
	user := testutil.User(t, db, "Ana", authz.RoleActivist, nil)
	testutil.Member(t, db, user.ID, madrid, authz.MembershipActivist)
	testutil.Member(t, db, user.ID, orphan, authz.MembershipCityOrganiser)

	region, err := repo.ChapterRegion(ctx, madrid)
	require.NoError(t, err)
	assert.Equal(t, spain, *region)
	region, err = repo.ChapterRegion(ctx, orphan)
	require.NoError(t, err)
	assert.Nil(t, region)
	_, err = repo.ChapterRegion(ctx, uuid.New())
	assert.ErrorIs(t, err, authz.ErrTargetNotFound)

	role, err := repo.MembershipRole(ctx, user.ID, orphan)
	require.NoError(t, err)
	assert.Equal(t, authz.MembershipCityOrganiser, role)

	refs, err := repo.Memberships(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, refs, 2)

	ok, err := repo.RegionExists(ctx, spain)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRepository_ListManaged(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	spain, france := testutil.Region(t, db, "Spain"), testutil.Region(t, db, "France")
	madrid := testutil.Chapter(t, db, "Madrid", &spain)
	sevilla := testutil.Chapter(t, db, "Sevilla", &spain)
	paris := testutil.Chapter(t, db, "Paris", &france)

	ro := testutil.User(t, db, "Rosa", authz.RoleRegionalOrganiser, &spain)
	testutil.Member(t, db, ro.ID, paris, authz.MembershipCityOrganiser)
	testutil.Member(t, db, ro.ID, madrid, authz.MembershipCityOrganiser)

	list, err := repo.ListManaged(ctx, ro)
	require.NoError(t, err)
	var ids []uuid.UUID
	for _, ch := range list {
		ids = append(ids, ch.ID)
	}
	assert.Equal(t, []uuid.UUID{madrid, paris, sevilla}, ids, "de-duplicated and sorted by name")

	cofounder := testutil.User(t, db, "Carla", authz.RoleCofounder, nil)
	list, err = repo.ListManaged(ctx, cofounder)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestRepository_RemoveMemberDemotes(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	region := testutil.Region(t, db, "Spain")
	a := testutil.Chapter(t, db, "Madrid", &region)
	b := testutil.Chapter(t, db, "Sevilla", &region)
	org := testutil.User(t, db, "Olga", authz.RoleCityOrganiser, nil)
	testutil.Member(t, db, org.ID, a, authz.MembershipCityOrganiser)
	testutil.Member(t, db, org.ID, b, authz.MembershipActivist)

	demoted, err := repo.RemoveMember(ctx, a, org.ID)
	require.NoError(t, err)
	assert.False(t, demoted)

	demoted, err = repo.RemoveMember(ctx, b, org.ID)
	require.NoError(t, err)
	assert.True(t, demoted)

	var role authz.Role
	require.NoError(t, db.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, org.ID).Scan(&role))
	assert.Equal(t, authz.RoleActivist, role)

	_, err = repo.RemoveMember(ctx, b, org.ID)
	assert.ErrorIs(t, err, authz.ErrTargetNotFound)
}

func TestRepository_JoinRequests(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	region := testutil.Region(t, db, "Spain")
	madrid := testutil.Chapter(t, db, "Madrid", &region)
	sevilla := testutil.Chapter(t, db, "Sevilla", &region)
	user := testutil.User(t, db, "Ana", authz.RoleActivist, nil)

	jr, err := repo.RequestJoin(ctx, user.ID, madrid)
	require.NoError(t, err)
	_, err = repo.RequestJoin(ctx, user.ID, madrid)
	assert.ErrorIs(t, err, authz.ErrDuplicateMembership)

	_, err = repo.ResolveJoinRequest(ctx, sevilla, jr.ID, true)
	assert.ErrorIs(t, err, authz.ErrTargetNotFound, "request belongs to another chapter")

	_, err = repo.ResolveJoinRequest(ctx, madrid, jr.ID, true)
	require.NoError(t, err)
	role, err := repo.MembershipRole(ctx, user.ID, madrid)
	require.NoError(t, err)
	assert.Equal(t, authz.MembershipActivist, role)

	pending, err := repo.JoinRequests(ctx, madrid)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = repo.RequestJoin(ctx, user.ID, madrid)
	assert.ErrorIs(t, err, authz.ErrDuplicateMembership, "already a member")

	created, err := repo.AddMember(ctx, uuid.New(), madrid, authz.MembershipActivist)
	assert.False(t, created)
	assert.ErrorIs(t, err, authz.ErrTargetNotFound)
}
