package promotions

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/chapters"
	"github.com/chapterhub/backend/internal/testutil"
)

func TestPromoter_Postgres(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	promoter := authz.NewPromoter(NewRepository(db))
	dir := chapters.NewRepository(db)

	spain := testutil.Region(t, db, "Spain")
	france := testutil.Region(t, db, "France")
	madrid := testutil.Chapter(t, db, "Madrid", &spain)
	paris := testutil.Chapter(t, db, "Paris", &france)
	cofounder := testutil.User(t, db, "Carla", authz.RoleCofounder, nil)
	ro := testutil.User(t, db, "Rosa", authz.RoleRegionalOrganiser, &spain)
	a := testutil.User(t, db, "Ana", authz.RoleActivist, nil)
	b := testutil.User(t, db, "Bea", authz.RoleActivist, nil)

	t.Run("regional organiser promotes within region", func(t *testing.T) {
		p, err := promoter.Promote(ctx, authz.PromotionRequest{
			ManagerID: ro.ID, TargetUserID: a.ID, NewRole: authz.RoleCityOrganiser, TargetID: &madrid,
		})
		require.NoError(t, err)
		assert.Equal(t, authz.RoleActivist, p.PreviousRole)

		role, err := dir.MembershipRole(ctx, a.ID, madrid)
		require.NoError(t, err)
		assert.Equal(t, authz.MembershipCityOrganiser, role)
	})

	t.Run("regional organiser blocked outside region", func(t *testing.T) {
		_, err := promoter.Promote(ctx, authz.PromotionRequest{
			ManagerID: ro.ID, TargetUserID: b.ID, NewRole: authz.RoleCityOrganiser, TargetID: &paris,
		})
		var ge *authz.GuardError
		require.ErrorAs(t, err, &ge)

		var role authz.Role
		require.NoError(t, db.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, b.ID).Scan(&role))
		assert.Equal(t, authz.RoleActivist, role)
	})

	t.Run("cofounder assigns a region", func(t *testing.T) {
		_, err := promoter.Promote(ctx, authz.PromotionRequest{
			ManagerID: cofounder.ID, TargetUserID: a.ID, NewRole: authz.RoleRegionalOrganiser, TargetID: &france,
		})
		require.NoError(t, err)

		var (
			role   authz.Role
			region *uuid.UUID
		)
		require.NoError(t, db.QueryRow(ctx, `SELECT role, managed_region_id FROM users WHERE id = $1`, a.ID).Scan(&role, &region))
		assert.Equal(t, authz.RoleRegionalOrganiser, role)
		require.NotNil(t, region)
		assert.Equal(t, france, *region)
	})

	t.Run("unknown region rolls back", func(t *testing.T) {
		_, err := promoter.Promote(ctx, authz.PromotionRequest{
			ManagerID: cofounder.ID, TargetUserID: b.ID, NewRole: authz.RoleRegionalOrganiser, TargetID: &madrid,
		})
		assert.ErrorIs(t, err, authz.ErrTargetNotFound)
	})
}
