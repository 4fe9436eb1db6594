// Package testutil starts throwaway PostgreSQL databases for repository tests and seeds rows.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/pkg/database"
)

// NewTestDB starts a PostgreSQL container, applies the migrations and returns a pool. The test
// is skipped with -short or when no container runtime is available.
func NewTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("chapterhub_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	pool, err := database.NewPostgresPool(ctx, dsn, database.PoolOptions{MaxConns: 4}, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool, logger))
	return pool
}

// Region inserts a region and returns its id.
func Region(t *testing.T, db database.DB, name string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := db.QueryRow(context.Background(), `INSERT INTO regions (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	require.NoError(t, err)
	return id
}

// Chapter inserts a chapter in region (which may be nil) and returns its id.
func Chapter(t *testing.T, db database.DB, name string, region *uuid.UUID) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := db.QueryRow(context.Background(), `INSERT INTO chapters (name, region_id) VALUES ($1, $2) RETURNING id`, name, region).Scan(&id)
	require.NoError(t, err)
	return id
}

// User inserts a user with the given role and returns it as a subject.
func User(t *testing.T, db database.DB, name string, role authz.Role, managedRegion *uuid.UUID) authz.Subject {
	t.Helper()
	s := authz.Subject{Role: role, ManagedRegionID: managedRegion}
	const q = `INSERT INTO users (email, password_hash, name, role, managed_region_id)
		VALUES ($1, 'x', $2, $3, $4) RETURNING id`
	err := db.QueryRow(context.Background(), q, uuid.NewString()+"@example.org", name, role.String(), managedRegion).Scan(&s.ID)
	require.NoError(t, err)
	return s
}

// Member inserts a chapter membership.
func Member(t *testing.T, db database.DB, userID, chapterID uuid.UUID, role authz.MembershipRole) {
	t.Helper()
	_, err := db.Exec(context.Background(),
		`INSERT INTO chapter_memberships (user_id, chapter_id, role) VALUES ($1, $2, $3)`, userID, chapterID, string(role))
	require.NoError(t, err)
}
