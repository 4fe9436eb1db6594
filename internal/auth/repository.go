package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/pkg/database"
)

// ErrEmailTaken is returned when registering an email that already has an account.
var ErrEmailTaken = errors.New("email already registered")

// Repository handles user persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates an auth repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, password_hash, name, role, managed_region_id, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Role, &u.ManagedRegionID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", authz.ErrTargetNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// Subject loads the current role and managed region of a user.
func (r *Repository) Subject(ctx context.Context, id uuid.UUID) (authz.Subject, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return authz.Subject{}, err
	}
	return u.Subject(), nil
}

// CountMemberships returns how many chapters the user belongs to.
func (r *Repository) CountMemberships(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM chapter_memberships WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

// Register creates an Activist account together with a pending join request for chapterID.
func (r *Repository) Register(ctx context.Context, email, passwordHash, name string, chapterID uuid.UUID) (*models.User, *models.JoinRequest, error) {
	var (
		user *models.User
		jr   models.JoinRequest
	)
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chapters WHERE id = $1)`, chapterID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("chapter %s: %w", chapterID, authz.ErrTargetNotFound)
		}

		const ins = `INSERT INTO users (email, password_hash, name, role) VALUES ($1, $2, $3, 'ACTIVIST')
			RETURNING ` + userColumns
		u, err := scanUser(tx.QueryRow(ctx, ins, email, passwordHash, name))
		if database.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		if err != nil {
			return err
		}
		user = u

		const req = `INSERT INTO join_requests (user_id, chapter_id) VALUES ($1, $2)
			RETURNING id, user_id, chapter_id, status, created_at`
		return tx.QueryRow(ctx, req, u.ID, chapterID).Scan(&jr.ID, &jr.UserID, &jr.ChapterID, &jr.Status, &jr.CreatedAt)
	})
	if err != nil {
		return nil, nil, err
	}
	return user, &jr, nil
}

// Search finds users whose name or email contains query, capped at limit.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]models.UserPublic, error) {
	const q = `SELECT id, email, name, role, managed_region_id, created_at FROM users
		WHERE name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'
		ORDER BY name LIMIT $2`
	rows, err := r.db.Query(ctx, q, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.UserPublic{}
	for rows.Next() {
		var u models.UserPublic
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.ManagedRegionID, &u.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
