package regions

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

// Repository handles region persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a region repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// List returns all regions ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Region, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, created_at FROM regions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Region{}
	for rows.Next() {
		var rg models.Region
		if err := rows.Scan(&rg.ID, &rg.Name, &rg.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, rg)
	}
	return list, rows.Err()
}

// GetByID returns a region.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Region, error) {
	var rg models.Region
	err := r.db.QueryRow(ctx, `SELECT id, name, created_at FROM regions WHERE id = $1`, id).
		Scan(&rg.ID, &rg.Name, &rg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("region %s: %w", id, authz.ErrTargetNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rg, nil
}

// Create inserts a region. A taken name returns authz.ErrDuplicateName.
func (r *Repository) Create(ctx context.Context, name string) (*models.Region, error) {
	rg := models.Region{Name: name}
	err := r.db.QueryRow(ctx, `INSERT INTO regions (name) VALUES ($1) RETURNING id, created_at`, name).
		Scan(&rg.ID, &rg.CreatedAt)
	if database.IsUniqueViolation(err) {
		return nil, fmt.Errorf("region %q: %w", name, authz.ErrDuplicateName)
	}
	if err != nil {
		return nil, err
	}
	return &rg, nil
}
