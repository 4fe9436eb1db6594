package resources

import (
	"context"

	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/pkg/database"
)

// Repository handles resource library persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a resource repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// EnsureCategory returns the category with the given name, creating it when missing.
func (r *Repository) EnsureCategory(ctx context.Context, name string) (*models.ResourceCategory, error) {
	const q = `INSERT INTO resource_categories (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name`
	var cat models.ResourceCategory
	if err := r.db.QueryRow(ctx, q, name).Scan(&cat.ID, &cat.Name); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Create inserts a resource whose ID the caller already chose.
func (r *Repository) Create(ctx context.Context, res *models.Resource) error {
	const q = `INSERT INTO resources (id, title, description, category_id, s3_key, content_type, size_bytes, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`
	return r.db.QueryRow(ctx, q, res.ID, res.Title, res.Description, res.CategoryID, res.S3Key,
		res.ContentType, res.SizeBytes, res.UploadedBy).Scan(&res.CreatedAt)
}

// List returns every resource ordered by category name, newest first within a category.
func (r *Repository) List(ctx context.Context) ([]models.Resource, error) {
	const q = `SELECT r.id, r.title, r.description, r.category_id, c.name, r.s3_key, r.content_type,
			r.size_bytes, r.uploaded_by, r.created_at
		FROM resources r
		JOIN resource_categories c ON c.id = r.category_id
		ORDER BY c.name, r.created_at DESC`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Resource
	for rows.Next() {
		var res models.Resource
		if err := rows.Scan(&res.ID, &res.Title, &res.Description, &res.CategoryID, &res.CategoryName, &res.S3Key,
			&res.ContentType, &res.SizeBytes, &res.UploadedBy, &res.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, res)
	}
	return list, rows.Err()
}
