package announcements

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/pkg/database"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository handles announcements persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates an announcement repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

func selectAnnouncements() sq.SelectBuilder {
	return psql.Select(
		"a.id", "a.scope", "a.author_id", "a.author_role", "a.chapter_id", "a.region_id",
		"a.title", "a.content", "COALESCE(c.name, '')", "COALESCE(rg.name, '')", "u.name",
		"a.created_at", "a.updated_at",
	).
		From("announcements a").
		Join("users u ON u.id = a.author_id").
		LeftJoin("chapters c ON c.id = a.chapter_id").
		LeftJoin("regions rg ON rg.id = COALESCE(a.region_id, c.region_id)")
}

func scanAnnouncement(row pgx.Row, a *models.Announcement) error {
	return row.Scan(&a.ID, &a.Scope, &a.AuthorID, &a.AuthorRole, &a.ChapterID, &a.RegionID,
		&a.Title, &a.Body, &a.ChapterName, &a.RegionName, &a.AuthorName, &a.CreatedAt, &a.UpdatedAt)
}

// Create inserts a.
func (r *Repository) Create(ctx context.Context, a *models.Announcement) error {
	const q = `INSERT INTO announcements (title, content, scope, author_id, author_role, chapter_id, region_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, q, a.Title, a.Body, string(a.Scope), a.AuthorID, a.AuthorRole.String(), a.ChapterID, a.RegionID).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// GetByID returns one announcement.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Announcement, error) {
	q, args, err := selectAnnouncements().Where(sq.Eq{"a.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var a models.Announcement
	if err := scanAnnouncement(r.db.QueryRow(ctx, q, args...), &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("announcement %s: %w", id, authz.ErrTargetNotFound)
		}
		return nil, err
	}
	return &a, nil
}

// Content returns the authorization view of one announcement.
func (r *Repository) Content(ctx context.Context, id uuid.UUID) (authz.Content, error) {
	const q = `SELECT id, scope, author_id, author_role, chapter_id, region_id FROM announcements WHERE id = $1`
	var c authz.Content
	err := r.db.QueryRow(ctx, q, id).Scan(&c.ID, &c.Scope, &c.AuthorID, &c.AuthorRole, &c.ChapterID, &c.RegionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return authz.Content{}, fmt.Errorf("announcement %s: %w", id, authz.ErrTargetNotFound)
	}
	return c, err
}

// ListVisible returns announcements visible under vis, newest first.
func (r *Repository) ListVisible(ctx context.Context, vis authz.Visibility, limit int) ([]models.Announcement, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q, args, err := selectAnnouncements().
		Where(vis.Predicate("a")).
		OrderBy("a.created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Announcement
	for rows.Next() {
		var a models.Announcement
		if err := scanAnnouncement(rows, &a); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// Update changes title and/or content.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, title, body *string) error {
	b := psql.Update("announcements").Set("updated_at", sq.Expr("NOW()")).Where(sq.Eq{"id": id})
	if title != nil {
		b = b.Set("title", *title)
	}
	if body != nil {
		b = b.Set("content", *body)
	}
	q, args, err := b.ToSql()
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("announcement %s: %w", id, authz.ErrTargetNotFound)
	}
	return nil
}

// Delete removes an announcement and its comments.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("announcement %s: %w", id, authz.ErrTargetNotFound)
	}
	return nil
}
