package comments

import (
	"context"

	"github.com/google/uuid"

	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/pkg/database"
)

// Repository handles comments persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a comment repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a comment. Exactly one of EventID and AnnouncementID must be set.
func (r *Repository) Create(ctx context.Context, cm *models.Comment) error {
	const q = `INSERT INTO comments (content, author_id, event_id, announcement_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	if err := r.db.QueryRow(ctx, q, cm.Content, cm.AuthorID, cm.EventID, cm.AnnouncementID).Scan(&cm.ID, &cm.CreatedAt); err != nil {
		return err
	}
	return r.db.QueryRow(ctx, `SELECT id, name, email FROM users WHERE id = $1`, cm.AuthorID).
		Scan(&cm.Author.ID, &cm.Author.Name, &cm.Author.Email)
}

// ListForEvent returns an event's comments, oldest first.
func (r *Repository) ListForEvent(ctx context.Context, eventID uuid.UUID) ([]models.Comment, error) {
	return r.list(ctx, "event_id", eventID)
}

// ListForAnnouncement returns an announcement's comments, oldest first.
func (r *Repository) ListForAnnouncement(ctx context.Context, announcementID uuid.UUID) ([]models.Comment, error) {
	return r.list(ctx, "announcement_id", announcementID)
}

func (r *Repository) list(ctx context.Context, column string, id uuid.UUID) ([]models.Comment, error) {
	q := `SELECT cm.id, cm.content, cm.author_id, cm.event_id, cm.announcement_id, cm.created_at, u.id, u.name, u.email
		FROM comments cm JOIN users u ON u.id = cm.author_id
		WHERE cm.` + column + ` = $1
		ORDER BY cm.created_at`
	rows, err := r.db.Query(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Comment{}
	for rows.Next() {
		var cm models.Comment
		if err := rows.Scan(&cm.ID, &cm.Content, &cm.AuthorID, &cm.EventID, &cm.AnnouncementID, &cm.CreatedAt,
			&cm.Author.ID, &cm.Author.Name, &cm.Author.Email); err != nil {
			return nil, err
		}
		list = append(list, cm)
	}
	return list, rows.Err()
}
