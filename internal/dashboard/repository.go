package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/pkg/database"
)

// Repository runs the aggregate queries behind the organiser dashboard.
type Repository struct {
	db database.DB
}

// NewRepository creates a dashboard repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// PendingJoinRequests lists pending join requests of the given chapters, oldest first.
func (r *Repository) PendingJoinRequests(ctx context.Context, chapterIDs []uuid.UUID, limit int) ([]models.JoinRequest, error) {
	const q = `SELECT j.id, j.user_id, j.chapter_id, c.name, j.status, u.id, u.name, u.email, j.created_at
		FROM join_requests j
		JOIN users u ON u.id = j.user_id
		JOIN chapters c ON c.id = j.chapter_id
		WHERE j.chapter_id = ANY($1)
		ORDER BY j.created_at ASC
		LIMIT $2`
	rows, err := r.db.Query(ctx, q, chapterIDs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.JoinRequest{}
	for rows.Next() {
		var j models.JoinRequest
		if err := rows.Scan(&j.ID, &j.UserID, &j.ChapterID, &j.ChapterName, &j.Status, &j.User.ID, &j.User.Name, &j.User.Email, &j.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, j)
	}
	return list, rows.Err()
}

// MemberTotals counts distinct members of the given chapters and how many of them joined at or
// after since.
func (r *Repository) MemberTotals(ctx context.Context, chapterIDs []uuid.UUID, since time.Time) (total, joined int, err error) {
	const q = `SELECT COUNT(DISTINCT user_id),
		COUNT(DISTINCT user_id) FILTER (WHERE joined_at >= $2)
		FROM chapter_memberships WHERE chapter_id = ANY($1)`
	err = r.db.QueryRow(ctx, q, chapterIDs, since).Scan(&total, &joined)
	return total, joined, err
}
