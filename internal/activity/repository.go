package activity

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/pkg/database"
	"github.com/chapterhub/backend/pkg/queue"
)

// Repository handles activity_logs persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates an activity repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Insert stores one entry. id is the job id, so a retried job writes at most one row.
func (r *Repository) Insert(ctx context.Context, id uuid.UUID, p queue.ActivityPayload) error {
	detail := p.Detail
	if detail == nil {
		detail = map[string]any{}
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	const q = `INSERT INTO activity_logs (id, kind, actor_id, subject_id, chapter_id, region_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`
	_, err = r.db.Exec(ctx, q, id, p.Kind, p.ActorID, p.SubjectID, p.ChapterID, p.RegionID, raw)
	return err
}

// ListForChapters returns the newest entries touching any of the given chapters or regions.
func (r *Repository) ListForChapters(ctx context.Context, chapterIDs, regionIDs []uuid.UUID, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const q = `SELECT id, kind, actor_id, subject_id, chapter_id, region_id, detail, created_at
		FROM activity_logs
		WHERE chapter_id = ANY($1) OR region_id = ANY($2)
		ORDER BY created_at DESC
		LIMIT $3`
	return r.list(ctx, q, chapterIDs, regionIDs, limit)
}

// ListRecent returns the newest entries across the organisation.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const q = `SELECT id, kind, actor_id, subject_id, chapter_id, region_id, detail, created_at
		FROM activity_logs
		ORDER BY created_at DESC
		LIMIT $1`
	return r.list(ctx, q, limit)
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]models.ActivityLog, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ActivityLog
	for rows.Next() {
		var a models.ActivityLog
		if err := rows.Scan(&a.ID, &a.Kind, &a.ActorID, &a.SubjectID, &a.ChapterID, &a.RegionID, &a.Detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
