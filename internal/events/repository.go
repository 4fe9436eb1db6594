package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/pkg/database"
)

// Kind names the tables behind one schedulable content type.
type Kind struct {
	Name              string // event | training
	Table             string
	RegistrationTable string
	ForeignKey        string
}

var (
	// EventKind stores events.
	EventKind = Kind{Name: "event", Table: "events", RegistrationTable: "event_registrations", ForeignKey: "event_id"}
	// TrainingKind stores trainings.
	TrainingKind = Kind{Name: "training", Table: "trainings", RegistrationTable: "training_registrations", ForeignKey: "training_id"}
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository handles events or trainings persistence, depending on its Kind.
type Repository struct {
	db   database.DB
	kind Kind
}

// NewRepository creates a repository for kind.
func NewRepository(db database.DB, kind Kind) *Repository {
	return &Repository{db: db, kind: kind}
}

// Kind returns the content type this repository stores.
func (r *Repository) Kind() Kind { return r.kind }

func (r *Repository) notFound(id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", r.kind.Name, id, authz.ErrTargetNotFound)
}

// selectEvents builds the common listing query. viewer drives is_registered.
func (r *Repository) selectEvents(viewer uuid.UUID) sq.SelectBuilder {
	return psql.Select(
		"e.id", "e.scope", "e.author_id", "e.author_role", "e.chapter_id", "e.region_id",
		"e.title", "e.description", "e.location", "e.start_time", "e.end_time",
		"COALESCE(c.name, '')", "COALESCE(rg.name, '')", "e.created_at", "e.updated_at",
	).
		Column(fmt.Sprintf("(SELECT COUNT(*) FROM %s x WHERE x.%s = e.id)", r.kind.RegistrationTable, r.kind.ForeignKey)).
		Column(sq.Expr(fmt.Sprintf("EXISTS (SELECT 1 FROM %s x WHERE x.%s = e.id AND x.user_id = ?)", r.kind.RegistrationTable, r.kind.ForeignKey), viewer)).
		From(r.kind.Table + " e").
		LeftJoin("chapters c ON c.id = e.chapter_id").
		LeftJoin("regions rg ON rg.id = COALESCE(e.region_id, c.region_id)")
}

func scanEvent(row pgx.Row, e *models.Event) error {
	return row.Scan(&e.ID, &e.Scope, &e.AuthorID, &e.AuthorRole, &e.ChapterID, &e.RegionID,
		&e.Title, &e.Description, &e.Location, &e.StartTime, &e.EndTime,
		&e.ChapterName, &e.RegionName, &e.CreatedAt, &e.UpdatedAt,
		&e.AttendeeCount, &e.IsRegistered)
}

// Create inserts e. ID and timestamps are set from the database.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	q := fmt.Sprintf(`INSERT INTO %s (title, description, location, start_time, end_time, scope, author_id, author_role, chapter_id, region_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`, r.kind.Table)
	return r.db.QueryRow(ctx, q, e.Title, e.Description, e.Location, e.StartTime, e.EndTime,
		string(e.Scope), e.AuthorID, e.AuthorRole.String(), e.ChapterID, e.RegionID,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns one item with counts computed for viewer.
func (r *Repository) GetByID(ctx context.Context, id, viewer uuid.UUID) (*models.Event, error) {
	q, args, err := r.selectEvents(viewer).Where(sq.Eq{"e.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var e models.Event
	if err := scanEvent(r.db.QueryRow(ctx, q, args...), &e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.notFound(id)
		}
		return nil, err
	}
	return &e, nil
}

// Content returns the authorization view of one item.
func (r *Repository) Content(ctx context.Context, id uuid.UUID) (authz.Content, error) {
	q := fmt.Sprintf(`SELECT id, scope, author_id, author_role, chapter_id, region_id FROM %s WHERE id = $1`, r.kind.Table)
	var c authz.Content
	err := r.db.QueryRow(ctx, q, id).Scan(&c.ID, &c.Scope, &c.AuthorID, &c.AuthorRole, &c.ChapterID, &c.RegionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return authz.Content{}, r.notFound(id)
	}
	return c, err
}

// ListVisible returns items visible under vis that have not ended by from, soonest first.
func (r *Repository) ListVisible(ctx context.Context, vis authz.Visibility, viewer uuid.UUID, from time.Time, limit int) ([]models.Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q, args, err := r.selectEvents(viewer).
		Where(vis.Predicate("e")).
		Where(sq.GtOrEq{"e.end_time": from}).
		OrderBy("e.start_time ASC").
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
	var list []models.Event
	for rows.Next() {
		var e models.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// UpdateFields holds optional updates. Audience fields are immutable.
type UpdateFields struct {
	Title       *string
	Description *string
	Location    *string
	StartTime   *time.Time
	EndTime     *time.Time
}

// Update applies the non-nil fields of f.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, f UpdateFields) error {
	b := psql.Update(r.kind.Table).Set("updated_at", sq.Expr("NOW()")).Where(sq.Eq{"id": id})
	if f.Title != nil {
		b = b.Set("title", *f.Title)
	}
	if f.Description != nil {
		b = b.Set("description", *f.Description)
	}
	if f.Location != nil {
		b = b.Set("location", *f.Location)
	}
	if f.StartTime != nil {
		b = b.Set("start_time", *f.StartTime)
	}
	if f.EndTime != nil {
		b = b.Set("end_time", *f.EndTime)
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
		return r.notFound(id)
	}
	return nil
}

// Delete removes an item and, by cascade, its registrations and comments.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.kind.Table), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.notFound(id)
	}
	return nil
}

// Register records userID's RSVP. A repeat RSVP returns authz.ErrDuplicateMembership.
func (r *Repository) Register(ctx context.Context, id, userID uuid.UUID) error {
	q := fmt.Sprintf(`INSERT INTO %s (user_id, %s) VALUES ($1, $2)`, r.kind.RegistrationTable, r.kind.ForeignKey)
	_, err := r.db.Exec(ctx, q, userID, id)
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("already registered for this %s: %w", r.kind.Name, authz.ErrDuplicateMembership)
	}
	return err
}

// CancelRegistration removes userID's RSVP.
func (r *Repository) CancelRegistration(ctx context.Context, id, userID uuid.UUID) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND %s = $2`, r.kind.RegistrationTable, r.kind.ForeignKey)
	tag, err := r.db.Exec(ctx, q, userID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("registration: %w", authz.ErrTargetNotFound)
	}
	return nil
}

// Registrations lists RSVPs with the registrant, oldest first.
func (r *Repository) Registrations(ctx context.Context, id uuid.UUID) ([]models.Registration, error) {
	q := fmt.Sprintf(`SELECT x.user_id, x.%s, x.attended, x.registered_at, u.id, u.name, u.email
		FROM %s x JOIN users u ON u.id = x.user_id
		WHERE x.%s = $1
		ORDER BY x.registered_at`, r.kind.ForeignKey, r.kind.RegistrationTable, r.kind.ForeignKey)
	rows, err := r.db.Query(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := rows.Scan(&reg.UserID, &reg.TargetID, &reg.Attended, &reg.RegisteredAt, &reg.User.ID, &reg.User.Name, &reg.User.Email); err != nil {
			return nil, err
		}
		list = append(list, reg)
	}
	return list, rows.Err()
}

// MarkAttendance sets the attended flag of one RSVP.
func (r *Repository) MarkAttendance(ctx context.Context, id, userID uuid.UUID, attended bool) error {
	q := fmt.Sprintf(`UPDATE %s SET attended = $3 WHERE user_id = $1 AND %s = $2`, r.kind.RegistrationTable, r.kind.ForeignKey)
	tag, err := r.db.Exec(ctx, q, userID, id, attended)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("registration: %w", authz.ErrTargetNotFound)
	}
	return nil
}

// Attended returns the items userID attended, newest first.
func (r *Repository) Attended(ctx context.Context, userID uuid.UUID) ([]models.AttendedEvent, error) {
	q := fmt.Sprintf(`SELECT e.id, e.title, e.start_time, e.end_time, COALESCE(c.name, '')
		FROM %s x
		JOIN %s e ON e.id = x.%s
		LEFT JOIN chapters c ON c.id = e.chapter_id
		WHERE x.user_id = $1 AND x.attended
		ORDER BY e.start_time DESC`, r.kind.RegistrationTable, r.kind.Table, r.kind.ForeignKey)
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.AttendedEvent
	for rows.Next() {
		var a models.AttendedEvent
		if err := rows.Scan(&a.ID, &a.Title, &a.StartTime, &a.EndTime, &a.ChapterName); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// UpcomingInChapters returns items starting after from in any of chapterIDs or regionIDs.
func (r *Repository) UpcomingInChapters(ctx context.Context, chapterIDs, regionIDs []uuid.UUID, from time.Time, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 10
	}
	q, args, err := r.selectEvents(uuid.Nil).
		Where(sq.Or{
			sq.Expr("e.chapter_id = ANY(?)", chapterIDs),
			sq.Expr("COALESCE(e.region_id, c.region_id) = ANY(?)", regionIDs),
		}).
		Where(sq.GtOrEq{"e.start_time": from}).
		OrderBy("e.start_time ASC").
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
	var list []models.Event
	for rows.Next() {
		var e models.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
