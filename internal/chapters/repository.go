package chapters

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

// Repository handles chapter, membership and join request persistence. It implements
// authz.Directory.
type Repository struct {
	db database.DB
}

// NewRepository creates a chapter repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

var _ authz.Directory = (*Repository)(nil)

// ChapterRegion returns the region of a chapter, which may be nil.
func (r *Repository) ChapterRegion(ctx context.Context, chapterID uuid.UUID) (*uuid.UUID, error) {
	const q = `SELECT region_id FROM chapters WHERE id = $1`
	var region *uuid.UUID
	err := r.db.QueryRow(ctx, q, chapterID).Scan(&region)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("chapter %s: %w", chapterID, authz.ErrTargetNotFound)
	}
	if err != nil {
		return nil, err
	}
	return region, nil
}

// MembershipRole returns the user's role in a chapter.
func (r *Repository) MembershipRole(ctx context.Context, userID, chapterID uuid.UUID) (authz.MembershipRole, error) {
	const q = `SELECT role FROM chapter_memberships WHERE user_id = $1 AND chapter_id = $2`
	var role string
	err := r.db.QueryRow(ctx, q, userID, chapterID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("membership: %w", authz.ErrTargetNotFound)
	}
	if err != nil {
		return "", err
	}
	return authz.MembershipRole(role), nil
}

// Memberships returns every membership of a user with the chapter's region.
func (r *Repository) Memberships(ctx context.Context, userID uuid.UUID) ([]authz.MembershipRef, error) {
	const q = `SELECT m.chapter_id, c.region_id, m.role
		FROM chapter_memberships m JOIN chapters c ON c.id = m.chapter_id
		WHERE m.user_id = $1`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []authz.MembershipRef
	for rows.Next() {
		var m authz.MembershipRef
		var role string
		if err := rows.Scan(&m.ChapterID, &m.RegionID, &role); err != nil {
			return nil, err
		}
		m.Role = authz.MembershipRole(role)
		list = append(list, m)
	}
	return list, rows.Err()
}

// RegionIDs returns the ids of all regions.
func (r *Repository) RegionIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM regions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RegionExists reports whether a region exists.
func (r *Repository) RegionExists(ctx context.Context, regionID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM regions WHERE id = $1)`, regionID).Scan(&ok)
	return ok, err
}

const chapterColumns = `c.id, c.name, c.description, c.region_id, COALESCE(rg.name, ''), c.created_at, c.updated_at`

func scanChapter(row pgx.Row, ch *models.Chapter) error {
	return row.Scan(&ch.ID, &ch.Name, &ch.Description, &ch.RegionID, &ch.RegionName, &ch.CreatedAt, &ch.UpdatedAt)
}

func (r *Repository) queryChapters(ctx context.Context, q string, args ...any) ([]models.Chapter, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Chapter{}
	for rows.Next() {
		var ch models.Chapter
		if err := scanChapter(rows, &ch); err != nil {
			return nil, err
		}
		list = append(list, ch)
	}
	return list, rows.Err()
}

// Create inserts a chapter. A taken name returns authz.ErrDuplicateName.
func (r *Repository) Create(ctx context.Context, ch *models.Chapter) error {
	const q = `INSERT INTO chapters (name, description, region_id) VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, q, ch.Name, ch.Description, ch.RegionID).Scan(&ch.ID, &ch.CreatedAt, &ch.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("chapter %q: %w", ch.Name, authz.ErrDuplicateName)
	}
	return err
}

// GetByID returns a chapter.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Chapter, error) {
	q := `SELECT ` + chapterColumns + ` FROM chapters c LEFT JOIN regions rg ON rg.id = c.region_id WHERE c.id = $1`
	var ch models.Chapter
	err := scanChapter(r.db.QueryRow(ctx, q, id), &ch)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("chapter %s: %w", id, authz.ErrTargetNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// List returns all chapters ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Chapter, error) {
	q := `SELECT ` + chapterColumns + ` FROM chapters c LEFT JOIN regions rg ON rg.id = c.region_id ORDER BY c.name`
	return r.queryChapters(ctx, q)
}

// ListByRegion returns the chapters of a region.
func (r *Repository) ListByRegion(ctx context.Context, regionID uuid.UUID) ([]models.Chapter, error) {
	q := `SELECT ` + chapterColumns + ` FROM chapters c LEFT JOIN regions rg ON rg.id = c.region_id
		WHERE c.region_id = $1 ORDER BY c.name`
	return r.queryChapters(ctx, q, regionID)
}

// ListForUser returns the chapters the user is a member of.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Chapter, error) {
	q := `SELECT ` + chapterColumns + ` FROM chapters c LEFT JOIN regions rg ON rg.id = c.region_id
		JOIN chapter_memberships m ON m.chapter_id = c.id
		WHERE m.user_id = $1 ORDER BY c.name`
	return r.queryChapters(ctx, q, userID)
}

// ListManaged returns the chapters a user can manage: every chapter for a Co-founder, the managed
// region's chapters for a Regional Organiser, plus chapters where the user is a City Organiser.
func (r *Repository) ListManaged(ctx context.Context, user authz.Subject) ([]models.Chapter, error) {
	q := `SELECT ` + chapterColumns + ` FROM chapters c LEFT JOIN regions rg ON rg.id = c.region_id
		WHERE $1
		   OR ($2::uuid IS NOT NULL AND c.region_id = $2)
		   OR EXISTS (SELECT 1 FROM chapter_memberships m
		              WHERE m.chapter_id = c.id AND m.user_id = $3 AND m.role = 'CITY_ORGANISER')
		ORDER BY c.name`
	var region *uuid.UUID
	if user.Role == authz.RoleRegionalOrganiser {
		region = user.ManagedRegionID
	}
	return r.queryChapters(ctx, q, user.Role == authz.RoleCofounder, region, user.ID)
}

// ListNames returns id and name of every chapter for the public registration form.
func (r *Repository) ListNames(ctx context.Context) ([]models.Chapter, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM chapters ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Chapter{}
	for rows.Next() {
		var ch models.Chapter
		if err := rows.Scan(&ch.ID, &ch.Name); err != nil {
			return nil, err
		}
		list = append(list, ch)
	}
	return list, rows.Err()
}

// Stats returns member and activity counts for a chapter.
func (r *Repository) Stats(ctx context.Context, chapterID uuid.UUID) (*models.ChapterStats, error) {
	const q = `SELECT
		(SELECT COUNT(*) FROM chapter_memberships WHERE chapter_id = $1),
		(SELECT COUNT(*) FROM chapter_memberships WHERE chapter_id = $1 AND role = 'CITY_ORGANISER'),
		(SELECT COUNT(*) FROM join_requests WHERE chapter_id = $1),
		(SELECT COUNT(*) FROM events WHERE chapter_id = $1 AND start_time >= NOW())`
	s := models.ChapterStats{ChapterID: chapterID}
	if err := r.db.QueryRow(ctx, q, chapterID).Scan(&s.MemberCount, &s.OrganiserCount, &s.PendingRequests, &s.UpcomingEvents); err != nil {
		return nil, err
	}
	return &s, nil
}

// Members lists the members of a chapter, organisers first.
func (r *Repository) Members(ctx context.Context, chapterID uuid.UUID) ([]models.ChapterMember, error) {
	const q = `SELECT u.id, u.name, u.email, u.role, m.role, m.joined_at
		FROM chapter_memberships m JOIN users u ON u.id = m.user_id
		WHERE m.chapter_id = $1
		ORDER BY m.role DESC, u.name`
	rows, err := r.db.Query(ctx, q, chapterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.ChapterMember{}
	for rows.Next() {
		var m models.ChapterMember
		var role string
		if err := rows.Scan(&m.User.ID, &m.User.Name, &m.User.Email, &m.GlobalRole, &role, &m.JoinedAt); err != nil {
			return nil, err
		}
		m.Role = authz.MembershipRole(role)
		list = append(list, m)
	}
	return list, rows.Err()
}

// AddMember makes the user a member of the chapter and clears any pending join request for
// the pair. An existing membership keeps its role; created reports whether a row was inserted.
func (r *Repository) AddMember(ctx context.Context, userID, chapterID uuid.UUID, role authz.MembershipRole) (created bool, err error) {
	err = database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		const ins = `INSERT INTO chapter_memberships (user_id, chapter_id, role) VALUES ($1, $2, $3)
			ON CONFLICT (user_id, chapter_id) DO NOTHING`
		tag, err := tx.Exec(ctx, ins, userID, chapterID, string(role))
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("user %s: %w", userID, authz.ErrTargetNotFound)
		}
		if err != nil {
			return err
		}
		created = tag.RowsAffected() == 1
		_, err = tx.Exec(ctx, `DELETE FROM join_requests WHERE user_id = $1 AND chapter_id = $2`, userID, chapterID)
		return err
	})
	return created, err
}

// UpsertOrganiser makes the user a City Organiser member of the chapter.
func (r *Repository) UpsertOrganiser(ctx context.Context, userID, chapterID uuid.UUID) error {
	return r.UpsertMembership(ctx, userID, chapterID, authz.MembershipCityOrganiser)
}

// UpsertMembership creates the membership or updates its role.
func (r *Repository) UpsertMembership(ctx context.Context, userID, chapterID uuid.UUID, role authz.MembershipRole) error {
	const q = `INSERT INTO chapter_memberships (user_id, chapter_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, chapter_id) DO UPDATE SET role = EXCLUDED.role`
	_, err := r.db.Exec(ctx, q, userID, chapterID, string(role))
	return err
}

func demotable(role authz.Role) bool { return role == authz.RoleCityOrganiser }

// demoteAfterRemoval reports whether a user left with remaining memberships drops to Activist.
// Only City Organisers lose their role; Regional Organisers and Co-founders keep theirs.
func demoteAfterRemoval(role authz.Role, remaining int) bool {
	return demotable(role) && remaining == 0
}

// RemoveMember deletes a membership. When the user is globally a City Organiser and this was
// their last membership, their global role drops to Activist. demoted reports that case.
func (r *Repository) RemoveMember(ctx context.Context, chapterID, userID uuid.UUID) (demoted bool, err error) {
	err = database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var role authz.Role
		err := tx.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&role)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("user %s: %w", userID, authz.ErrTargetNotFound)
		}
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM chapter_memberships WHERE user_id = $1 AND chapter_id = $2`, userID, chapterID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("membership: %w", authz.ErrTargetNotFound)
		}
		if !demotable(role) {
			return nil
		}

		var remaining int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM chapter_memberships WHERE user_id = $1`, userID).Scan(&remaining); err != nil {
			return err
		}
		if !demoteAfterRemoval(role, remaining) {
			return nil
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET role = 'ACTIVIST', updated_at = NOW() WHERE id = $1`, userID); err != nil {
			return err
		}
		demoted = true
		return nil
	})
	return demoted, err
}

// RequestJoin records a pending join request. An existing membership or pending request for
// the pair returns authz.ErrDuplicateMembership; an unknown chapter returns authz.ErrTargetNotFound.
func (r *Repository) RequestJoin(ctx context.Context, userID, chapterID uuid.UUID) (*models.JoinRequest, error) {
	if _, err := r.ChapterRegion(ctx, chapterID); err != nil {
		return nil, err
	}
	_, err := r.MembershipRole(ctx, userID, chapterID)
	if err == nil {
		return nil, fmt.Errorf("already a member of this chapter: %w", authz.ErrDuplicateMembership)
	}
	if !errors.Is(err, authz.ErrTargetNotFound) {
		return nil, err
	}

	const q = `INSERT INTO join_requests (user_id, chapter_id) VALUES ($1, $2)
		RETURNING id, status, created_at`
	jr := &models.JoinRequest{UserID: userID, ChapterID: chapterID}
	err = r.db.QueryRow(ctx, q, userID, chapterID).Scan(&jr.ID, &jr.Status, &jr.CreatedAt)
	if database.IsUniqueViolation(err) {
		return nil, fmt.Errorf("join request already pending: %w", authz.ErrDuplicateMembership)
	}
	if err != nil {
		return nil, err
	}
	return jr, nil
}

// JoinRequests lists the pending requests of a chapter, newest first.
func (r *Repository) JoinRequests(ctx context.Context, chapterID uuid.UUID) ([]models.JoinRequest, error) {
	const q = `SELECT j.id, j.user_id, j.chapter_id, c.name, j.status, u.id, u.name, u.email, j.created_at
		FROM join_requests j
		JOIN users u ON u.id = j.user_id
		JOIN chapters c ON c.id = j.chapter_id
		WHERE j.chapter_id = $1
		ORDER BY j.created_at DESC`
	return r.queryJoinRequests(ctx, q, chapterID)
}

func (r *Repository) queryJoinRequests(ctx context.Context, q string, args ...any) ([]models.JoinRequest, error) {
	rows, err := r.db.Query(ctx, q, args...)
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

// ResolveJoinRequest approves or denies a pending request of chapterID. Approval creates an
// Activist membership; either way the request is deleted, all in one transaction.
func (r *Repository) ResolveJoinRequest(ctx context.Context, chapterID, requestID uuid.UUID, approve bool) (*models.JoinRequest, error) {
	var jr models.JoinRequest
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		const sel = `SELECT id, user_id, chapter_id, status, created_at FROM join_requests WHERE id = $1 FOR UPDATE`
		err := tx.QueryRow(ctx, sel, requestID).Scan(&jr.ID, &jr.UserID, &jr.ChapterID, &jr.Status, &jr.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && jr.ChapterID != chapterID) {
			return fmt.Errorf("join request %s: %w", requestID, authz.ErrTargetNotFound)
		}
		if err != nil {
			return err
		}
		if approve {
			const ins = `INSERT INTO chapter_memberships (user_id, chapter_id, role) VALUES ($1, $2, 'ACTIVIST')
				ON CONFLICT (user_id, chapter_id) DO NOTHING`
			if _, err := tx.Exec(ctx, ins, jr.UserID, jr.ChapterID); err != nil {
				return err
			}
		}
		_, err = tx.Exec(ctx, `DELETE FROM join_requests WHERE id = $1`, requestID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &jr, nil
}
