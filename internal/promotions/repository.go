package promotions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/chapters"
	"github.com/chapterhub/backend/pkg/database"
)

// Repository implements authz.PromotionStore on PostgreSQL.
type Repository struct {
	db database.DB
}

// NewRepository creates a promotion repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

var _ authz.PromotionStore = (*Repository)(nil)

// InTx runs fn in one transaction. Chapter and membership reads go through the same tx.
func (r *Repository) InTx(ctx context.Context, fn func(tx authz.PromotionTx) error) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&txStore{Repository: chapters.NewRepository(tx), tx: tx})
	})
}

type txStore struct {
	*chapters.Repository
	tx pgx.Tx
}

func (s *txStore) subject(ctx context.Context, q string, userID uuid.UUID) (authz.Subject, error) {
	var sub authz.Subject
	err := s.tx.QueryRow(ctx, q, userID).Scan(&sub.ID, &sub.Role, &sub.ManagedRegionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return authz.Subject{}, fmt.Errorf("user %s: %w", userID, authz.ErrTargetNotFound)
	}
	if err != nil {
		return authz.Subject{}, err
	}
	return sub, nil
}

func (s *txStore) Subject(ctx context.Context, userID uuid.UUID) (authz.Subject, error) {
	return s.subject(ctx, `SELECT id, role, managed_region_id FROM users WHERE id = $1`, userID)
}

func (s *txStore) LockSubject(ctx context.Context, userID uuid.UUID) (authz.Subject, error) {
	return s.subject(ctx, `SELECT id, role, managed_region_id FROM users WHERE id = $1 FOR UPDATE`, userID)
}

func (s *txStore) SetRole(ctx context.Context, userID uuid.UUID, role authz.Role, managedRegionID *uuid.UUID) error {
	const q = `UPDATE users SET role = $1, managed_region_id = $2, updated_at = NOW() WHERE id = $3`
	tag, err := s.tx.Exec(ctx, q, role.String(), managedRegionID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, authz.ErrTargetNotFound)
	}
	return nil
}
