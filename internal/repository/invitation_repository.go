package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/workeasy-api/internal/models"
)

const invitationColumns = `id, store_id, inviter_id, invitee_email, role, code, max_uses, uses, expires_at, created_at`

// ErrInvitationUnusable covers unknown, expired and exhausted codes alike.
var ErrInvitationUnusable = errors.New("invitation code is not redeemable")

// InvitationRepository persists invitations and redeems them.
type InvitationRepository struct {
	db *sqlx.DB
}

// NewInvitationRepository constructs the repository.
func NewInvitationRepository(db *sqlx.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// Create inserts an invitation.
func (r *InvitationRepository) Create(ctx context.Context, inv *models.Invitation) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Role == "" {
		inv.Role = models.RoleStaff
	}
	if inv.MaxUses <= 0 {
		inv.MaxUses = 1
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO invitations (id, store_id, inviter_id, invitee_email, role, code, max_uses, uses, expires_at, created_at)
	VALUES (:id, :store_id, :inviter_id, :invitee_email, :role, :code, :max_uses, :uses, :expires_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, inv); err != nil {
		return fmt.Errorf("create invitation: %w", err)
	}
	return nil
}

// GetByID fetches an invitation by identifier.
func (r *InvitationRepository) GetByID(ctx context.Context, id string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE id = $1`
	var inv models.Invitation
	if err := r.db.GetContext(ctx, &inv, query, id); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListByStore returns a store's invitations newest first.
func (r *InvitationRepository) ListByStore(ctx context.Context, storeID string) ([]models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE store_id = $1 ORDER BY created_at DESC`
	var invitations []models.Invitation
	if err := r.db.SelectContext(ctx, &invitations, query, storeID); err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	return invitations, nil
}

// Delete removes an invitation scoped to its store.
func (r *InvitationRepository) Delete(ctx context.Context, id, storeID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM invitations WHERE id = $1 AND store_id = $2`, id, storeID)
	if err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}
	return expectRows(result, "delete invitation")
}

// Accept redeems code for userID. The invitation row is locked for the duration of the
// transaction so concurrent redemptions cannot exceed max_uses. Existing members keep their
// membership and do not consume a use.
func (r *InvitationRepository) Accept(ctx context.Context, code, userID string, now time.Time) (*models.AcceptInvitationResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin accept invitation: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var inv models.Invitation
	if err = tx.GetContext(ctx, &inv, `SELECT `+invitationColumns+` FROM invitations WHERE code = $1 FOR UPDATE`, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrInvitationUnusable
			return nil, err
		}
		return nil, fmt.Errorf("lock invitation: %w", err)
	}

	var existing models.UserRole
	err = tx.GetContext(ctx, &existing, `SELECT role FROM store_users WHERE store_id = $1 AND user_id = $2`, inv.StoreID, userID)
	switch {
	case err == nil:
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit accept invitation: %w", err)
		}
		return &models.AcceptInvitationResult{StoreID: inv.StoreID, Role: existing}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("check membership: %w", err)
	}

	if !inv.Redeemable(now) {
		err = ErrInvitationUnusable
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE invitations SET uses = uses + 1 WHERE id = $1`, inv.ID); err != nil {
		return nil, fmt.Errorf("consume invitation: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO profiles (id, role, created_at, updated_at)
	VALUES ($1, $2, $3, $3)
	ON CONFLICT (id) DO UPDATE SET role = COALESCE(profiles.role, EXCLUDED.role), updated_at = EXCLUDED.updated_at`, userID, inv.Role, now); err != nil {
		return nil, fmt.Errorf("ensure invitee profile: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO store_users (store_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)`,
		inv.StoreID, userID, inv.Role, now); err != nil {
		return nil, fmt.Errorf("insert membership: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit accept invitation: %w", err)
	}
	return &models.AcceptInvitationResult{StoreID: inv.StoreID, Role: inv.Role}, nil
}
