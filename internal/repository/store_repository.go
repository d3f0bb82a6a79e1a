package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/workeasy-api/internal/models"
)

const storeColumns = `s.id, s.name, s.address, s.phone, s.owner_id, s.created_at, s.updated_at`

const profileColumns = `id, full_name, avatar_url, role, created_at, updated_at`

// StoreRepository persists stores, memberships and profiles.
type StoreRepository struct {
	db *sqlx.DB
}

// NewStoreRepository constructs the repository.
func NewStoreRepository(db *sqlx.DB) *StoreRepository {
	return &StoreRepository{db: db}
}

// CreateAsOwner inserts the store, promotes the owner profile to manager and records the owner
// membership in a single transaction.
func (r *StoreRepository) CreateAsOwner(ctx context.Context, ownerID string, input models.CreateStoreInput) (*models.Store, error) {
	now := time.Now().UTC()
	store := &models.Store{
		ID:        uuid.NewString(),
		Name:      input.Name,
		Address:   input.Address,
		Phone:     input.Phone,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create store: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO profiles (id, role, created_at, updated_at)
	VALUES ($1, $2, $3, $3)
	ON CONFLICT (id) DO UPDATE SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at`, ownerID, models.RoleManager, now); err != nil {
		return nil, fmt.Errorf("promote store owner: %w", err)
	}

	if _, err = tx.NamedExecContext(ctx, `INSERT INTO stores (id, name, address, phone, owner_id, created_at, updated_at)
	VALUES (:id, :name, :address, :phone, :owner_id, :created_at, :updated_at)`, store); err != nil {
		return nil, fmt.Errorf("insert store: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO store_users (store_id, user_id, role, joined_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (store_id, user_id) DO UPDATE SET role = EXCLUDED.role`, store.ID, ownerID, models.RoleManager, now); err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create store: %w", err)
	}
	return store, nil
}

// GetStore fetches a store by id.
func (r *StoreRepository) GetStore(ctx context.Context, id string) (*models.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores s WHERE s.id = $1`
	var store models.Store
	if err := r.db.GetContext(ctx, &store, query, id); err != nil {
		return nil, err
	}
	return &store, nil
}

// FirstOwnedStore returns the oldest store owned by ownerID.
func (r *StoreRepository) FirstOwnedStore(ctx context.Context, ownerID string) (*models.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores s WHERE s.owner_id = $1 ORDER BY s.created_at ASC LIMIT 1`
	var store models.Store
	if err := r.db.GetContext(ctx, &store, query, ownerID); err != nil {
		return nil, err
	}
	return &store, nil
}

// FirstMembershipStore returns the store of the user's earliest membership.
func (r *StoreRepository) FirstMembershipStore(ctx context.Context, userID string) (*models.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM store_users su
	JOIN stores s ON s.id = su.store_id
	WHERE su.user_id = $1
	ORDER BY su.joined_at ASC LIMIT 1`
	var store models.Store
	if err := r.db.GetContext(ctx, &store, query, userID); err != nil {
		return nil, err
	}
	return &store, nil
}

// ListStoresForUser returns every store the user owns or belongs to.
func (r *StoreRepository) ListStoresForUser(ctx context.Context, userID string) ([]models.Store, error) {
	query := `SELECT DISTINCT ` + storeColumns + ` FROM stores s
	LEFT JOIN store_users su ON su.store_id = s.id AND su.user_id = $1
	WHERE s.owner_id = $1 OR su.user_id IS NOT NULL
	ORDER BY s.created_at ASC`
	var stores []models.Store
	if err := r.db.SelectContext(ctx, &stores, query, userID); err != nil {
		return nil, fmt.Errorf("list stores for user: %w", err)
	}
	return stores, nil
}

// MemberRole returns the user's role in the store. Owners are always managers. Non-members
// yield sql.ErrNoRows.
func (r *StoreRepository) MemberRole(ctx context.Context, storeID, userID string) (models.UserRole, error) {
	const query = `SELECT CASE WHEN s.owner_id = $2 THEN 'manager' ELSE su.role END AS role
	FROM stores s
	LEFT JOIN store_users su ON su.store_id = s.id AND su.user_id = $2
	WHERE s.id = $1 AND (s.owner_id = $2 OR su.user_id IS NOT NULL)`
	var role models.UserRole
	if err := r.db.GetContext(ctx, &role, query, storeID, userID); err != nil {
		return "", err
	}
	return role, nil
}

// ListStaff returns store members with display names.
func (r *StoreRepository) ListStaff(ctx context.Context, storeID string) ([]models.StaffMember, error) {
	const query = `SELECT su.user_id, su.role, COALESCE(NULLIF(p.full_name, ''), $2) AS full_name, p.avatar_url
	FROM store_users su
	LEFT JOIN profiles p ON p.id = su.user_id
	WHERE su.store_id = $1
	ORDER BY su.joined_at ASC`
	var staff []models.StaffMember
	if err := r.db.SelectContext(ctx, &staff, query, storeID, models.UnnamedProfile); err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return staff, nil
}

// MemberIDs returns the user ids of every store member.
func (r *StoreRepository) MemberIDs(ctx context.Context, storeID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM store_users WHERE store_id = $1 ORDER BY joined_at ASC`, storeID); err != nil {
		return nil, fmt.Errorf("list member ids: %w", err)
	}
	return ids, nil
}

// FindProfile fetches a profile. Missing profiles yield sql.ErrNoRows.
func (r *StoreRepository) FindProfile(ctx context.Context, id string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ProfilesByIDs batch loads profiles.
func (r *StoreRepository) ProfilesByIDs(ctx context.Context, ids []string) ([]models.Profile, error) {
	if len(ids) == 0 {
		return []models.Profile{}, nil
	}
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ANY($1)`
	var profiles []models.Profile
	if err := r.db.SelectContext(ctx, &profiles, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	return profiles, nil
}

// UpsertProfile creates or updates the display fields of a profile, leaving the role untouched.
func (r *StoreRepository) UpsertProfile(ctx context.Context, id string, input models.UpsertProfileInput) (*models.Profile, error) {
	const query = `INSERT INTO profiles (id, full_name, avatar_url, created_at, updated_at)
	VALUES ($1, $2, $3, NOW(), NOW())
	ON CONFLICT (id) DO UPDATE SET
		full_name = COALESCE(EXCLUDED.full_name, profiles.full_name),
		avatar_url = COALESCE(EXCLUDED.avatar_url, profiles.avatar_url),
		updated_at = NOW()
	RETURNING ` + profileColumns
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, id, input.FullName, input.AvatarURL); err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return &profile, nil
}

// IsNotFound reports whether err is a missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
