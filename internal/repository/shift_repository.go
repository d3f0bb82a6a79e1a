package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/workeasy-api/internal/models"
)

const shiftColumns = `id, store_id, user_id, start_time, end_time, position, status, notes, created_at, updated_at`

// ShiftRepository persists shifts.
type ShiftRepository struct {
	db *sqlx.DB
}

// NewShiftRepository constructs the repository.
func NewShiftRepository(db *sqlx.DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

// List returns shifts matching the filter ordered by start time.
func (r *ShiftRepository) List(ctx context.Context, filter models.ShiftFilter) ([]models.Shift, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(`SELECT ` + shiftColumns + ` FROM shifts`)

	conditions := make([]string, 0, 6)
	if filter.StoreID != "" {
		args = append(args, filter.StoreID)
		conditions = append(conditions, fmt.Sprintf("store_id = $%d", len(args)))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		conditions = append(conditions, fmt.Sprintf("start_time >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		conditions = append(conditions, fmt.Sprintf("start_time <= $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Position != "" {
		args = append(args, filter.Position)
		conditions = append(conditions, fmt.Sprintf("position = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY start_time ASC")

	var shifts []models.Shift
	if err := r.db.SelectContext(ctx, &shifts, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	return shifts, nil
}

// ListByDateRange returns shifts fully contained in [start, end].
func (r *ShiftRepository) ListByDateRange(ctx context.Context, storeID string, start, end time.Time) ([]models.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts
	WHERE store_id = $1 AND start_time >= $2 AND end_time <= $3
	ORDER BY start_time ASC`
	var shifts []models.Shift
	if err := r.db.SelectContext(ctx, &shifts, query, storeID, start, end); err != nil {
		return nil, fmt.Errorf("list shifts by range: %w", err)
	}
	return shifts, nil
}

// ListWithStaff returns shifts in range with assignee display names for exports.
func (r *ShiftRepository) ListWithStaff(ctx context.Context, storeID string, start, end time.Time) ([]models.ShiftWithStaff, error) {
	const query = `SELECT sh.id, sh.store_id, sh.user_id, sh.start_time, sh.end_time, sh.position, sh.status, sh.notes,
       sh.created_at, sh.updated_at, p.full_name AS staff_name
	FROM shifts sh
	LEFT JOIN profiles p ON p.id = sh.user_id
	WHERE sh.store_id = $1 AND sh.start_time >= $2 AND sh.start_time <= $3
	ORDER BY sh.start_time ASC`
	var shifts []models.ShiftWithStaff
	if err := r.db.SelectContext(ctx, &shifts, query, storeID, start, end); err != nil {
		return nil, fmt.Errorf("list shifts with staff: %w", err)
	}
	return shifts, nil
}

// GetByID fetches a shift by identifier.
func (r *ShiftRepository) GetByID(ctx context.Context, id string) (*models.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE id = $1`
	var shift models.Shift
	if err := r.db.GetContext(ctx, &shift, query, id); err != nil {
		return nil, err
	}
	return &shift, nil
}

// FindOverlapping returns shifts intersecting the inclusive candidate interval.
func (r *ShiftRepository) FindOverlapping(ctx context.Context, q models.OverlapQuery) ([]models.Shift, error) {
	query, args := overlapQuery(q)
	var shifts []models.Shift
	if err := r.db.SelectContext(ctx, &shifts, query, args...); err != nil {
		return nil, fmt.Errorf("check shift overlap: %w", err)
	}
	return shifts, nil
}

func overlapQuery(q models.OverlapQuery) (string, []interface{}) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + shiftColumns + ` FROM shifts WHERE store_id = $1 AND start_time <= $2 AND end_time >= $3`)
	args := []interface{}{q.StoreID, q.End, q.Start}
	if q.UserID != nil {
		args = append(args, *q.UserID)
		builder.WriteString(fmt.Sprintf(" AND user_id = $%d", len(args)))
	}
	if q.ExcludeID != "" {
		args = append(args, q.ExcludeID)
		builder.WriteString(fmt.Sprintf(" AND id <> $%d", len(args)))
	}
	builder.WriteString(" ORDER BY start_time ASC")
	return builder.String(), args
}

// Create inserts a shift.
func (r *ShiftRepository) Create(ctx context.Context, shift *models.Shift) error {
	if shift.ID == "" {
		shift.ID = uuid.NewString()
	}
	if shift.Status == "" {
		shift.Status = models.ShiftStatusPending
	}
	now := time.Now().UTC()
	if shift.CreatedAt.IsZero() {
		shift.CreatedAt = now
	}
	shift.UpdatedAt = now
	const query = `INSERT INTO shifts (id, store_id, user_id, start_time, end_time, position, status, notes, created_at, updated_at)
	VALUES (:id, :store_id, :user_id, :start_time, :end_time, :position, :status, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, shift); err != nil {
		return fmt.Errorf("create shift: %w", err)
	}
	return nil
}

// Update persists mutable shift columns. Missing rows yield sql.ErrNoRows.
func (r *ShiftRepository) Update(ctx context.Context, shift *models.Shift) error {
	shift.UpdatedAt = time.Now().UTC()
	const query = `UPDATE shifts SET user_id = :user_id, start_time = :start_time, end_time = :end_time,
	position = :position, status = :status, notes = :notes, updated_at = :updated_at
	WHERE id = :id AND store_id = :store_id`
	result, err := r.db.NamedExecContext(ctx, query, shift)
	if err != nil {
		return fmt.Errorf("update shift: %w", err)
	}
	return expectRows(result, "update shift")
}

// Delete removes a shift scoped to its store.
func (r *ShiftRepository) Delete(ctx context.Context, id, storeID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM shifts WHERE id = $1 AND store_id = $2`, id, storeID)
	if err != nil {
		return fmt.Errorf("delete shift: %w", err)
	}
	return expectRows(result, "delete shift")
}
