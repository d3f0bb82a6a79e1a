package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/workeasy-api/internal/models"
)

const exchangeColumns = `id, store_id, requester_id, shift_id, target_user_id, reason, status, approved_by, approved_at, created_at, updated_at`

// ErrReassignOverlap is returned when moving a shift would double-book the acceptor.
var ErrReassignOverlap = errors.New("reassigned shift overlaps an existing shift")

// ExchangeRepository persists exchange requests and applies their status transitions.
type ExchangeRepository struct {
	db *sqlx.DB
}

// NewExchangeRepository constructs the repository.
func NewExchangeRepository(db *sqlx.DB) *ExchangeRepository {
	return &ExchangeRepository{db: db}
}

// Create inserts a pending request.
func (r *ExchangeRepository) Create(ctx context.Context, req *models.ExchangeRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Status = models.ExchangeStatusPending
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	const query = `INSERT INTO exchange_requests
	(id, store_id, requester_id, shift_id, target_user_id, reason, status, approved_by, approved_at, created_at, updated_at)
	VALUES (:id, :store_id, :requester_id, :shift_id, :target_user_id, :reason, :status, :approved_by, :approved_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create exchange request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *ExchangeRepository) GetByID(ctx context.Context, id string) (*models.ExchangeRequest, error) {
	query := `SELECT ` + exchangeColumns + ` FROM exchange_requests WHERE id = $1`
	var req models.ExchangeRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

type exchangeDetailRow struct {
	models.ExchangeRequest
	ShiftStart    *time.Time `db:"shift_start_time"`
	ShiftEnd      *time.Time `db:"shift_end_time"`
	ShiftPosition *string    `db:"shift_position"`
	ShiftExists   bool       `db:"shift_exists"`
}

// GetDetail fetches a request joined with its shift. Profiles are enriched by the caller.
func (r *ExchangeRepository) GetDetail(ctx context.Context, id string) (*models.ExchangeRequestDetail, error) {
	const query = `SELECT er.id, er.store_id, er.requester_id, er.shift_id, er.target_user_id, er.reason, er.status,
       er.approved_by, er.approved_at, er.created_at, er.updated_at,
       sh.start_time AS shift_start_time, sh.end_time AS shift_end_time, sh.position AS shift_position,
       (sh.id IS NOT NULL) AS shift_exists
	FROM exchange_requests er
	LEFT JOIN shifts sh ON sh.id = er.shift_id
	WHERE er.id = $1`
	var row exchangeDetailRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	detail := &models.ExchangeRequestDetail{ExchangeRequest: row.ExchangeRequest}
	if row.ShiftExists && row.ShiftStart != nil && row.ShiftEnd != nil {
		detail.Shift = &models.ShiftBrief{
			ID:        row.ShiftID,
			StartTime: *row.ShiftStart,
			EndTime:   *row.ShiftEnd,
			Position:  row.ShiftPosition,
		}
	}
	return detail, nil
}

// List returns store requests newest first.
func (r *ExchangeRepository) List(ctx context.Context, filter models.ExchangeFilter) ([]models.ExchangeRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(`SELECT ` + exchangeColumns + ` FROM exchange_requests`)

	conditions := make([]string, 0, 3)
	if filter.StoreID != "" {
		args = append(args, filter.StoreID)
		conditions = append(conditions, fmt.Sprintf("store_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.RequesterID != "" {
		args = append(args, filter.RequesterID)
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.ExchangeRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list exchange requests: %w", err)
	}
	return requests, nil
}

// incomingPredicate selects pending requests offered to userID, either directly or openly,
// in stores the user belongs to. $1 is the user id.
const incomingPredicate = `er.status = 'pending'
	AND er.requester_id <> $1
	AND (er.target_user_id = $1 OR er.target_user_id IS NULL)
	AND EXISTS (SELECT 1 FROM store_users su WHERE su.store_id = er.store_id AND su.user_id = $1)`

// ListIncoming returns pending requests the user may act on.
func (r *ExchangeRepository) ListIncoming(ctx context.Context, userID string) ([]models.ExchangeRequest, error) {
	query := `SELECT ` + prefixed("er", exchangeColumns) + ` FROM exchange_requests er WHERE ` + incomingPredicate + ` ORDER BY er.created_at DESC`
	var requests []models.ExchangeRequest
	if err := r.db.SelectContext(ctx, &requests, query, userID); err != nil {
		return nil, fmt.Errorf("list incoming exchange requests: %w", err)
	}
	return requests, nil
}

// ListSent returns requests created by the user.
func (r *ExchangeRepository) ListSent(ctx context.Context, userID string) ([]models.ExchangeRequest, error) {
	query := `SELECT ` + exchangeColumns + ` FROM exchange_requests WHERE requester_id = $1 ORDER BY created_at DESC`
	var requests []models.ExchangeRequest
	if err := r.db.SelectContext(ctx, &requests, query, userID); err != nil {
		return nil, fmt.Errorf("list sent exchange requests: %w", err)
	}
	return requests, nil
}

// ListAccepted returns requests approved by the user, most recent approval first.
func (r *ExchangeRepository) ListAccepted(ctx context.Context, userID string) ([]models.ExchangeRequest, error) {
	query := `SELECT ` + exchangeColumns + ` FROM exchange_requests
	WHERE approved_by = $1 AND status = 'approved'
	ORDER BY approved_at DESC`
	var requests []models.ExchangeRequest
	if err := r.db.SelectContext(ctx, &requests, query, userID); err != nil {
		return nil, fmt.Errorf("list accepted exchange requests: %w", err)
	}
	return requests, nil
}

// ListStoreSummary returns the newest compact rows for a store.
func (r *ExchangeRepository) ListStoreSummary(ctx context.Context, storeID string, limit int) ([]models.ExchangeSummary, error) {
	const query = `SELECT id, status, created_at FROM exchange_requests WHERE store_id = $1 ORDER BY created_at DESC LIMIT $2`
	var rows []models.ExchangeSummary
	if err := r.db.SelectContext(ctx, &rows, query, storeID, limit); err != nil {
		return nil, fmt.Errorf("list exchange summary: %w", err)
	}
	return rows, nil
}

// ListIncomingSummary returns the newest compact incoming rows for a user.
func (r *ExchangeRepository) ListIncomingSummary(ctx context.Context, userID string, limit int) ([]models.ExchangeSummary, error) {
	query := `SELECT er.id, er.status, er.created_at FROM exchange_requests er WHERE ` + incomingPredicate + ` ORDER BY er.created_at DESC LIMIT $2`
	var rows []models.ExchangeSummary
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list incoming exchange summary: %w", err)
	}
	return rows, nil
}

// CountPendingByStore counts pending requests in a store.
func (r *ExchangeRepository) CountPendingByStore(ctx context.Context, storeID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM exchange_requests WHERE store_id = $1 AND status = 'pending'`, storeID); err != nil {
		return 0, fmt.Errorf("count pending exchange requests: %w", err)
	}
	return count, nil
}

// CountPendingIncoming counts pending requests offered to the user.
func (r *ExchangeRepository) CountPendingIncoming(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM exchange_requests er WHERE `+incomingPredicate, userID); err != nil {
		return 0, fmt.Errorf("count incoming exchange requests: %w", err)
	}
	return count, nil
}

// Transition applies a conditional status update that only succeeds while the request is pending.
// A lost race yields models.ErrStaleTransition. With ReassignTo set, the shift is moved to that user
// in the same transaction after checking the user's schedule for overlaps.
func (r *ExchangeRepository) Transition(ctx context.Context, t models.ExchangeTransition) (*models.ExchangeRequest, error) {
	query, args := transitionQuery(t)

	if t.ReassignTo == nil {
		var updated models.ExchangeRequest
		if err := r.db.GetContext(ctx, &updated, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, models.ErrStaleTransition
			}
			return nil, fmt.Errorf("transition exchange request: %w", err)
		}
		return &updated, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin exchange transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var updated models.ExchangeRequest
	if err = tx.GetContext(ctx, &updated, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrStaleTransition
		}
		return nil, fmt.Errorf("transition exchange request: %w", err)
	}

	var shift models.Shift
	if err = tx.GetContext(ctx, &shift, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1 FOR UPDATE`, updated.ShiftID); err != nil {
		return nil, fmt.Errorf("lock exchanged shift: %w", err)
	}

	var overlaps int
	if err = tx.GetContext(ctx, &overlaps, `SELECT COUNT(*) FROM shifts
	WHERE store_id = $1 AND user_id = $2 AND start_time <= $3 AND end_time >= $4 AND id <> $5`,
		shift.StoreID, *t.ReassignTo, shift.EndTime, shift.StartTime, shift.ID); err != nil {
		return nil, fmt.Errorf("check reassigned shift overlap: %w", err)
	}
	if overlaps > 0 {
		err = ErrReassignOverlap
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE shifts SET user_id = $1, updated_at = $2 WHERE id = $3`, *t.ReassignTo, time.Now().UTC(), shift.ID); err != nil {
		return nil, fmt.Errorf("reassign shift: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit exchange transition: %w", err)
	}
	return &updated, nil
}

func transitionQuery(t models.ExchangeTransition) (string, []interface{}) {
	args := []interface{}{t.RequestID, t.To, t.ApprovedBy, t.ApprovedAt, time.Now().UTC()}
	builder := strings.Builder{}
	builder.WriteString(`UPDATE exchange_requests SET status = $2, approved_by = COALESCE($3, approved_by),
	approved_at = COALESCE($4, approved_at), updated_at = $5
	WHERE id = $1 AND status = 'pending'`)
	if t.RequesterID != "" {
		args = append(args, t.RequesterID)
		builder.WriteString(fmt.Sprintf(" AND requester_id = $%d", len(args)))
	}
	builder.WriteString(" RETURNING " + exchangeColumns)
	return builder.String(), args
}

// Delete hard deletes a request regardless of its status.
func (r *ExchangeRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM exchange_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete exchange request: %w", err)
	}
	return expectRows(result, "delete exchange request")
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
