package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"

	"github.com/noah-isme/workeasy-api/internal/models"
)

const notificationColumns = `id, user_id, store_id, type, title, body, related_id, read_at, created_at`

// NotificationRepository persists in-app notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateBatch inserts notifications in one transaction, assigning ULIDs where missing.
func (r *NotificationRepository) CreateBatch(ctx context.Context, items []models.Notification) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create notifications: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const query = `INSERT INTO notifications (id, user_id, store_id, type, title, body, related_id, read_at, created_at)
	VALUES (:id, :user_id, :store_id, :type, :title, :body, :related_id, :read_at, :created_at)`
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = ulid.Make().String()
		}
		if items[i].CreatedAt.IsZero() {
			items[i].CreatedAt = now
		}
		if _, err = tx.NamedExecContext(ctx, query, &items[i]); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit notifications: %w", err)
	}
	return nil
}

// ListByUser returns the user's notifications, unread first then newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY (read_at IS NULL) DESC, created_at DESC LIMIT $2`
	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// CountUnread counts unread notifications.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one notification read. Foreign or missing ids yield sql.ErrNoRows.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET read_at = COALESCE(read_at, $3) WHERE id = $1 AND user_id = $2`, id, userID, at)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return expectRows(result, "mark notification read")
}

// MarkAllRead marks every unread notification of the user read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET read_at = $2 WHERE user_id = $1 AND read_at IS NULL`, userID, at)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check mark all read rows: %w", err)
	}
	return rows, nil
}
