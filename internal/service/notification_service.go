package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/workeasy-api/internal/models"
	appErrors "github.com/noah-isme/workeasy-api/pkg/errors"
)

const defaultNotificationLimit = 50

type notificationStore interface {
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string, at time.Time) error
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
}

// NotificationList is a page of notifications with the unread total.
type NotificationList struct {
	Items  []models.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

// NotificationService exposes the caller's in-app notifications.
type NotificationService struct {
	repo   notificationStore
	logger *zap.Logger
	now    func() time.Time
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(repo notificationStore, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, logger: logger, now: time.Now}
}

// List returns the caller's notifications, unread first.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) (*NotificationList, error) {
	if userID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if limit <= 0 || limit > 200 {
		limit = defaultNotificationLimit
	}
	items, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "알림을 불러오지 못했습니다")
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "알림을 불러오지 못했습니다")
	}
	if items == nil {
		items = []models.Notification{}
	}
	return &NotificationList{Items: items, Unread: unread}, nil
}

// MarkRead marks one of the caller's notifications read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if userID == "" {
		return appErrors.ErrUnauthorized
	}
	if err := s.repo.MarkRead(ctx, id, userID, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "알림을 찾을 수 없습니다.")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "알림 읽음 처리에 실패했습니다")
	}
	return nil
}

// MarkAllRead marks every unread notification of the caller read and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, appErrors.ErrUnauthorized
	}
	n, err := s.repo.MarkAllRead(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "알림 읽음 처리에 실패했습니다")
	}
	return n, nil
}
