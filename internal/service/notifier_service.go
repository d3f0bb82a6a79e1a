package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/workeasy-api/internal/models"
	"github.com/noah-isme/workeasy-api/pkg/jobs"
)

// Background job types.
const (
	JobTypeExchangeEvent  = "exchange.event"
	JobTypeInvitationMail = "invitation.mail"
)

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type notificationWriter interface {
	CreateBatch(ctx context.Context, items []models.Notification) error
}

type memberLister interface {
	MemberIDs(ctx context.Context, storeID string) ([]string, error)
}

type notificationTemplate struct {
	kind  models.NotificationType
	title string
	body  string
}

var exchangeTemplates = map[models.ExchangeAction]notificationTemplate{
	models.ExchangeActionCreate: {models.NotificationExchangeCreated, "새 근무 교환 요청", "근무 교환 요청이 도착했습니다."},
	models.ExchangeActionAccept: {models.NotificationExchangeApproved, "교환 요청 수락", "요청하신 근무 교환이 수락되었습니다."},
	models.ExchangeActionReject: {models.NotificationExchangeRejected, "교환 요청 거절", "요청하신 근무 교환이 거절되었습니다."},
	models.ExchangeActionCancel: {models.NotificationExchangeCancelled, "교환 요청 취소", "근무 교환 요청이 취소되었습니다."},
}

// NotifierService turns exchange transitions into notification jobs and writes the rows when the
// jobs run. Delivery failures never reach the originating request.
type NotifierService struct {
	queue   jobEnqueuer
	members memberLister
	repo    notificationWriter
	logger  *zap.Logger
}

// NewNotifierService constructs a NotifierService.
func NewNotifierService(queue jobEnqueuer, members memberLister, repo notificationWriter, logger *zap.Logger) *NotifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotifierService{queue: queue, members: members, repo: repo, logger: logger}
}

// Publish implements ExchangePublisher.
func (s *NotifierService) Publish(_ context.Context, event models.ExchangeEvent) {
	if s.queue == nil {
		return
	}
	if _, ok := exchangeTemplates[event.Action]; !ok {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{Type: JobTypeExchangeEvent, Payload: event}); err != nil {
		s.logger.Warn("failed to enqueue exchange notification",
			zap.String("request_id", event.Request.ID),
			zap.String("action", string(event.Action)),
			zap.Error(err),
		)
	}
}

// HandleExchangeEvent is the job handler writing notification rows for an exchange event.
func (s *NotifierService) HandleExchangeEvent(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.ExchangeEvent)
	if !ok {
		s.logger.Error("unexpected exchange job payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	tpl, ok := exchangeTemplates[event.Action]
	if !ok {
		return nil
	}

	recipients, err := s.recipients(ctx, event)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	relatedID := event.Request.ID
	items := make([]models.Notification, 0, len(recipients))
	for _, userID := range recipients {
		items = append(items, models.Notification{
			UserID:    userID,
			StoreID:   event.Request.StoreID,
			Type:      tpl.kind,
			Title:     tpl.title,
			Body:      tpl.body,
			RelatedID: &relatedID,
		})
	}
	if err := s.repo.CreateBatch(ctx, items); err != nil {
		return fmt.Errorf("write exchange notifications: %w", err)
	}
	s.logger.Debug("exchange notifications written", zap.String("request_id", relatedID), zap.Int("recipients", len(items)))
	return nil
}

// recipients: create goes to the target, or every member but the requester when the request is
// open; accept and reject go to the requester; cancel goes to the target when set.
func (s *NotifierService) recipients(ctx context.Context, event models.ExchangeEvent) ([]string, error) {
	req := event.Request
	var candidates []string
	switch event.Action {
	case models.ExchangeActionCreate:
		if req.TargetUserID != nil {
			candidates = []string{*req.TargetUserID}
			break
		}
		ids, err := s.members.MemberIDs(ctx, req.StoreID)
		if err != nil {
			return nil, err
		}
		candidates = ids
	case models.ExchangeActionAccept, models.ExchangeActionReject:
		candidates = []string{req.RequesterID}
	case models.ExchangeActionCancel:
		if req.TargetUserID != nil {
			candidates = []string{*req.TargetUserID}
		}
	}

	out := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, id := range candidates {
		if id == "" || id == event.ActorID || (event.Action == models.ExchangeActionCreate && id == req.RequesterID) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
