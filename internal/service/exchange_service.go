package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/workeasy-api/internal/models"
	"github.com/noah-isme/workeasy-api/internal/repository"
	appErrors "github.com/noah-isme/workeasy-api/pkg/errors"
	"github.com/noah-isme/workeasy-api/pkg/querycache"
)

const (
	exchangeStaleTime   = 30 * time.Second
	exchangeSummarySize = 50
)

// Failure messages shown to the caller when a request write fails unexpectedly.
const (
	msgExchangeCreate = "교환 요청 생성에 실패했습니다"
	msgExchangeAccept = "교환 요청 수락에 실패했습니다"
	msgExchangeReject = "교환 요청 거절에 실패했습니다"
	msgExchangeCancel = "교환 요청 취소에 실패했습니다"
	msgExchangeUpdate = "교환 요청 업데이트에 실패했습니다"
	msgExchangeDelete = "교환 요청 삭제에 실패했습니다"
)

var exchangeFailureMessages = map[models.ExchangeAction]string{
	models.ExchangeActionCreate: msgExchangeCreate,
	models.ExchangeActionAccept: msgExchangeAccept,
	models.ExchangeActionReject: msgExchangeReject,
	models.ExchangeActionCancel: msgExchangeCancel,
	models.ExchangeActionUpdate: msgExchangeUpdate,
	models.ExchangeActionDelete: msgExchangeDelete,
}

type exchangeStore interface {
	Create(ctx context.Context, req *models.ExchangeRequest) error
	GetByID(ctx context.Context, id string) (*models.ExchangeRequest, error)
	GetDetail(ctx context.Context, id string) (*models.ExchangeRequestDetail, error)
	List(ctx context.Context, filter models.ExchangeFilter) ([]models.ExchangeRequest, error)
	ListIncoming(ctx context.Context, userID string) ([]models.ExchangeRequest, error)
	ListSent(ctx context.Context, userID string) ([]models.ExchangeRequest, error)
	ListAccepted(ctx context.Context, userID string) ([]models.ExchangeRequest, error)
	ListStoreSummary(ctx context.Context, storeID string, limit int) ([]models.ExchangeSummary, error)
	ListIncomingSummary(ctx context.Context, userID string, limit int) ([]models.ExchangeSummary, error)
	Transition(ctx context.Context, t models.ExchangeTransition) (*models.ExchangeRequest, error)
	Delete(ctx context.Context, id string) error
}

type shiftLookup interface {
	GetByID(ctx context.Context, id string) (*models.Shift, error)
}

type exchangeDirectory interface {
	Membership(ctx context.Context, storeID, userID string) (models.UserRole, error)
	CurrentStore(ctx context.Context, userID string) (*models.StoreContext, error)
	ProfilesByIDs(ctx context.Context, ids []string) (map[string]models.ProfileSummary, error)
}

// ExchangePublisher receives every successful transition.
type ExchangePublisher interface {
	Publish(ctx context.Context, event models.ExchangeEvent)
}

type transitionRecorder interface {
	RecordExchangeTransition(action models.ExchangeAction, outcome string)
}

// ExchangeService enforces the exchange request lifecycle.
type ExchangeService struct {
	repo      exchangeStore
	shifts    shiftLookup
	directory exchangeDirectory
	cache     *querycache.Store
	publisher ExchangePublisher
	metrics   transitionRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	reassign  bool
}

// ExchangeServiceOption configures the service.
type ExchangeServiceOption func(*ExchangeService)

// WithExchangePublisher sets the notification publisher.
func WithExchangePublisher(p ExchangePublisher) ExchangeServiceOption {
	return func(s *ExchangeService) { s.publisher = p }
}

// WithExchangeMetrics records transition outcomes.
func WithExchangeMetrics(m transitionRecorder) ExchangeServiceOption {
	return func(s *ExchangeService) { s.metrics = m }
}

// WithReassignOnApproval moves the shift to the acceptor when a request is approved.
func WithReassignOnApproval(enabled bool) ExchangeServiceOption {
	return func(s *ExchangeService) { s.reassign = enabled }
}

// WithExchangeClock overrides the clock.
func WithExchangeClock(now func() time.Time) ExchangeServiceOption {
	return func(s *ExchangeService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewExchangeService constructs an ExchangeService.
func NewExchangeService(repo exchangeStore, shifts shiftLookup, directory exchangeDirectory, cache *querycache.Store, validate *validator.Validate, logger *zap.Logger, opts ...ExchangeServiceOption) *ExchangeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &ExchangeService{
		repo:      repo,
		shifts:    shifts,
		directory: directory,
		cache:     cache,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create opens a pending request to hand off one of the caller's future shifts.
func (s *ExchangeService) Create(ctx context.Context, callerID string, input models.CreateExchangeInput) (req *models.ExchangeRequest, err error) {
	defer func() { s.record(models.ExchangeActionCreate, err) }()

	if callerID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if err = s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exchange request payload")
	}
	if _, err = s.directory.Membership(ctx, input.StoreID, callerID); err != nil {
		return nil, err
	}

	shift, err := s.shifts.GetByID(ctx, input.ShiftID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "근무 정보를 찾을 수 없습니다.")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msgExchangeCreate)
	}
	switch {
	case shift.StoreID != input.StoreID:
		return nil, appErrors.Clone(appErrors.ErrValidation, "해당 매장의 근무가 아닙니다.")
	case !shift.AssignedTo(callerID):
		return nil, appErrors.Clone(appErrors.ErrForbidden, "본인의 근무만 교환을 요청할 수 있습니다.")
	case !shift.StartTime.After(s.now()):
		return nil, appErrors.Clone(appErrors.ErrValidation, "이미 시작된 근무는 교환할 수 없습니다.")
	}

	if input.TargetUserID != nil {
		if *input.TargetUserID == callerID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "본인에게 교환을 요청할 수 없습니다.")
		}
		if _, err = s.directory.Membership(ctx, input.StoreID, *input.TargetUserID); err != nil {
			if appErrors.Is(err, appErrors.ErrForbidden) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "대상 직원이 매장 멤버가 아닙니다.")
			}
			return nil, err
		}
	}

	candidate := &models.ExchangeRequest{
		StoreID:      input.StoreID,
		RequesterID:  callerID,
		ShiftID:      input.ShiftID,
		TargetUserID: input.TargetUserID,
		Reason:       input.Reason,
		Status:       models.ExchangeStatusPending,
	}

	req, err = querycache.Mutate(ctx, s.cache, querycache.Mutation[[]models.ExchangeRequest, *models.ExchangeRequest]{
		Scopes: exchangeScopes(),
		Commit: func(ctx context.Context) (*models.ExchangeRequest, error) {
			if err := s.repo.Create(ctx, candidate); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msgExchangeCreate)
			}
			return candidate, nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("exchange request created",
		zap.String("request_id", req.ID),
		zap.String("store_id", req.StoreID),
		zap.String("requester_id", callerID),
	)
	s.publish(ctx, models.ExchangeActionCreate, *req, callerID)
	return req, nil
}

// Accept approves a pending request on behalf of the caller.
func (s *ExchangeService) Accept(ctx context.Context, callerID, id string) (req *models.ExchangeRequest, err error) {
	defer func() { s.record(models.ExchangeActionAccept, err) }()

	current, _, err := s.loadActionable(ctx, callerID, id, models.ExchangeActionAccept)
	if err != nil {
		return nil, err
	}
	if current.RequesterID == callerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "본인의 요청은 수락할 수 없습니다.")
	}
	if !current.Open() && !current.TargetedAt(callerID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "지정된 직원만 요청을 수락할 수 있습니다.")
	}

	now := s.now().UTC()
	t := models.ExchangeTransition{
		RequestID:  id,
		To:         models.ExchangeStatusApproved,
		ApprovedBy: &callerID,
		ApprovedAt: &now,
	}
	if s.reassign {
		t.ReassignTo = &callerID
	}
	return s.apply(ctx, current, models.ExchangeActionAccept, t, callerID)
}

// Reject declines a pending request. Allowed for the store's managers and the request target.
func (s *ExchangeService) Reject(ctx context.Context, callerID, id string) (req *models.ExchangeRequest, err error) {
	defer func() { s.record(models.ExchangeActionReject, err) }()

	current, role, err := s.loadActionable(ctx, callerID, id, models.ExchangeActionReject)
	if err != nil {
		return nil, err
	}
	if role != models.RoleManager && !current.TargetedAt(callerID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "요청을 거절할 권한이 없습니다.")
	}

	t := models.ExchangeTransition{RequestID: id, To: models.ExchangeStatusRejected}
	return s.apply(ctx, current, models.ExchangeActionReject, t, callerID)
}

// Cancel withdraws a pending request. Requester only.
func (s *ExchangeService) Cancel(ctx context.Context, callerID, id string) (req *models.ExchangeRequest, err error) {
	defer func() { s.record(models.ExchangeActionCancel, err) }()

	current, _, err := s.loadActionable(ctx, callerID, id, models.ExchangeActionCancel)
	if err != nil {
		return nil, err
	}
	if current.RequesterID != callerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "본인의 요청만 취소할 수 있습니다.")
	}

	t := models.ExchangeTransition{RequestID: id, To: models.ExchangeStatusCancelled, RequesterID: callerID}
	return s.apply(ctx, current, models.ExchangeActionCancel, t, callerID)
}

// Update is the manager's generic transition. Approvals default approved_by to the caller and
// approved_at to now.
func (s *ExchangeService) Update(ctx context.Context, callerID, id string, input models.UpdateExchangeInput) (req *models.ExchangeRequest, err error) {
	defer func() { s.record(models.ExchangeActionUpdate, err) }()

	if err = s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exchange update payload")
	}
	action, ok := models.ActionFor(input.Status)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be approved, rejected or cancelled")
	}

	current, role, err := s.loadActionable(ctx, callerID, id, models.ExchangeActionUpdate)
	if err != nil {
		return nil, err
	}
	if role != models.RoleManager {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "매니저 권한이 필요합니다.")
	}

	t := models.ExchangeTransition{RequestID: id, To: input.Status}
	if input.Status == models.ExchangeStatusApproved {
		t.ApprovedBy, t.ApprovedAt = input.ApprovedBy, input.ApprovedAt
		if t.ApprovedBy == nil {
			t.ApprovedBy = &callerID
		}
		if t.ApprovedAt == nil {
			now := s.now().UTC()
			t.ApprovedAt = &now
		}
		if s.reassign {
			t.ReassignTo = reassignTarget(current, input.ApprovedBy)
		}
	}
	return s.apply(ctx, current, action, t, callerID)
}

// Delete hard deletes a request. Managers of the request's store only.
func (s *ExchangeService) Delete(ctx context.Context, callerID, id string) (err error) {
	defer func() { s.record(models.ExchangeActionDelete, err) }()

	current, err := s.load(ctx, id, msgExchangeDelete)
	if err != nil {
		return err
	}
	role, err := s.directory.Membership(ctx, current.StoreID, callerID)
	if err != nil {
		return err
	}
	if role != models.RoleManager {
		return appErrors.Clone(appErrors.ErrForbidden, "매니저 권한이 필요합니다.")
	}

	_, err = querycache.Mutate(ctx, s.cache, querycache.Mutation[[]models.ExchangeRequest, string]{
		Keys:   []string{exchangeListScope},
		Scopes: exchangeScopes(),
		Optimistic: func(_ string, list []models.ExchangeRequest) []models.ExchangeRequest {
			return removeExchange(list, id)
		},
		Commit: func(ctx context.Context) (string, error) {
			if err := s.repo.Delete(ctx, id); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return "", exchangeNotFound()
				}
				return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msgExchangeDelete)
			}
			return id, nil
		},
	})
	if err != nil {
		return err
	}
	s.logger.Info("exchange request deleted", zap.String("request_id", id), zap.String("actor_id", callerID))
	return nil
}

// Get returns a request with its shift and display profiles. Visible to store members.
func (s *ExchangeService) Get(ctx context.Context, callerID, id string) (*models.ExchangeRequestDetail, error) {
	detail, err := querycache.Fetch(ctx, s.cache, "requests:detail:"+id, exchangeStaleTime, func(ctx context.Context) (*models.ExchangeRequestDetail, error) {
		detail, err := s.repo.GetDetail(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, exchangeNotFound()
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "교환 요청을 불러오지 못했습니다")
		}
		return detail, nil
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.directory.Membership(ctx, detail.StoreID, callerID); err != nil {
		return nil, err
	}

	ids := []string{detail.RequesterID}
	if detail.TargetUserID != nil {
		ids = append(ids, *detail.TargetUserID)
	}
	if detail.ApprovedBy != nil {
		ids = append(ids, *detail.ApprovedBy)
	}
	profiles, err := s.directory.ProfilesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if p, ok := profiles[detail.RequesterID]; ok {
		detail.Requester = &p
	}
	if detail.TargetUserID != nil {
		if p, ok := profiles[*detail.TargetUserID]; ok {
			detail.Target = &p
		}
	}
	if detail.ApprovedBy != nil {
		if p, ok := profiles[*detail.ApprovedBy]; ok {
			detail.Approver = &p
		}
	}
	return detail, nil
}

// List is the manager view of a store's requests, newest first.
func (s *ExchangeService) List(ctx context.Context, callerID string, filter models.ExchangeFilter) ([]models.ExchangeRequest, error) {
	role, err := s.directory.Membership(ctx, filter.StoreID, callerID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleManager {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "매니저 권한이 필요합니다.")
	}
	key := fmt.Sprintf("requests:list:store:%s:%s|%s|%d|%d", filter.StoreID, filter.Status, url.QueryEscape(filter.RequesterID), filter.Limit, filter.Offset)
	return s.fetchList(ctx, key, func(ctx context.Context) ([]models.ExchangeRequest, error) {
		return s.repo.List(ctx, filter)
	})
}

// ListIncoming returns pending requests the caller may accept.
func (s *ExchangeService) ListIncoming(ctx context.Context, callerID string) ([]models.ExchangeRequest, error) {
	if callerID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	return s.fetchList(ctx, "requests:list:incoming:"+callerID, func(ctx context.Context) ([]models.ExchangeRequest, error) {
		return s.repo.ListIncoming(ctx, callerID)
	})
}

// ListSent returns requests the caller created.
func (s *ExchangeService) ListSent(ctx context.Context, callerID string) ([]models.ExchangeRequest, error) {
	if callerID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	return s.fetchList(ctx, "requests:list:sent:"+callerID, func(ctx context.Context) ([]models.ExchangeRequest, error) {
		return s.repo.ListSent(ctx, callerID)
	})
}

// ListAccepted returns requests the caller approved, most recent approval first.
func (s *ExchangeService) ListAccepted(ctx context.Context, callerID string) ([]models.ExchangeRequest, error) {
	if callerID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	return s.fetchList(ctx, "requests:list:accepted:"+callerID, func(ctx context.Context) ([]models.ExchangeRequest, error) {
		return s.repo.ListAccepted(ctx, callerID)
	})
}

// ListSummary returns the compact feed: store wide for managers, incoming for staff.
func (s *ExchangeService) ListSummary(ctx context.Context, callerID string) ([]models.ExchangeSummary, error) {
	if callerID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	current, err := s.directory.CurrentStore(ctx, callerID)
	if err != nil {
		return nil, err
	}

	var key string
	var fetch func(context.Context) ([]models.ExchangeSummary, error)
	switch {
	case current.Role == models.RoleManager && current.Store != nil:
		storeID := current.Store.ID
		key = "requests:summary:store:" + storeID
		fetch = func(ctx context.Context) ([]models.ExchangeSummary, error) {
			return s.repo.ListStoreSummary(ctx, storeID, exchangeSummarySize)
		}
	case current.Role == models.RoleStaff:
		key = "requests:summary:incoming:" + callerID
		fetch = func(ctx context.Context) ([]models.ExchangeSummary, error) {
			return s.repo.ListIncomingSummary(ctx, callerID, exchangeSummarySize)
		}
	default:
		return []models.ExchangeSummary{}, nil
	}

	return querycache.Fetch(ctx, s.cache, key, exchangeStaleTime, func(ctx context.Context) ([]models.ExchangeSummary, error) {
		rows, err := fetch(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "교환 요청 목록을 불러오지 못했습니다")
		}
		if rows == nil {
			rows = []models.ExchangeSummary{}
		}
		return rows, nil
	})
}

func (s *ExchangeService) fetchList(ctx context.Context, key string, fetch func(context.Context) ([]models.ExchangeRequest, error)) ([]models.ExchangeRequest, error) {
	return querycache.Fetch(ctx, s.cache, key, exchangeStaleTime, func(ctx context.Context) ([]models.ExchangeRequest, error) {
		rows, err := fetch(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "교환 요청 목록을 불러오지 못했습니다")
		}
		if rows == nil {
			rows = []models.ExchangeRequest{}
		}
		return rows, nil
	})
}

// loadActionable reads the request, rejects handled requests before any caller-specific check,
// then resolves the caller's role in the request's store.
func (s *ExchangeService) loadActionable(ctx context.Context, callerID, id string, action models.ExchangeAction) (*models.ExchangeRequest, models.UserRole, error) {
	if callerID == "" {
		return nil, "", appErrors.ErrUnauthorized
	}
	current, err := s.load(ctx, id, exchangeFailureMessages[action])
	if err != nil {
		return nil, "", err
	}
	if current.Status.Terminal() {
		return nil, "", appErrors.ErrAlreadyProcessed
	}
	role, err := s.directory.Membership(ctx, current.StoreID, callerID)
	if err != nil {
		return nil, "", err
	}
	return current, role, nil
}

func (s *ExchangeService) load(ctx context.Context, id, failure string) (*models.ExchangeRequest, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, exchangeNotFound()
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, failure)
	}
	return req, nil
}

// apply runs the conditional transition through the query cache and classifies lost races.
func (s *ExchangeService) apply(ctx context.Context, current *models.ExchangeRequest, action models.ExchangeAction, t models.ExchangeTransition, actorID string) (*models.ExchangeRequest, error) {
	if _, err := models.Transition(current.Status, actionEdge(action, t.To)); err != nil {
		return nil, appErrors.ErrAlreadyProcessed
	}
	failure := exchangeFailureMessages[action]
	scopes := exchangeScopes()
	if t.ReassignTo != nil {
		scopes = append(scopes, shiftScopes(current.StoreID)...)
	}

	updated, err := querycache.Mutate(ctx, s.cache, querycache.Mutation[[]models.ExchangeRequest, *models.ExchangeRequest]{
		Keys:   []string{exchangeListScope},
		Scopes: scopes,
		Optimistic: func(_ string, list []models.ExchangeRequest) []models.ExchangeRequest {
			return patchExchange(list, t)
		},
		Commit: func(ctx context.Context) (*models.ExchangeRequest, error) {
			row, err := s.repo.Transition(ctx, t)
			switch {
			case err == nil:
				return row, nil
			case errors.Is(err, models.ErrStaleTransition):
				return nil, s.classifyStale(ctx, t.RequestID, failure)
			case errors.Is(err, repository.ErrReassignOverlap):
				return nil, appErrors.ErrShiftOverlap
			default:
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, failure)
			}
		},
		Reconcile: func(_ string, list []models.ExchangeRequest, row *models.ExchangeRequest) []models.ExchangeRequest {
			return replaceExchange(list, row)
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("exchange request transitioned",
		zap.String("request_id", updated.ID),
		zap.String("action", string(action)),
		zap.String("status", string(updated.Status)),
		zap.String("actor_id", actorID),
	)
	s.publish(ctx, actionEdge(action, updated.Status), *updated, actorID)
	return updated, nil
}

// classifyStale re-reads a request whose conditional update matched no row.
func (s *ExchangeService) classifyStale(ctx context.Context, id, failure string) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return exchangeNotFound()
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, failure)
	}
	if current.Status.Terminal() {
		return appErrors.ErrAlreadyProcessed
	}
	// Still pending: the guard column (requester) did not match.
	return appErrors.Clone(appErrors.ErrForbidden, "요청을 처리할 권한이 없습니다.")
}

func (s *ExchangeService) publish(ctx context.Context, action models.ExchangeAction, req models.ExchangeRequest, actorID string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, models.ExchangeEvent{Action: action, Request: req, ActorID: actorID})
}

func (s *ExchangeService) record(action models.ExchangeAction, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordExchangeTransition(action, transitionOutcome(err))
}

func transitionOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case appErrors.Is(err, appErrors.ErrConflict):
		return OutcomeConflict
	case appErrors.Is(err, appErrors.ErrForbidden),
		appErrors.Is(err, appErrors.ErrUnauthorized),
		appErrors.Is(err, appErrors.ErrValidation),
		appErrors.Is(err, appErrors.ErrNotFound):
		return OutcomeDenied
	default:
		return OutcomeError
	}
}

// actionEdge maps the generic update action onto the state machine edge it takes.
func actionEdge(action models.ExchangeAction, to models.ExchangeStatus) models.ExchangeAction {
	if action != models.ExchangeActionUpdate {
		return action
	}
	if edge, ok := models.ActionFor(to); ok {
		return edge
	}
	return action
}

func reassignTarget(req *models.ExchangeRequest, approvedBy *string) *string {
	if req.TargetUserID != nil {
		return req.TargetUserID
	}
	return approvedBy
}

func exchangeNotFound() *appErrors.Error {
	return appErrors.Clone(appErrors.ErrNotFound, "교환 요청을 찾을 수 없습니다.")
}

const exchangeListScope = "requests:list:*"

// Pending counts derive from request state, so every request write marks them stale too.
func exchangeScopes() []string {
	return []string{"requests:*", pendingCountScope}
}

func patchExchange(list []models.ExchangeRequest, t models.ExchangeTransition) []models.ExchangeRequest {
	out := make([]models.ExchangeRequest, len(list))
	copy(out, list)
	for i := range out {
		if out[i].ID != t.RequestID {
			continue
		}
		out[i].Status = t.To
		if t.ApprovedBy != nil {
			out[i].ApprovedBy = t.ApprovedBy
		}
		if t.ApprovedAt != nil {
			out[i].ApprovedAt = t.ApprovedAt
		}
	}
	return out
}

func replaceExchange(list []models.ExchangeRequest, row *models.ExchangeRequest) []models.ExchangeRequest {
	if row == nil {
		return list
	}
	out := make([]models.ExchangeRequest, len(list))
	copy(out, list)
	for i := range out {
		if out[i].ID == row.ID {
			out[i] = *row
		}
	}
	return out
}

func removeExchange(list []models.ExchangeRequest, id string) []models.ExchangeRequest {
	out := make([]models.ExchangeRequest, 0, len(list))
	for _, item := range list {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}
