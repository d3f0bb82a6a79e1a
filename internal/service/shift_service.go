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
	appErrors "github.com/noah-isme/workeasy-api/pkg/errors"
	"github.com/noah-isme/workeasy-api/pkg/querycache"
)

const (
	shiftStaleTime = time.Minute
	// optimisticShiftID marks a row written to the cache before the insert commits.
	optimisticShiftID = "optimistic"
)

type shiftStore interface {
	List(ctx context.Context, filter models.ShiftFilter) ([]models.Shift, error)
	ListByDateRange(ctx context.Context, storeID string, start, end time.Time) ([]models.Shift, error)
	GetByID(ctx context.Context, id string) (*models.Shift, error)
	FindOverlapping(ctx context.Context, q models.OverlapQuery) ([]models.Shift, error)
	Create(ctx context.Context, shift *models.Shift) error
	Update(ctx context.Context, shift *models.Shift) error
	Delete(ctx context.Context, id, storeID string) error
}

type membershipResolver interface {
	Membership(ctx context.Context, storeID, userID string) (models.UserRole, error)
}

// ShiftService manages the shift registry of a store.
type ShiftService struct {
	repo      shiftStore
	members   membershipResolver
	cache     *querycache.Store
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// ShiftServiceOption configures the service.
type ShiftServiceOption func(*ShiftService)

// WithShiftClock overrides the clock used for validation.
func WithShiftClock(now func() time.Time) ShiftServiceOption {
	return func(s *ShiftService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewShiftService constructs a ShiftService.
func NewShiftService(repo shiftStore, members membershipResolver, cache *querycache.Store, validate *validator.Validate, logger *zap.Logger, opts ...ShiftServiceOption) *ShiftService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &ShiftService{repo: repo, members: members, cache: cache, validator: validate, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// List returns the store's shifts matching filter, ordered by start time.
func (s *ShiftService) List(ctx context.Context, userID string, filter models.ShiftFilter) ([]models.Shift, error) {
	if _, err := s.members.Membership(ctx, filter.StoreID, userID); err != nil {
		return nil, err
	}
	return querycache.Fetch(ctx, s.cache, shiftListKey(filter), shiftStaleTime, func(ctx context.Context) ([]models.Shift, error) {
		shifts, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "근무 목록을 불러오지 못했습니다")
		}
		return nonNilShifts(shifts), nil
	})
}

// ListMine returns the caller's shifts across all stores, optionally bounded by start time.
func (s *ShiftService) ListMine(ctx context.Context, userID string, start, end *time.Time) ([]models.Shift, error) {
	if userID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.ShiftFilter{UserID: userID, StartDate: start, EndDate: end}
	key := fmt.Sprintf("shifts:user:%s:%s|%s", userID, formatBound(start), formatBound(end))
	return querycache.Fetch(ctx, s.cache, key, shiftStaleTime, func(ctx context.Context) ([]models.Shift, error) {
		shifts, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "근무 목록을 불러오지 못했습니다")
		}
		return nonNilShifts(shifts), nil
	})
}

// ListByDateRange returns shifts fully contained in [start, end].
func (s *ShiftService) ListByDateRange(ctx context.Context, userID, storeID string, start, end time.Time) ([]models.Shift, error) {
	if _, err := s.members.Membership(ctx, storeID, userID); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end must not be before start")
	}
	key := fmt.Sprintf("shifts:store:%s:range|%s|%s", storeID, formatBound(&start), formatBound(&end))
	return querycache.Fetch(ctx, s.cache, key, shiftStaleTime, func(ctx context.Context) ([]models.Shift, error) {
		shifts, err := s.repo.ListByDateRange(ctx, storeID, start, end)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "근무 목록을 불러오지 못했습니다")
		}
		return nonNilShifts(shifts), nil
	})
}

// Get returns a single shift visible to members of its store.
func (s *ShiftService) Get(ctx context.Context, userID, id string) (*models.Shift, error) {
	shift, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.members.Membership(ctx, shift.StoreID, userID); err != nil {
		return nil, err
	}
	return shift, nil
}

// ensureAssignee rejects shifts assigned to someone outside the store.
func (s *ShiftService) ensureAssignee(ctx context.Context, storeID, callerID string, assignee *string) error {
	if assignee == nil || *assignee == callerID {
		return nil
	}
	if _, err := s.members.Membership(ctx, storeID, *assignee); err != nil {
		if appErrors.Is(err, appErrors.ErrForbidden) {
			return appErrors.Clone(appErrors.ErrValidation, "배정할 직원이 매장 멤버가 아닙니다.")
		}
		return err
	}
	return nil
}

// CheckOverlap reports whether the candidate interval intersects an existing shift. With a nil
// user the check is store wide.
func (s *ShiftService) CheckOverlap(ctx context.Context, q models.OverlapQuery) (bool, error) {
	shifts, err := s.repo.FindOverlapping(ctx, q)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "근무 중복 확인에 실패했습니다")
	}
	return len(shifts) > 0, nil
}

// Create validates and inserts a shift. Staff may only create shifts assigned to themselves.
func (s *ShiftService) Create(ctx context.Context, userID, storeID string, input models.ShiftInput) (*models.Shift, error) {
	role, err := s.members.Membership(ctx, storeID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.validateInput(input); err != nil {
		return nil, err
	}
	if role != models.RoleManager && (input.UserID == nil || *input.UserID != userID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "본인의 근무만 등록할 수 있습니다.")
	}
	if err := s.ensureAssignee(ctx, storeID, userID, input.UserID); err != nil {
		return nil, err
	}

	shift := &models.Shift{
		StoreID:   storeID,
		UserID:    input.UserID,
		StartTime: input.StartTime.UTC(),
		EndTime:   input.EndTime.UTC(),
		Position:  input.Position,
		Status:    models.ShiftStatusPending,
		Notes:     input.Notes,
	}
	if input.Status != nil {
		shift.Status = *input.Status
	}

	if err := s.ensureNoOverlap(ctx, shift, ""); err != nil {
		return nil, err
	}

	return querycache.Mutate(ctx, s.cache, querycache.Mutation[[]models.Shift, *models.Shift]{
		Keys:   []string{shiftStoreScope(storeID)},
		Scopes: shiftScopes(storeID),
		Optimistic: func(_ string, current []models.Shift) []models.Shift {
			provisional := *shift
			provisional.ID = optimisticShiftID
			return append(current, provisional)
		},
		Commit: func(ctx context.Context) (*models.Shift, error) {
			if err := s.repo.Create(ctx, shift); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "근무 등록에 실패했습니다")
			}
			s.logger.Info("shift created", zap.String("shift_id", shift.ID), zap.String("store_id", storeID))
			return shift, nil
		},
		Reconcile: func(_ string, current []models.Shift, row *models.Shift) []models.Shift {
			return replaceShift(current, optimisticShiftID, row)
		},
	})
}

// Update rewrites a shift. Managers only.
func (s *ShiftService) Update(ctx context.Context, userID, storeID, id string, input models.ShiftInput) (*models.Shift, error) {
	if err := s.requireManager(ctx, storeID, userID); err != nil {
		return nil, err
	}
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.StoreID != storeID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "근무 정보를 찾을 수 없습니다.")
	}
	if err := s.ensureAssignee(ctx, storeID, userID, input.UserID); err != nil {
		return nil, err
	}

	updated := *existing
	updated.UserID = input.UserID
	updated.StartTime = input.StartTime.UTC()
	updated.EndTime = input.EndTime.UTC()
	updated.Position = input.Position
	updated.Notes = input.Notes
	if input.Status != nil {
		updated.Status = *input.Status
	}

	if err := s.ensureNoOverlap(ctx, &updated, id); err != nil {
		return nil, err
	}

	return querycache.Mutate(ctx, s.cache, querycache.Mutation[[]models.Shift, *models.Shift]{
		Keys:   []string{shiftStoreScope(storeID)},
		Scopes: shiftScopes(storeID),
		Optimistic: func(_ string, current []models.Shift) []models.Shift {
			return replaceShift(current, id, &updated)
		},
		Commit: func(ctx context.Context) (*models.Shift, error) {
			if err := s.repo.Update(ctx, &updated); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.Clone(appErrors.ErrNotFound, "근무 정보를 찾을 수 없습니다.")
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "근무 수정에 실패했습니다")
			}
			return &updated, nil
		},
		Reconcile: func(_ string, current []models.Shift, row *models.Shift) []models.Shift {
			return replaceShift(current, row.ID, row)
		},
	})
}

// Delete removes a shift from the store. Managers only.
func (s *ShiftService) Delete(ctx context.Context, userID, storeID, id string) error {
	if err := s.requireManager(ctx, storeID, userID); err != nil {
		return err
	}

	_, err := querycache.Mutate(ctx, s.cache, querycache.Mutation[[]models.Shift, string]{
		Keys:   []string{shiftStoreScope(storeID)},
		Scopes: shiftScopes(storeID),
		Optimistic: func(_ string, current []models.Shift) []models.Shift {
			return removeShift(current, id)
		},
		Commit: func(ctx context.Context) (string, error) {
			if err := s.repo.Delete(ctx, id, storeID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return "", appErrors.Clone(appErrors.ErrNotFound, "근무 정보를 찾을 수 없습니다.")
				}
				return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "근무 삭제에 실패했습니다")
			}
			return id, nil
		},
	})
	return err
}

func (s *ShiftService) requireManager(ctx context.Context, storeID, userID string) error {
	role, err := s.members.Membership(ctx, storeID, userID)
	if err != nil {
		return err
	}
	if role != models.RoleManager {
		return appErrors.Clone(appErrors.ErrForbidden, "매니저 권한이 필요합니다.")
	}
	return nil
}

func (s *ShiftService) load(ctx context.Context, id string) (*models.Shift, error) {
	shift, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "근무 정보를 찾을 수 없습니다.")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "근무 정보를 불러오지 못했습니다")
	}
	return shift, nil
}

func (s *ShiftService) validateInput(input models.ShiftInput) error {
	if err := s.validator.Struct(input); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid shift payload")
	}
	if !input.EndTime.After(input.StartTime) {
		return appErrors.Clone(appErrors.ErrValidation, "종료 시간은 시작 시간보다 늦어야 합니다.")
	}
	return nil
}

func (s *ShiftService) ensureNoOverlap(ctx context.Context, shift *models.Shift, excludeID string) error {
	overlap, err := s.CheckOverlap(ctx, models.OverlapQuery{
		StoreID:   shift.StoreID,
		UserID:    shift.UserID,
		Start:     shift.StartTime,
		End:       shift.EndTime,
		ExcludeID: excludeID,
	})
	if err != nil {
		return err
	}
	if overlap {
		return appErrors.ErrShiftOverlap
	}
	return nil
}

func shiftListKey(f models.ShiftFilter) string {
	return fmt.Sprintf("shifts:store:%s:%s|%s|%s|%s|%s", f.StoreID, formatBound(f.StartDate), formatBound(f.EndDate),
		url.QueryEscape(f.UserID), url.QueryEscape(f.Position), f.Status)
}

func shiftStoreScope(storeID string) string {
	return "shifts:store:" + storeID + ":*"
}

// The per-user lists span stores, so every shift write marks all of them stale.
func shiftScopes(storeID string) []string {
	return []string{shiftStoreScope(storeID), "shifts:user:*"}
}

func formatBound(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func replaceShift(list []models.Shift, id string, row *models.Shift) []models.Shift {
	if row == nil {
		return list
	}
	out := make([]models.Shift, 0, len(list))
	for _, item := range list {
		if item.ID == id {
			out = append(out, *row)
			continue
		}
		out = append(out, item)
	}
	return out
}

func removeShift(list []models.Shift, id string) []models.Shift {
	out := make([]models.Shift, 0, len(list))
	for _, item := range list {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}

func nonNilShifts(shifts []models.Shift) []models.Shift {
	if shifts == nil {
		return []models.Shift{}
	}
	return shifts
}
