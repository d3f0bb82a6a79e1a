package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/workeasy-api/internal/models"
	appErrors "github.com/noah-isme/workeasy-api/pkg/errors"
	"github.com/noah-isme/workeasy-api/pkg/querycache"
)

const storeStaleTime = 5 * time.Minute

type storeDirectory interface {
	CreateAsOwner(ctx context.Context, ownerID string, input models.CreateStoreInput) (*models.Store, error)
	GetStore(ctx context.Context, id string) (*models.Store, error)
	FirstOwnedStore(ctx context.Context, ownerID string) (*models.Store, error)
	FirstMembershipStore(ctx context.Context, userID string) (*models.Store, error)
	ListStoresForUser(ctx context.Context, userID string) ([]models.Store, error)
	MemberRole(ctx context.Context, storeID, userID string) (models.UserRole, error)
	ListStaff(ctx context.Context, storeID string) ([]models.StaffMember, error)
	MemberIDs(ctx context.Context, storeID string) ([]string, error)
	FindProfile(ctx context.Context, id string) (*models.Profile, error)
	ProfilesByIDs(ctx context.Context, ids []string) ([]models.Profile, error)
	UpsertProfile(ctx context.Context, id string, input models.UpsertProfileInput) (*models.Profile, error)
}

// StoreService resolves store membership and roles for the acting user.
type StoreService struct {
	repo      storeDirectory
	cache     *querycache.Store
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStoreService constructs a StoreService. A nil cache reads straight through.
func NewStoreService(repo storeDirectory, cache *querycache.Store, validate *validator.Validate, logger *zap.Logger) *StoreService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StoreService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// CreateStoreAsOwner creates a store, promotes the caller to manager and records the membership.
func (s *StoreService) CreateStoreAsOwner(ctx context.Context, ownerID string, input models.CreateStoreInput) (*models.Store, error) {
	if ownerID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid store payload")
	}

	store, err := s.repo.CreateAsOwner(ctx, ownerID, input)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "매장 생성에 실패했습니다")
	}
	s.ForgetUser(ctx, store.ID, ownerID)

	s.logger.Info("store created", zap.String("store_id", store.ID), zap.String("owner_id", ownerID))
	return store, nil
}

// ResolveRole returns the caller's profile role, or "" when no profile exists.
func (s *StoreService) ResolveRole(ctx context.Context, userID string) (models.UserRole, error) {
	if userID == "" {
		return "", appErrors.ErrUnauthorized
	}
	return querycache.Fetch(ctx, s.cache, roleKey(userID), storeStaleTime, func(ctx context.Context) (models.UserRole, error) {
		return s.resolveRole(ctx, userID)
	})
}

func (s *StoreService) resolveRole(ctx context.Context, userID string) (models.UserRole, error) {
	profile, err := s.repo.FindProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	if profile.Role == nil {
		return "", nil
	}
	return *profile.Role, nil
}

// CurrentStore resolves the caller's default store: the first owned store for managers, the
// first membership for staff. Store is nil when the caller has none.
func (s *StoreService) CurrentStore(ctx context.Context, userID string) (*models.StoreContext, error) {
	if userID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	return querycache.Fetch(ctx, s.cache, currentStoreKey(userID), storeStaleTime, func(ctx context.Context) (*models.StoreContext, error) {
		role, err := s.resolveRole(ctx, userID)
		if err != nil {
			return nil, err
		}

		var store *models.Store
		switch role {
		case models.RoleManager:
			store, err = s.repo.FirstOwnedStore(ctx, userID)
		case models.RoleStaff:
			store, err = s.repo.FirstMembershipStore(ctx, userID)
		default:
			return &models.StoreContext{}, nil
		}
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &models.StoreContext{Role: role}, nil
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve current store")
		}
		return &models.StoreContext{Store: store, Role: role}, nil
	})
}

// Membership returns the caller's role within storeID. Owners are managers; non-members are forbidden.
func (s *StoreService) Membership(ctx context.Context, storeID, userID string) (models.UserRole, error) {
	if userID == "" {
		return "", appErrors.ErrUnauthorized
	}
	if storeID == "" {
		return "", appErrors.ErrNoStore
	}
	return querycache.Fetch(ctx, s.cache, memberKey(storeID, userID), storeStaleTime, func(ctx context.Context) (models.UserRole, error) {
		role, err := s.repo.MemberRole(ctx, storeID, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", appErrors.Clone(appErrors.ErrForbidden, "매장 멤버가 아닙니다.")
			}
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve membership")
		}
		return role, nil
	})
}

// RequireManager fails with FORBIDDEN unless the caller manages storeID.
func (s *StoreService) RequireManager(ctx context.Context, storeID, userID string) error {
	role, err := s.Membership(ctx, storeID, userID)
	if err != nil {
		return err
	}
	if role != models.RoleManager {
		return appErrors.Clone(appErrors.ErrForbidden, "매니저 권한이 필요합니다.")
	}
	return nil
}

// GetStore returns a store by id.
func (s *StoreService) GetStore(ctx context.Context, storeID string) (*models.Store, error) {
	return querycache.Fetch(ctx, s.cache, "stores:detail:"+storeID, storeStaleTime, func(ctx context.Context) (*models.Store, error) {
		store, err := s.repo.GetStore(ctx, storeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "매장을 찾을 수 없습니다.")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load store")
		}
		return store, nil
	})
}

// ListMyStores returns every store the caller owns or belongs to.
func (s *StoreService) ListMyStores(ctx context.Context, userID string) ([]models.Store, error) {
	if userID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	return querycache.Fetch(ctx, s.cache, "stores:mine:"+userID, storeStaleTime, func(ctx context.Context) ([]models.Store, error) {
		stores, err := s.repo.ListStoresForUser(ctx, userID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stores")
		}
		if stores == nil {
			stores = []models.Store{}
		}
		return stores, nil
	})
}

// ListStaff returns the members of storeID with display names.
func (s *StoreService) ListStaff(ctx context.Context, storeID string) ([]models.StaffMember, error) {
	return querycache.Fetch(ctx, s.cache, staffKey(storeID), storeStaleTime, func(ctx context.Context) ([]models.StaffMember, error) {
		staff, err := s.repo.ListStaff(ctx, storeID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "직원 목록을 불러오지 못했습니다")
		}
		if staff == nil {
			staff = []models.StaffMember{}
		}
		return staff, nil
	})
}

// MemberIDs returns the user ids of the store's members.
func (s *StoreService) MemberIDs(ctx context.Context, storeID string) ([]string, error) {
	ids, err := s.repo.MemberIDs(ctx, storeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list members")
	}
	return ids, nil
}

// ProfilesByIDs batch loads display profiles keyed by id. Unknown ids map to the unnamed fallback.
func (s *StoreService) ProfilesByIDs(ctx context.Context, ids []string) (map[string]models.ProfileSummary, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	result := make(map[string]models.ProfileSummary, len(unique))
	if len(unique) == 0 {
		return result, nil
	}

	profiles, err := s.repo.ProfilesByIDs(ctx, unique)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profiles")
	}
	for _, p := range profiles {
		result[p.ID] = p.Summary()
	}
	for _, id := range unique {
		if _, ok := result[id]; !ok {
			result[id] = models.ProfileSummary{ID: id, FullName: models.UnnamedProfile}
		}
	}
	return result, nil
}

// GetProfile returns the caller's own profile.
func (s *StoreService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := s.repo.FindProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "프로필을 찾을 수 없습니다.")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return profile, nil
}

// UpsertProfile lets the caller maintain their own display profile.
func (s *StoreService) UpsertProfile(ctx context.Context, userID string, input models.UpsertProfileInput) (*models.Profile, error) {
	if userID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	profile, err := s.repo.UpsertProfile(ctx, userID, input)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "프로필 저장에 실패했습니다")
	}
	s.cache.Invalidate(ctx, "stores:staff:*")
	return profile, nil
}

// ForgetUser marks cached membership data for userID stale after a membership change.
func (s *StoreService) ForgetUser(ctx context.Context, storeID, userID string) {
	patterns := []string{roleKey(userID), currentStoreKey(userID), "stores:mine:" + userID}
	if storeID != "" {
		patterns = append(patterns, memberKey(storeID, userID), staffKey(storeID))
	}
	s.cache.Invalidate(ctx, patterns...)
}

func roleKey(userID string) string         { return "stores:role:" + userID }
func currentStoreKey(userID string) string { return "stores:current:" + userID }
func staffKey(storeID string) string       { return "stores:staff:" + storeID }

func memberKey(storeID, userID string) string {
	return fmt.Sprintf("stores:member:%s:%s", storeID, userID)
}
