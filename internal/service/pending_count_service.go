package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/workeasy-api/internal/models"
	"github.com/noah-isme/workeasy-api/pkg/querycache"
)

const (
	pendingCountStaleTime = 30 * time.Second
	pendingCountScope     = "pending-count:*"
)

type pendingCounter interface {
	CountPendingByStore(ctx context.Context, storeID string) (int, error)
	CountPendingIncoming(ctx context.Context, userID string) (int, error)
}

type currentStoreResolver interface {
	CurrentStore(ctx context.Context, userID string) (*models.StoreContext, error)
}

// PendingCountService computes best-effort badge counts. It never fails: errors yield zero.
type PendingCountService struct {
	counter pendingCounter
	stores  currentStoreResolver
	cache   *querycache.Store
	logger  *zap.Logger
}

// NewPendingCountService constructs a PendingCountService.
func NewPendingCountService(counter pendingCounter, stores currentStoreResolver, cache *querycache.Store, logger *zap.Logger) *PendingCountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PendingCountService{counter: counter, stores: stores, cache: cache, logger: logger}
}

// Count returns pending requests in the manager's current store, or pending incoming requests
// for staff. Callers without a role or store get zero.
func (s *PendingCountService) Count(ctx context.Context, userID string) models.PendingCount {
	if userID == "" {
		return models.PendingCount{}
	}

	current, err := s.stores.CurrentStore(ctx, userID)
	if err != nil {
		s.logger.Warn("pending count: resolve store failed", zap.String("user_id", userID), zap.Error(err))
		return models.PendingCount{}
	}

	var count func(context.Context) (int, error)
	switch {
	case current.Role == models.RoleManager && current.Store != nil:
		storeID := current.Store.ID
		count = func(ctx context.Context) (int, error) { return s.counter.CountPendingByStore(ctx, storeID) }
	case current.Role == models.RoleStaff:
		count = func(ctx context.Context) (int, error) { return s.counter.CountPendingIncoming(ctx, userID) }
	default:
		return models.PendingCount{Role: current.Role}
	}

	key := fmt.Sprintf("pending-count:%s:%s", current.Role, userID)
	n, err := querycache.Fetch(ctx, s.cache, key, pendingCountStaleTime, count)
	if err != nil {
		s.logger.Warn("pending count query failed", zap.String("user_id", userID), zap.String("role", string(current.Role)), zap.Error(err))
		return models.PendingCount{Role: current.Role}
	}
	return models.PendingCount{Role: current.Role, Count: n}
}
