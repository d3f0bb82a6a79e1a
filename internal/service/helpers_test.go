package service

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/workeasy-api/internal/models"
	appErrors "github.com/noah-isme/workeasy-api/pkg/errors"
	"github.com/noah-isme/workeasy-api/pkg/querycache"
	"github.com/noah-isme/workeasy-api/pkg/retry"
)

func newTestCache() (*querycache.Store, *querycache.MemoryBackend) {
	backend := querycache.NewMemoryBackend(time.Hour)
	store := querycache.New(backend, querycache.WithRetryPolicy(retry.Policy{MaxRetries: 0, InitialInterval: time.Millisecond}))
	return store, backend
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// directoryStub answers membership questions from fixed maps.
type directoryStub struct {
	mu        sync.Mutex
	roles     map[string]models.UserRole
	current   map[string]*models.StoreContext
	stores    map[string]*models.Store
	members   map[string][]string
	profiles  map[string]models.ProfileSummary
	forgotten []string
	err       error
}

func newDirectoryStub() *directoryStub {
	return &directoryStub{
		roles:    make(map[string]models.UserRole),
		current:  make(map[string]*models.StoreContext),
		stores:   make(map[string]*models.Store),
		members:  make(map[string][]string),
		profiles: make(map[string]models.ProfileSummary),
	}
}

func (d *directoryStub) add(storeID, userID string, role models.UserRole) {
	d.roles[storeID+"|"+userID] = role
	d.members[storeID] = append(d.members[storeID], userID)
}

func (d *directoryStub) Membership(_ context.Context, storeID, userID string) (models.UserRole, error) {
	if d.err != nil {
		return "", d.err
	}
	role, ok := d.roles[storeID+"|"+userID]
	if !ok {
		return "", appErrors.Clone(appErrors.ErrForbidden, "매장 멤버가 아닙니다.")
	}
	return role, nil
}

func (d *directoryStub) RequireManager(ctx context.Context, storeID, userID string) error {
	role, err := d.Membership(ctx, storeID, userID)
	if err != nil {
		return err
	}
	if role != models.RoleManager {
		return appErrors.Clone(appErrors.ErrForbidden, "매니저 권한이 필요합니다.")
	}
	return nil
}

func (d *directoryStub) CurrentStore(_ context.Context, userID string) (*models.StoreContext, error) {
	if d.err != nil {
		return nil, d.err
	}
	if sc, ok := d.current[userID]; ok {
		return sc, nil
	}
	return &models.StoreContext{}, nil
}

func (d *directoryStub) GetStore(_ context.Context, storeID string) (*models.Store, error) {
	store, ok := d.stores[storeID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "매장을 찾을 수 없습니다.")
	}
	return store, nil
}

func (d *directoryStub) MemberIDs(_ context.Context, storeID string) ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.members[storeID], nil
}

func (d *directoryStub) ProfilesByIDs(_ context.Context, ids []string) (map[string]models.ProfileSummary, error) {
	out := make(map[string]models.ProfileSummary, len(ids))
	for _, id := range ids {
		if p, ok := d.profiles[id]; ok {
			out[id] = p
			continue
		}
		out[id] = models.ProfileSummary{ID: id, FullName: models.UnnamedProfile}
	}
	return out, nil
}

func (d *directoryStub) ForgetUser(_ context.Context, storeID, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.forgotten = append(d.forgotten, storeID+"|"+userID)
}
