package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/workeasy-api/internal/models"
	"github.com/noah-isme/workeasy-api/internal/repository"
	appErrors "github.com/noah-isme/workeasy-api/pkg/errors"
	"github.com/noah-isme/workeasy-api/pkg/querycache"
)

const (
	exStore     = "a0000000-0000-4000-8000-000000000001"
	exManager   = "a0000000-0000-4000-8000-000000000010"
	exRequester = "a0000000-0000-4000-8000-000000000011"
	exTarget    = "a0000000-0000-4000-8000-000000000012"
	exOther     = "a0000000-0000-4000-8000-000000000013"
	exOutsider  = "a0000000-0000-4000-8000-000000000099"
	exShift     = "b0000000-0000-4000-8000-000000000001"
	exPastShift = "b0000000-0000-4000-8000-000000000002"
	exElsewhere = "b0000000-0000-4000-8000-000000000003"
)

var exNow = time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)

// exchangeRepoStub applies transitions with the same compare-and-set rule as the SQL store.
type exchangeRepoStub struct {
	mu          sync.Mutex
	requests    map[string]*models.ExchangeRequest
	seq         int
	reassigned  map[string]string
	overlapFor  map[string]bool
	loseRaceTo  *models.ExchangeStatus
	deleteOnCAS bool
	summaries   map[string][]models.ExchangeSummary
}

func newExchangeRepoStub() *exchangeRepoStub {
	return &exchangeRepoStub{
		requests:   make(map[string]*models.ExchangeRequest),
		reassigned: make(map[string]string),
		overlapFor: make(map[string]bool),
		summaries:  make(map[string][]models.ExchangeSummary),
	}
}

func (r *exchangeRepoStub) Create(_ context.Context, req *models.ExchangeRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	req.ID = fmt.Sprintf("c0000000-0000-4000-8000-%012d", r.seq)
	req.CreatedAt = exNow
	copied := *req
	r.requests[req.ID] = &copied
	return nil
}

func (r *exchangeRepoStub) GetByID(_ context.Context, id string) (*models.ExchangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *req
	return &copied, nil
}

func (r *exchangeRepoStub) GetDetail(ctx context.Context, id string) (*models.ExchangeRequestDetail, error) {
	req, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ExchangeRequestDetail{ExchangeRequest: *req}, nil
}

func (r *exchangeRepoStub) List(_ context.Context, filter models.ExchangeFilter) ([]models.ExchangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ExchangeRequest
	for _, req := range r.requests {
		if req.StoreID == filter.StoreID && (filter.Status == "" || req.Status == filter.Status) {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r *exchangeRepoStub) ListIncoming(_ context.Context, userID string) ([]models.ExchangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ExchangeRequest
	for _, req := range r.requests {
		if req.Status == models.ExchangeStatusPending && req.RequesterID != userID && (req.Open() || req.TargetedAt(userID)) {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r *exchangeRepoStub) ListSent(_ context.Context, userID string) ([]models.ExchangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ExchangeRequest
	for _, req := range r.requests {
		if req.RequesterID == userID {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r *exchangeRepoStub) ListAccepted(_ context.Context, userID string) ([]models.ExchangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ExchangeRequest
	for _, req := range r.requests {
		if req.ApprovedBy != nil && *req.ApprovedBy == userID {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r *exchangeRepoStub) ListStoreSummary(_ context.Context, storeID string, limit int) ([]models.ExchangeSummary, error) {
	rows := r.summaries["store:"+storeID]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *exchangeRepoStub) ListIncomingSummary(_ context.Context, userID string, limit int) ([]models.ExchangeSummary, error) {
	rows := r.summaries["incoming:"+userID]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *exchangeRepoStub) Transition(_ context.Context, t models.ExchangeTransition) (*models.ExchangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[t.RequestID]
	if r.loseRaceTo != nil && ok {
		req.Status = *r.loseRaceTo
	}
	if r.deleteOnCAS {
		delete(r.requests, t.RequestID)
		ok = false
	}
	if !ok || req.Status != models.ExchangeStatusPending || (t.RequesterID != "" && req.RequesterID != t.RequesterID) {
		return nil, models.ErrStaleTransition
	}
	if t.ReassignTo != nil {
		if r.overlapFor[*t.ReassignTo] {
			return nil, fmt.Errorf("reassign: %w", repository.ErrReassignOverlap)
		}
		r.reassigned[req.ShiftID] = *t.ReassignTo
	}
	req.Status = t.To
	req.ApprovedBy = t.ApprovedBy
	req.ApprovedAt = t.ApprovedAt
	copied := *req
	return &copied, nil
}

func (r *exchangeRepoStub) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.requests, id)
	return nil
}

func (r *exchangeRepoStub) seed(req models.ExchangeRequest) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	req.ID = fmt.Sprintf("c0000000-0000-4000-8000-%012d", r.seq)
	if req.StoreID == "" {
		req.StoreID = exStore
	}
	if req.ShiftID == "" {
		req.ShiftID = exShift
	}
	if req.Status == "" {
		req.Status = models.ExchangeStatusPending
	}
	r.requests[req.ID] = &req
	return req.ID
}

type shiftLookupStub map[string]*models.Shift

func (s shiftLookupStub) GetByID(_ context.Context, id string) (*models.Shift, error) {
	sh, ok := s[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return sh, nil
}

type publisherStub struct {
	mu     sync.Mutex
	events []models.ExchangeEvent
}

func (p *publisherStub) Publish(_ context.Context, event models.ExchangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *publisherStub) snapshot() []models.ExchangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ExchangeEvent(nil), p.events...)
}

type recorderStub struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorderStub) RecordExchangeTransition(action models.ExchangeAction, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, string(action)+"/"+outcome)
}

type exchangeFixture struct {
	svc       *ExchangeService
	repo      *exchangeRepoStub
	dir       *directoryStub
	publisher *publisherStub
	metrics   *recorderStub
	cache     *querycache.Store
}

func newExchangeFixture(opts ...ExchangeServiceOption) exchangeFixture {
	repo := newExchangeRepoStub()
	dir := newDirectoryStub()
	dir.add(exStore, exManager, models.RoleManager)
	dir.add(exStore, exRequester, models.RoleStaff)
	dir.add(exStore, exTarget, models.RoleStaff)
	dir.add(exStore, exOther, models.RoleStaff)

	shifts := shiftLookupStub{
		exShift:     {ID: exShift, StoreID: exStore, UserID: strPtr(exRequester), StartTime: exNow.Add(24 * time.Hour), EndTime: exNow.Add(32 * time.Hour)},
		exPastShift: {ID: exPastShift, StoreID: exStore, UserID: strPtr(exRequester), StartTime: exNow.Add(-time.Hour), EndTime: exNow.Add(7 * time.Hour)},
		exElsewhere: {ID: exElsewhere, StoreID: "a0000000-0000-4000-8000-000000000002", UserID: strPtr(exRequester), StartTime: exNow.Add(24 * time.Hour), EndTime: exNow.Add(30 * time.Hour)},
	}
	publisher := &publisherStub{}
	metrics := &recorderStub{}
	cache, _ := newTestCache()

	base := []ExchangeServiceOption{
		WithExchangePublisher(publisher),
		WithExchangeMetrics(metrics),
		WithExchangeClock(func() time.Time { return exNow }),
	}
	svc := NewExchangeService(repo, shifts, dir, cache, nil, nil, append(base, opts...)...)
	return exchangeFixture{svc: svc, repo: repo, dir: dir, publisher: publisher, metrics: metrics, cache: cache}
}

func TestExchangeServiceCreate(t *testing.T) {
	f := newExchangeFixture()
	ctx := context.Background()

	req, err := f.svc.Create(ctx, exRequester, models.CreateExchangeInput{StoreID: exStore, ShiftID: exShift, Reason: strPtr("병원 예약")})
	require.NoError(t, err)
	assert.Equal(t, models.ExchangeStatusPending, req.Status)
	assert.Equal(t, exRequester, req.RequesterID)
	assert.Nil(t, req.ApprovedBy)

	events := f.publisher.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, models.ExchangeActionCreate, events[0].Action)
	assert.Equal(t, []string{"create/success"}, f.metrics.entries)
}

func TestExchangeServiceCreateRejections(t *testing.T) {
	tests := []struct {
		name    string
		caller  string
		input   models.CreateExchangeInput
		want    *appErrors.Error
		message string
	}{
		{"missing caller", "", models.CreateExchangeInput{StoreID: exStore, ShiftID: exShift}, appErrors.ErrUnauthorized, ""},
		{"invalid payload", exRequester, models.CreateExchangeInput{StoreID: "nope", ShiftID: exShift}, appErrors.ErrValidation, ""},
		{"not a member", exOutsider, models.CreateExchangeInput{StoreID: exStore, ShiftID: exShift}, appErrors.ErrForbidden, ""},
		{"unknown shift", exRequester, models.CreateExchangeInput{StoreID: exStore, ShiftID: "b0000000-0000-4000-8000-00000000ffff"}, appErrors.ErrNotFound, "근무 정보를 찾을 수 없습니다."},
		{"shift of another store", exRequester, models.CreateExchangeInput{StoreID: exStore, ShiftID: exElsewhere}, appErrors.ErrValidation, "해당 매장의 근무가 아닙니다."},
		{"someone else's shift", exOther, models.CreateExchangeInput{StoreID: exStore, ShiftID: exShift}, appErrors.ErrForbidden, "본인의 근무만 교환을 요청할 수 있습니다."},
		{"already started", exRequester, models.CreateExchangeInput{StoreID: exStore, ShiftID: exPastShift}, appErrors.ErrValidation, "이미 시작된 근무는 교환할 수 없습니다."},
		{"target is self", exRequester, models.CreateExchangeInput{StoreID: exStore, ShiftID: exShift, TargetUserID: strPtr(exRequester)}, appErrors.ErrValidation, "본인에게 교환을 요청할 수 없습니다."},
		{"target outside store", exRequester, models.CreateExchangeInput{StoreID: exStore, ShiftID: exShift, TargetUserID: strPtr(exOutsider)}, appErrors.ErrValidation, "대상 직원이 매장 멤버가 아닙니다."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newExchangeFixture()
			_, err := f.svc.Create(context.Background(), tc.caller, tc.input)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, tc.want), "got %v", err)
			if tc.message != "" {
				assert.Equal(t, tc.message, appErrors.FromError(err).Message)
			}
			assert.Empty(t, f.repo.requests)
			assert.Empty(t, f.publisher.snapshot())
			assert.Equal(t, []string{"create/denied"}, f.metrics.entries)
		})
	}
}

func TestExchangeServiceAcceptOpenRequest(t *testing.T) {
	f := newExchangeFixture()
	id := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester})

	req, err := f.svc.Accept(context.Background(), exOther, id)
	require.NoError(t, err)
	assert.Equal(t, models.ExchangeStatusApproved, req.Status)
	require.NotNil(t, req.ApprovedBy)
	assert.Equal(t, exOther, *req.ApprovedBy)
	require.NotNil(t, req.ApprovedAt)
	assert.True(t, req.ApprovedAt.Equal(exNow))
	assert.Empty(t, f.repo.reassigned, "shift stays with the requester unless reassignment is enabled")

	events := f.publisher.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, models.ExchangeActionAccept, events[0].Action)
	assert.Equal(t, exOther, events[0].ActorID)
	assert.Equal(t, []string{"accept/success"}, f.metrics.entries)
}

func TestExchangeServiceAcceptPermissions(t *testing.T) {
	f := newExchangeFixture()
	ctx := context.Background()
	own := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester})
	targeted := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester, TargetUserID: strPtr(exTarget)})

	_, err := f.svc.Accept(ctx, exRequester, own)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Equal(t, "본인의 요청은 수락할 수 없습니다.", appErrors.FromError(err).Message)

	_, err = f.svc.Accept(ctx, exOther, targeted)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.Accept(ctx, exOutsider, own)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.Accept(ctx, exTarget, targeted)
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, exOther, "c0000000-0000-4000-8000-00000000ffff")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, "교환 요청을 찾을 수 없습니다.", appErrors.FromError(err).Message)
}

func TestExchangeServiceHandledRequestReportsConflictBeforeAuthorization(t *testing.T) {
	f := newExchangeFixture()
	ctx := context.Background()
	id := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester, Status: models.ExchangeStatusApproved})

	for _, caller := range []string{exOther, exRequester, exOutsider} {
		_, err := f.svc.Accept(ctx, caller, id)
		require.Error(t, err)
		assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyProcessed), caller)
		assert.Equal(t, "이미 처리된 요청입니다.", appErrors.FromError(err).Message)
	}

	_, err := f.svc.Reject(ctx, exManager, id)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyProcessed))
	_, err = f.svc.Cancel(ctx, exRequester, id)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyProcessed))
	assert.Empty(t, f.publisher.snapshot())
}

func TestExchangeServiceLostRaceClassification(t *testing.T) {
	t.Run("another caller won", func(t *testing.T) {
		f := newExchangeFixture()
		id := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester})
		rejected := models.ExchangeStatusRejected
		f.repo.loseRaceTo = &rejected

		_, err := f.svc.Accept(context.Background(), exOther, id)
		require.Error(t, err)
		assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyProcessed))
		assert.Equal(t, []string{"accept/conflict"}, f.metrics.entries)
	})

	t.Run("request deleted", func(t *testing.T) {
		f := newExchangeFixture()
		id := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester})
		f.repo.deleteOnCAS = true

		_, err := f.svc.Accept(context.Background(), exOther, id)
		require.Error(t, err)
		assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	})
}

func TestExchangeServiceConcurrentAcceptsHaveOneWinner(t *testing.T) {
	f := newExchangeFixture()
	id := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester})
	callers := []string{exTarget, exOther, exManager, exTarget, exOther, exManager}

	var wg sync.WaitGroup
	results := make([]error, len(callers))
	for i, caller := range callers {
		wg.Add(1)
		go func(i int, caller string) {
			defer wg.Done()
			_, results[i] = f.svc.Accept(context.Background(), caller, id)
		}(i, caller)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyProcessed), "loser got %v", err)
	}
	assert.Equal(t, 1, successes)
	assert.Len(t, f.publisher.snapshot(), 1)
}

func TestExchangeServiceRejectPermissions(t *testing.T) {
	f := newExchangeFixture()
	ctx := context.Background()
	targeted := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester, TargetUserID: strPtr(exTarget)})
	open := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester})

	_, err := f.svc.Reject(ctx, exOther, targeted)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	req, err := f.svc.Reject(ctx, exTarget, targeted)
	require.NoError(t, err)
	assert.Equal(t, models.ExchangeStatusRejected, req.Status)
	assert.Nil(t, req.ApprovedBy)

	req, err = f.svc.Reject(ctx, exManager, open)
	require.NoError(t, err)
	assert.Equal(t, models.ExchangeStatusRejected, req.Status)
}

func TestExchangeServiceCancelRequesterOnly(t *testing.T) {
	f := newExchangeFixture()
	ctx := context.Background()
	id := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester, TargetUserID: strPtr(exTarget)})

	for _, caller := range []string{exTarget, exManager} {
		_, err := f.svc.Cancel(ctx, caller, id)
		assert.True(t, appErrors.Is(err, appErrors.ErrForbidden), caller)
	}

	req, err := f.svc.Cancel(ctx, exRequester, id)
	require.NoError(t, err)
	assert.Equal(t, models.ExchangeStatusCancelled, req.Status)

	events := f.publisher.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, models.ExchangeActionCancel, events[0].Action)
}

func TestExchangeServiceUpdate(t *testing.T) {
	f := newExchangeFixture()
	ctx := context.Background()
	id := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester})

	_, err := f.svc.Update(ctx, exManager, id, models.UpdateExchangeInput{Status: models.ExchangeStatusPending})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Update(ctx, exOther, id, models.UpdateExchangeInput{Status: models.ExchangeStatusApproved})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	req, err := f.svc.Update(ctx, exManager, id, models.UpdateExchangeInput{Status: models.ExchangeStatusApproved})
	require.NoError(t, err)
	require.NotNil(t, req.ApprovedBy)
	assert.Equal(t, exManager, *req.ApprovedBy)
	require.NotNil(t, req.ApprovedAt)
	assert.True(t, req.ApprovedAt.Equal(exNow))

	events := f.publisher.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, models.ExchangeActionAccept, events[0].Action, "manager approval is published as an accept")

	_, err = f.svc.Update(ctx, exManager, id, models.UpdateExchangeInput{Status: models.ExchangeStatusRejected})
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyProcessed))
}

func TestExchangeServiceUpdateKeepsExplicitApprover(t *testing.T) {
	f := newExchangeFixture()
	id := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester})
	at := exNow.Add(-time.Hour)

	req, err := f.svc.Update(context.Background(), exManager, id, models.UpdateExchangeInput{
		Status:     models.ExchangeStatusApproved,
		ApprovedBy: strPtr(exOther),
		ApprovedAt: &at,
	})
	require.NoError(t, err)
	assert.Equal(t, exOther, *req.ApprovedBy)
	assert.True(t, req.ApprovedAt.Equal(at))
}

func TestExchangeServiceDelete(t *testing.T) {
	f := newExchangeFixture()
	ctx := context.Background()
	id := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester})

	err := f.svc.Delete(ctx, exRequester, id)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, f.svc.Delete(ctx, exManager, id))
	assert.Empty(t, f.repo.requests)

	err = f.svc.Delete(ctx, exManager, id)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestExchangeServiceReassignOnApproval(t *testing.T) {
	t.Run("accept moves the shift to the acceptor", func(t *testing.T) {
		f := newExchangeFixture(WithReassignOnApproval(true))
		id := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester})

		_, err := f.svc.Accept(context.Background(), exOther, id)
		require.NoError(t, err)
		assert.Equal(t, exOther, f.repo.reassigned[exShift])
	})

	t.Run("manager approval moves the shift to the target", func(t *testing.T) {
		f := newExchangeFixture(WithReassignOnApproval(true))
		id := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester, TargetUserID: strPtr(exTarget)})

		_, err := f.svc.Update(context.Background(), exManager, id, models.UpdateExchangeInput{Status: models.ExchangeStatusApproved})
		require.NoError(t, err)
		assert.Equal(t, exTarget, f.repo.reassigned[exShift])
	})

	t.Run("double booking is a conflict", func(t *testing.T) {
		f := newExchangeFixture(WithReassignOnApproval(true))
		id := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester})
		f.repo.overlapFor[exOther] = true

		_, err := f.svc.Accept(context.Background(), exOther, id)
		require.Error(t, err)
		assert.True(t, appErrors.Is(err, appErrors.ErrShiftOverlap))
		assert.Equal(t, models.ExchangeStatusPending, f.repo.requests[id].Status)
		assert.Empty(t, f.publisher.snapshot())
	})
}

func TestExchangeServiceReassignMarksShiftListsStale(t *testing.T) {
	storeKey := "shifts:store:" + exStore + ":-|-|||"
	userKey := "shifts:user:" + exRequester + ":-|-"

	seedShiftLists := func(t *testing.T, f exchangeFixture) {
		t.Helper()
		for _, key := range []string{storeKey, userKey} {
			_, err := querycache.Fetch(context.Background(), f.cache, key, time.Hour, func(context.Context) ([]models.Shift, error) {
				return []models.Shift{{ID: exShift, StoreID: exStore, UserID: strPtr(exRequester)}}, nil
			})
			require.NoError(t, err)
		}
	}
	assertStale := func(t *testing.T, f exchangeFixture, want bool) {
		t.Helper()
		for _, key := range []string{storeKey, userKey} {
			entry, ok, err := f.cache.Peek(context.Background(), key)
			require.NoError(t, err)
			require.True(t, ok, key)
			assert.Equal(t, want, entry.Stale, key)
		}
	}

	t.Run("accept", func(t *testing.T) {
		f := newExchangeFixture(WithReassignOnApproval(true))
		id := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester})
		seedShiftLists(t, f)

		_, err := f.svc.Accept(context.Background(), exOther, id)
		require.NoError(t, err)
		require.Equal(t, exOther, f.repo.reassigned[exShift])
		assertStale(t, f, true)
	})

	t.Run("manager update", func(t *testing.T) {
		f := newExchangeFixture(WithReassignOnApproval(true))
		id := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester, TargetUserID: strPtr(exTarget)})
		seedShiftLists(t, f)

		_, err := f.svc.Update(context.Background(), exManager, id, models.UpdateExchangeInput{Status: models.ExchangeStatusApproved})
		require.NoError(t, err)
		assertStale(t, f, true)
	})

	t.Run("without reassignment shift lists stay fresh", func(t *testing.T) {
		f := newExchangeFixture()
		id := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester})
		seedShiftLists(t, f)

		_, err := f.svc.Accept(context.Background(), exOther, id)
		require.NoError(t, err)
		assertStale(t, f, false)
	})
}

func TestExchangeServiceUpdateRejectIgnoresApprover(t *testing.T) {
	f := newExchangeFixture()
	id := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester})
	at := exNow.Add(-time.Hour)

	req, err := f.svc.Update(context.Background(), exManager, id, models.UpdateExchangeInput{
		Status:     models.ExchangeStatusRejected,
		ApprovedBy: strPtr(exManager),
		ApprovedAt: &at,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExchangeStatusRejected, req.Status)
	assert.Nil(t, req.ApprovedBy)
	assert.Nil(t, req.ApprovedAt)
}

func TestExchangeServiceGetAttachesProfiles(t *testing.T) {
	f := newExchangeFixture()
	f.dir.profiles[exRequester] = models.ProfileSummary{ID: exRequester, FullName: "김민수"}
	id := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester, TargetUserID: strPtr(exTarget)})

	detail, err := f.svc.Get(context.Background(), exOther, id)
	require.NoError(t, err)
	require.NotNil(t, detail.Requester)
	assert.Equal(t, "김민수", detail.Requester.FullName)
	require.NotNil(t, detail.Target)
	assert.Equal(t, models.UnnamedProfile, detail.Target.FullName)
	assert.Nil(t, detail.Approver)

	_, err = f.svc.Get(context.Background(), exOutsider, id)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestExchangeServiceListings(t *testing.T) {
	f := newExchangeFixture()
	ctx := context.Background()
	f.repo.seed(models.ExchangeRequest{RequesterID: exRequester})
	f.repo.seed(models.ExchangeRequest{RequesterID: exRequester, TargetUserID: strPtr(exTarget)})

	_, err := f.svc.List(ctx, exRequester, models.ExchangeFilter{StoreID: exStore})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	all, err := f.svc.List(ctx, exManager, models.ExchangeFilter{StoreID: exStore})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	incoming, err := f.svc.ListIncoming(ctx, exOther)
	require.NoError(t, err)
	assert.Len(t, incoming, 1, "targeted requests are hidden from other staff")

	sent, err := f.svc.ListSent(ctx, exRequester)
	require.NoError(t, err)
	assert.Len(t, sent, 2)

	accepted, err := f.svc.ListAccepted(ctx, exOther)
	require.NoError(t, err)
	assert.NotNil(t, accepted)
	assert.Empty(t, accepted)
}

func TestExchangeServiceAcceptRefreshesCachedLists(t *testing.T) {
	f := newExchangeFixture()
	ctx := context.Background()
	id := f.repo.seed(models.ExchangeRequest{RequesterID: exRequester})

	incoming, err := f.svc.ListIncoming(ctx, exOther)
	require.NoError(t, err)
	require.Len(t, incoming, 1)

	_, err = f.svc.Accept(ctx, exOther, id)
	require.NoError(t, err)

	incoming, err = f.svc.ListIncoming(ctx, exOther)
	require.NoError(t, err)
	assert.Empty(t, incoming)

	accepted, err := f.svc.ListAccepted(ctx, exOther)
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, id, accepted[0].ID)
}

func TestExchangeServiceListSummary(t *testing.T) {
	f := newExchangeFixture()
	ctx := context.Background()
	rows := make([]models.ExchangeSummary, 60)
	for i := range rows {
		rows[i] = models.ExchangeSummary{ID: fmt.Sprintf("s-%d", i), Status: models.ExchangeStatusPending}
	}
	f.repo.summaries["store:"+exStore] = rows
	f.repo.summaries["incoming:"+exOther] = rows[:3]
	store := &models.Store{ID: exStore}
	f.dir.current[exManager] = &models.StoreContext{Store: store, Role: models.RoleManager}
	f.dir.current[exOther] = &models.StoreContext{Store: store, Role: models.RoleStaff}

	managerFeed, err := f.svc.ListSummary(ctx, exManager)
	require.NoError(t, err)
	assert.Len(t, managerFeed, exchangeSummarySize)

	staffFeed, err := f.svc.ListSummary(ctx, exOther)
	require.NoError(t, err)
	assert.Len(t, staffFeed, 3)

	nobody, err := f.svc.ListSummary(ctx, exOutsider)
	require.NoError(t, err)
	assert.NotNil(t, nobody)
	assert.Empty(t, nobody)
}

func TestTransitionOutcome(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, transitionOutcome(nil))
	assert.Equal(t, OutcomeConflict, transitionOutcome(appErrors.ErrAlreadyProcessed))
	assert.Equal(t, OutcomeConflict, transitionOutcome(appErrors.ErrShiftOverlap))
	assert.Equal(t, OutcomeDenied, transitionOutcome(appErrors.ErrForbidden))
	assert.Equal(t, OutcomeError, transitionOutcome(appErrors.Wrap(sql.ErrConnDone, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msgExchangeAccept)))
}
