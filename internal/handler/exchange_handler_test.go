package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/workeasy-api/internal/models"
	appErrors "github.com/noah-isme/workeasy-api/pkg/errors"
)

type exchangeServiceMock struct {
	err        error
	calls      []string
	lastID     string
	lastInput  models.CreateExchangeInput
	lastUpdate models.UpdateExchangeInput
	lastFilter models.ExchangeFilter
}

func (m *exchangeServiceMock) track(call, id string) {
	m.calls = append(m.calls, call)
	m.lastID = id
}

func (m *exchangeServiceMock) result(id string, status models.ExchangeStatus) (*models.ExchangeRequest, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.ExchangeRequest{ID: id, Status: status}, nil
}

func (m *exchangeServiceMock) Create(_ context.Context, _ string, input models.CreateExchangeInput) (*models.ExchangeRequest, error) {
	m.track("create", "")
	m.lastInput = input
	return m.result("new", models.ExchangeStatusPending)
}

func (m *exchangeServiceMock) Accept(_ context.Context, _, id string) (*models.ExchangeRequest, error) {
	m.track("accept", id)
	return m.result(id, models.ExchangeStatusApproved)
}

func (m *exchangeServiceMock) Reject(_ context.Context, _, id string) (*models.ExchangeRequest, error) {
	m.track("reject", id)
	return m.result(id, models.ExchangeStatusRejected)
}

func (m *exchangeServiceMock) Cancel(_ context.Context, _, id string) (*models.ExchangeRequest, error) {
	m.track("cancel", id)
	return m.result(id, models.ExchangeStatusCancelled)
}

func (m *exchangeServiceMock) Update(_ context.Context, _, id string, input models.UpdateExchangeInput) (*models.ExchangeRequest, error) {
	m.track("update", id)
	m.lastUpdate = input
	return m.result(id, input.Status)
}

func (m *exchangeServiceMock) Delete(_ context.Context, _, id string) error {
	m.track("delete", id)
	return m.err
}

func (m *exchangeServiceMock) Get(_ context.Context, _, id string) (*models.ExchangeRequestDetail, error) {
	m.track("get", id)
	if m.err != nil {
		return nil, m.err
	}
	return &models.ExchangeRequestDetail{
		ExchangeRequest: models.ExchangeRequest{ID: id},
		Requester:       &models.ProfileSummary{ID: testUser, FullName: "김민지"},
	}, nil
}

func (m *exchangeServiceMock) List(_ context.Context, _ string, filter models.ExchangeFilter) ([]models.ExchangeRequest, error) {
	m.track("list", "")
	m.lastFilter = filter
	return []models.ExchangeRequest{{ID: "r1"}}, m.err
}

func (m *exchangeServiceMock) ListIncoming(context.Context, string) ([]models.ExchangeRequest, error) {
	m.track("incoming", "")
	return []models.ExchangeRequest{{ID: "in"}}, m.err
}

func (m *exchangeServiceMock) ListSent(context.Context, string) ([]models.ExchangeRequest, error) {
	m.track("sent", "")
	return []models.ExchangeRequest{{ID: "sent"}}, m.err
}

func (m *exchangeServiceMock) ListAccepted(context.Context, string) ([]models.ExchangeRequest, error) {
	m.track("accepted", "")
	return []models.ExchangeRequest{{ID: "acc"}}, m.err
}

func (m *exchangeServiceMock) ListSummary(context.Context, string) ([]models.ExchangeSummary, error) {
	m.track("summary", "")
	return []models.ExchangeSummary{{ID: "sum", Status: models.ExchangeStatusPending}}, m.err
}

type pendingCounterMock struct{ count models.PendingCount }

func (m pendingCounterMock) Count(context.Context, string) models.PendingCount { return m.count }

func TestExchangeHandlerCreateDefaultsStore(t *testing.T) {
	svc := &exchangeServiceMock{}
	h := NewExchangeHandler(svc, pendingCounterMock{})

	c, w := newContext(http.MethodPost, "/exchanges", `{"shift_id":"s-1","reason":"병원 예약"}`)
	h.Create(c)

	requireStatus(t, w, http.StatusCreated)
	assert.Equal(t, testStore, svc.lastInput.StoreID)
	assert.Equal(t, "s-1", svc.lastInput.ShiftID)

	c, w = newContext(http.MethodPost, "/exchanges", `{"store_id":"other","shift_id":"s-1"}`)
	h.Create(c)
	requireStatus(t, w, http.StatusCreated)
	assert.Equal(t, "other", svc.lastInput.StoreID, "explicit store is kept")
}

func TestExchangeHandlerTransitions(t *testing.T) {
	svc := &exchangeServiceMock{}
	h := NewExchangeHandler(svc, pendingCounterMock{})

	tests := []struct {
		name   string
		call   func(*ExchangeHandler) func(c *gin.Context)
		status models.ExchangeStatus
	}{
		{"accept", func(h *ExchangeHandler) func(c *gin.Context) { return h.Accept }, models.ExchangeStatusApproved},
		{"reject", func(h *ExchangeHandler) func(c *gin.Context) { return h.Reject }, models.ExchangeStatusRejected},
		{"cancel", func(h *ExchangeHandler) func(c *gin.Context) { return h.Cancel }, models.ExchangeStatusCancelled},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, w := newContext(http.MethodPost, "/exchanges/r1/"+tc.name, nil, idParam("r1"))
			tc.call(h)(c)

			requireStatus(t, w, http.StatusOK)
			var got models.ExchangeRequest
			decode(t, w, &got)
			assert.Equal(t, tc.status, got.Status)
			assert.Equal(t, tc.name, svc.calls[len(svc.calls)-1])
			assert.Equal(t, "r1", svc.lastID)
		})
	}
}

func TestExchangeHandlerTransitionConflict(t *testing.T) {
	svc := &exchangeServiceMock{err: appErrors.ErrAlreadyProcessed}
	h := NewExchangeHandler(svc, pendingCounterMock{})

	c, w := newContext(http.MethodPost, "/exchanges/r1/accept", nil, idParam("r1"))
	h.Accept(c)

	requireStatus(t, w, http.StatusConflict)
	env := decode(t, w, nil)
	assert.Equal(t, "CONFLICT", env.Error.Code)
	assert.Equal(t, "이미 처리된 요청입니다.", env.Error.Message)
}

func TestExchangeHandlerListFilters(t *testing.T) {
	svc := &exchangeServiceMock{}
	h := NewExchangeHandler(svc, pendingCounterMock{})

	c, w := newContext(http.MethodGet, "/exchanges?status=pending&requester_id=u-2&limit=10&offset=20", nil)
	h.List(c)

	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, models.ExchangeFilter{StoreID: testStore, Status: models.ExchangeStatusPending, RequesterID: "u-2", Limit: 10, Offset: 20}, svc.lastFilter)

	c, w = newContext(http.MethodGet, "/exchanges?status=approvedish", nil)
	h.List(c)
	requireStatus(t, w, http.StatusBadRequest)
}

func TestExchangeHandlerPersonalFeeds(t *testing.T) {
	svc := &exchangeServiceMock{}
	h := NewExchangeHandler(svc, pendingCounterMock{})

	for name, handle := range map[string]func(c *gin.Context){
		"incoming": h.Incoming,
		"sent":     h.Sent,
		"accepted": h.Accepted,
	} {
		c, w := newContext(http.MethodGet, "/exchanges/"+name, nil)
		handle(c)
		requireStatus(t, w, http.StatusOK)
		assert.Equal(t, name, svc.calls[len(svc.calls)-1])
	}

	c, w := newContext(http.MethodGet, "/exchanges/summary", nil)
	h.Summary(c)
	requireStatus(t, w, http.StatusOK)
	var summary []models.ExchangeSummary
	decode(t, w, &summary)
	require.Len(t, summary, 1)
	assert.Equal(t, "sum", summary[0].ID)
}

func TestExchangeHandlerPendingCount(t *testing.T) {
	h := NewExchangeHandler(&exchangeServiceMock{}, pendingCounterMock{count: models.PendingCount{Role: models.RoleManager, Count: 3}})

	c, w := newContext(http.MethodGet, "/exchanges/pending-count", nil)
	h.PendingCount(c)

	requireStatus(t, w, http.StatusOK)
	var got models.PendingCount
	decode(t, w, &got)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, models.RoleManager, got.Role)
}

func TestExchangeHandlerUpdateGetDelete(t *testing.T) {
	svc := &exchangeServiceMock{}
	h := NewExchangeHandler(svc, pendingCounterMock{})

	c, w := newContext(http.MethodPatch, "/exchanges/r1", `{"status":"approved"}`, idParam("r1"))
	h.Update(c)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, models.ExchangeStatusApproved, svc.lastUpdate.Status)

	c, w = newContext(http.MethodPatch, "/exchanges/r1", `[]`, idParam("r1"))
	h.Update(c)
	requireStatus(t, w, http.StatusBadRequest)

	c, w = newContext(http.MethodGet, "/exchanges/r1", nil, idParam("r1"))
	h.Get(c)
	requireStatus(t, w, http.StatusOK)
	var detail models.ExchangeRequestDetail
	decode(t, w, &detail)
	require.NotNil(t, detail.Requester)
	assert.Equal(t, "김민지", detail.Requester.FullName)

	c, _ = newContext(http.MethodDelete, "/exchanges/r1", nil, idParam("r1"))
	h.Delete(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())

	svc.err = appErrors.Clone(appErrors.ErrForbidden, "삭제 권한이 없습니다.")
	c, w = newContext(http.MethodDelete, "/exchanges/r1", nil, idParam("r1"))
	h.Delete(c)
	requireStatus(t, w, http.StatusForbidden)
}
