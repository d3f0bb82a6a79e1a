package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/workeasy-api/internal/models"
	"github.com/noah-isme/workeasy-api/internal/service"
	appErrors "github.com/noah-isme/workeasy-api/pkg/errors"
)

type shiftServiceMock struct {
	shifts       []models.Shift
	err          error
	lastFilter   models.ShiftFilter
	lastStart    *time.Time
	lastEnd      *time.Time
	lastStore    string
	lastID       string
	lastInput    models.ShiftInput
	lastOverlap  models.OverlapQuery
	overlap      bool
	deleteCalled bool
}

func (m *shiftServiceMock) List(_ context.Context, _ string, filter models.ShiftFilter) ([]models.Shift, error) {
	m.lastFilter = filter
	return m.shifts, m.err
}

func (m *shiftServiceMock) ListMine(_ context.Context, _ string, start, end *time.Time) ([]models.Shift, error) {
	m.lastStart, m.lastEnd = start, end
	return m.shifts, m.err
}

func (m *shiftServiceMock) ListByDateRange(_ context.Context, _, storeID string, start, end time.Time) ([]models.Shift, error) {
	m.lastStore = storeID
	m.lastStart, m.lastEnd = &start, &end
	return m.shifts, m.err
}

func (m *shiftServiceMock) Get(_ context.Context, _, id string) (*models.Shift, error) {
	m.lastID = id
	if m.err != nil {
		return nil, m.err
	}
	return &models.Shift{ID: id}, nil
}

func (m *shiftServiceMock) CheckOverlap(_ context.Context, q models.OverlapQuery) (bool, error) {
	m.lastOverlap = q
	return m.overlap, m.err
}

func (m *shiftServiceMock) Create(_ context.Context, _, storeID string, input models.ShiftInput) (*models.Shift, error) {
	m.lastStore, m.lastInput = storeID, input
	if m.err != nil {
		return nil, m.err
	}
	return &models.Shift{ID: "new", StoreID: storeID, StartTime: input.StartTime, EndTime: input.EndTime}, nil
}

func (m *shiftServiceMock) Update(_ context.Context, _, storeID, id string, input models.ShiftInput) (*models.Shift, error) {
	m.lastStore, m.lastID, m.lastInput = storeID, id, input
	if m.err != nil {
		return nil, m.err
	}
	return &models.Shift{ID: id, StoreID: storeID}, nil
}

func (m *shiftServiceMock) Delete(_ context.Context, _, storeID, id string) error {
	m.deleteCalled = true
	m.lastStore, m.lastID = storeID, id
	return m.err
}

type exporterMock struct {
	start, end time.Time
	format     string
	err        error
}

func (m *exporterMock) ExportRoster(_ context.Context, _, _ string, start, end time.Time, format string) (*service.ExportFile, error) {
	m.start, m.end, m.format = start, end, format
	if m.err != nil {
		return nil, m.err
	}
	return &service.ExportFile{Filename: "roster_강남_203005.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("a,b\n")}, nil
}

var kst = time.FixedZone("KST", 9*60*60)

func TestShiftHandlerListBuildsFilter(t *testing.T) {
	svc := &shiftServiceMock{shifts: []models.Shift{{ID: "s1"}}}
	h := NewShiftHandler(svc, &exporterMock{}, kst)

	c, w := newContext(http.MethodGet, "/shifts?start_date=2030-05-01&end_date=2030-05-31&position=bar&status=confirmed", nil)
	h.List(c)

	requireStatus(t, w, http.StatusOK)
	var got []models.Shift
	decode(t, w, &got)
	assert.Len(t, got, 1)
	assert.Equal(t, testStore, svc.lastFilter.StoreID)
	assert.Equal(t, "bar", svc.lastFilter.Position)
	assert.Equal(t, models.ShiftStatusConfirmed, svc.lastFilter.Status)
	require.NotNil(t, svc.lastFilter.StartDate)
	require.NotNil(t, svc.lastFilter.EndDate)
	assert.True(t, svc.lastFilter.StartDate.Equal(time.Date(2030, 5, 1, 0, 0, 0, 0, kst)))
	assert.True(t, svc.lastFilter.EndDate.Equal(time.Date(2030, 6, 1, 0, 0, 0, 0, kst).Add(-time.Nanosecond)), "plain end date covers the whole day")
}

func TestShiftHandlerListRejectsBadQuery(t *testing.T) {
	h := NewShiftHandler(&shiftServiceMock{}, &exporterMock{}, kst)

	for _, target := range []string{"/shifts?status=done", "/shifts?start_date=yesterday"} {
		c, w := newContext(http.MethodGet, target, nil)
		h.List(c)
		requireStatus(t, w, http.StatusBadRequest)
		env := decode(t, w, nil)
		assert.Equal(t, appErrors.ErrValidation.Code, env.Error.Code, target)
	}
}

func TestShiftHandlerMineAcceptsRFC3339(t *testing.T) {
	svc := &shiftServiceMock{}
	h := NewShiftHandler(svc, &exporterMock{}, kst)

	c, w := newContext(http.MethodGet, "/shifts/mine?start=2030-05-01T09:00:00Z", nil)
	h.Mine(c)

	requireStatus(t, w, http.StatusOK)
	require.NotNil(t, svc.lastStart)
	assert.True(t, svc.lastStart.Equal(time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)))
	assert.Nil(t, svc.lastEnd)
}

func TestShiftHandlerRangeRequiresBothBounds(t *testing.T) {
	svc := &shiftServiceMock{}
	h := NewShiftHandler(svc, &exporterMock{}, kst)

	c, w := newContext(http.MethodGet, "/shifts/range?start=2030-05-01", nil)
	h.Range(c)
	requireStatus(t, w, http.StatusBadRequest)

	c, w = newContext(http.MethodGet, "/shifts/range?start=2030-05-01&end=2030-05-02", nil)
	h.Range(c)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, testStore, svc.lastStore)
}

func TestShiftHandlerCreate(t *testing.T) {
	svc := &shiftServiceMock{}
	h := NewShiftHandler(svc, &exporterMock{}, kst)

	c, w := newContext(http.MethodPost, "/shifts", `{"start_time":"2030-05-01T09:00:00Z","end_time":"2030-05-01T17:00:00Z"}`)
	h.Create(c)

	requireStatus(t, w, http.StatusCreated)
	assert.Equal(t, testStore, svc.lastStore)
	assert.Equal(t, 8*time.Hour, svc.lastInput.EndTime.Sub(svc.lastInput.StartTime))

	c, w = newContext(http.MethodPost, "/shifts", `{"start_time":`)
	h.Create(c)
	requireStatus(t, w, http.StatusBadRequest)
}

func TestShiftHandlerCreateConflict(t *testing.T) {
	svc := &shiftServiceMock{err: appErrors.ErrShiftOverlap}
	h := NewShiftHandler(svc, &exporterMock{}, kst)

	c, w := newContext(http.MethodPost, "/shifts", `{"start_time":"2030-05-01T09:00:00Z","end_time":"2030-05-01T17:00:00Z"}`)
	h.Create(c)

	requireStatus(t, w, http.StatusConflict)
}

func TestShiftHandlerUpdateAndDelete(t *testing.T) {
	svc := &shiftServiceMock{}
	h := NewShiftHandler(svc, &exporterMock{}, kst)

	c, w := newContext(http.MethodPut, "/shifts/s1", `{"start_time":"2030-05-01T09:00:00Z","end_time":"2030-05-01T12:00:00Z"}`, idParam("s1"))
	h.Update(c)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "s1", svc.lastID)

	c, _ = newContext(http.MethodDelete, "/shifts/s1", nil, idParam("s1"))
	h.Delete(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.True(t, svc.deleteCalled)

	svc.err = appErrors.Clone(appErrors.ErrNotFound, "근무를 찾을 수 없습니다.")
	c, w = newContext(http.MethodGet, "/shifts/missing", nil, idParam("missing"))
	h.Get(c)
	requireStatus(t, w, http.StatusNotFound)
	assert.Equal(t, "근무를 찾을 수 없습니다.", decode(t, w, nil).Error.Message)
}

func TestShiftHandlerCheckOverlap(t *testing.T) {
	svc := &shiftServiceMock{overlap: true}
	h := NewShiftHandler(svc, &exporterMock{}, kst)

	c, w := newContext(http.MethodPost, "/shifts/overlap", `{"user_id":"u-1","start_time":"2030-05-01T09:00:00Z","end_time":"2030-05-01T10:00:00Z","exclude_id":"s9"}`)
	h.CheckOverlap(c)

	requireStatus(t, w, http.StatusOK)
	var got struct {
		Overlap bool `json:"overlap"`
	}
	decode(t, w, &got)
	assert.True(t, got.Overlap)
	assert.Equal(t, testStore, svc.lastOverlap.StoreID)
	assert.Equal(t, "s9", svc.lastOverlap.ExcludeID)
	require.NotNil(t, svc.lastOverlap.UserID)
	assert.Equal(t, "u-1", *svc.lastOverlap.UserID)

	c, w = newContext(http.MethodPost, "/shifts/overlap", `{"user_id":"u-1"}`)
	h.CheckOverlap(c)
	requireStatus(t, w, http.StatusBadRequest)
}

func TestShiftHandlerExport(t *testing.T) {
	exp := &exporterMock{}
	h := NewShiftHandler(&shiftServiceMock{}, exp, kst)

	c, w := newContext(http.MethodGet, "/shifts/export?start=2030-05-01&end=2030-05-31&format=csv", nil)
	h.Export(c)

	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename*=UTF-8''roster_%EA%B0%95%EB%82%A8_203005.csv")
	assert.Equal(t, "a,b\n", w.Body.String())
	assert.Equal(t, "csv", exp.format)
	assert.Equal(t, time.Date(2030, 5, 1, 0, 0, 0, 0, kst), exp.start)

	c, w = newContext(http.MethodGet, "/shifts/export?start=2030-05-01", nil)
	h.Export(c)
	requireStatus(t, w, http.StatusBadRequest)

	exp.err = appErrors.Clone(appErrors.ErrForbidden, "매니저 권한이 필요합니다.")
	c, w = newContext(http.MethodGet, "/shifts/export?start=2030-05-01&end=2030-05-31", nil)
	h.Export(c)
	requireStatus(t, w, http.StatusForbidden)
}
