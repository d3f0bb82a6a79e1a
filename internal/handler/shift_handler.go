package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/workeasy-api/internal/dto"
	"github.com/noah-isme/workeasy-api/internal/models"
	"github.com/noah-isme/workeasy-api/internal/service"
	appErrors "github.com/noah-isme/workeasy-api/pkg/errors"
	"github.com/noah-isme/workeasy-api/pkg/response"
)

type shiftService interface {
	List(ctx context.Context, userID string, filter models.ShiftFilter) ([]models.Shift, error)
	ListMine(ctx context.Context, userID string, start, end *time.Time) ([]models.Shift, error)
	ListByDateRange(ctx context.Context, userID, storeID string, start, end time.Time) ([]models.Shift, error)
	Get(ctx context.Context, userID, id string) (*models.Shift, error)
	CheckOverlap(ctx context.Context, q models.OverlapQuery) (bool, error)
	Create(ctx context.Context, userID, storeID string, input models.ShiftInput) (*models.Shift, error)
	Update(ctx context.Context, userID, storeID, id string, input models.ShiftInput) (*models.Shift, error)
	Delete(ctx context.Context, userID, storeID, id string) error
}

type rosterExporter interface {
	ExportRoster(ctx context.Context, userID, storeID string, start, end time.Time, format string) (*service.ExportFile, error)
}

// ShiftHandler serves the shift registry.
type ShiftHandler struct {
	shifts   shiftService
	exporter rosterExporter
	loc      *time.Location
}

// NewShiftHandler builds a ShiftHandler. Plain dates in query strings are read in loc.
func NewShiftHandler(shifts shiftService, exporter rosterExporter, loc *time.Location) *ShiftHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ShiftHandler{shifts: shifts, exporter: exporter, loc: loc}
}

// List godoc
// @Summary List shifts of the scoped store
// @Tags Shifts
// @Produce json
// @Param start_date query string false "Lower bound on start time"
// @Param end_date query string false "Upper bound on start time"
// @Param user_id query string false "Assignee"
// @Param position query string false "Position"
// @Param status query string false "pending or confirmed"
// @Success 200 {object} response.Envelope
// @Router /shifts [get]
func (h *ShiftHandler) List(c *gin.Context) {
	var query dto.ShiftQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid shift query"))
		return
	}
	start, err := parseTimeParam("start_date", query.StartDate, h.loc, false)
	if err != nil {
		response.Error(c, err)
		return
	}
	end, err := parseTimeParam("end_date", query.EndDate, h.loc, true)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.ShiftFilter{
		StoreID:   scopedStoreID(c),
		UserID:    query.UserID,
		Position:  query.Position,
		Status:    models.ShiftStatus(query.Status),
		StartDate: start,
		EndDate:   end,
	}
	shifts, err := h.shifts.List(c.Request.Context(), callerID(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, shifts, nil)
}

// Mine godoc
// @Summary List the caller's shifts across stores
// @Tags Shifts
// @Produce json
// @Param start query string false "Lower bound"
// @Param end query string false "Upper bound"
// @Success 200 {object} response.Envelope
// @Router /shifts/mine [get]
func (h *ShiftHandler) Mine(c *gin.Context) {
	start, end, err := h.bindRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	shifts, err := h.shifts.ListMine(c.Request.Context(), callerID(c), start, end)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, shifts, nil)
}

// Range godoc
// @Summary List shifts fully inside a window
// @Tags Shifts
// @Produce json
// @Param start query string true "Window start"
// @Param end query string true "Window end"
// @Success 200 {object} response.Envelope
// @Router /shifts/range [get]
func (h *ShiftHandler) Range(c *gin.Context) {
	start, end, err := h.bindRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if start == nil || end == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start and end are required"))
		return
	}
	shifts, err := h.shifts.ListByDateRange(c.Request.Context(), callerID(c), scopedStoreID(c), *start, *end)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, shifts, nil)
}

// Get godoc
// @Summary Get a shift
// @Tags Shifts
// @Produce json
// @Param id path string true "Shift ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /shifts/{id} [get]
func (h *ShiftHandler) Get(c *gin.Context) {
	shift, err := h.shifts.Get(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, shift, nil)
}

// Create godoc
// @Summary Create a shift in the scoped store
// @Tags Shifts
// @Accept json
// @Produce json
// @Param payload body models.ShiftInput true "Shift payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /shifts [post]
func (h *ShiftHandler) Create(c *gin.Context) {
	var input models.ShiftInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, bindError(err, "invalid shift payload"))
		return
	}
	shift, err := h.shifts.Create(c.Request.Context(), callerID(c), scopedStoreID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, shift)
}

// Update godoc
// @Summary Replace a shift. Managers only.
// @Tags Shifts
// @Accept json
// @Produce json
// @Param id path string true "Shift ID"
// @Param payload body models.ShiftInput true "Shift payload"
// @Success 200 {object} response.Envelope
// @Router /shifts/{id} [put]
func (h *ShiftHandler) Update(c *gin.Context) {
	var input models.ShiftInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, bindError(err, "invalid shift payload"))
		return
	}
	shift, err := h.shifts.Update(c.Request.Context(), callerID(c), scopedStoreID(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, shift, nil)
}

// Delete godoc
// @Summary Delete a shift. Managers only.
// @Tags Shifts
// @Param id path string true "Shift ID"
// @Success 204
// @Router /shifts/{id} [delete]
func (h *ShiftHandler) Delete(c *gin.Context) {
	if err := h.shifts.Delete(c.Request.Context(), callerID(c), scopedStoreID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CheckOverlap godoc
// @Summary Check a candidate interval against existing shifts
// @Tags Shifts
// @Accept json
// @Produce json
// @Param payload body dto.OverlapCheckRequest true "Candidate interval"
// @Success 200 {object} response.Envelope
// @Router /shifts/overlap [post]
func (h *ShiftHandler) CheckOverlap(c *gin.Context) {
	var req dto.OverlapCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid overlap payload"))
		return
	}
	overlap, err := h.shifts.CheckOverlap(c.Request.Context(), models.OverlapQuery{
		StoreID:   scopedStoreID(c),
		UserID:    req.UserID,
		Start:     req.StartTime,
		End:       req.EndTime,
		ExcludeID: req.ExcludeID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.OverlapCheckResponse{Overlap: overlap}, nil)
}

// Export godoc
// @Summary Download the roster of the scoped store
// @Tags Shifts
// @Produce text/csv
// @Produce application/pdf
// @Param start query string true "Window start"
// @Param end query string true "Window end"
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Router /shifts/export [get]
func (h *ShiftHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid export query"))
		return
	}
	start, err := parseTimeParam("start", query.Start, h.loc, false)
	if err != nil {
		response.Error(c, err)
		return
	}
	end, err := parseTimeParam("end", query.End, h.loc, true)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.ExportRoster(c.Request.Context(), callerID(c), scopedStoreID(c), *start, *end, query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(file.Filename)))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func (h *ShiftHandler) bindRange(c *gin.Context) (*time.Time, *time.Time, error) {
	var query dto.RangeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		return nil, nil, bindError(err, "invalid range query")
	}
	start, err := parseTimeParam("start", query.Start, h.loc, false)
	if err != nil {
		return nil, nil, err
	}
	end, err := parseTimeParam("end", query.End, h.loc, true)
	if err != nil {
		return nil, nil, err
	}
	return start, end, nil
}
