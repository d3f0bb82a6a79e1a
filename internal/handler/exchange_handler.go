package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/workeasy-api/internal/dto"
	"github.com/noah-isme/workeasy-api/internal/models"
	"github.com/noah-isme/workeasy-api/pkg/response"
)

type exchangeService interface {
	Create(ctx context.Context, callerID string, input models.CreateExchangeInput) (*models.ExchangeRequest, error)
	Accept(ctx context.Context, callerID, id string) (*models.ExchangeRequest, error)
	Reject(ctx context.Context, callerID, id string) (*models.ExchangeRequest, error)
	Cancel(ctx context.Context, callerID, id string) (*models.ExchangeRequest, error)
	Update(ctx context.Context, callerID, id string, input models.UpdateExchangeInput) (*models.ExchangeRequest, error)
	Delete(ctx context.Context, callerID, id string) error
	Get(ctx context.Context, callerID, id string) (*models.ExchangeRequestDetail, error)
	List(ctx context.Context, callerID string, filter models.ExchangeFilter) ([]models.ExchangeRequest, error)
	ListIncoming(ctx context.Context, callerID string) ([]models.ExchangeRequest, error)
	ListSent(ctx context.Context, callerID string) ([]models.ExchangeRequest, error)
	ListAccepted(ctx context.Context, callerID string) ([]models.ExchangeRequest, error)
	ListSummary(ctx context.Context, callerID string) ([]models.ExchangeSummary, error)
}

type pendingCounter interface {
	Count(ctx context.Context, userID string) models.PendingCount
}

// ExchangeHandler serves shift exchange requests.
type ExchangeHandler struct {
	exchanges exchangeService
	pending   pendingCounter
}

// NewExchangeHandler builds an ExchangeHandler.
func NewExchangeHandler(exchanges exchangeService, pending pendingCounter) *ExchangeHandler {
	return &ExchangeHandler{exchanges: exchanges, pending: pending}
}

// Create godoc
// @Summary Request a shift handoff
// @Description store_id defaults to the scoped store.
// @Tags Exchanges
// @Accept json
// @Produce json
// @Param payload body models.CreateExchangeInput true "Exchange payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /exchanges [post]
func (h *ExchangeHandler) Create(c *gin.Context) {
	var input models.CreateExchangeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, bindError(err, "invalid exchange payload"))
		return
	}
	if input.StoreID == "" {
		input.StoreID = scopedStoreID(c)
	}
	req, err := h.exchanges.Create(c.Request.Context(), callerID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, req)
}

// List godoc
// @Summary List requests of the scoped store. Managers only.
// @Tags Exchanges
// @Produce json
// @Param status query string false "Status"
// @Param requester_id query string false "Requester"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /exchanges [get]
func (h *ExchangeHandler) List(c *gin.Context) {
	var query dto.ExchangeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid exchange query"))
		return
	}
	filter := models.ExchangeFilter{
		StoreID:     scopedStoreID(c),
		Status:      models.ExchangeStatus(query.Status),
		RequesterID: query.RequesterID,
		Limit:       query.Limit,
		Offset:      query.Offset,
	}
	items, err := h.exchanges.List(c.Request.Context(), callerID(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Incoming godoc
// @Summary Pending requests the caller could accept
// @Tags Exchanges
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /exchanges/incoming [get]
func (h *ExchangeHandler) Incoming(c *gin.Context) {
	h.respondList(c, h.exchanges.ListIncoming)
}

// Sent godoc
// @Summary Requests the caller created
// @Tags Exchanges
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /exchanges/sent [get]
func (h *ExchangeHandler) Sent(c *gin.Context) {
	h.respondList(c, h.exchanges.ListSent)
}

// Accepted godoc
// @Summary Requests the caller approved
// @Tags Exchanges
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /exchanges/accepted [get]
func (h *ExchangeHandler) Accepted(c *gin.Context) {
	h.respondList(c, h.exchanges.ListAccepted)
}

// Summary godoc
// @Summary Compact feed of recent requests across the caller's stores
// @Tags Exchanges
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /exchanges/summary [get]
func (h *ExchangeHandler) Summary(c *gin.Context) {
	items, err := h.exchanges.ListSummary(c.Request.Context(), callerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// PendingCount godoc
// @Summary Badge count of pending requests
// @Description Managers see pending requests of their store, staff see incoming ones. Never fails.
// @Tags Exchanges
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /exchanges/pending-count [get]
func (h *ExchangeHandler) PendingCount(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.pending.Count(c.Request.Context(), callerID(c)), nil)
}

// Get godoc
// @Summary Get a request with shift and profiles
// @Tags Exchanges
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exchanges/{id} [get]
func (h *ExchangeHandler) Get(c *gin.Context) {
	detail, err := h.exchanges.Get(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Accept godoc
// @Summary Accept a pending request
// @Tags Exchanges
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /exchanges/{id}/accept [post]
func (h *ExchangeHandler) Accept(c *gin.Context) {
	h.respondTransition(c, h.exchanges.Accept)
}

// Reject godoc
// @Summary Reject a pending request
// @Tags Exchanges
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /exchanges/{id}/reject [post]
func (h *ExchangeHandler) Reject(c *gin.Context) {
	h.respondTransition(c, h.exchanges.Reject)
}

// Cancel godoc
// @Summary Withdraw a pending request
// @Tags Exchanges
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /exchanges/{id}/cancel [post]
func (h *ExchangeHandler) Cancel(c *gin.Context) {
	h.respondTransition(c, h.exchanges.Cancel)
}

// Update godoc
// @Summary Manager transition with explicit status
// @Tags Exchanges
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body models.UpdateExchangeInput true "Transition"
// @Success 200 {object} response.Envelope
// @Router /exchanges/{id} [patch]
func (h *ExchangeHandler) Update(c *gin.Context) {
	var input models.UpdateExchangeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, bindError(err, "invalid exchange payload"))
		return
	}
	req, err := h.exchanges.Update(c.Request.Context(), callerID(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// Delete godoc
// @Summary Delete a request
// @Tags Exchanges
// @Param id path string true "Request ID"
// @Success 204
// @Router /exchanges/{id} [delete]
func (h *ExchangeHandler) Delete(c *gin.Context) {
	if err := h.exchanges.Delete(c.Request.Context(), callerID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *ExchangeHandler) respondList(c *gin.Context, list func(context.Context, string) ([]models.ExchangeRequest, error)) {
	items, err := list(c.Request.Context(), callerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

func (h *ExchangeHandler) respondTransition(c *gin.Context, transition func(context.Context, string, string) (*models.ExchangeRequest, error)) {
	req, err := transition(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}
