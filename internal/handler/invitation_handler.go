package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/workeasy-api/internal/dto"
	"github.com/noah-isme/workeasy-api/internal/models"
	"github.com/noah-isme/workeasy-api/pkg/response"
)

type invitationService interface {
	Create(ctx context.Context, callerID, storeID string, input models.CreateInvitationInput) (*models.Invitation, error)
	List(ctx context.Context, callerID, storeID string) ([]models.Invitation, error)
	Delete(ctx context.Context, callerID, storeID, id string) error
	Accept(ctx context.Context, callerID, code string) (*models.AcceptInvitationResult, error)
	Send(ctx context.Context, callerID, invitationID string) error
}

// InvitationHandler serves store invitations.
type InvitationHandler struct {
	service invitationService
}

// NewInvitationHandler builds an InvitationHandler.
func NewInvitationHandler(service invitationService) *InvitationHandler {
	return &InvitationHandler{service: service}
}

// Create godoc
// @Summary Issue an invitation code. Managers only.
// @Tags Invitations
// @Accept json
// @Produce json
// @Param payload body models.CreateInvitationInput true "Invitation payload"
// @Success 201 {object} response.Envelope
// @Router /invitations [post]
func (h *InvitationHandler) Create(c *gin.Context) {
	var input models.CreateInvitationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, bindError(err, "invalid invitation payload"))
		return
	}
	inv, err := h.service.Create(c.Request.Context(), callerID(c), scopedStoreID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, inv)
}

// List godoc
// @Summary List invitations of the scoped store, newest first
// @Tags Invitations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /invitations [get]
func (h *InvitationHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), callerID(c), scopedStoreID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Delete godoc
// @Summary Revoke an invitation
// @Tags Invitations
// @Param id path string true "Invitation ID"
// @Success 204
// @Router /invitations/{id} [delete]
func (h *InvitationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), callerID(c), scopedStoreID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Accept godoc
// @Summary Redeem an invitation code
// @Tags Invitations
// @Accept json
// @Produce json
// @Param payload body dto.AcceptInvitationRequest true "Code"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /invitations/accept [post]
func (h *InvitationHandler) Accept(c *gin.Context) {
	var req dto.AcceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid invitation code"))
		return
	}
	result, err := h.service.Accept(c.Request.Context(), callerID(c), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Send godoc
// @Summary Queue the invitation mail
// @Tags Invitations
// @Accept json
// @Produce json
// @Param payload body dto.SendInvitationRequest true "Invitation"
// @Success 200 {object} dto.SendInvitationResponse
// @Failure 400 {object} response.Envelope
// @Router /api/invitations/send [post]
func (h *InvitationHandler) Send(c *gin.Context) {
	var req dto.SendInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid invitation payload"))
		return
	}
	if err := h.service.Send(c.Request.Context(), callerID(c), req.InvitationID); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SendInvitationResponse{Success: true})
}
