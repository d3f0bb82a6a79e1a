package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/workeasy-api/internal/models"
	"github.com/noah-isme/workeasy-api/pkg/response"
)

type storeService interface {
	CreateStoreAsOwner(ctx context.Context, ownerID string, input models.CreateStoreInput) (*models.Store, error)
	CurrentStore(ctx context.Context, userID string) (*models.StoreContext, error)
	ResolveRole(ctx context.Context, userID string) (models.UserRole, error)
	ListMyStores(ctx context.Context, userID string) ([]models.Store, error)
	ListStaff(ctx context.Context, storeID string) ([]models.StaffMember, error)
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, userID string, input models.UpsertProfileInput) (*models.Profile, error)
}

// StoreHandler exposes store directory and profile endpoints.
type StoreHandler struct {
	service storeService
}

// NewStoreHandler builds a StoreHandler.
func NewStoreHandler(service storeService) *StoreHandler {
	return &StoreHandler{service: service}
}

// Create godoc
// @Summary Create a store owned by the caller
// @Description Creates the store, promotes the caller to manager and adds the owner membership.
// @Tags Stores
// @Accept json
// @Produce json
// @Param payload body models.CreateStoreInput true "Store payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /stores [post]
func (h *StoreHandler) Create(c *gin.Context) {
	var input models.CreateStoreInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, bindError(err, "invalid store payload"))
		return
	}
	store, err := h.service.CreateStoreAsOwner(c.Request.Context(), callerID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, store)
}

// Current godoc
// @Summary Resolve the caller's current store and role
// @Tags Stores
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /stores/current [get]
func (h *StoreHandler) Current(c *gin.Context) {
	current, err := h.service.CurrentStore(c.Request.Context(), callerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, current, nil)
}

// Mine godoc
// @Summary List the stores the caller owns or belongs to
// @Tags Stores
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /stores [get]
func (h *StoreHandler) Mine(c *gin.Context) {
	stores, err := h.service.ListMyStores(c.Request.Context(), callerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stores, nil)
}

// Staff godoc
// @Summary List members of the scoped store
// @Tags Stores
// @Produce json
// @Param X-Store-ID header string false "Store ID (defaults to current store)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /stores/staff [get]
func (h *StoreHandler) Staff(c *gin.Context) {
	staff, err := h.service.ListStaff(c.Request.Context(), scopedStoreID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, staff, nil)
}

// Role godoc
// @Summary Resolve the caller's profile role
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/role [get]
func (h *StoreHandler) Role(c *gin.Context) {
	role, err := h.service.ResolveRole(c.Request.Context(), callerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"role": role}, nil)
}

// Profile godoc
// @Summary Get the caller's profile
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /me/profile [get]
func (h *StoreHandler) Profile(c *gin.Context) {
	profile, err := h.service.GetProfile(c.Request.Context(), callerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// UpdateProfile godoc
// @Summary Update the caller's display profile
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body models.UpsertProfileInput true "Profile payload"
// @Success 200 {object} response.Envelope
// @Router /me/profile [put]
func (h *StoreHandler) UpdateProfile(c *gin.Context) {
	var input models.UpsertProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, bindError(err, "invalid profile payload"))
		return
	}
	profile, err := h.service.UpsertProfile(c.Request.Context(), callerID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}
