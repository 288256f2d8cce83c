package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/credential-ledger-api/internal/dto"
	"github.com/noah-isme/credential-ledger-api/internal/models"
	"github.com/noah-isme/credential-ledger-api/pkg/response"
)

type approvalService interface {
	CreateApproval(ctx context.Context, req dto.CreateApprovalRequest, actorID string) (*models.Approval, error)
	Review(ctx context.Context, id string, req dto.ReviewApprovalRequest, actorID string) (*models.Approval, error)
	Get(ctx context.Context, id string) (*models.Approval, error)
	ListPending(ctx context.Context, approvalType models.ApprovalType) ([]models.PendingApprovalCount, error)
}

// ApprovalHandler exposes the approval engine.
type ApprovalHandler struct {
	service approvalService
}

// NewApprovalHandler builds a new handler.
func NewApprovalHandler(service approvalService) *ApprovalHandler {
	return &ApprovalHandler{service: service}
}

// Create godoc
// @Summary Open an approval request
// @Tags Approvals
// @Accept json
// @Produce json
// @Param payload body dto.CreateApprovalRequest true "Approval payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /approvals [post]
func (h *ApprovalHandler) Create(c *gin.Context) {
	var req dto.CreateApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid approval payload"))
		return
	}
	approval, err := h.service.CreateApproval(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, approval)
}

// Review godoc
// @Summary Approve or reject a pending approval
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Approval ID"
// @Param payload body dto.ReviewApprovalRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /approvals/{id}/review [post]
func (h *ApprovalHandler) Review(c *gin.Context) {
	var req dto.ReviewApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid review payload"))
		return
	}
	approval, err := h.service.Review(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approval)
}

// Get godoc
// @Summary Get an approval
// @Tags Approvals
// @Produce json
// @Param id path string true "Approval ID"
// @Success 200 {object} response.Envelope
// @Router /approvals/{id} [get]
func (h *ApprovalHandler) Get(c *gin.Context) {
	approval, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approval)
}

// ListPending godoc
// @Summary Count pending approvals by type and step
// @Tags Approvals
// @Produce json
// @Param type query string false "Approval type"
// @Success 200 {object} response.Envelope
// @Router /approvals/pending [get]
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	var query dto.PendingApprovalsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query"))
		return
	}
	counts, err := h.service.ListPending(c.Request.Context(), query.Type)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts)
}
