package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/credential-ledger-api/internal/dto"
	"github.com/noah-isme/credential-ledger-api/internal/models"
	"github.com/noah-isme/credential-ledger-api/pkg/response"
)

type degreeService interface {
	CreateProposal(ctx context.Context, req dto.CreateDegreeProposalRequest, actorID string) (*models.DegreeProposal, error)
	Get(ctx context.Context, id string) (*models.DegreeProposal, error)
	Submit(ctx context.Context, id, actorID string) (*models.DegreeProposal, error)
	AcademicReview(ctx context.Context, id string, req dto.DegreeReviewRequest, actorID string) (*models.DegreeProposal, error)
	AdminReview(ctx context.Context, id string, req dto.DegreeReviewRequest, actorID string) (*models.DegreeProposal, error)
	CheckDegreeEligibility(ctx context.Context, studentID string) (*models.EligibilityReport, error)
}

// DegreeHandler exposes the degree proposal workflow.
type DegreeHandler struct {
	service degreeService
}

// NewDegreeHandler builds a new handler.
func NewDegreeHandler(service degreeService) *DegreeHandler {
	return &DegreeHandler{service: service}
}

// Create godoc
// @Summary Draft a degree proposal
// @Tags Degrees
// @Accept json
// @Produce json
// @Param payload body dto.CreateDegreeProposalRequest true "Proposal"
// @Success 201 {object} response.Envelope
// @Router /degree-proposals [post]
func (h *DegreeHandler) Create(c *gin.Context) {
	var req dto.CreateDegreeProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid degree proposal payload"))
		return
	}
	proposal, err := h.service.CreateProposal(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, proposal)
}

// Get godoc
// @Summary Get a degree proposal
// @Tags Degrees
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Router /degree-proposals/{id} [get]
func (h *DegreeHandler) Get(c *gin.Context) {
	proposal, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposal)
}

// Submit godoc
// @Summary Submit a draft proposal for academic review
// @Tags Degrees
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /degree-proposals/{id}/submit [post]
func (h *DegreeHandler) Submit(c *gin.Context) {
	proposal, err := h.service.Submit(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposal)
}

// AcademicReview godoc
// @Summary Record the academic board decision
// @Tags Degrees
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body dto.DegreeReviewRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /degree-proposals/{id}/academic-review [post]
func (h *DegreeHandler) AcademicReview(c *gin.Context) {
	h.review(c, h.service.AcademicReview)
}

// AdminReview godoc
// @Summary Record the administrative decision
// @Tags Degrees
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body dto.DegreeReviewRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /degree-proposals/{id}/admin-review [post]
func (h *DegreeHandler) AdminReview(c *gin.Context) {
	h.review(c, h.service.AdminReview)
}

func (h *DegreeHandler) review(c *gin.Context, fn func(context.Context, string, dto.DegreeReviewRequest, string) (*models.DegreeProposal, error)) {
	var req dto.DegreeReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid review payload"))
		return
	}
	proposal, err := fn(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposal)
}

// Eligibility godoc
// @Summary Check degree eligibility of a student
// @Tags Degrees
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/degree-eligibility [get]
func (h *DegreeHandler) Eligibility(c *gin.Context) {
	report, err := h.service.CheckDegreeEligibility(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}
