package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/credential-ledger-api/internal/models"
	"github.com/noah-isme/credential-ledger-api/pkg/response"
)

type semesterResultService interface {
	SubmitForApproval(ctx context.Context, resultID, actorID string) (*models.SemesterResult, error)
}

// SemesterResultHandler submits graded semesters for publication.
type SemesterResultHandler struct {
	service semesterResultService
}

// NewSemesterResultHandler builds a new handler.
func NewSemesterResultHandler(service semesterResultService) *SemesterResultHandler {
	return &SemesterResultHandler{service: service}
}

// Submit godoc
// @Summary Submit a draft semester result for approval
// @Tags SemesterResults
// @Produce json
// @Param id path string true "Result ID"
// @Success 200 {object} response.Envelope
// @Router /semester-results/{id}/submit [post]
func (h *SemesterResultHandler) Submit(c *gin.Context) {
	result, err := h.service.SubmitForApproval(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
