package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/credential-ledger-api/internal/models"
	"github.com/noah-isme/credential-ledger-api/pkg/jobs"
	"github.com/noah-isme/credential-ledger-api/pkg/response"
)

type jobService interface {
	ListFailed(ctx context.Context, jobType models.JobType, limit int) ([]models.JobRecord, error)
	DeadLetters(ctx context.Context, queue string, limit int64) ([]jobs.Job, error)
}

// JobHandler exposes exhausted pipeline jobs for remediation.
type JobHandler struct {
	service jobService
}

// NewJobHandler builds a new handler.
func NewJobHandler(service jobService) *JobHandler {
	return &JobHandler{service: service}
}

// ListFailed godoc
// @Summary List FAILED job records
// @Tags Jobs
// @Produce json
// @Param type query string false "Job type"
// @Param limit query int false "Max records"
// @Success 200 {object} response.Envelope
// @Router /jobs/failed [get]
func (h *JobHandler) ListFailed(c *gin.Context) {
	limit, err := queryLimit(c, 50, 500)
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.service.ListFailed(c.Request.Context(), models.JobType(c.Query("type")), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records)
}

// DeadLetters godoc
// @Summary List buried job envelopes of a queue
// @Tags Jobs
// @Produce json
// @Param queue path string true "Queue name"
// @Param limit query int false "Max envelopes"
// @Success 200 {object} response.Envelope
// @Router /jobs/dead-letters/{queue} [get]
func (h *JobHandler) DeadLetters(c *gin.Context) {
	limit, err := queryLimit(c, 50, 500)
	if err != nil {
		response.Error(c, err)
		return
	}
	dead, err := h.service.DeadLetters(c.Request.Context(), c.Param("queue"), int64(limit))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dead)
}
