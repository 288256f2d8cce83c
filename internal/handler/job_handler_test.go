package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/credential-ledger-api/internal/models"
	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
	"github.com/noah-isme/credential-ledger-api/pkg/jobs"
)

type jobServiceMock struct {
	lastType  models.JobType
	lastLimit int
	lastQueue string
	called    bool
}

func (m *jobServiceMock) ListFailed(ctx context.Context, jobType models.JobType, limit int) ([]models.JobRecord, error) {
	m.called = true
	m.lastType = jobType
	m.lastLimit = limit
	return []models.JobRecord{{ID: "rec-1", Type: jobType, Status: models.JobRecordFailed}}, nil
}

func (m *jobServiceMock) DeadLetters(ctx context.Context, queue string, limit int64) ([]jobs.Job, error) {
	m.called = true
	m.lastQueue = queue
	if queue != models.QueueLedger && queue != models.QueueWallets {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown queue")
	}
	return []jobs.Job{{ID: "job-1", Queue: queue}}, nil
}

func newAdminContext(target string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, target, nil)
	c.Request = req
	return c, w
}

func TestJobHandlerListFailed(t *testing.T) {
	svc := &jobServiceMock{}
	handler := NewJobHandler(svc)

	c, w := newAdminContext("/jobs/failed?type=mint&limit=10")
	handler.ListFailed(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.JobTypeMint, svc.lastType)
	assert.Equal(t, 10, svc.lastLimit)

	c, _ = newAdminContext("/jobs/failed")
	handler.ListFailed(c)
	assert.Equal(t, 50, svc.lastLimit)
}

func TestJobHandlerRejectsBadLimit(t *testing.T) {
	svc := &jobServiceMock{}
	handler := NewJobHandler(svc)

	c, w := newAdminContext("/jobs/failed?limit=abc")
	handler.ListFailed(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, svc.called)
}

func TestJobHandlerDeadLetters(t *testing.T) {
	svc := &jobServiceMock{}
	handler := NewJobHandler(svc)

	c, w := newAdminContext("/jobs/dead-letters/ledger")
	c.Params = gin.Params{{Key: "queue", Value: models.QueueLedger}}
	handler.DeadLetters(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.QueueLedger, svc.lastQueue)

	c, w = newAdminContext("/jobs/dead-letters/other")
	c.Params = gin.Params{{Key: "queue", Value: "other"}}
	handler.DeadLetters(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
